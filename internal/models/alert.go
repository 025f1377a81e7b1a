// internal/models/alert.go
package models

import (
	"encoding/json"
	"time"
)

// Alert delivery frequencies.
const (
	AlertFrequencyInstant = "instant"
	AlertFrequencyDaily   = "daily"
	AlertFrequencyWeekly  = "weekly"
)

// CriteriaSchemaVersion is the current normalized criteria shape. Version 1
// blobs (scalar category/location, min_revenue/max_revenue keys) are upgraded
// at read time and never written back.
const CriteriaSchemaVersion = 2

type DealAlert struct {
	AlertID      string          `json:"alertId"`
	UserID       string          `json:"userId"`
	Email        string          `json:"email"`
	Frequency    string          `json:"frequency"`
	Active       bool            `json:"active"`
	UserVerified bool            `json:"userVerified"`
	Criteria     json.RawMessage `json:"criteria"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// AlertCriteria is the normalized, versioned form of a deal alert's stored
// criteria blob. Empty slices and zero bounds mean "no constraint".
type AlertCriteria struct {
	Version    int      `json:"version"`
	Categories []string `json:"categories,omitempty"`
	Locations  []string `json:"locations,omitempty"`
	RevenueMin int64    `json:"revenueMin,omitempty"`
	RevenueMax int64    `json:"revenueMax,omitempty"`
	EBITDAMin  int64    `json:"ebitdaMin,omitempty"`
	EBITDAMax  int64    `json:"ebitdaMax,omitempty"`
	FreeText   string   `json:"freeText,omitempty"`
}
