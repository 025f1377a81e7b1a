// internal/models/valuation.go
package models

import "time"

// Calculator types accepted by the valuation intake.
const (
	CalculatorTypeStandard = "standard"
	CalculatorTypeSDE      = "sde"
	CalculatorTypeEBITDA   = "ebitda"
)

type ValuationLead struct {
	LeadID         string                 `json:"leadId"`
	Email          string                 `json:"email"`
	CalculatorType string                 `json:"calculatorType"`
	CompanyName    string                 `json:"companyName,omitempty"`
	Industry       string                 `json:"industry,omitempty"`
	Inputs         map[string]interface{} `json:"inputs,omitempty"`
	EstimateLow    int64                  `json:"estimateLow"`
	EstimateHigh   int64                  `json:"estimateHigh"`
	CreatedAt      time.Time              `json:"createdAt"`
}
