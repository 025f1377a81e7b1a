// internal/workers/pipeline/create-valuation-lead/models.go
package createvaluationlead

import (
	"database/sql"
	"time"

	"dealflow-workers/internal/common/logger"
)

type Input struct {
	Email          string                 `json:"email"`
	CalculatorType string                 `json:"calculatorType"`
	CompanyName    string                 `json:"companyName,omitempty"`
	Industry       string                 `json:"industry,omitempty"`
	Inputs         map[string]interface{} `json:"inputs,omitempty"`
	EstimateLow    int64                  `json:"estimateLow,omitempty"`
	EstimateHigh   int64                  `json:"estimateHigh,omitempty"`
}

type Output struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	LeadID    string    `json:"leadId,omitempty"`
	Duplicate bool      `json:"duplicate"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type ServiceDependencies struct {
	DB     *sql.DB
	Logger logger.Logger
}
