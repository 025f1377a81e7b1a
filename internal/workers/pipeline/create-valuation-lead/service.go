// internal/workers/pipeline/create-valuation-lead/service.go
package createvaluationlead

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealflow-workers/internal/common/audit"
	"dealflow-workers/internal/common/database"
	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/validation"
	"dealflow-workers/internal/models"
)

type Service struct {
	config *Config
	logger logger.Logger
	db     *sql.DB
	audit  *audit.Recorder
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		db:     deps.DB,
		audit:  audit.NewRecorder(deps.DB, deps.Logger),
	}
}

// Execute stores one calculator submission. The advisory lock keyed on
// email+calculator serializes concurrent submissions of the same lead,
// so two browser tabs cannot both pass the duplicate check and insert.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))

	if !validation.ValidateEmail(email) {
		return nil, &errors.StandardError{
			Code:      "VALIDATION_FAILED",
			Message:   "Invalid email address",
			Details:   "email does not look like an address",
			Retryable: false,
			Timestamp: time.Now(),
		}
	}
	if !knownCalculatorType(input.CalculatorType) {
		return nil, &errors.StandardError{
			Code:      "VALIDATION_FAILED",
			Message:   "Unknown calculator type",
			Details:   "calculatorType must be one of standard, sde, ebitda",
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	s.logger.Info("Storing valuation lead", map[string]interface{}{
		"email":          email,
		"calculatorType": input.CalculatorType,
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	lockKey := email + ":" + input.CalculatorType
	if err := database.AdvisoryLockTx(ctx, tx, lockKey); err != nil {
		return nil, errors.NewQueryExecutionFailedError("create_valuation_lead", err)
	}

	var existingID string
	var existingAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT id, created_at
		FROM valuation_leads
		WHERE lower(email) = $1 AND calculator_type = $2 AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1`,
		email, input.CalculatorType, time.Now().UTC().Add(-s.config.DuplicateWindow),
	).Scan(&existingID, &existingAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.NewQueryExecutionFailedError("create_valuation_lead", err)
	}
	if err == nil {
		s.logger.Info("Recent lead already exists, skipping insert", map[string]interface{}{
			"leadId":         existingID,
			"calculatorType": input.CalculatorType,
		})
		return &Output{
			Success:   true,
			Message:   "A recent valuation lead already exists for this email",
			LeadID:    existingID,
			Duplicate: true,
			CreatedAt: existingAt,
		}, nil
	}

	lead := models.ValuationLead{
		LeadID:         uuid.New().String(),
		Email:          email,
		CalculatorType: input.CalculatorType,
		CompanyName:    input.CompanyName,
		Industry:       input.Industry,
		Inputs:         input.Inputs,
		EstimateLow:    input.EstimateLow,
		EstimateHigh:   input.EstimateHigh,
		CreatedAt:      time.Now().UTC(),
	}

	inputsJSON, err := json.Marshal(lead.Inputs)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "SERIALIZATION_ERROR",
			Message:   "Failed to serialize calculator inputs",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO valuation_leads
			(id, email, calculator_type, company_name, industry, inputs, estimate_low, estimate_high, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lead.LeadID, lead.Email, lead.CalculatorType, lead.CompanyName, lead.Industry,
		inputsJSON, lead.EstimateLow, lead.EstimateHigh, lead.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	leadJSON, _ := json.Marshal(lead)
	s.audit.RecordTx(ctx, tx, &models.AuditEntry{
		ActorID:    "valuation-intake",
		Action:     "valuation.lead_created",
		EntityType: "valuation_lead",
		EntityID:   lead.LeadID,
		After:      leadJSON,
	})

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("create_valuation_lead", err)
	}

	s.logger.Info("Valuation lead stored", map[string]interface{}{
		"leadId":         lead.LeadID,
		"calculatorType": lead.CalculatorType,
	})

	return &Output{
		Success:   true,
		Message:   "Valuation lead stored",
		LeadID:    lead.LeadID,
		Duplicate: false,
		CreatedAt: lead.CreatedAt,
	}, nil
}

func knownCalculatorType(t string) bool {
	switch t {
	case models.CalculatorTypeStandard, models.CalculatorTypeSDE, models.CalculatorTypeEBITDA:
		return true
	}
	return false
}
