// internal/workers/pipeline/sync-agreement-status/service.go
package syncagreementstatus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dealflow-workers/internal/common/audit"
	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
)

// Transitions the agreement lifecycle accepts. Backward moves are
// rejected: a signed agreement can only lapse, never return to
// requested, and a decline path goes through expiry.
var allowedTransitions = map[string][]string{
	models.AgreementStatusNone:      {models.AgreementStatusRequested, models.AgreementStatusSigned},
	models.AgreementStatusRequested: {models.AgreementStatusSigned, models.AgreementStatusExpired},
	models.AgreementStatusSigned:    {models.AgreementStatusExpired},
	models.AgreementStatusExpired:   {models.AgreementStatusRequested, models.AgreementStatusSigned},
}

// agreementColumns names the denormalized copies one agreement type
// maintains across the cascade tables.
type agreementColumns struct {
	status  string // firms + firm_members
	profile string // user_profiles signed flag
	request string // connection_requests satisfied flag
}

func columnsFor(agreementType string) (agreementColumns, bool) {
	switch agreementType {
	case models.AgreementTypeNDA:
		return agreementColumns{
			status:  "nda_status",
			profile: "has_signed_nda",
			request: "nda_satisfied",
		}, true
	case models.AgreementTypeFee:
		return agreementColumns{
			status:  "fee_agreement_status",
			profile: "has_signed_fee_agreement",
			request: "fee_agreement_satisfied",
		}, true
	}
	return agreementColumns{}, false
}

type Service struct {
	config *Config
	logger logger.Logger
	deps   ServiceDependencies
	audit  *audit.Recorder
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		deps:   deps,
		audit:  audit.NewRecorder(deps.DB, deps.Logger),
	}
}

// Execute applies one agreement status change and walks the explicit
// propagation chain the original schema hid in triggers: firm row,
// member rows, member profiles, open connection requests, active
// deals. Counts per step go into the output so a partial cascade is
// visible instead of silent.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	isAdmin, err := s.deps.Auth.IsAdmin(ctx, input.ActorUserID)
	if err != nil {
		return nil, errors.NewAuthLookupFailedError(err)
	}
	if !isAdmin {
		return nil, errors.NewAuthorizationError(
			fmt.Sprintf("user %s is not an admin", input.ActorUserID))
	}

	cols, ok := columnsFor(input.AgreementType)
	if !ok {
		return nil, &errors.StandardError{
			Code:      "VALIDATION_FAILED",
			Message:   "Unknown agreement type",
			Details:   "agreementType must be nda or fee_agreement",
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	tx, err := s.deps.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	var previous string
	query := fmt.Sprintf("SELECT COALESCE(%s, 'none') FROM firms WHERE id = $1 FOR UPDATE", cols.status)
	err = tx.QueryRowContext(ctx, query, input.FirmID).Scan(&previous)
	if err == sql.ErrNoRows {
		return nil, &errors.StandardError{
			Code:      "FIRM_NOT_FOUND",
			Message:   "Firm does not exist",
			Details:   fmt.Sprintf("firmId: %s", input.FirmID),
			Retryable: false,
			Timestamp: time.Now(),
		}
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("sync_agreement_status", err)
	}

	if previous == input.NewStatus {
		s.logger.Info("Agreement status unchanged, nothing to sync", map[string]interface{}{
			"firmId":        input.FirmID,
			"agreementType": input.AgreementType,
			"status":        previous,
		})
		return &Output{
			Success:        true,
			Message:        "Status unchanged",
			FirmID:         input.FirmID,
			AgreementType:  input.AgreementType,
			PreviousStatus: previous,
			NewStatus:      previous,
		}, nil
	}

	if !transitionAllowed(previous, input.NewStatus) {
		return nil, &errors.StandardError{
			Code:      "INVALID_STATUS_TRANSITION",
			Message:   "Agreement status transition not allowed",
			Details:   fmt.Sprintf("%s: %s -> %s", input.AgreementType, previous, input.NewStatus),
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	update := fmt.Sprintf("UPDATE firms SET %s = $1, updated_at = NOW() WHERE id = $2", cols.status)
	if _, err := tx.ExecContext(ctx, update, input.NewStatus, input.FirmID); err != nil {
		return nil, errors.NewQueryExecutionFailedError("sync_agreement_status", err)
	}

	counts, err := s.cascade(ctx, tx, cols, input)
	if err != nil {
		return nil, err
	}

	before, _ := json.Marshal(map[string]string{"status": previous})
	after, _ := json.Marshal(map[string]interface{}{
		"status":      input.NewStatus,
		"propagation": counts,
	})
	s.audit.RecordTx(ctx, tx, &models.AuditEntry{
		ActorID:    input.ActorUserID,
		Action:     "firm.agreement_status_changed",
		EntityType: "firm",
		EntityID:   input.FirmID,
		Before:     before,
		After:      after,
	})

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("sync_agreement_status", err)
	}

	output := &Output{
		Success:        true,
		Message:        "Agreement status synced",
		FirmID:         input.FirmID,
		AgreementType:  input.AgreementType,
		PreviousStatus: previous,
		NewStatus:      input.NewStatus,
		Propagation:    counts,
	}

	output.CacheInvalidated = s.invalidateCache(ctx, input.FirmID)

	s.logger.Info("Agreement status synced", map[string]interface{}{
		"firmId":         input.FirmID,
		"agreementType":  input.AgreementType,
		"previousStatus": previous,
		"newStatus":      input.NewStatus,
		"members":        counts.MembersUpdated,
		"profiles":       counts.ProfilesUpdated,
		"requests":       counts.ConnectionRequestsUpdated,
		"deals":          counts.DealsFlagged,
	})

	return output, nil
}

// cascade runs the four denormalization steps in their fixed order.
// Later steps depend on the earlier ones being committed in the same
// transaction, so any failure rolls back the whole chain.
func (s *Service) cascade(ctx context.Context, tx *sql.Tx, cols agreementColumns, input *Input) (PropagationCounts, error) {
	var counts PropagationCounts
	signed := input.NewStatus == models.AgreementStatusSigned

	members := fmt.Sprintf(
		"UPDATE firm_members SET %s = $1, updated_at = NOW() WHERE firm_id = $2", cols.status)
	n, err := execCount(ctx, tx, members, input.NewStatus, input.FirmID)
	if err != nil {
		return counts, errors.NewQueryExecutionFailedError("sync_agreement_status", err)
	}
	counts.MembersUpdated = n

	profiles := fmt.Sprintf(
		"UPDATE user_profiles SET %s = $1, updated_at = NOW() WHERE user_id IN (SELECT user_id FROM firm_members WHERE firm_id = $2)",
		cols.profile)
	n, err = execCount(ctx, tx, profiles, signed, input.FirmID)
	if err != nil {
		return counts, errors.NewQueryExecutionFailedError("sync_agreement_status", err)
	}
	counts.ProfilesUpdated = n

	requests := fmt.Sprintf(
		"UPDATE connection_requests SET %s = $1, updated_at = NOW() WHERE buyer_firm_id = $2 AND status IN ('pending', 'accepted')",
		cols.request)
	n, err = execCount(ctx, tx, requests, signed, input.FirmID)
	if err != nil {
		return counts, errors.NewQueryExecutionFailedError("sync_agreement_status", err)
	}
	counts.ConnectionRequestsUpdated = n

	deals := "UPDATE deals SET agreements_stale = true, updated_at = NOW() " +
		"WHERE buyer_firm_id = $1 AND stage NOT IN ('closed_won', 'closed_lost')"
	n, err = execCount(ctx, tx, deals, input.FirmID)
	if err != nil {
		return counts, errors.NewQueryExecutionFailedError("sync_agreement_status", err)
	}
	counts.DealsFlagged = n

	return counts, nil
}

// invalidateCache drops the cached agreement status after commit.
// Cache trouble is logged and swallowed; the database already holds
// the truth and the entry expires on its own TTL.
func (s *Service) invalidateCache(ctx context.Context, firmID string) bool {
	if s.deps.Redis == nil {
		return false
	}
	key := "agreement:status:" + firmID
	if err := s.deps.Redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("Failed to invalidate agreement status cache", map[string]interface{}{
			"firmId": firmID,
			"key":    key,
			"error":  err.Error(),
		})
		return false
	}
	return true
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
