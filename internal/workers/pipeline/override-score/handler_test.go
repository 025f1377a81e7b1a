// internal/workers/pipeline/override-score/handler_test.go
package overridescore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

// ==========================
// Test Helper Functions
// ==========================

type stubRoleChecker struct {
	admin bool
	err   error
}

func (s *stubRoleChecker) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.admin, s.err
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func createValidConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 3,
		Timeout:       10 * time.Second,
	}
}

func newTestService(t *testing.T, db *sql.DB, auth RoleChecker) *Service {
	return NewService(ServiceDependencies{
		DB:     db,
		Auth:   auth,
		Logger: createTestLogger(t),
	}, createValidConfig())
}

var scoreColumns = []string{
	"id", "buyer_id", "listing_id", "composite_score", "tier",
	"size_gate", "service_gate", "geography_gate",
	"size_fit_score", "data_quality_score", "motivation_score", "engagement_score",
	"thesis_alignment_bonus", "data_quality_bonus", "kpi_bonus", "custom_bonus", "learning_penalty",
	"is_disqualified", "disqualification_reason", "needs_review", "confidence",
	"weight_config_id", "archived", "scored_at",
}

func previousScoreRow(archived bool) *sqlmock.Rows {
	return sqlmock.NewRows(scoreColumns).AddRow(
		"score-old", "buyer-1", "listing-1", 62, "C",
		1.0, 1.0, 1.0,
		70, 55, 60, 40,
		5, 2, 0, 0, 0,
		false, "", true, "low",
		"weights-v1", archived, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
}

func intRef(i int) *int {
	return &i
}

func strRef(s string) *string {
	return &s
}

func boolRef(b bool) *bool {
	return &b
}

func expectLoadScore(mock sqlmock.Sqlmock, scoreID string, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT id, buyer_id, listing_id, composite_score, tier,[\s\S]*FROM buyer_deal_scores WHERE id = \$1 FOR UPDATE`).
		WithArgs(scoreID).
		WillReturnRows(rows)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "test-process",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_OverrideScore",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// ==========================
// Service Tests
// ==========================

func TestService_Execute_AppliesOverride(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	expectLoadScore(mock, "score-old", previousScoreRow(false))
	mock.ExpectExec(`UPDATE buyer_deal_scores SET archived = true`).
		WithArgs("buyer-1", "listing-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO buyer_deal_scores`).
		WithArgs(sqlmock.AnyArg(), "buyer-1", "listing-1", 85, "A",
			1.0, 1.0, 1.0,
			70, 55, 60, 40,
			5, 2, 0, 0, 0,
			false, "", false, "manual",
			"weights-v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), "admin-user", "score.override_applied", "buyer_deal_score",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	service := newTestService(t, db, &stubRoleChecker{admin: true})
	output, err := service.Execute(context.Background(), &Input{
		ScoreID:        "score-old",
		ActorUserID:    "admin-user",
		Reason:         "Buyer closed two similar deals last quarter",
		CompositeScore: intRef(85),
	})

	assert.NoError(t, err)
	assert.True(t, output.Success)
	assert.Equal(t, "score-old", output.PreviousScoreID)
	assert.NotEmpty(t, output.ScoreID)
	assert.NotEqual(t, "score-old", output.ScoreID)
	assert.Equal(t, 85, output.CompositeScore)
	assert.Equal(t, "A", output.Tier)
	assert.False(t, output.NeedsReview)
	assert.Equal(t, "manual", output.Confidence)
	assert.False(t, output.OverriddenAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Execute_ImplausibleValuesStillApplied(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	expectLoadScore(mock, "score-old", previousScoreRow(false))
	mock.ExpectExec(`UPDATE buyer_deal_scores SET archived = true`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO buyer_deal_scores`).
		WithArgs(sqlmock.AnyArg(), "buyer-1", "listing-1", 95, "F",
			1.0, 1.0, 1.0,
			70, 55, 60, 40,
			5, 2, 0, 0, 0,
			false, "", false, "manual",
			"weights-v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	service := newTestService(t, db, &stubRoleChecker{admin: true})
	output, err := service.Execute(context.Background(), &Input{
		ScoreID:        "score-old",
		ActorUserID:    "admin-user",
		Reason:         "Manual review decided this pairing is a dead end",
		CompositeScore: intRef(95),
		Tier:           strRef("F"),
	})

	// A tier that contradicts the composite is warned about, never blocked.
	assert.NoError(t, err)
	assert.True(t, output.Success)
	assert.Equal(t, 95, output.CompositeScore)
	assert.Equal(t, "F", output.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Execute_TierOnlyKeepsComposite(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	expectLoadScore(mock, "score-old", previousScoreRow(false))
	mock.ExpectExec(`UPDATE buyer_deal_scores SET archived = true`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO buyer_deal_scores`).
		WithArgs(sqlmock.AnyArg(), "buyer-1", "listing-1", 62, "B",
			1.0, 1.0, 1.0,
			70, 55, 60, 40,
			5, 2, 0, 0, 0,
			false, "", false, "manual",
			"weights-v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	service := newTestService(t, db, &stubRoleChecker{admin: true})
	output, err := service.Execute(context.Background(), &Input{
		ScoreID:     "score-old",
		ActorUserID: "admin-user",
		Reason:      "Tier bumped after an onsite visit",
		Tier:        strRef("B"),
	})

	assert.NoError(t, err)
	assert.Equal(t, 62, output.CompositeScore)
	assert.Equal(t, "B", output.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Execute_ExplicitNeedsReviewKept(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	expectLoadScore(mock, "score-old", previousScoreRow(false))
	mock.ExpectExec(`UPDATE buyer_deal_scores SET archived = true`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO buyer_deal_scores`).
		WithArgs(sqlmock.AnyArg(), "buyer-1", "listing-1", 62, "C",
			1.0, 1.0, 1.0,
			70, 55, 60, 40,
			5, 2, 0, 0, 0,
			false, "", true, "manual",
			"weights-v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	service := newTestService(t, db, &stubRoleChecker{admin: true})
	output, err := service.Execute(context.Background(), &Input{
		ScoreID:     "score-old",
		ActorUserID: "admin-user",
		Reason:      "Keep flagged until the financials arrive",
		NeedsReview: boolRef(true),
	})

	assert.NoError(t, err)
	assert.True(t, output.NeedsReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Execute_Errors(t *testing.T) {
	tests := []struct {
		name          string
		auth          RoleChecker
		input         *Input
		setupMock     func(mock sqlmock.Sqlmock)
		expectedCode  string
		expectedRetry bool
	}{
		{
			name: "non-admin actor",
			auth: &stubRoleChecker{admin: false},
			input: &Input{
				ScoreID:     "score-old",
				ActorUserID: "user-1",
				Reason:      "because",
				Tier:        strRef("A"),
			},
			expectedCode:  "AUTHORIZATION_ERROR",
			expectedRetry: false,
		},
		{
			name: "auth lookup failure",
			auth: &stubRoleChecker{err: fmt.Errorf("auth api down")},
			input: &Input{
				ScoreID:     "score-old",
				ActorUserID: "user-1",
				Reason:      "because",
				Tier:        strRef("A"),
			},
			expectedCode:  "AUTH_LOOKUP_FAILED",
			expectedRetry: true,
		},
		{
			name: "blank reason",
			auth: &stubRoleChecker{admin: true},
			input: &Input{
				ScoreID:     "score-old",
				ActorUserID: "admin-user",
				Reason:      "   ",
				Tier:        strRef("A"),
			},
			expectedCode:  "VALIDATION_FAILED",
			expectedRetry: false,
		},
		{
			name: "no override values",
			auth: &stubRoleChecker{admin: true},
			input: &Input{
				ScoreID:     "score-old",
				ActorUserID: "admin-user",
				Reason:      "nothing provided",
			},
			expectedCode:  "VALIDATION_FAILED",
			expectedRetry: false,
		},
		{
			name: "score not found",
			auth: &stubRoleChecker{admin: true},
			input: &Input{
				ScoreID:     "score-missing",
				ActorUserID: "admin-user",
				Reason:      "cleanup",
				Tier:        strRef("A"),
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FROM buyer_deal_scores WHERE id = \$1 FOR UPDATE`).
					WithArgs("score-missing").
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			expectedCode:  "SCORE_NOT_FOUND",
			expectedRetry: false,
		},
		{
			name: "already archived",
			auth: &stubRoleChecker{admin: true},
			input: &Input{
				ScoreID:     "score-old",
				ActorUserID: "admin-user",
				Reason:      "stale target",
				Tier:        strRef("A"),
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectLoadScore(mock, "score-old", previousScoreRow(true))
				mock.ExpectRollback()
			},
			expectedCode:  "SCORE_ARCHIVED",
			expectedRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			service := newTestService(t, db, tt.auth)
			output, err := service.Execute(context.Background(), tt.input)

			assert.Error(t, err)
			assert.Nil(t, output)

			var stdErr *errors.StandardError
			assert.ErrorAs(t, err, &stdErr)
			assert.Equal(t, tt.expectedCode, string(stdErr.Code))
			assert.Equal(t, tt.expectedRetry, stdErr.Retryable)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Handler Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	db, _ := setupMockDB(t)

	handler, err := NewHandler(HandlerOptions{
		DB:           db,
		CustomConfig: createValidConfig(),
		Logger:       createTestLogger(t),
	})
	assert.NoError(t, err)
	assert.NotNil(t, handler)
	assert.Equal(t, TaskType, handler.GetTaskType())
	assert.True(t, handler.IsEnabled())

	handler, err = NewHandler(HandlerOptions{
		DB: db,
		CustomConfig: &Config{
			Enabled:       true,
			MaxJobsActive: 3,
			Timeout:       0,
		},
		Logger: createTestLogger(t),
	})
	assert.Error(t, err)
	assert.Nil(t, handler)
}

func TestHandler_ParseInput(t *testing.T) {
	db, _ := setupMockDB(t)
	handler, err := NewHandler(HandlerOptions{
		DB:           db,
		CustomConfig: createValidConfig(),
		Logger:       createTestLogger(t),
	})
	assert.NoError(t, err)

	t.Run("full input", func(t *testing.T) {
		job := createMockJob(12345, map[string]interface{}{
			"scoreId":        "score-1",
			"actorUserId":    "admin-user",
			"reason":         "manual correction",
			"compositeScore": 85,
			"tier":           "A",
			"needsReview":    false,
		})

		input, parseErr := handler.parseInput(job)
		assert.NoError(t, parseErr)
		assert.Equal(t, "score-1", input.ScoreID)
		assert.Equal(t, "admin-user", input.ActorUserID)
		assert.Equal(t, "manual correction", input.Reason)
		assert.NotNil(t, input.CompositeScore)
		assert.Equal(t, 85, *input.CompositeScore)
		assert.NotNil(t, input.Tier)
		assert.Equal(t, "A", *input.Tier)
		assert.NotNil(t, input.NeedsReview)
		assert.False(t, *input.NeedsReview)
	})

	t.Run("minimal input leaves unset fields nil", func(t *testing.T) {
		job := createMockJob(12346, map[string]interface{}{
			"scoreId":     "score-1",
			"actorUserId": "admin-user",
			"reason":      "manual correction",
		})

		input, parseErr := handler.parseInput(job)
		assert.NoError(t, parseErr)
		assert.Nil(t, input.CompositeScore)
		assert.Nil(t, input.Tier)
		assert.Nil(t, input.NeedsReview)
	})

	t.Run("missing reason rejected", func(t *testing.T) {
		job := createMockJob(12347, map[string]interface{}{
			"scoreId":     "score-1",
			"actorUserId": "admin-user",
		})

		input, parseErr := handler.parseInput(job)
		assert.Error(t, parseErr)
		assert.Nil(t, input)

		var stdErr *errors.StandardError
		assert.ErrorAs(t, parseErr, &stdErr)
		assert.Equal(t, "VALIDATION_FAILED", string(stdErr.Code))
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		job := createMockJob(12348, map[string]interface{}{
			"scoreId":     "score-1",
			"actorUserId": "admin-user",
			"reason":      "manual correction",
			"overrideAll": true,
		})

		input, parseErr := handler.parseInput(job)
		assert.Error(t, parseErr)
		assert.Nil(t, input)
	})
}
