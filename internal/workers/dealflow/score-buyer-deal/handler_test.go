package scorebuyerdeal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/scoring"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		CacheTTL: 15 * time.Minute,
		Timeout:  5 * time.Second,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func buyerColumns() []string {
	return []string{
		"id", "firm_id", "company_name", "contact_email", "buyer_type",
		"revenue_min", "revenue_max", "ebitda_min", "ebitda_max",
		"target_geographies", "target_services", "geography_mode",
		"thesis_text", "archived", "merged_into", "created_at", "updated_at",
	}
}

func fitBuyerRow() *sqlmock.Rows {
	return sqlmock.NewRows(buyerColumns()).AddRow(
		"buyer-1", "firm-1", "Summit Roll-Up Partners", "deals@summit.example", "pe_firm",
		int64(2_000_000), int64(10_000_000), int64(500_000), int64(2_000_000),
		"{TX,OK}", "{hvac}", "critical",
		"Buy-and-build HVAC consolidation across the southern US, platform first.",
		false, "", time.Now(), time.Now(),
	)
}

func listingColumns() []string {
	return []string{
		"id", "title", "description", "category", "categories",
		"location", "revenue", "ebitda", "asking_price",
		"data_completeness", "motivation_score", "status", "created_at",
	}
}

func fitListingRow() *sqlmock.Rows {
	return sqlmock.NewRows(listingColumns()).AddRow(
		"listing-1", "Dallas HVAC Services Co", "Established commercial HVAC operator", "hvac", "{}",
		"Dallas, TX", int64(6_000_000), int64(1_250_000), int64(9_000_000),
		90, 80, "active", time.Now(),
	)
}

func weightConfigColumns() []string {
	return []string{
		"id", "name", "size_fit_weight", "data_quality_weight", "motivation_weight", "engagement_weight",
		"thesis_bonus_cap", "data_quality_bonus_cap", "learning_penalty_max", "size_tolerance_pct",
		"active", "cohort_key", "created_at",
	}
}

func activeWeightRow() *sqlmock.Rows {
	return sqlmock.NewRows(weightConfigColumns()).AddRow(
		"cfg-1", "launch", 65, 20, 8, 7, 20, 10, 25, 0.20, true, "", time.Now(),
	)
}

func expectEngagement(mock sqlmock.Sqlmock, types ...string) {
	rows := sqlmock.NewRows([]string{"signal_type"})
	for _, typ := range types {
		rows.AddRow(typ)
	}
	mock.ExpectQuery(`SELECT signal_type FROM engagement_signals`).
		WithArgs("buyer-1", "listing-1").
		WillReturnRows(rows)
}

func expectNoPasses(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM deal_passes`).
		WithArgs("buyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
}

func expectPersist(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE buyer_deal_scores SET archived = true`).
		WithArgs("buyer-1", "listing-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO buyer_deal_scores`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func createValidInput() *Input {
	return &Input{
		BuyerID:              "buyer-1",
		ListingID:            "listing-1",
		ThesisAlignmentBonus: 15,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	rdb := setupRedis(t)
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
		WithArgs("buyer-1").
		WillReturnRows(fitBuyerRow())
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(fitListingRow())
	mock.ExpectQuery(`FROM scoring_weight_configs WHERE active = true`).
		WillReturnRows(activeWeightRow())
	// nda 30 + site visit 20 + download 15 + view 5 = 70
	expectEngagement(mock,
		models.SignalNDASigned, models.SignalSiteVisit,
		models.SignalDocumentDownload, models.SignalListingView)
	expectNoPasses(mock)
	expectPersist(mock)

	handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
	output, err := handler.Execute(context.Background(), createValidInput())

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 100, output.CompositeScore)
	assert.Equal(t, models.TierA, output.Tier)
	assert.False(t, output.IsDisqualified)
	assert.Equal(t, models.ConfidenceHigh, output.Confidence)
	assert.Equal(t, 70, output.EngagementScore)
	assert.Equal(t, "cfg-1", output.WeightConfigID)
	assert.NotEmpty(t, output.ScoreID)

	// both lookups should now be cached
	cached, err := rdb.Get(context.Background(), "buyer:criteria:buyer-1").Result()
	assert.NoError(t, err)
	assert.Contains(t, cached, "Summit Roll-Up Partners")
	_, err = rdb.Get(context.Background(), "scoring:weights:active").Result()
	assert.NoError(t, err)
}

func TestHandler_Execute_CacheHit(t *testing.T) {
	rdb := setupRedis(t)
	db, mock := setupMockDB(t)

	buyer := models.BuyerCriteria{
		BuyerID:           "buyer-1",
		CompanyName:       "Summit Roll-Up Partners",
		BuyerType:         models.BuyerTypePEFirm,
		RevenueMin:        2_000_000,
		RevenueMax:        10_000_000,
		EBITDAMin:         500_000,
		EBITDAMax:         2_000_000,
		TargetGeographies: []string{"TX", "OK"},
		TargetServices:    []string{"hvac"},
		GeographyMode:     models.GeographyModeCritical,
		ThesisText:        "Buy-and-build HVAC consolidation across the southern US, platform first.",
	}
	buyerJSON, _ := json.Marshal(buyer)
	assert.NoError(t, rdb.Set(context.Background(), "buyer:criteria:buyer-1", buyerJSON, time.Minute).Err())

	cfg := scoring.DefaultWeights()
	cfgJSON, _ := json.Marshal(cfg)
	assert.NoError(t, rdb.Set(context.Background(), "scoring:weights:active", cfgJSON, time.Minute).Err())

	// no buyer or weight-config queries expected
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(fitListingRow())
	expectEngagement(mock, models.SignalNDASigned)
	expectNoPasses(mock)
	expectPersist(mock)

	handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
	output, err := handler.Execute(context.Background(), createValidInput())

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "default", output.WeightConfigID)
}

func TestHandler_Execute_CacheErrorFallsBackToDatabase(t *testing.T) {
	// miniredis cannot fail a command, so broken-Redis behavior is
	// driven through redismock instead.
	rdb, redisMock := redismock.NewClientMock()
	db, mock := setupMockDB(t)

	redisMock.ExpectGet("buyer:criteria:buyer-1").SetErr(errors.New("connection refused"))
	redisMock.ExpectGet("scoring:weights:active").SetErr(errors.New("connection refused"))

	mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
		WithArgs("buyer-1").
		WillReturnRows(fitBuyerRow())
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(fitListingRow())
	mock.ExpectQuery(`FROM scoring_weight_configs WHERE active = true`).
		WillReturnRows(activeWeightRow())
	expectEngagement(mock,
		models.SignalNDASigned, models.SignalSiteVisit,
		models.SignalDocumentDownload, models.SignalListingView)
	expectNoPasses(mock)
	expectPersist(mock)

	handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
	output, err := handler.Execute(context.Background(), createValidInput())

	// cache reads and the follow-up writes all fail, the score does not
	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.Equal(t, 100, output.CompositeScore)
	assert.Equal(t, models.TierA, output.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestHandler_Execute_MergedBuyerFollowsKeeper(t *testing.T) {
	rdb := setupRedis(t)
	db, mock := setupMockDB(t)

	mergedRow := sqlmock.NewRows(buyerColumns()).AddRow(
		"buyer-dup", "", "Summit Rollup Partners LLC", "", "pe_firm",
		int64(0), int64(0), int64(0), int64(0),
		"{}", "{}", "critical",
		"", true, "buyer-1", time.Now(), time.Now(),
	)
	mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
		WithArgs("buyer-dup").
		WillReturnRows(mergedRow)
	mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
		WithArgs("buyer-1").
		WillReturnRows(fitBuyerRow())
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(fitListingRow())
	mock.ExpectQuery(`FROM scoring_weight_configs WHERE active = true`).
		WillReturnRows(activeWeightRow())
	expectEngagement(mock, models.SignalNDASigned)
	expectNoPasses(mock)
	expectPersist(mock)

	input := createValidInput()
	input.BuyerID = "buyer-dup"

	handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, output.IsDisqualified)
}

func TestHandler_Execute_DisqualifiedStillPersisted(t *testing.T) {
	rdb := setupRedis(t)
	db, mock := setupMockDB(t)

	outOfFootprint := sqlmock.NewRows(listingColumns()).AddRow(
		"listing-1", "Miami HVAC Co", "", "hvac", "{}",
		"Miami, FL", int64(6_000_000), int64(1_250_000), int64(0),
		90, 80, "active", time.Now(),
	)

	mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
		WithArgs("buyer-1").
		WillReturnRows(fitBuyerRow())
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(outOfFootprint)
	mock.ExpectQuery(`FROM scoring_weight_configs WHERE active = true`).
		WillReturnRows(activeWeightRow())
	expectEngagement(mock, models.SignalNDASigned)
	expectNoPasses(mock)
	// the disqualified row is still archived-and-inserted
	expectPersist(mock)

	handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
	output, err := handler.Execute(context.Background(), createValidInput())

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, output.IsDisqualified)
	assert.Equal(t, models.DisqualifyGeographyMismatch, output.DisqualificationReason)
	assert.Equal(t, 0, output.CompositeScore)
	assert.Equal(t, models.TierF, output.Tier)
}

func TestHandler_Execute_EngagementFailureDegrades(t *testing.T) {
	rdb := setupRedis(t)
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
		WithArgs("buyer-1").
		WillReturnRows(fitBuyerRow())
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(fitListingRow())
	mock.ExpectQuery(`FROM scoring_weight_configs WHERE active = true`).
		WillReturnRows(activeWeightRow())
	mock.ExpectQuery(`SELECT signal_type FROM engagement_signals`).
		WithArgs("buyer-1", "listing-1").
		WillReturnError(errors.New("connection reset"))
	expectNoPasses(mock)
	expectPersist(mock)

	handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
	output, err := handler.Execute(context.Background(), createValidInput())

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, output.EngagementScore)
}

func TestHandler_Execute_LearningPenaltyApplied(t *testing.T) {
	rdb := setupRedis(t)
	db, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
		WithArgs("buyer-1").
		WillReturnRows(fitBuyerRow())
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(fitListingRow())
	mock.ExpectQuery(`FROM scoring_weight_configs WHERE active = true`).
		WillReturnRows(activeWeightRow())
	expectEngagement(mock)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM deal_passes`).
		WithArgs("buyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	expectPersist(mock)

	input := createValidInput()
	input.ThesisAlignmentBonus = 0

	handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())

	// base 89.4 (no engagement), data-quality bonus 8, minus the capped 25
	assert.Equal(t, 72, output.CompositeScore)
	assert.Equal(t, models.TierB, output.Tier)
}

// ==========================
// Error Cases
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name          string
		input         *Input
		mockQuery     func(mock sqlmock.Sqlmock)
		errorContains string
	}{
		{
			name:          "nil input",
			input:         nil,
			mockQuery:     func(mock sqlmock.Sqlmock) {},
			errorContains: "input cannot be nil",
		},
		{
			name:          "missing ids",
			input:         &Input{BuyerID: "buyer-1"},
			mockQuery:     func(mock sqlmock.Sqlmock) {},
			errorContains: "VALIDATION_ERROR",
		},
		{
			name:  "buyer not found",
			input: createValidInput(),
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
					WithArgs("buyer-1").
					WillReturnError(sql.ErrNoRows)
			},
			errorContains: "BUYER_NOT_FOUND",
		},
		{
			name:  "listing not found",
			input: createValidInput(),
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
					WithArgs("buyer-1").
					WillReturnRows(fitBuyerRow())
				mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs("listing-1").
					WillReturnError(sql.ErrNoRows)
			},
			errorContains: "LISTING_NOT_FOUND",
		},
		{
			name: "explicit weight config not found",
			input: &Input{
				BuyerID:        "buyer-1",
				ListingID:      "listing-1",
				WeightConfigID: "cfg-missing",
			},
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
					WithArgs("buyer-1").
					WillReturnRows(fitBuyerRow())
				mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs("listing-1").
					WillReturnRows(fitListingRow())
				mock.ExpectQuery(`FROM scoring_weight_configs WHERE id = \$1`).
					WithArgs("cfg-missing").
					WillReturnError(sql.ErrNoRows)
			},
			errorContains: "WEIGHT_CONFIG_NOT_FOUND",
		},
		{
			name:  "invalid active weight config",
			input: createValidInput(),
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM buyer_criteria WHERE id = \$1`).
					WithArgs("buyer-1").
					WillReturnRows(fitBuyerRow())
				mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs("listing-1").
					WillReturnRows(fitListingRow())
				badConfig := sqlmock.NewRows(weightConfigColumns()).AddRow(
					"cfg-bad", "typo", 60, 20, 8, 7, 20, 10, 25, 0.20, true, "", time.Now(),
				)
				mock.ExpectQuery(`FROM scoring_weight_configs WHERE active = true`).
					WillReturnRows(badConfig)
			},
			errorContains: "WEIGHT_CONFIG_INVALID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb := setupRedis(t)
			db, mock := setupMockDB(t)
			tt.mockQuery(mock)

			handler := NewHandler(createTestConfig(), db, rdb, createTestLogger(t))
			output, err := handler.Execute(context.Background(), tt.input)

			assert.Error(t, err)
			assert.Nil(t, output)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Benchmark
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db, mock, err := sqlmock.New()
	if err != nil {
		b.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	buyer := models.BuyerCriteria{BuyerID: "buyer-1", CompanyName: "Bench Capital"}
	buyerJSON, _ := json.Marshal(buyer)
	mr.Set("buyer:criteria:buyer-1", string(buyerJSON))
	cfgJSON, _ := json.Marshal(scoring.DefaultWeights())
	mr.Set("scoring:weights:active", string(cfgJSON))

	for i := 0; i < 1000; i++ {
		mock.ExpectQuery(`FROM deal_listings`).WillReturnRows(fitListingRow())
		mock.ExpectQuery(`FROM engagement_signals`).
			WillReturnRows(sqlmock.NewRows([]string{"signal_type"}))
		mock.ExpectQuery(`FROM deal_passes`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE buyer_deal_scores`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO buyer_deal_scores`).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	handler := NewHandler(createTestConfig(), db, rdb, logger.NewNoOpLogger())
	input := createValidInput()

	b.ResetTimer()
	for i := 0; i < b.N && i < 1000; i++ {
		handler.Execute(context.Background(), input)
	}
}
