package matchdealalerts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
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

func alertColumns() []string {
	return []string{"id", "user_id", "email", "frequency", "criteria"}
}

func inlineListing() *models.DealListing {
	return &models.DealListing{
		ListingID:  "listing-1",
		Title:      "Dallas HVAC Services Co",
		Category:   "Technology",
		Categories: []string{"Technology", "Healthcare"},
		Location:   "Dallas, TX",
		Revenue:    6_000_000,
		EBITDA:     1_200_000,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_InlineListing(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows(alertColumns()).
		AddRow("alert-1", "user-1", "one@example.com", models.AlertFrequencyInstant,
			`{"categories": ["Technology"]}`).
		AddRow("alert-2", "user-2", "two@example.com", models.AlertFrequencyDaily,
			`{"category": "Technology", "location": "texas"}`).
		AddRow("alert-3", "user-3", "three@example.com", models.AlertFrequencyInstant,
			`{"categories": ["Retail"]}`).
		AddRow("alert-4", "user-4", "four@example.com", models.AlertFrequencyWeekly,
			`{broken json`)
	mock.ExpectQuery(`FROM deal_alerts a`).WillReturnRows(rows)

	handler := NewHandler(createTestConfig(), db, createTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{Listing: inlineListing()})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "listing-1", output.ListingID)
	assert.Equal(t, 4, output.Evaluated)
	assert.Equal(t, 1, output.Skipped)
	assert.Len(t, output.Matches, 2)
	assert.Equal(t, "alert-1", output.Matches[0].AlertID)
	assert.Equal(t, "alert-2", output.Matches[1].AlertID)
	assert.Equal(t, models.AlertFrequencyDaily, output.Matches[1].Frequency)
}

func TestHandler_Execute_LoadsListingByID(t *testing.T) {
	db, mock := setupMockDB(t)

	listingRow := sqlmock.NewRows([]string{
		"id", "title", "description", "category", "categories",
		"location", "revenue", "ebitda", "asking_price",
		"data_completeness", "motivation_score", "status", "created_at",
	}).AddRow(
		"listing-1", "Gulf HVAC Co", "", "hvac", "{}",
		"Houston, TX", int64(3_000_000), int64(700_000), int64(0),
		80, 70, "active", time.Now(),
	)
	mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("listing-1").
		WillReturnRows(listingRow)

	alerts := sqlmock.NewRows(alertColumns()).
		AddRow("alert-1", "user-1", "one@example.com", models.AlertFrequencyInstant,
			`{"categories": ["hvac"], "locations": ["TX"]}`)
	mock.ExpectQuery(`FROM deal_alerts a`).WillReturnRows(alerts)

	handler := NewHandler(createTestConfig(), db, createTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{ListingID: "listing-1"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, output.Matches, 1)
}

func TestHandler_Execute_NoMatches(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(`FROM deal_alerts a`).
		WillReturnRows(sqlmock.NewRows(alertColumns()))

	handler := NewHandler(createTestConfig(), db, createTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{Listing: inlineListing()})

	assert.NoError(t, err)
	assert.Empty(t, output.Matches)
	assert.Equal(t, 0, output.Evaluated)
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
			name:          "no listing at all",
			input:         &Input{},
			mockQuery:     func(mock sqlmock.Sqlmock) {},
			errorContains: "VALIDATION_ERROR",
		},
		{
			name:  "listing not found",
			input: &Input{ListingID: "listing-missing"},
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM deal_listings WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs("listing-missing").
					WillReturnError(sql.ErrNoRows)
			},
			errorContains: "LISTING_NOT_FOUND",
		},
		{
			name:  "alert query failure",
			input: &Input{Listing: inlineListing()},
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM deal_alerts a`).
					WillReturnError(errors.New("connection refused"))
			},
			errorContains: "QUERY_EXECUTION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.mockQuery(mock)

			handler := NewHandler(createTestConfig(), db, createTestLogger(t))
			output, err := handler.Execute(context.Background(), tt.input)

			assert.Error(t, err)
			assert.Nil(t, output)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
