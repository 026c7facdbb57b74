package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mizukilab/agent-starter/models"
)

func TestInsertBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, _ := zap.NewDevelopment()
	repo := NewUsageRepository(db, logger)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []models.UsageRecord{
		{
			Timestamp:    now,
			RequestID:    "req-1",
			Provider:     "anthropic",
			TaskType:     "generate",
			TokensUsed:   100,
			CostIncurred: 0.0015,
			Outcome:      models.OutcomeSuccess,
			LatencyMs:    840,
		},
		{
			Timestamp: now.Add(time.Second),
			RequestID: "req-2",
			Provider:  "gemini",
			Outcome:   models.OutcomeRejected,
			Reason:    string(models.SkipRateLimited),
		},
	}

	mock.ExpectBegin()
	stmt := mock.ExpectPrepare("INSERT INTO usage_records")
	stmt.ExpectExec().
		WithArgs(now, "req-1", "anthropic", "generate", 100, 0.0015, "success", "", int64(840)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	stmt.ExpectExec().
		WithArgs(now.Add(time.Second), "req-2", "gemini", "", 0, 0.0, "rejected", "rate_limited", int64(0)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertBatch(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_EmptyIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, _ := zap.NewDevelopment()
	repo := NewUsageRepository(db, logger)

	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger, _ := zap.NewDevelopment()
	repo := NewUsageRepository(db, logger)

	mock.ExpectBegin()
	stmt := mock.ExpectPrepare("INSERT INTO usage_records")
	stmt.ExpectExec().WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = repo.InsertBatch(context.Background(), []models.UsageRecord{{RequestID: "req-1"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
