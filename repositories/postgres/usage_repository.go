// Package postgres persists usage journal records for offline reporting.
// The router itself never depends on this package; the process wiring drains
// the journal into it on a timer.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mizukilab/agent-starter/config"
	"github.com/mizukilab/agent-starter/models"
	"github.com/mizukilab/agent-starter/services/usage"
)

// UsageRepository writes usage records to the usage_records table.
type UsageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to Postgres using the configured URL and verifies the
// connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*UsageRepository, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("usage sink connected")
	return NewUsageRepository(db, logger), nil
}

// NewUsageRepository wraps an existing connection. Test seam.
func NewUsageRepository(db *sql.DB, logger *zap.Logger) *UsageRepository {
	return &UsageRepository{db: db, logger: logger}
}

// InsertBatch writes records in one transaction. An empty batch is a no-op.
func (r *UsageRepository) InsertBatch(ctx context.Context, records []models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO usage_records
		(timestamp, request_id, provider, task_type, tokens_used, cost_incurred, outcome, reason, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.Timestamp,
			rec.RequestID,
			rec.Provider,
			rec.TaskType,
			rec.TokensUsed,
			rec.CostIncurred,
			string(rec.Outcome),
			rec.Reason,
			rec.LatencyMs,
		); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage batch: %w", err)
	}

	r.logger.Debug("usage batch flushed", zap.Int("records", len(records)))
	return nil
}

// Close releases the connection pool.
func (r *UsageRepository) Close() error {
	return r.db.Close()
}

// StartFlushWorker drains new journal records into Postgres on a timer until
// ctx is cancelled. A failed flush keeps the cursor so the batch is retried
// on the next tick.
func (r *UsageRepository) StartFlushWorker(ctx context.Context, journal *usage.Journal, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("started usage flush worker", zap.Duration("interval", interval))

	var cursor uint64
	for {
		select {
		case <-ticker.C:
			records, next := journal.Since(cursor)
			if len(records) == 0 {
				continue
			}
			if err := r.InsertBatch(ctx, records); err != nil {
				r.logger.Error("failed to flush usage records", zap.Error(err))
				continue
			}
			cursor = next
		case <-ctx.Done():
			r.logger.Info("stopping usage flush worker")
			return
		}
	}
}
