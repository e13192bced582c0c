package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/platform/persistence"
)

// BatchRepository implements reconciliation.BatchRepository for PostgreSQL
type BatchRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBatchRepository creates a new PostgreSQL reconciliation batch repository
func NewBatchRepository(logger *slog.Logger, db *persistence.PostgresDB) reconciliation.BatchRepository {
	return &BatchRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *BatchRepository) WithTx(tx pgx.Tx) reconciliation.BatchRepository {
	return &BatchRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new reconciliation batch
func (r *BatchRepository) Create(ctx context.Context, batch *reconciliation.Batch) error {
	query := `
		INSERT INTO reconciliation_batches (id, name, period_start, period_end, status, platform_spend_source, account_ids, total_accounts, processed_accounts, total_system_spend, total_platform_spend, total_difference, difference_percentage, failure_reason, created_by, version, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.querier.Exec(ctx, query,
		batch.ID,
		batch.Name,
		batch.PeriodStart,
		batch.PeriodEnd,
		string(batch.Status),
		string(batch.Source),
		batch.AccountIDs,
		batch.TotalAccounts,
		batch.ProcessedAccounts,
		batch.TotalSystemSpend.Decimal,
		batch.TotalPlatformSpend.Decimal,
		batch.TotalDifference.Decimal,
		batch.DifferencePercentage,
		batch.FailureReason,
		batch.CreatedBy,
		batch.Version,
		batch.CreatedAt,
		batch.UpdatedAt,
		batch.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reconciliation batch", "error", err)
		return fmt.Errorf("failed to create reconciliation batch: %w", err)
	}

	return nil
}

// GetByID retrieves a reconciliation batch by its ID
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*reconciliation.Batch, error) {
	query := batchSelectColumns + ` WHERE id = $1`

	batch, err := r.scanBatch(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reconciliation.ErrBatchNotFound{ID: id}
		}
		r.logger.Error("Failed to get reconciliation batch", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get reconciliation batch: %w", err)
	}

	return batch, nil
}

// List retrieves reconciliation batches, newest first
func (r *BatchRepository) List(ctx context.Context, limit, offset int) ([]*reconciliation.Batch, error) {
	if limit <= 0 {
		limit = 50
	}

	query := batchSelectColumns + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list reconciliation batches", "error", err)
		return nil, fmt.Errorf("failed to list reconciliation batches: %w", err)
	}
	defer rows.Close()

	var batches []*reconciliation.Batch
	for rows.Next() {
		batch, err := r.scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reconciliation batches: %w", err)
	}

	return batches, nil
}

// Update persists a transitioned batch using the optimistic version check
func (r *BatchRepository) Update(ctx context.Context, batch *reconciliation.Batch) error {
	query := `
		UPDATE reconciliation_batches
		SET status = $1, total_system_spend = $2, total_platform_spend = $3, total_difference = $4, difference_percentage = $5, failure_reason = $6, version = $7, updated_at = $8, completed_at = $9
		WHERE id = $10 AND version = $11
	`

	result, err := r.querier.Exec(ctx, query,
		string(batch.Status),
		batch.TotalSystemSpend.Decimal,
		batch.TotalPlatformSpend.Decimal,
		batch.TotalDifference.Decimal,
		batch.DifferencePercentage,
		batch.FailureReason,
		batch.Version,
		batch.UpdatedAt,
		batch.CompletedAt,
		batch.ID,
		batch.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update reconciliation batch", "id", batch.ID.String(), "error", err)
		return fmt.Errorf("failed to update reconciliation batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return reconciliation.ErrConcurrentModification{Entity: "reconciliation_batch", ID: batch.ID}
	}

	return nil
}

// IncrementProcessed advances the processed-accounts counter, guarded by
// the batch still being in progress. The guard is what discards late
// per-account results after a cancellation: the row simply stops matching.
func (r *BatchRepository) IncrementProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE reconciliation_batches
		SET processed_accounts = processed_accounts + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to increment processed accounts", "id", id.String(), "error", err)
		return fmt.Errorf("failed to increment processed accounts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return reconciliation.ErrBatchNotActive{ID: id}
	}

	return nil
}

const batchSelectColumns = `
	SELECT id, name, period_start, period_end, status, platform_spend_source, account_ids, total_accounts, processed_accounts, total_system_spend, total_platform_spend, total_difference, difference_percentage, failure_reason, created_by, version, created_at, updated_at, completed_at
	FROM reconciliation_batches`

func (r *BatchRepository) scanBatch(row pgx.Row) (*reconciliation.Batch, error) {
	var batch reconciliation.Batch
	var status, source string

	err := row.Scan(
		&batch.ID,
		&batch.Name,
		&batch.PeriodStart,
		&batch.PeriodEnd,
		&status,
		&source,
		&batch.AccountIDs,
		&batch.TotalAccounts,
		&batch.ProcessedAccounts,
		&batch.TotalSystemSpend,
		&batch.TotalPlatformSpend,
		&batch.TotalDifference,
		&batch.DifferencePercentage,
		&batch.FailureReason,
		&batch.CreatedBy,
		&batch.Version,
		&batch.CreatedAt,
		&batch.UpdatedAt,
		&batch.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	batch.Status = reconciliation.BatchStatus(status)
	batch.Source = reconciliation.SpendSource(source)
	return &batch, nil
}
