package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/platform/persistence"
)

// DiscrepancyRepository implements reconciliation.DiscrepancyRepository for
// PostgreSQL
type DiscrepancyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewDiscrepancyRepository creates a new PostgreSQL discrepancy repository
func NewDiscrepancyRepository(logger *slog.Logger, db *persistence.PostgresDB) reconciliation.DiscrepancyRepository {
	return &DiscrepancyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *DiscrepancyRepository) WithTx(tx pgx.Tx) reconciliation.DiscrepancyRepository {
	return &DiscrepancyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account discrepancy. The unique (batch_id, account_id)
// constraint keeps an account from appearing twice in one batch.
func (r *DiscrepancyRepository) Create(ctx context.Context, d *reconciliation.Discrepancy) error {
	query := `
		INSERT INTO account_discrepancies (id, batch_id, account_id, system_spend, platform_spend, difference, difference_percentage, discrepancy_type, severity, resolution_status, notes, resolved_by, resolved_at, resolution_notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.querier.Exec(ctx, query,
		d.ID,
		d.BatchID,
		d.AccountID,
		d.SystemSpend.Decimal,
		d.PlatformSpend.Decimal,
		d.Difference.Decimal,
		d.DifferencePercentage,
		string(d.Type),
		string(d.Severity),
		string(d.ResolutionStatus),
		d.Notes,
		d.ResolvedBy,
		d.ResolvedAt,
		d.ResolutionNotes,
		d.Version,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account discrepancy", "batch_id", d.BatchID.String(), "account_id", d.AccountID, "error", err)
		return fmt.Errorf("failed to create account discrepancy: %w", err)
	}

	return nil
}

// GetByID retrieves an account discrepancy by its ID
func (r *DiscrepancyRepository) GetByID(ctx context.Context, id uuid.UUID) (*reconciliation.Discrepancy, error) {
	query := discrepancySelectColumns + ` WHERE id = $1`

	d, err := r.scanDiscrepancy(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reconciliation.ErrDiscrepancyNotFound{ID: id}
		}
		r.logger.Error("Failed to get account discrepancy", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account discrepancy: %w", err)
	}

	return d, nil
}

// ListByBatch retrieves a batch's discrepancies, optionally filtered by
// type, severity and resolution status
func (r *DiscrepancyRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, filter reconciliation.DiscrepancyFilter) ([]*reconciliation.Discrepancy, error) {
	query := discrepancySelectColumns + ` WHERE batch_id = $1`
	args := []interface{}{batchID}
	argPos := 2

	if filter.Type != "" {
		query += fmt.Sprintf(" AND discrepancy_type = $%d", argPos)
		args = append(args, string(filter.Type))
		argPos++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argPos)
		args = append(args, string(filter.Severity))
		argPos++
	}
	if filter.ResolutionStatus != "" {
		query += fmt.Sprintf(" AND resolution_status = $%d", argPos)
		args = append(args, string(filter.ResolutionStatus))
		argPos++
	}

	query += " ORDER BY account_id"

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list account discrepancies", "batch_id", batchID.String(), "error", err)
		return nil, fmt.Errorf("failed to list account discrepancies: %w", err)
	}
	defer rows.Close()

	var discrepancies []*reconciliation.Discrepancy
	for rows.Next() {
		d, err := r.scanDiscrepancy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account discrepancy: %w", err)
		}
		discrepancies = append(discrepancies, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read account discrepancies: %w", err)
	}

	return discrepancies, nil
}

// AggregateTotals sums system and platform spend over all discrepancy rows
// of a batch. Batch totals are always derived from this, never written
// directly.
func (r *DiscrepancyRepository) AggregateTotals(ctx context.Context, batchID uuid.UUID) (*reconciliation.BatchTotals, error) {
	query := `
		SELECT COALESCE(SUM(system_spend), 0), COALESCE(SUM(platform_spend), 0)
		FROM account_discrepancies
		WHERE batch_id = $1
	`

	var systemSpend, platformSpend decimal.Decimal
	err := r.querier.QueryRow(ctx, query, batchID).Scan(&systemSpend, &platformSpend)
	if err != nil {
		r.logger.Error("Failed to aggregate batch totals", "batch_id", batchID.String(), "error", err)
		return nil, fmt.Errorf("failed to aggregate batch totals: %w", err)
	}

	return &reconciliation.BatchTotals{
		SystemSpend:   money.NewFromDecimal(systemSpend),
		PlatformSpend: money.NewFromDecimal(platformSpend),
	}, nil
}

// Update persists a resolution transition using the optimistic version check
func (r *DiscrepancyRepository) Update(ctx context.Context, d *reconciliation.Discrepancy) error {
	query := `
		UPDATE account_discrepancies
		SET resolution_status = $1, notes = $2, resolved_by = $3, resolved_at = $4, resolution_notes = $5, version = $6, updated_at = $7
		WHERE id = $8 AND version = $9
	`

	result, err := r.querier.Exec(ctx, query,
		string(d.ResolutionStatus),
		d.Notes,
		d.ResolvedBy,
		d.ResolvedAt,
		d.ResolutionNotes,
		d.Version,
		d.UpdatedAt,
		d.ID,
		d.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update account discrepancy", "id", d.ID.String(), "error", err)
		return fmt.Errorf("failed to update account discrepancy: %w", err)
	}

	if result.RowsAffected() == 0 {
		return reconciliation.ErrConcurrentModification{Entity: "account_discrepancy", ID: d.ID}
	}

	return nil
}

const discrepancySelectColumns = `
	SELECT id, batch_id, account_id, system_spend, platform_spend, difference, difference_percentage, discrepancy_type, severity, resolution_status, notes, resolved_by, resolved_at, resolution_notes, version, created_at, updated_at
	FROM account_discrepancies`

func (r *DiscrepancyRepository) scanDiscrepancy(row pgx.Row) (*reconciliation.Discrepancy, error) {
	var d reconciliation.Discrepancy
	var discrepancyType, severity, resolutionStatus string

	err := row.Scan(
		&d.ID,
		&d.BatchID,
		&d.AccountID,
		&d.SystemSpend,
		&d.PlatformSpend,
		&d.Difference,
		&d.DifferencePercentage,
		&discrepancyType,
		&severity,
		&resolutionStatus,
		&d.Notes,
		&d.ResolvedBy,
		&d.ResolvedAt,
		&d.ResolutionNotes,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = reconciliation.DiscrepancyType(discrepancyType)
	d.Severity = reconciliation.Severity(severity)
	d.ResolutionStatus = reconciliation.ResolutionStatus(resolutionStatus)
	return &d, nil
}
