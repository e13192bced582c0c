package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/spend"
	"github.com/adspend-finance-core/internal/platform/persistence"
)

// SpendLedgerRepository implements spend.LedgerReader over the internal
// spend_records table. Read-only: the spend ingestion pipeline owns writes.
type SpendLedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSpendLedgerRepository creates a new internal spend ledger reader
func NewSpendLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) spend.LedgerReader {
	return &SpendLedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// SumForPeriod returns the total recorded spend for an account within
// [periodStart, periodEnd)
func (r *SpendLedgerRepository) SumForPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) (money.Amount, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM spend_records
		WHERE account_id = $1 AND spend_date >= $2 AND spend_date < $3
	`

	var total decimal.Decimal
	err := r.querier.QueryRow(ctx, query, accountID, periodStart, periodEnd).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to sum system spend", "account_id", accountID, "error", err)
		return money.Zero(), fmt.Errorf("failed to sum system spend for account %s: %w", accountID, err)
	}

	return money.NewFromDecimal(total), nil
}

// PlatformReportRepository implements spend.PlatformReportRepository for
// PostgreSQL
type PlatformReportRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPlatformReportRepository creates a new manual platform spend repository
func NewPlatformReportRepository(logger *slog.Logger, db *persistence.PostgresDB) spend.PlatformReportRepository {
	return &PlatformReportRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Upsert records a manual platform spend figure, replacing any earlier
// submission for the same (batch, account) pair
func (r *PlatformReportRepository) Upsert(ctx context.Context, report *spend.PlatformReport) error {
	query := `
		INSERT INTO platform_spend_reports (batch_id, account_id, amount, submitted_by, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (batch_id, account_id)
		DO UPDATE SET amount = EXCLUDED.amount, submitted_by = EXCLUDED.submitted_by, submitted_at = EXCLUDED.submitted_at
	`

	_, err := r.querier.Exec(ctx, query,
		report.BatchID,
		report.AccountID,
		report.Amount.Decimal,
		report.SubmittedBy,
		report.SubmittedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert platform spend report", "batch_id", report.BatchID.String(), "account_id", report.AccountID, "error", err)
		return fmt.Errorf("failed to upsert platform spend report: %w", err)
	}

	return nil
}

// MapForBatch returns all submitted figures for a batch keyed by account ID
func (r *PlatformReportRepository) MapForBatch(ctx context.Context, batchID uuid.UUID) (map[string]money.Amount, error) {
	query := `
		SELECT account_id, amount
		FROM platform_spend_reports
		WHERE batch_id = $1
	`

	rows, err := r.querier.Query(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to load platform spend reports", "batch_id", batchID.String(), "error", err)
		return nil, fmt.Errorf("failed to load platform spend reports: %w", err)
	}
	defer rows.Close()

	reports := make(map[string]money.Amount)
	for rows.Next() {
		var accountID string
		var amount decimal.Decimal
		if err := rows.Scan(&accountID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan platform spend report: %w", err)
		}
		reports[accountID] = money.NewFromDecimal(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read platform spend reports: %w", err)
	}

	return reports, nil
}
