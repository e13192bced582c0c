// Package spend covers the two spend inputs of reconciliation: the internal
// ad-spend ledger (read-only from this core's perspective) and
// operator-submitted platform spend reports for manually reconciled batches.
package spend

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adspend-finance-core/internal/domain/money"
)

// LedgerReader sums internally recorded ad spend. The underlying records
// are owned by the spend ingestion pipeline; this core never mutates them.
type LedgerReader interface {
	// SumForPeriod returns the total recorded spend for an account within
	// [periodStart, periodEnd). An account with no records sums to zero.
	SumForPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) (money.Amount, error)
}

// PlatformReport is one operator-submitted platform spend figure for an
// account in a batch, used by the manual spend source.
type PlatformReport struct {
	BatchID     uuid.UUID    `json:"batch_id"`
	AccountID   string       `json:"account_id"`
	Amount      money.Amount `json:"amount"`
	SubmittedBy string       `json:"submitted_by"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// PlatformReportRepository persists manual platform spend entries
type PlatformReportRepository interface {
	// Upsert records a figure, replacing any earlier submission for the
	// same (batch, account) pair.
	Upsert(ctx context.Context, report *PlatformReport) error

	// MapForBatch returns all submitted figures for a batch keyed by
	// account ID.
	MapForBatch(ctx context.Context, batchID uuid.UUID) (map[string]money.Amount, error)
}
