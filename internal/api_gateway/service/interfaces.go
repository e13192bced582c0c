// Package service implements the synchronous command side of the finance
// core: the top-up approval workflow and reconciliation batch management.
// Every status change runs as one Postgres transaction covering the
// optimistic-locked entity write, the transition log row and the outbox row.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/audit"
	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/domain/topup"
)

// TxRunner runs a function inside a single database transaction.
// *persistence.PostgresDB satisfies it; tests substitute a stub.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TransitionCommand carries the actor context for a status change request.
type TransitionCommand struct {
	ActorID       string
	Remark        string
	CorrelationID string
}

// CreateTopupCommand carries the inputs for a new top-up request.
type CreateTopupCommand struct {
	AdAccountID   string
	ProjectID     string
	ChannelID     string
	Amount        money.Amount
	RequestedBy   string
	Remark        string
	CorrelationID string
}

// TopupService defines the top-up approval workflow operations
type TopupService interface {
	Create(ctx context.Context, cmd CreateTopupCommand) (*topup.Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (*topup.Request, error)
	List(ctx context.Context, filter topup.ListFilter) ([]*topup.Request, error)

	Approve(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error)
	Pay(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error)
	ConfirmReceipt(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error)
	Reject(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error)

	// History reconstructs the request's full transition history from the
	// audit trail.
	History(ctx context.Context, id uuid.UUID) ([]*audit.Entry, error)
}

// CreateBatchCommand carries the inputs for a new reconciliation batch.
type CreateBatchCommand struct {
	Name          string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Source        reconciliation.SpendSource
	AccountIDs    []string
	CreatedBy     string
	CorrelationID string
}

// PlatformSpendEntry is one operator-submitted platform spend figure.
type PlatformSpendEntry struct {
	AccountID string
	Amount    money.Amount
}

// Platform spend submission errors
var (
	ErrPlatformSpendLocked   = errors.New("platform spend can only be submitted while the batch is pending")
	ErrEmptySpendAccountID   = errors.New("platform spend entry account id cannot be empty")
	ErrNegativePlatformSpend = errors.New("platform spend cannot be negative")
)

// ReconciliationService defines batch management and discrepancy resolution
// operations. Per-account processing itself runs in the reconciliation
// processor, fed through Kafka.
type ReconciliationService interface {
	CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*reconciliation.Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*reconciliation.Batch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]*reconciliation.Batch, error)

	// StartBatch moves a pending batch to in_progress and dispatches the
	// processing job to Kafka.
	StartBatch(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Batch, error)
	CancelBatch(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Batch, error)

	// SubmitPlatformSpend records manual platform spend figures for a
	// pending batch. Re-submitting an account replaces the earlier figure.
	SubmitPlatformSpend(ctx context.Context, batchID uuid.UUID, entries []PlatformSpendEntry, submittedBy string) error

	ListDiscrepancies(ctx context.Context, batchID uuid.UUID, filter reconciliation.DiscrepancyFilter) ([]*reconciliation.Discrepancy, error)
	GetDiscrepancy(ctx context.Context, id uuid.UUID) (*reconciliation.Discrepancy, error)

	BeginInvestigation(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Discrepancy, error)
	ResolveDiscrepancy(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Discrepancy, error)
	IgnoreDiscrepancy(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Discrepancy, error)

	// BatchHistory reconstructs the batch's transition history from the
	// audit trail.
	BatchHistory(ctx context.Context, id uuid.UUID) ([]*audit.Entry, error)
}
