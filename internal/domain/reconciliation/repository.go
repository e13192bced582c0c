package reconciliation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/money"
)

// BatchRepository defines reconciliation batch persistence operations
type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	List(ctx context.Context, limit, offset int) ([]*Batch, error)

	// Update persists a transitioned batch using optimistic locking:
	// the write only applies if the stored version is batch.Version-1.
	Update(ctx context.Context, batch *Batch) error

	// IncrementProcessed advances the processed-accounts counter by one,
	// guarded by the batch still being in progress. Returns
	// ErrBatchNotActive when the guard fails, which is how late results
	// are discarded after a cancellation.
	IncrementProcessed(ctx context.Context, id uuid.UUID) error

	WithTx(tx pgx.Tx) BatchRepository
}

// DiscrepancyFilter narrows ListByBatch results. Zero values mean "no filter".
type DiscrepancyFilter struct {
	Type             DiscrepancyType
	Severity         Severity
	ResolutionStatus ResolutionStatus
}

// BatchTotals carries the aggregate spends over a batch's discrepancy rows.
type BatchTotals struct {
	SystemSpend   money.Amount
	PlatformSpend money.Amount
}

// DiscrepancyRepository defines account discrepancy persistence operations
type DiscrepancyRepository interface {
	Create(ctx context.Context, d *Discrepancy) error
	GetByID(ctx context.Context, id uuid.UUID) (*Discrepancy, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID, filter DiscrepancyFilter) ([]*Discrepancy, error)

	// AggregateTotals sums system and platform spend over all discrepancy
	// rows of a batch, used to derive the batch totals at finalization.
	AggregateTotals(ctx context.Context, batchID uuid.UUID) (*BatchTotals, error)

	// Update persists a resolution transition using optimistic locking.
	Update(ctx context.Context, d *Discrepancy) error

	WithTx(tx pgx.Tx) DiscrepancyRepository
}

// ErrBatchNotFound indicates a missing reconciliation batch
type ErrBatchNotFound struct {
	ID uuid.UUID
}

func (e ErrBatchNotFound) Error() string {
	return "reconciliation batch not found: " + e.ID.String()
}

// Is matches any ErrBatchNotFound when the target carries a nil ID
func (e ErrBatchNotFound) Is(target error) bool {
	t, ok := target.(ErrBatchNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || e.ID == t.ID
}

// ErrDiscrepancyNotFound indicates a missing account discrepancy
type ErrDiscrepancyNotFound struct {
	ID uuid.UUID
}

func (e ErrDiscrepancyNotFound) Error() string {
	return "account discrepancy not found: " + e.ID.String()
}

// Is matches any ErrDiscrepancyNotFound when the target carries a nil ID
func (e ErrDiscrepancyNotFound) Is(target error) bool {
	t, ok := target.(ErrDiscrepancyNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || e.ID == t.ID
}

// ErrConcurrentModification indicates an optimistic lock failure on a batch
// or discrepancy write.
type ErrConcurrentModification struct {
	Entity string
	ID     uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return fmt.Sprintf("concurrent modification detected for %s: %s", e.Entity, e.ID.String())
}

// Is matches any ErrConcurrentModification when the target is zero-valued
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.Entity == "" && t.ID == uuid.Nil {
		return true
	}
	return e.Entity == t.Entity && e.ID == t.ID
}

// ErrBatchNotActive indicates a write was refused because the batch is no
// longer in progress (completed, failed or cancelled in the meantime).
type ErrBatchNotActive struct {
	ID uuid.UUID
}

func (e ErrBatchNotActive) Error() string {
	return "reconciliation batch is not in progress: " + e.ID.String()
}

// Is matches any ErrBatchNotActive when the target carries a nil ID
func (e ErrBatchNotActive) Is(target error) bool {
	t, ok := target.(ErrBatchNotActive)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || e.ID == t.ID
}

// ErrIllegalBatchTransition indicates a batch operation requested from a
// state that does not permit it.
type ErrIllegalBatchTransition struct {
	From BatchStatus
	To   BatchStatus
}

func (e ErrIllegalBatchTransition) Error() string {
	return fmt.Sprintf("illegal batch transition from %q to %q", e.From, e.To)
}

// ErrIllegalResolutionTransition indicates a resolution operation requested
// from a state that does not permit it.
type ErrIllegalResolutionTransition struct {
	From ResolutionStatus
	To   ResolutionStatus
}

func (e ErrIllegalResolutionTransition) Error() string {
	return fmt.Sprintf("illegal resolution transition from %q to %q", e.From, e.To)
}
