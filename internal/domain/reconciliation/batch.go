// Package reconciliation implements the spend reconciliation engine: batches
// that compare internally recorded spend against platform-reported spend per
// account, the pure discrepancy classifier, and the resolution workflow for
// the discrepancies it produces.
package reconciliation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/domain/money"
)

// BatchStatus defines the reconciliation batch lifecycle states
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// SpendSource identifies how platform spend figures are supplied
type SpendSource string

const (
	SpendSourceManual SpendSource = "manual"
	SpendSourceAPI    SpendSource = "api"
	SpendSourceFile   SpendSource = "file"
)

// batchTransitions is the authoritative transition table for batches.
// completed, failed and cancelled are terminal.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending:    {BatchStatusInProgress, BatchStatusCancelled},
	BatchStatusInProgress: {BatchStatusCompleted, BatchStatusFailed, BatchStatusCancelled},
}

// CanTransitionBatch reports whether a batch status change is legal.
func CanTransitionBatch(from, to BatchStatus) bool {
	for _, next := range batchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Common validation errors
var (
	ErrInvalidPeriod      = errors.New("period start must be before period end")
	ErrEmptyAccountList   = errors.New("account list cannot be empty")
	ErrEmptyBatchName     = errors.New("batch name cannot be empty")
	ErrInvalidSpendSource = errors.New("invalid platform spend source")
	ErrEmptyCreator       = errors.New("creator cannot be empty")
)

// Batch represents one reconciliation run over a period and a set of
// accounts. Totals are derived from the batch's discrepancy rows at
// finalization and never written directly.
type Batch struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	PeriodStart          time.Time       `json:"period_start"`
	PeriodEnd            time.Time       `json:"period_end"`
	Status               BatchStatus     `json:"status"`
	Source               SpendSource     `json:"platform_spend_source"`
	AccountIDs           []string        `json:"account_ids"`
	TotalAccounts        int             `json:"total_accounts"`
	ProcessedAccounts    int             `json:"processed_accounts"`
	TotalSystemSpend     money.Amount    `json:"total_system_spend"`
	TotalPlatformSpend   money.Amount    `json:"total_platform_spend"`
	TotalDifference      money.Amount    `json:"total_difference"`
	DifferencePercentage decimal.Decimal `json:"difference_percentage"`
	FailureReason        string          `json:"failure_reason,omitempty"`
	CreatedBy            string          `json:"created_by"`
	Version              int             `json:"version"` // For optimistic locking
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
}

// NewBatch creates a pending reconciliation batch after validating inputs.
func NewBatch(name string, periodStart, periodEnd time.Time, source SpendSource, accountIDs []string, createdBy string) (*Batch, error) {
	if name == "" {
		return nil, ErrEmptyBatchName
	}
	if !periodStart.Before(periodEnd) {
		return nil, ErrInvalidPeriod
	}
	if len(accountIDs) == 0 {
		return nil, ErrEmptyAccountList
	}
	if createdBy == "" {
		return nil, ErrEmptyCreator
	}
	switch source {
	case SpendSourceManual, SpendSourceAPI, SpendSourceFile:
	default:
		return nil, ErrInvalidSpendSource
	}

	now := time.Now().UTC()
	return &Batch{
		ID:                   uuid.New(),
		Name:                 name,
		PeriodStart:          periodStart,
		PeriodEnd:            periodEnd,
		Status:               BatchStatusPending,
		Source:               source,
		AccountIDs:           accountIDs,
		TotalAccounts:        len(accountIDs),
		ProcessedAccounts:    0,
		TotalSystemSpend:     money.Zero(),
		TotalPlatformSpend:   money.Zero(),
		TotalDifference:      money.Zero(),
		DifferencePercentage: decimal.Zero,
		CreatedBy:            createdBy,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (b *Batch) transition(to BatchStatus) error {
	if !CanTransitionBatch(b.Status, to) {
		return ErrIllegalBatchTransition{From: b.Status, To: to}
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	b.Version++
	return nil
}

// Start moves a pending batch to in_progress.
func (b *Batch) Start() error {
	return b.transition(BatchStatusInProgress)
}

// Cancel moves a pending or in-progress batch to the terminal cancelled
// state. Late per-account results must not be applied afterwards.
func (b *Batch) Cancel() error {
	return b.transition(BatchStatusCancelled)
}

// MarkFailed records a systemic failure that prevented any further
// processing. Per-account data gaps do not fail a batch.
func (b *Batch) MarkFailed(reason string) error {
	if err := b.transition(BatchStatusFailed); err != nil {
		return err
	}
	b.FailureReason = reason
	return nil
}

// Finalize derives the batch totals from the per-account aggregates and
// moves the batch to completed.
func (b *Batch) Finalize(totalSystemSpend, totalPlatformSpend money.Amount) error {
	if err := b.transition(BatchStatusCompleted); err != nil {
		return err
	}
	b.TotalSystemSpend = totalSystemSpend
	b.TotalPlatformSpend = totalPlatformSpend
	b.TotalDifference = totalPlatformSpend.Sub(totalSystemSpend)
	b.DifferencePercentage = money.PercentageDifference(b.TotalDifference, totalSystemSpend)
	now := time.Now().UTC()
	b.CompletedAt = &now
	return nil
}
