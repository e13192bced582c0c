package reconciliation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/domain/money"
)

// DiscrepancyType classifies the direction of a per-account mismatch
type DiscrepancyType string

const (
	TypeMatched  DiscrepancyType = "matched"
	TypeOverage  DiscrepancyType = "overage"  // Platform reported more than we recorded
	TypeShortage DiscrepancyType = "shortage" // Platform reported less than we recorded
	// TypeUnresolved is the sentinel for accounts whose platform spend
	// could not be obtained; the account still counts as processed.
	TypeUnresolved DiscrepancyType = "unresolved"
)

// Severity ranks a discrepancy by the magnitude of its percentage difference
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ResolutionStatus defines the human-driven closure states of a discrepancy
type ResolutionStatus string

const (
	ResolutionPending       ResolutionStatus = "pending"
	ResolutionInvestigating ResolutionStatus = "investigating"
	ResolutionResolved      ResolutionStatus = "resolved"
	ResolutionIgnored       ResolutionStatus = "ignored"
)

// resolutionTransitions is the authoritative transition table for the
// resolution workflow. resolved and ignored are terminal.
var resolutionTransitions = map[ResolutionStatus][]ResolutionStatus{
	ResolutionPending:       {ResolutionInvestigating, ResolutionResolved, ResolutionIgnored},
	ResolutionInvestigating: {ResolutionResolved, ResolutionIgnored},
}

// CanTransitionResolution reports whether a resolution status change is legal.
func CanTransitionResolution(from, to ResolutionStatus) bool {
	for _, next := range resolutionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrEmptyResolutionNotes rejects an unexplained resolution or dismissal.
var ErrEmptyResolutionNotes = errors.New("resolution notes are required")

// Discrepancy is the per-account outcome of a reconciliation batch: the
// system/platform spend pair, the derived classification, and an independent
// resolution workflow.
type Discrepancy struct {
	ID                   uuid.UUID        `json:"id"`
	BatchID              uuid.UUID        `json:"batch_id"`
	AccountID            string           `json:"account_id"`
	SystemSpend          money.Amount     `json:"system_spend"`
	PlatformSpend        money.Amount     `json:"platform_spend"`
	Difference           money.Amount     `json:"difference"`
	DifferencePercentage decimal.Decimal  `json:"difference_percentage"`
	Type                 DiscrepancyType  `json:"discrepancy_type"`
	Severity             Severity         `json:"severity"`
	ResolutionStatus     ResolutionStatus `json:"resolution_status"`
	Notes                string           `json:"notes,omitempty"`
	ResolvedBy           string           `json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time       `json:"resolved_at,omitempty"`
	ResolutionNotes      string           `json:"resolution_notes,omitempty"`
	Version              int              `json:"version"` // For optimistic locking
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (d *Discrepancy) transition(to ResolutionStatus) error {
	if !CanTransitionResolution(d.ResolutionStatus, to) {
		return ErrIllegalResolutionTransition{From: d.ResolutionStatus, To: to}
	}
	d.ResolutionStatus = to
	d.UpdatedAt = time.Now().UTC()
	d.Version++
	return nil
}

// BeginInvestigation moves a pending discrepancy to investigating.
func (d *Discrepancy) BeginInvestigation(actorID string) error {
	if actorID == "" {
		return errors.New("actor cannot be empty")
	}
	return d.transition(ResolutionInvestigating)
}

// Resolve closes the discrepancy with an explanation. Resolver and notes are
// set atomically with the transition; an unexplained resolution is rejected.
func (d *Discrepancy) Resolve(actorID, notes string) error {
	return d.close(ResolutionResolved, actorID, notes)
}

// Ignore closes the discrepancy as an accepted non-issue.
func (d *Discrepancy) Ignore(actorID, notes string) error {
	return d.close(ResolutionIgnored, actorID, notes)
}

func (d *Discrepancy) close(to ResolutionStatus, actorID, notes string) error {
	if actorID == "" {
		return errors.New("actor cannot be empty")
	}
	if notes == "" {
		return ErrEmptyResolutionNotes
	}
	if err := d.transition(to); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.ResolvedBy = actorID
	d.ResolvedAt = &now
	d.ResolutionNotes = notes
	return nil
}
