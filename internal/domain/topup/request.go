// Package topup implements the approval workflow for ad account top-up
// requests. A request moves through multiple human approval gates; every
// status change is validated against a single transition table and recorded
// in the transition log.
package topup

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adspend-finance-core/internal/domain/money"
)

// Status defines the top-up request lifecycle states
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
	StatusDone     Status = "done"
	StatusRejected Status = "rejected"
)

// transitions is the single authoritative transition table for the approval
// workflow. Terminal states (done, rejected) have no outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusPaid, StatusRejected},
	StatusPaid:     {StatusDone, StatusRejected},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// FeePolicy computes the service fee charged when a top-up is paid.
// The actual fee schedule is owned by the finance team and injected here.
type FeePolicy func(amount money.Amount) money.Amount

// Common validation errors
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEmptyRequester    = errors.New("requester cannot be empty")
	ErrEmptyActor        = errors.New("actor cannot be empty")
	ErrRemarkRequired    = errors.New("rejection remark is required")
	ErrNegativeFee       = errors.New("service fee cannot be negative")
)

// Request represents a top-up request for an ad account
type Request struct {
	ID              uuid.UUID     `json:"id"`
	AdAccountID     string        `json:"ad_account_id"`
	ProjectID       string        `json:"project_id"`
	ChannelID       string        `json:"channel_id"`
	RequestedBy     string        `json:"requested_by"`
	Amount          money.Amount  `json:"amount"`
	ServiceFeeAmount *money.Amount `json:"service_fee_amount,omitempty"` // Set when the request is paid
	Status          Status        `json:"status"`
	Remark          string        `json:"remark,omitempty"`
	CreatedBy       string        `json:"created_by"`
	UpdatedBy       string        `json:"updated_by"`
	Version         int           `json:"version"` // For optimistic locking
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewRequest creates a pending top-up request after validating its inputs.
// Referential checks on the account/project/channel ids are the caller's
// responsibility; this constructor validates shape only.
func NewRequest(adAccountID, projectID, channelID string, amount money.Amount, requestedBy, remark string) (*Request, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if requestedBy == "" {
		return nil, ErrEmptyRequester
	}

	now := time.Now().UTC()
	return &Request{
		ID:          uuid.New(),
		AdAccountID: adAccountID,
		ProjectID:   projectID,
		ChannelID:   channelID,
		RequestedBy: requestedBy,
		Amount:      amount,
		Status:      StatusPending,
		Remark:      remark,
		CreatedBy:   requestedBy,
		UpdatedBy:   requestedBy,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// transition moves the request to the target status, bumping the version so
// the storage layer can enforce the compare-and-swap write.
func (r *Request) transition(to Status, actorID string) error {
	if actorID == "" {
		return ErrEmptyActor
	}
	if !CanTransition(r.Status, to) {
		return ErrIllegalTransition{From: r.Status, To: to}
	}

	r.Status = to
	r.UpdatedBy = actorID
	r.UpdatedAt = time.Now().UTC()
	r.Version++
	return nil
}

// Approve moves a pending request to approved.
func (r *Request) Approve(actorID, remark string) error {
	if err := r.transition(StatusApproved, actorID); err != nil {
		return err
	}
	if remark != "" {
		r.Remark = remark
	}
	return nil
}

// Pay moves an approved request to paid and records the service fee computed
// by the injected fee policy. The fee is set here and never afterwards.
func (r *Request) Pay(actorID, remark string, fee money.Amount) error {
	if fee.IsNegative() {
		return ErrNegativeFee
	}
	if err := r.transition(StatusPaid, actorID); err != nil {
		return err
	}
	r.ServiceFeeAmount = &fee
	if remark != "" {
		r.Remark = remark
	}
	return nil
}

// ConfirmReceipt acknowledges that the counterparty has credited the funds,
// moving a paid request to the terminal done state.
func (r *Request) ConfirmReceipt(actorID, remark string) error {
	if err := r.transition(StatusDone, actorID); err != nil {
		return err
	}
	if remark != "" {
		r.Remark = remark
	}
	return nil
}

// Reject moves the request to the terminal rejected state. The remark is
// mandatory: a rejection must be explainable.
func (r *Request) Reject(actorID, remark string) error {
	if remark == "" {
		return ErrRemarkRequired
	}
	if err := r.transition(StatusRejected, actorID); err != nil {
		return err
	}
	r.Remark = remark
	return nil
}
