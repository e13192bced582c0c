package topup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	AdAccountID string
	ProjectID   string
	Status      Status
	Limit       int
	Offset      int
}

// Repository defines top-up request persistence operations
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	List(ctx context.Context, filter ListFilter) ([]*Request, error)

	// Update persists a transitioned request using optimistic locking:
	// the write only applies if the stored version is req.Version-1.
	Update(ctx context.Context, req *Request) error

	WithTx(tx pgx.Tx) Repository
}

// ErrRequestNotFound indicates a missing top-up request
type ErrRequestNotFound struct {
	ID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "top-up request not found: " + e.ID.String()
}

// Is matches any ErrRequestNotFound when the target carries a nil ID
func (e ErrRequestNotFound) Is(target error) bool {
	t, ok := target.(ErrRequestNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || e.ID == t.ID
}

// ErrConcurrentModification indicates the request's status changed since the
// actor last read it. The caller must re-fetch before retrying.
type ErrConcurrentModification struct {
	ID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for top-up request: " + e.ID.String()
}

// Is matches any ErrConcurrentModification when the target carries a nil ID
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || e.ID == t.ID
}

// ErrIllegalTransition indicates an operation requested from a state that
// does not permit it. It carries both sides so callers can disable stale
// action buttons.
type ErrIllegalTransition struct {
	From Status
	To   Status
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal top-up transition from %q to %q", e.From, e.To)
}

// ErrUnknownReference indicates a referenced account, project or channel
// does not exist.
type ErrUnknownReference struct {
	Kind string
	ID   string
}

func (e ErrUnknownReference) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Kind, e.ID)
}
