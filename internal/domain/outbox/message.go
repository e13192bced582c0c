// Package outbox implements the transactional outbox for transition log
// entries. An outbox row is written in the same Postgres transaction as the
// status change; a poller later mirrors it into the Mongo audit trail, so
// the trail catches up without a cross-store transaction.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/adspend-finance-core/internal/domain/audit"
)

// Status defines outbox message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// Message stores a serialized transition log entry awaiting publication to
// the audit trail.
type Message struct {
	ID            int64            `json:"id"`
	EntityType    audit.EntityType `json:"entity_type"`
	EntityID      uuid.UUID        `json:"entity_id"`
	Payload       json.RawMessage  `json:"payload"`
	Status        Status           `json:"status"`
	Attempts      int              `json:"attempts"`
	CreatedAt     time.Time        `json:"created_at"`
	LastAttemptAt *time.Time       `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps a transition log entry for publication.
func NewMessage(entry *audit.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Payload:    payload,
		Status:     StatusPending,
		Attempts:   0,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Entry extracts the transition log entry from the payload.
func (m *Message) Entry() (*audit.Entry, error) {
	var entry audit.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
