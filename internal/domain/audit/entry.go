// Package audit defines the append-only transition log shared by every
// workflow in the system. Entity status fields are a cache; the log is the
// sole source of audit truth.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which kind of record a transition belongs to
type EntityType string

const (
	EntityTopupRequest        EntityType = "topup_request"
	EntityReconciliationBatch EntityType = "reconciliation_batch"
	EntityAccountDiscrepancy  EntityType = "account_discrepancy"
)

// Entry is one row of the transition log. Entries are append-only; a status
// change without its entry (or the reverse) must never be observable.
type Entry struct {
	ID            int64      `json:"id" bson:"id,omitempty"`
	EntityType    EntityType `json:"entity_type" bson:"entity_type"`
	EntityID      uuid.UUID  `json:"entity_id" bson:"entity_id"`
	FromStatus    string     `json:"from_status" bson:"from_status"` // Empty for creation entries
	ToStatus      string     `json:"to_status" bson:"to_status"`
	ActorID       string     `json:"actor_id" bson:"actor_id"`
	Remark        string     `json:"remark,omitempty" bson:"remark,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at" bson:"occurred_at"`
}

// NewEntry builds a transition log entry. fromStatus is empty when the
// entity is being created.
func NewEntry(entityType EntityType, entityID uuid.UUID, fromStatus, toStatus, actorID, remark, correlationID string) *Entry {
	return &Entry{
		EntityType:    entityType,
		EntityID:      entityID,
		FromStatus:    fromStatus,
		ToStatus:      toStatus,
		ActorID:       actorID,
		Remark:        remark,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
	}
}
