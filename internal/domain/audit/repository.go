package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LogRepository is the authoritative, append-only transition log in
// Postgres. Append always runs inside the same transaction as the entity
// status change it records.
type LogRepository interface {
	Append(ctx context.Context, entry *Entry) error
	WithTx(tx pgx.Tx) LogRepository
}

// TrailRepository is the query-side audit trail in MongoDB, fed from the
// transition outbox. It serves history reconstruction independent of the
// cached status fields.
type TrailRepository interface {
	Create(ctx context.Context, entry *Entry) error
	ListByEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]*Entry, error)
}
