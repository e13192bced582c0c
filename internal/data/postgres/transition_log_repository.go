package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/audit"
	"github.com/adspend-finance-core/internal/platform/persistence"
)

// TransitionLogRepository implements audit.LogRepository for PostgreSQL.
// The log is append-only: there is deliberately no update or delete.
type TransitionLogRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransitionLogRepository creates a new PostgreSQL transition log
// repository
func NewTransitionLogRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.LogRepository {
	return &TransitionLogRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. Append must run in the
// same transaction as the status change it records.
func (r *TransitionLogRepository) WithTx(tx pgx.Tx) audit.LogRepository {
	return &TransitionLogRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append stores a transition log entry and backfills its generated ID
func (r *TransitionLogRepository) Append(ctx context.Context, entry *audit.Entry) error {
	query := `
		INSERT INTO transition_log (entity_type, entity_id, from_status, to_status, actor_id, remark, correlation_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		string(entry.EntityType),
		entry.EntityID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.Remark,
		entry.CorrelationID,
		entry.OccurredAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to append transition log entry",
			"entity_type", string(entry.EntityType),
			"entity_id", entry.EntityID.String(),
			"error", err)
		return fmt.Errorf("failed to append transition log entry: %w", err)
	}

	return nil
}
