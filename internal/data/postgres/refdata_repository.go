package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adspend-finance-core/internal/domain/topup"
	"github.com/adspend-finance-core/internal/platform/persistence"
)

// RefDataRepository implements topup.ReferenceData over the account,
// project and channel metadata tables. The metadata is maintained
// elsewhere; only existence checks are needed here.
type RefDataRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRefDataRepository creates a new reference data repository
func NewRefDataRepository(logger *slog.Logger, db *persistence.PostgresDB) topup.ReferenceData {
	return &RefDataRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *RefDataRepository) AdAccountExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "ad_accounts", id)
}

func (r *RefDataRepository) ProjectExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "projects", id)
}

func (r *RefDataRepository) ChannelExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "channels", id)
}

func (r *RefDataRepository) exists(ctx context.Context, table, id string) (bool, error) {
	// Table names come from the three fixed callers above, never from input.
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table)

	var exists bool
	if err := r.querier.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		r.logger.Error("Failed reference data existence check", "table", table, "id", id, "error", err)
		return false, fmt.Errorf("failed to check %s existence: %w", table, err)
	}

	return exists, nil
}
