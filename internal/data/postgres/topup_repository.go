// Package postgres provides PostgreSQL implementations of the domain
// repositories. Postgres is the authoritative store; every status-changing
// write uses an optimistic version precondition so concurrent transitions on
// the same entity cannot both succeed.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/topup"
	"github.com/adspend-finance-core/internal/platform/persistence"
)

// TopupRepository implements the topup.Repository interface for PostgreSQL
type TopupRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTopupRepository creates a new PostgreSQL top-up request repository
func NewTopupRepository(logger *slog.Logger, db *persistence.PostgresDB) topup.Repository {
	return &TopupRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so a status update, its
// transition log row and its outbox row commit atomically.
func (r *TopupRepository) WithTx(tx pgx.Tx) topup.Repository {
	return &TopupRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new top-up request
func (r *TopupRepository) Create(ctx context.Context, req *topup.Request) error {
	query := `
		INSERT INTO topup_requests (id, ad_account_id, project_id, channel_id, requested_by, amount, service_fee_amount, status, remark, created_by, updated_by, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		req.ID,
		req.AdAccountID,
		req.ProjectID,
		req.ChannelID,
		req.RequestedBy,
		req.Amount.Decimal,
		serviceFeeArg(req),
		string(req.Status),
		req.Remark,
		req.CreatedBy,
		req.UpdatedBy,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create top-up request", "error", err)
		return fmt.Errorf("failed to create top-up request: %w", err)
	}

	return nil
}

// GetByID retrieves a top-up request by its ID
func (r *TopupRepository) GetByID(ctx context.Context, id uuid.UUID) (*topup.Request, error) {
	query := topupSelectColumns + ` WHERE id = $1`

	req, err := r.scanRequest(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, topup.ErrRequestNotFound{ID: id}
		}
		r.logger.Error("Failed to get top-up request", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get top-up request: %w", err)
	}

	return req, nil
}

// List retrieves top-up requests matching the filter, newest first
func (r *TopupRepository) List(ctx context.Context, filter topup.ListFilter) ([]*topup.Request, error) {
	query := topupSelectColumns + ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.AdAccountID != "" {
		query += fmt.Sprintf(" AND ad_account_id = $%d", argPos)
		args = append(args, filter.AdAccountID)
		argPos++
	}
	if filter.ProjectID != "" {
		query += fmt.Sprintf(" AND project_id = $%d", argPos)
		args = append(args, filter.ProjectID)
		argPos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(filter.Status))
		argPos++
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list top-up requests", "error", err)
		return nil, fmt.Errorf("failed to list top-up requests: %w", err)
	}
	defer rows.Close()

	var requests []*topup.Request
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan top-up request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top-up requests: %w", err)
	}

	return requests, nil
}

// Update persists a transitioned request. The write only applies if the
// stored version is req.Version-1; otherwise the status changed since the
// actor last read it and ErrConcurrentModification is returned.
func (r *TopupRepository) Update(ctx context.Context, req *topup.Request) error {
	query := `
		UPDATE topup_requests
		SET status = $1, service_fee_amount = $2, remark = $3, updated_by = $4, version = $5, updated_at = $6
		WHERE id = $7 AND version = $8
	`

	result, err := r.querier.Exec(ctx, query,
		string(req.Status),
		serviceFeeArg(req),
		req.Remark,
		req.UpdatedBy,
		req.Version,
		req.UpdatedAt,
		req.ID,
		req.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update top-up request", "id", req.ID.String(), "error", err)
		return fmt.Errorf("failed to update top-up request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return topup.ErrConcurrentModification{ID: req.ID}
	}

	return nil
}

const topupSelectColumns = `
	SELECT id, ad_account_id, project_id, channel_id, requested_by, amount, service_fee_amount, status, remark, created_by, updated_by, version, created_at, updated_at
	FROM topup_requests`

func (r *TopupRepository) scanRequest(row pgx.Row) (*topup.Request, error) {
	var req topup.Request
	var status string
	var fee decimal.NullDecimal

	err := row.Scan(
		&req.ID,
		&req.AdAccountID,
		&req.ProjectID,
		&req.ChannelID,
		&req.RequestedBy,
		&req.Amount,
		&fee,
		&status,
		&req.Remark,
		&req.CreatedBy,
		&req.UpdatedBy,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = topup.Status(status)
	if fee.Valid {
		a := money.NewFromDecimal(fee.Decimal)
		req.ServiceFeeAmount = &a
	}
	return &req, nil
}

// serviceFeeArg maps the nullable fee to a driver value
func serviceFeeArg(req *topup.Request) decimal.NullDecimal {
	if req.ServiceFeeAmount == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: req.ServiceFeeAmount.Decimal, Valid: true}
}
