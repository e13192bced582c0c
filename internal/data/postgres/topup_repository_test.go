package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/topup"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var topupColumns = []string{"id", "ad_account_id", "project_id", "channel_id", "requested_by", "amount", "service_fee_amount", "status", "remark", "created_by", "updated_by", "version", "created_at", "updated_at"}

func TestTopupRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TopupRepository{querier: mock, logger: logger}

	now := time.Now()
	req := &topup.Request{
		ID:          uuid.New(),
		AdAccountID: "acc-1",
		ProjectID:   "proj-1",
		ChannelID:   "chan-1",
		RequestedBy: "alice",
		Amount:      money.MustFromString("1000.00"),
		Status:      topup.StatusPending,
		CreatedBy:   "alice",
		UpdatedBy:   "alice",
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO topup_requests \(id, ad_account_id, project_id, channel_id, requested_by, amount, service_fee_amount, status, remark, created_by, updated_by, version, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11, \$12, \$13, \$14\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(req.ID, req.AdAccountID, req.ProjectID, req.ChannelID, req.RequestedBy, req.Amount.Decimal, serviceFeeArg(req), string(req.Status), req.Remark, req.CreatedBy, req.UpdatedBy, req.Version, req.CreatedAt, req.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, req)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(req.ID, req.AdAccountID, req.ProjectID, req.ChannelID, req.RequestedBy, req.Amount.Decimal, serviceFeeArg(req), string(req.Status), req.Remark, req.CreatedBy, req.UpdatedBy, req.Version, req.CreatedAt, req.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, req)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create top-up request")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTopupRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TopupRepository{querier: mock, logger: logger}
	reqID := uuid.New()
	now := time.Now()

	query := `
		SELECT id, ad_account_id, project_id, channel_id, requested_by, amount, service_fee_amount, status, remark, created_by, updated_by, version, created_at, updated_at
		FROM topup_requests WHERE id = \$1`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(topupColumns).
			AddRow(reqID, "acc-1", "proj-1", "chan-1", "alice", "1000.00", nil, "pending", "", "alice", "alice", 1, now, now)
		mock.ExpectQuery(query).WithArgs(reqID).WillReturnRows(rows)

		req, err := repo.GetByID(ctx, reqID)
		require.NoError(t, err)
		assert.Equal(t, reqID, req.ID)
		assert.Equal(t, topup.StatusPending, req.Status)
		assert.True(t, req.Amount.Equal(money.MustFromString("1000.00")))
		assert.Nil(t, req.ServiceFeeAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("paid request carries the fee", func(t *testing.T) {
		rows := pgxmock.NewRows(topupColumns).
			AddRow(reqID, "acc-1", "proj-1", "chan-1", "alice", "1000.00", "20.00", "paid", "", "alice", "carol", 3, now, now)
		mock.ExpectQuery(query).WithArgs(reqID).WillReturnRows(rows)

		req, err := repo.GetByID(ctx, reqID)
		require.NoError(t, err)
		assert.Equal(t, topup.StatusPaid, req.Status)
		require.NotNil(t, req.ServiceFeeAmount)
		assert.True(t, req.ServiceFeeAmount.Equal(money.MustFromString("20.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(reqID).WillReturnError(pgx.ErrNoRows)

		req, err := repo.GetByID(ctx, reqID)
		assert.Error(t, err)
		assert.Nil(t, req)
		var notFoundErr topup.ErrRequestNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, reqID, notFoundErr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(query).WithArgs(reqID).WillReturnError(dbErr)

		req, err := repo.GetByID(ctx, reqID)
		assert.Error(t, err)
		assert.Nil(t, req)
		assert.Contains(t, err.Error(), "failed to get top-up request")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTopupRepository_List(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TopupRepository{querier: mock, logger: logger}
	now := time.Now()

	t.Run("status filter", func(t *testing.T) {
		query := `
			SELECT id, ad_account_id, project_id, channel_id, requested_by, amount, service_fee_amount, status, remark, created_by, updated_by, version, created_at, updated_at
			FROM topup_requests WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`

		rows := pgxmock.NewRows(topupColumns).
			AddRow(uuid.New(), "acc-1", "proj-1", "chan-1", "alice", "100.00", nil, "pending", "", "alice", "alice", 1, now, now).
			AddRow(uuid.New(), "acc-2", "proj-1", "chan-1", "alice", "250.00", nil, "pending", "", "alice", "alice", 1, now, now)
		mock.ExpectQuery(query).WithArgs("pending", 50, 0).WillReturnRows(rows)

		requests, err := repo.List(ctx, topup.ListFilter{Status: topup.StatusPending})
		require.NoError(t, err)
		assert.Len(t, requests, 2)
		assert.Equal(t, topup.StatusPending, requests[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account filter with paging", func(t *testing.T) {
		query := `
			SELECT id, ad_account_id, project_id, channel_id, requested_by, amount, service_fee_amount, status, remark, created_by, updated_by, version, created_at, updated_at
			FROM topup_requests WHERE 1=1 AND ad_account_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`

		rows := pgxmock.NewRows(topupColumns).
			AddRow(uuid.New(), "acc-1", "proj-1", "chan-1", "alice", "100.00", nil, "done", "", "alice", "dave", 4, now, now)
		mock.ExpectQuery(query).WithArgs("acc-1", 10, 20).WillReturnRows(rows)

		requests, err := repo.List(ctx, topup.ListFilter{AdAccountID: "acc-1", Limit: 10, Offset: 20})
		require.NoError(t, err)
		assert.Len(t, requests, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("list db error")
		mock.ExpectQuery(`SELECT .* FROM topup_requests`).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).WillReturnError(dbErr)

		requests, err := repo.List(ctx, topup.ListFilter{})
		assert.Error(t, err)
		assert.Nil(t, requests)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTopupRepository_Update(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &TopupRepository{querier: mock, logger: logger}
	now := time.Now()
	fee := money.MustFromString("20.00")
	req := &topup.Request{
		ID:               uuid.New(),
		Status:           topup.StatusPaid,
		ServiceFeeAmount: &fee,
		Remark:           "",
		UpdatedBy:        "carol",
		Version:          3,
		UpdatedAt:        now,
	}

	query := `
		UPDATE topup_requests
		SET status = \$1, service_fee_amount = \$2, remark = \$3, updated_by = \$4, version = \$5, updated_at = \$6
		WHERE id = \$7 AND version = \$8
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(string(req.Status), serviceFeeArg(req), req.Remark, req.UpdatedBy, req.Version, req.UpdatedAt, req.ID, req.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, req)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent modification", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(string(req.Status), serviceFeeArg(req), req.Remark, req.UpdatedBy, req.Version, req.UpdatedAt, req.ID, req.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, req)
		assert.Error(t, err)
		var concurrentModErr topup.ErrConcurrentModification
		assert.ErrorAs(t, err, &concurrentModErr)
		assert.Equal(t, req.ID, concurrentModErr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("update db error")
		mock.ExpectExec(query).
			WithArgs(string(req.Status), serviceFeeArg(req), req.Remark, req.UpdatedBy, req.Version, req.UpdatedAt, req.ID, req.Version-1).
			WillReturnError(dbErr)

		err := repo.Update(ctx, req)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update top-up request")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTopupRepository_WithTx(t *testing.T) {
	logger := newTestLogger()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	originalRepo := &TopupRepository{querier: mockPool, logger: logger}

	mockPool.ExpectBegin()
	pgxTx, err := mockPool.Begin(context.Background())
	require.NoError(t, err)

	txRepo := originalRepo.WithTx(pgxTx)

	assert.NotNil(t, txRepo)
	assert.Equal(t, originalRepo.logger, txRepo.(*TopupRepository).logger)
	assert.Equal(t, pgxTx, txRepo.(*TopupRepository).querier, "Querier in new repo should be the transaction")

	assert.NoError(t, mockPool.ExpectationsWereMet())
}
