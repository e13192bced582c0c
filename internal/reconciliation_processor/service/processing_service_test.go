package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adspend-finance-core/internal/domain/audit"
	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/outbox"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type stubTxRunner struct{}

func (stubTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// syncPool runs every task inline, which keeps test execution deterministic.
type syncPool struct{}

func (syncPool) Submit(task func()) error {
	task()
	return nil
}

type MockBatchRepo struct {
	mock.Mock
}

func (m *MockBatchRepo) Create(ctx context.Context, batch *reconciliation.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*reconciliation.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Batch), args.Error(1)
}

func (m *MockBatchRepo) List(ctx context.Context, limit, offset int) ([]*reconciliation.Batch, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliation.Batch), args.Error(1)
}

func (m *MockBatchRepo) Update(ctx context.Context, batch *reconciliation.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepo) IncrementProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBatchRepo) WithTx(tx pgx.Tx) reconciliation.BatchRepository {
	m.Called(tx)
	return m
}

type MockDiscrepancyRepo struct {
	mock.Mock
}

func (m *MockDiscrepancyRepo) Create(ctx context.Context, d *reconciliation.Discrepancy) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDiscrepancyRepo) GetByID(ctx context.Context, id uuid.UUID) (*reconciliation.Discrepancy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Discrepancy), args.Error(1)
}

func (m *MockDiscrepancyRepo) ListByBatch(ctx context.Context, batchID uuid.UUID, filter reconciliation.DiscrepancyFilter) ([]*reconciliation.Discrepancy, error) {
	args := m.Called(ctx, batchID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reconciliation.Discrepancy), args.Error(1)
}

func (m *MockDiscrepancyRepo) AggregateTotals(ctx context.Context, batchID uuid.UUID) (*reconciliation.BatchTotals, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.BatchTotals), args.Error(1)
}

func (m *MockDiscrepancyRepo) Update(ctx context.Context, d *reconciliation.Discrepancy) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDiscrepancyRepo) WithTx(tx pgx.Tx) reconciliation.DiscrepancyRepository {
	m.Called(tx)
	return m
}

type MockLogRepo struct {
	mock.Mock
}

func (m *MockLogRepo) Append(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLogRepo) WithTx(tx pgx.Tx) audit.LogRepository {
	m.Called(tx)
	return m
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	m.Called(tx)
	return m
}

type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) SumForPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) (money.Amount, error) {
	args := m.Called(ctx, accountID, periodStart, periodEnd)
	return args.Get(0).(money.Amount), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, job *reconciliation.Job) (map[string]money.Amount, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]money.Amount), args.Error(1)
}

type MockDLQPublisher struct {
	mock.Mock
}

func (m *MockDLQPublisher) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	args := m.Called(ctx, key, originalMessageValue, reason)
	return args.Error(0)
}

func (m *MockDLQPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type processingMocks struct {
	batchRepo  *MockBatchRepo
	discRepo   *MockDiscrepancyRepo
	logRepo    *MockLogRepo
	outboxRepo *MockOutboxRepo
	ledger     *MockLedgerReader
	resolver   *MockResolver
	dlq        *MockDLQPublisher
}

func newProcessingService(t *testing.T) (*ProcessingServiceImpl, *processingMocks) {
	t.Helper()
	mocks := &processingMocks{
		batchRepo:  new(MockBatchRepo),
		discRepo:   new(MockDiscrepancyRepo),
		logRepo:    new(MockLogRepo),
		outboxRepo: new(MockOutboxRepo),
		ledger:     new(MockLedgerReader),
		resolver:   new(MockResolver),
		dlq:        new(MockDLQPublisher),
	}
	svc := NewProcessingService(
		newTestLogger(),
		stubTxRunner{},
		mocks.batchRepo,
		mocks.discRepo,
		mocks.logRepo,
		mocks.outboxRepo,
		mocks.ledger,
		mocks.resolver,
		reconciliation.DefaultClassifier(),
		syncPool{},
		mocks.dlq,
	)
	return svc, mocks
}

func (m *processingMocks) expectTxPassthrough() {
	m.batchRepo.On("WithTx", mock.Anything).Return(m.batchRepo)
	m.discRepo.On("WithTx", mock.Anything).Return(m.discRepo)
	m.logRepo.On("WithTx", mock.Anything).Return(m.logRepo)
	m.outboxRepo.On("WithTx", mock.Anything).Return(m.outboxRepo)
}

func newInProgressBatch(t *testing.T, accountIDs []string) *reconciliation.Batch {
	t.Helper()
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	b, err := reconciliation.NewBatch("july-google-ads", start, end, reconciliation.SpendSourceManual, accountIDs, "alice")
	require.NoError(t, err)
	require.NoError(t, b.Start())
	return b
}

func TestProcessingService_ProcessJob_Completes(t *testing.T) {
	ctx := context.Background()
	svc, mocks := newProcessingService(t)

	batch := newInProgressBatch(t, []string{"acc-1", "acc-2", "acc-3"})
	job := reconciliation.NewJob(batch, "corr-1")

	// acc-3 has no platform figure and must become an unresolved record
	// without stopping the batch.
	mocks.resolver.On("Resolve", ctx, job).Return(map[string]money.Amount{
		"acc-1": money.MustFromString("1000.00"),
		"acc-2": money.MustFromString("470.00"),
	}, nil).Once()

	mocks.ledger.On("SumForPeriod", ctx, "acc-1", job.PeriodStart, job.PeriodEnd).Return(money.MustFromString("1000.00"), nil).Once()
	mocks.ledger.On("SumForPeriod", ctx, "acc-2", job.PeriodStart, job.PeriodEnd).Return(money.MustFromString("500.00"), nil).Once()
	mocks.ledger.On("SumForPeriod", ctx, "acc-3", job.PeriodStart, job.PeriodEnd).Return(money.MustFromString("250.00"), nil).Once()

	mocks.batchRepo.On("GetByID", ctx, batch.ID).Return(batch, nil)
	mocks.discRepo.On("ListByBatch", ctx, batch.ID, reconciliation.DiscrepancyFilter{}).Return([]*reconciliation.Discrepancy{}, nil).Once()

	mocks.expectTxPassthrough()
	var created []*reconciliation.Discrepancy
	mocks.discRepo.On("Create", ctx, mock.AnythingOfType("*reconciliation.Discrepancy")).Run(func(args mock.Arguments) {
		created = append(created, args.Get(1).(*reconciliation.Discrepancy))
	}).Return(nil).Times(3)
	mocks.batchRepo.On("IncrementProcessed", ctx, batch.ID).Return(nil).Times(3)

	mocks.discRepo.On("AggregateTotals", ctx, batch.ID).Return(&reconciliation.BatchTotals{
		SystemSpend:   money.MustFromString("1750.00"),
		PlatformSpend: money.MustFromString("1470.00"),
	}, nil).Once()
	mocks.batchRepo.On("Update", ctx, mock.MatchedBy(func(b *reconciliation.Batch) bool {
		return b.Status == reconciliation.BatchStatusCompleted
	})).Return(nil).Once()
	mocks.logRepo.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)
	mocks.outboxRepo.On("Create", mock.Anything, mock.AnythingOfType("*outbox.Message")).Return(nil)

	err := svc.ProcessJob(ctx, job)

	require.NoError(t, err)
	require.Len(t, created, 3)

	byAccount := make(map[string]*reconciliation.Discrepancy, len(created))
	for _, d := range created {
		byAccount[d.AccountID] = d
	}
	assert.Equal(t, reconciliation.TypeMatched, byAccount["acc-1"].Type)
	assert.Equal(t, reconciliation.TypeShortage, byAccount["acc-2"].Type)
	assert.Equal(t, reconciliation.TypeUnresolved, byAccount["acc-3"].Type)
	assert.Contains(t, byAccount["acc-3"].Notes, "platform spend unavailable")

	assert.Equal(t, reconciliation.BatchStatusCompleted, batch.Status)
	assert.True(t, batch.TotalDifference.Equal(money.MustFromString("-280.00")))
	mocks.batchRepo.AssertExpectations(t)
	mocks.discRepo.AssertExpectations(t)
}

func TestProcessingService_ProcessJob_ResumesAfterRedelivery(t *testing.T) {
	ctx := context.Background()
	svc, mocks := newProcessingService(t)

	batch := newInProgressBatch(t, []string{"acc-1", "acc-2"})
	job := reconciliation.NewJob(batch, "")

	// acc-1 was already written by the previous delivery.
	existing := reconciliation.DefaultClassifier().Classify(batch.ID, "acc-1", money.MustFromString("10.00"), money.MustFromString("10.00"))

	mocks.resolver.On("Resolve", ctx, job).Return(map[string]money.Amount{
		"acc-1": money.MustFromString("10.00"),
		"acc-2": money.MustFromString("20.00"),
	}, nil).Once()
	mocks.batchRepo.On("GetByID", ctx, batch.ID).Return(batch, nil)
	mocks.discRepo.On("ListByBatch", ctx, batch.ID, reconciliation.DiscrepancyFilter{}).Return([]*reconciliation.Discrepancy{existing}, nil).Once()
	mocks.ledger.On("SumForPeriod", ctx, "acc-2", job.PeriodStart, job.PeriodEnd).Return(money.MustFromString("20.00"), nil).Once()

	mocks.expectTxPassthrough()
	mocks.discRepo.On("Create", ctx, mock.MatchedBy(func(d *reconciliation.Discrepancy) bool {
		return d.AccountID == "acc-2"
	})).Return(nil).Once()
	mocks.batchRepo.On("IncrementProcessed", ctx, batch.ID).Return(nil).Once()

	mocks.discRepo.On("AggregateTotals", ctx, batch.ID).Return(&reconciliation.BatchTotals{
		SystemSpend:   money.MustFromString("30.00"),
		PlatformSpend: money.MustFromString("30.00"),
	}, nil).Once()
	mocks.batchRepo.On("Update", ctx, mock.Anything).Return(nil).Once()
	mocks.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	mocks.outboxRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	err := svc.ProcessJob(ctx, job)

	require.NoError(t, err)
	mocks.ledger.AssertNotCalled(t, "SumForPeriod", ctx, "acc-1", job.PeriodStart, job.PeriodEnd)
	mocks.discRepo.AssertExpectations(t)
}

func TestProcessingService_ProcessJob_SkipsInactiveBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("batch not in progress is acknowledged untouched", func(t *testing.T) {
		svc, mocks := newProcessingService(t)
		start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
		batch, err := reconciliation.NewBatch("b", start, end, reconciliation.SpendSourceManual, []string{"acc-1"}, "alice")
		require.NoError(t, err)
		job := reconciliation.NewJob(batch, "")

		mocks.batchRepo.On("GetByID", ctx, batch.ID).Return(batch, nil).Once()

		err = svc.ProcessJob(ctx, job)

		assert.NoError(t, err)
		mocks.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("unknown batch is dropped", func(t *testing.T) {
		svc, mocks := newProcessingService(t)
		id := uuid.New()
		job := &reconciliation.Job{BatchID: id, AccountIDs: []string{"acc-1"}}

		mocks.batchRepo.On("GetByID", ctx, id).Return(nil, reconciliation.ErrBatchNotFound{ID: id}).Once()

		err := svc.ProcessJob(ctx, job)

		assert.NoError(t, err)
	})

	t.Run("load failure is retried", func(t *testing.T) {
		svc, mocks := newProcessingService(t)
		id := uuid.New()
		job := &reconciliation.Job{BatchID: id}
		dbErr := errors.New("connection reset")

		mocks.batchRepo.On("GetByID", ctx, id).Return(nil, dbErr).Once()

		err := svc.ProcessJob(ctx, job)

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestProcessingService_ProcessJob_CancelledMidFlight(t *testing.T) {
	ctx := context.Background()
	svc, mocks := newProcessingService(t)

	batch := newInProgressBatch(t, []string{"acc-1", "acc-2"})
	job := reconciliation.NewJob(batch, "")

	mocks.resolver.On("Resolve", ctx, job).Return(map[string]money.Amount{
		"acc-1": money.MustFromString("10.00"),
		"acc-2": money.MustFromString("20.00"),
	}, nil).Once()
	mocks.batchRepo.On("GetByID", ctx, batch.ID).Return(batch, nil)
	mocks.discRepo.On("ListByBatch", ctx, batch.ID, reconciliation.DiscrepancyFilter{}).Return([]*reconciliation.Discrepancy{}, nil).Once()
	mocks.ledger.On("SumForPeriod", ctx, mock.Anything, job.PeriodStart, job.PeriodEnd).Return(money.MustFromString("10.00"), nil)

	mocks.expectTxPassthrough()
	mocks.discRepo.On("Create", ctx, mock.Anything).Return(nil)
	// The operator cancelled the batch; the in-progress guard refuses the
	// first counter bump and the remaining results are discarded.
	mocks.batchRepo.On("IncrementProcessed", ctx, batch.ID).Return(reconciliation.ErrBatchNotActive{ID: batch.ID}).Once()

	err := svc.ProcessJob(ctx, job)

	require.NoError(t, err)
	mocks.batchRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	mocks.discRepo.AssertNotCalled(t, "AggregateTotals", mock.Anything, mock.Anything)
	mocks.dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessingService_ProcessJob_SourceFailure(t *testing.T) {
	ctx := context.Background()
	svc, mocks := newProcessingService(t)

	batch := newInProgressBatch(t, []string{"acc-1"})
	job := reconciliation.NewJob(batch, "corr-9")

	srcErr := errors.New("bill file missing")
	mocks.batchRepo.On("GetByID", ctx, batch.ID).Return(batch, nil).Once()
	mocks.resolver.On("Resolve", ctx, job).Return(nil, srcErr).Once()

	mocks.expectTxPassthrough()
	mocks.batchRepo.On("Update", ctx, mock.MatchedBy(func(b *reconciliation.Batch) bool {
		return b.Status == reconciliation.BatchStatusFailed
	})).Return(nil).Once()
	mocks.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)
	mocks.outboxRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	mocks.dlq.On("PublishToDLQ", ctx, batch.ID.String(), mock.Anything, mock.MatchedBy(func(reason string) bool {
		return reason != ""
	})).Return(nil).Once()

	err := svc.ProcessJob(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, reconciliation.BatchStatusFailed, batch.Status)
	assert.Contains(t, batch.FailureReason, "platform spend source failed")
	mocks.batchRepo.AssertExpectations(t)
	mocks.dlq.AssertExpectations(t)
}
