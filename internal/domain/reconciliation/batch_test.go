package reconciliation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adspend-finance-core/internal/domain/money"
)

func newPendingBatch(t *testing.T) *Batch {
	t.Helper()
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	b, err := NewBatch("july-google-ads", start, end, SpendSourceManual, []string{"acc-1", "acc-2", "acc-3"}, "alice")
	require.NoError(t, err)
	return b
}

func TestNewBatch(t *testing.T) {
	t.Run("valid batch starts pending", func(t *testing.T) {
		b := newPendingBatch(t)
		assert.Equal(t, BatchStatusPending, b.Status)
		assert.Equal(t, 3, b.TotalAccounts)
		assert.Equal(t, 0, b.ProcessedAccounts)
		assert.Equal(t, 1, b.Version)
		assert.True(t, b.TotalSystemSpend.IsZero())
		assert.Nil(t, b.CompletedAt)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := NewBatch("", time.Now(), time.Now().Add(time.Hour), SpendSourceManual, []string{"a"}, "alice")
		assert.ErrorIs(t, err, ErrEmptyBatchName)
	})

	t.Run("inverted period rejected", func(t *testing.T) {
		now := time.Now()
		_, err := NewBatch("b", now, now.Add(-time.Hour), SpendSourceManual, []string{"a"}, "alice")
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})

	t.Run("equal period boundaries rejected", func(t *testing.T) {
		now := time.Now()
		_, err := NewBatch("b", now, now, SpendSourceManual, []string{"a"}, "alice")
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})

	t.Run("empty account list rejected", func(t *testing.T) {
		now := time.Now()
		_, err := NewBatch("b", now, now.Add(time.Hour), SpendSourceManual, nil, "alice")
		assert.ErrorIs(t, err, ErrEmptyAccountList)
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		now := time.Now()
		_, err := NewBatch("b", now, now.Add(time.Hour), SpendSource("carrier-pigeon"), []string{"a"}, "alice")
		assert.ErrorIs(t, err, ErrInvalidSpendSource)
	})
}

func TestCanTransitionBatch(t *testing.T) {
	statuses := []BatchStatus{BatchStatusPending, BatchStatusInProgress, BatchStatusCompleted, BatchStatusFailed, BatchStatusCancelled}

	legal := map[BatchStatus]map[BatchStatus]bool{
		BatchStatusPending:    {BatchStatusInProgress: true, BatchStatusCancelled: true},
		BatchStatusInProgress: {BatchStatusCompleted: true, BatchStatusFailed: true, BatchStatusCancelled: true},
		BatchStatusCompleted:  {},
		BatchStatusFailed:     {},
		BatchStatusCancelled:  {},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, legal[from][to], CanTransitionBatch(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestBatch_StartAndCancel(t *testing.T) {
	t.Run("pending batch starts", func(t *testing.T) {
		b := newPendingBatch(t)
		require.NoError(t, b.Start())
		assert.Equal(t, BatchStatusInProgress, b.Status)
		assert.Equal(t, 2, b.Version)
	})

	t.Run("pending batch cancels", func(t *testing.T) {
		b := newPendingBatch(t)
		require.NoError(t, b.Cancel())
		assert.Equal(t, BatchStatusCancelled, b.Status)
	})

	t.Run("in-progress batch cancels", func(t *testing.T) {
		b := newPendingBatch(t)
		require.NoError(t, b.Start())
		require.NoError(t, b.Cancel())
		assert.Equal(t, BatchStatusCancelled, b.Status)
	})

	t.Run("cancelled batch cannot restart", func(t *testing.T) {
		b := newPendingBatch(t)
		require.NoError(t, b.Cancel())

		err := b.Start()
		var illegal ErrIllegalBatchTransition
		require.ErrorAs(t, err, &illegal)
		assert.Equal(t, BatchStatusCancelled, illegal.From)
		assert.Equal(t, BatchStatusInProgress, illegal.To)
	})
}

func TestBatch_MarkFailed(t *testing.T) {
	b := newPendingBatch(t)
	require.NoError(t, b.Start())
	require.NoError(t, b.MarkFailed("platform spend source failed: connection refused"))

	assert.Equal(t, BatchStatusFailed, b.Status)
	assert.Equal(t, "platform spend source failed: connection refused", b.FailureReason)

	// Failing a pending batch skips the in-progress state, which is illegal
	b2 := newPendingBatch(t)
	assert.Error(t, b2.MarkFailed("nope"))
}

func TestBatch_Finalize(t *testing.T) {
	t.Run("derives totals and percentage", func(t *testing.T) {
		b := newPendingBatch(t)
		require.NoError(t, b.Start())
		require.NoError(t, b.Finalize(money.MustFromString("3000.00"), money.MustFromString("3060.00")))

		assert.Equal(t, BatchStatusCompleted, b.Status)
		assert.True(t, b.TotalDifference.Equal(money.MustFromString("60.00")))
		assert.True(t, b.DifferencePercentage.Equal(decimal.NewFromInt(2)),
			"got %s", b.DifferencePercentage.String())
		require.NotNil(t, b.CompletedAt)
	})

	t.Run("zero system spend uses the full-magnitude rule", func(t *testing.T) {
		b := newPendingBatch(t)
		require.NoError(t, b.Start())
		require.NoError(t, b.Finalize(money.Zero(), money.MustFromString("10.00")))
		assert.True(t, b.DifferencePercentage.Equal(decimal.NewFromInt(100)))
	})

	t.Run("finalizing a pending batch is illegal", func(t *testing.T) {
		b := newPendingBatch(t)
		err := b.Finalize(money.Zero(), money.Zero())
		var illegal ErrIllegalBatchTransition
		assert.ErrorAs(t, err, &illegal)
	})
}
