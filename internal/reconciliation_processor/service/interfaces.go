// Package service implements the asynchronous reconciliation engine: it
// consumes batch jobs, diffs every account's recorded spend against the
// platform figure on a worker pool, and finalizes the batch totals.
package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/reconciliation"
)

// ProcessingService defines the interface for processing reconciliation jobs.
type ProcessingService interface {
	ProcessJob(ctx context.Context, job *reconciliation.Job) error
}

// TxRunner runs a function inside a single database transaction.
// *persistence.PostgresDB satisfies it; tests substitute a stub.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}
