package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/audit"
	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/outbox"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/domain/spend"
	"github.com/adspend-finance-core/internal/platform/messaging/producers"
	"github.com/adspend-finance-core/internal/reconciliation_processor/spendsource"
)

// processorActorID identifies the processor in transition log entries for
// machine-driven batch transitions.
const processorActorID = "reconciliation-processor"

// TaskPool schedules per-account diffing tasks.
type TaskPool interface {
	Submit(task func()) error
}

// ProcessingServiceImpl implements the ProcessingService interface
type ProcessingServiceImpl struct {
	txRunner   TxRunner
	batchRepo  reconciliation.BatchRepository
	discRepo   reconciliation.DiscrepancyRepository
	logRepo    audit.LogRepository
	outboxRepo outbox.Repository
	ledger     spend.LedgerReader
	resolver   spendsource.Resolver
	classifier reconciliation.Classifier
	pool       TaskPool
	dlq        producers.DeadLetterPublisher
	logger     *slog.Logger
}

// NewProcessingService creates a new reconciliation job processing service
func NewProcessingService(
	logger *slog.Logger,
	txRunner TxRunner,
	batchRepo reconciliation.BatchRepository,
	discRepo reconciliation.DiscrepancyRepository,
	logRepo audit.LogRepository,
	outboxRepo outbox.Repository,
	ledger spend.LedgerReader,
	resolver spendsource.Resolver,
	classifier reconciliation.Classifier,
	pool TaskPool,
	dlq producers.DeadLetterPublisher,
) *ProcessingServiceImpl {
	return &ProcessingServiceImpl{
		txRunner:   txRunner,
		batchRepo:  batchRepo,
		discRepo:   discRepo,
		logRepo:    logRepo,
		outboxRepo: outboxRepo,
		ledger:     ledger,
		resolver:   resolver,
		classifier: classifier,
		pool:       pool,
		dlq:        dlq,
		logger:     logger,
	}
}

// accountResult is one worker's outcome for a single account
type accountResult struct {
	discrepancy *reconciliation.Discrepancy
	err         error
}

// ProcessJob runs one reconciliation batch end to end. It returns nil for
// every outcome that must not be redelivered (completed, cancelled, failed,
// already-terminal batch); only infrastructure errors worth a retry
// propagate.
func (s *ProcessingServiceImpl) ProcessJob(ctx context.Context, job *reconciliation.Job) error {
	logger := s.logger.With("batch_id", job.BatchID.String())
	if job.CorrelationID != "" {
		logger = logger.With("correlation_id", job.CorrelationID)
	}

	batch, err := s.batchRepo.GetByID(ctx, job.BatchID)
	if err != nil {
		if errors.Is(err, reconciliation.ErrBatchNotFound{}) {
			logger.Warn("Dropping job for unknown batch")
			return nil
		}
		return fmt.Errorf("failed to load batch %s: %w", job.BatchID, err)
	}

	if batch.Status != reconciliation.BatchStatusInProgress {
		// Duplicate delivery or the batch was cancelled before pickup.
		logger.Info("Skipping job for batch not in progress", "status", string(batch.Status))
		return nil
	}

	platformSpend, err := s.resolver.Resolve(ctx, job)
	if err != nil {
		s.failBatch(ctx, logger, job, batch, fmt.Sprintf("platform spend source failed: %v", err))
		return nil
	}

	// Redeliveries resume where the previous attempt stopped.
	processed, err := s.processedAccounts(ctx, job.BatchID)
	if err != nil {
		return err
	}

	pending := make([]string, 0, len(job.AccountIDs))
	for _, accountID := range job.AccountIDs {
		if !processed[accountID] {
			pending = append(pending, accountID)
		}
	}

	logger.Info("Processing reconciliation batch",
		"total_accounts", len(job.AccountIDs),
		"already_processed", len(processed),
		"pending", len(pending))

	results := make(chan accountResult, len(pending))
	for _, accountID := range pending {
		accountID := accountID
		submitErr := s.pool.Submit(func() {
			results <- s.diffAccount(ctx, job, accountID, platformSpend)
		})
		if submitErr != nil {
			results <- accountResult{err: fmt.Errorf("failed to submit account %s: %w", accountID, submitErr)}
		}
	}

	// Single collector: per-account commits stay sequential so the
	// processed counter is monotonic and the in-progress guard is the
	// only cancellation check needed.
	var systemicErr error
	cancelled := false
	for range pending {
		res := <-results
		if res.err != nil {
			if systemicErr == nil {
				systemicErr = res.err
			}
			continue
		}
		if cancelled || systemicErr != nil {
			continue
		}

		err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
			if err := s.discRepo.WithTx(tx).Create(ctx, res.discrepancy); err != nil {
				return err
			}
			return s.batchRepo.WithTx(tx).IncrementProcessed(ctx, job.BatchID)
		})
		if err != nil {
			if errors.Is(err, reconciliation.ErrBatchNotActive{}) {
				logger.Info("Batch no longer active, discarding remaining results")
				cancelled = true
				continue
			}
			if systemicErr == nil {
				systemicErr = err
			}
		}
	}

	if cancelled {
		return nil
	}
	if systemicErr != nil {
		s.failBatch(ctx, logger, job, batch, fmt.Sprintf("account processing failed: %v", systemicErr))
		return nil
	}

	return s.finalizeBatch(ctx, logger, job)
}

// diffAccount computes one account's discrepancy. A missing platform figure
// yields an unresolved record instead of an error so the batch keeps going.
func (s *ProcessingServiceImpl) diffAccount(ctx context.Context, job *reconciliation.Job, accountID string, platformSpend map[string]money.Amount) accountResult {
	systemSpend, err := s.ledger.SumForPeriod(ctx, accountID, job.PeriodStart, job.PeriodEnd)
	if err != nil {
		return accountResult{err: fmt.Errorf("failed to sum spend for account %s: %w", accountID, err)}
	}

	platform, ok := platformSpend[accountID]
	if !ok {
		reason := fmt.Sprintf("no figure available from %s source", job.Source)
		return accountResult{discrepancy: reconciliation.NewUnresolvedDiscrepancy(job.BatchID, accountID, systemSpend, reason)}
	}

	return accountResult{discrepancy: s.classifier.Classify(job.BatchID, accountID, systemSpend, platform)}
}

// processedAccounts returns the accounts already holding a discrepancy row
// for this batch
func (s *ProcessingServiceImpl) processedAccounts(ctx context.Context, batchID uuid.UUID) (map[string]bool, error) {
	existing, err := s.discRepo.ListByBatch(ctx, batchID, reconciliation.DiscrepancyFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list existing discrepancies: %w", err)
	}

	processed := make(map[string]bool, len(existing))
	for _, d := range existing {
		processed[d.AccountID] = true
	}
	return processed, nil
}

// finalizeBatch derives the batch totals and commits the completion
// transition. A concurrent cancellation surfaces as a lock failure and the
// batch is simply left as the operator set it.
func (s *ProcessingServiceImpl) finalizeBatch(ctx context.Context, logger *slog.Logger, job *reconciliation.Job) error {
	batch, err := s.batchRepo.GetByID(ctx, job.BatchID)
	if err != nil {
		return fmt.Errorf("failed to reload batch %s: %w", job.BatchID, err)
	}
	if batch.Status != reconciliation.BatchStatusInProgress {
		logger.Info("Batch left the in-progress state during processing, skipping finalization", "status", string(batch.Status))
		return nil
	}

	totals, err := s.discRepo.AggregateTotals(ctx, job.BatchID)
	if err != nil {
		return fmt.Errorf("failed to aggregate batch totals: %w", err)
	}

	from := batch.Status
	if err := batch.Finalize(totals.SystemSpend, totals.PlatformSpend); err != nil {
		return err
	}

	entry := audit.NewEntry(audit.EntityReconciliationBatch, batch.ID, string(from), string(batch.Status), processorActorID, "", job.CorrelationID)

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.batchRepo.WithTx(tx).Update(ctx, batch); err != nil {
			return err
		}
		return s.recordTransition(ctx, tx, entry)
	})
	if err != nil {
		if errors.Is(err, reconciliation.ErrConcurrentModification{}) {
			logger.Info("Batch transitioned concurrently, skipping finalization")
			return nil
		}
		return fmt.Errorf("failed to finalize batch %s: %w", job.BatchID, err)
	}

	logger.Info("Reconciliation batch completed",
		"processed_accounts", batch.TotalAccounts,
		"total_system_spend", batch.TotalSystemSpend.String(),
		"total_platform_spend", batch.TotalPlatformSpend.String(),
		"total_difference", batch.TotalDifference.String())

	return nil
}

// failBatch records a systemic failure and parks the job on the DLQ for
// inspection. Failure to record is logged but not retried; the job is
// acknowledged either way.
func (s *ProcessingServiceImpl) failBatch(ctx context.Context, logger *slog.Logger, job *reconciliation.Job, batch *reconciliation.Batch, reason string) {
	logger.Error("Reconciliation batch failed", "reason", reason)

	from := batch.Status
	if err := batch.MarkFailed(reason); err != nil {
		logger.Error("Could not mark batch as failed", "error", err)
	} else {
		entry := audit.NewEntry(audit.EntityReconciliationBatch, batch.ID, string(from), string(batch.Status), processorActorID, reason, job.CorrelationID)
		err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
			if err := s.batchRepo.WithTx(tx).Update(ctx, batch); err != nil {
				return err
			}
			return s.recordTransition(ctx, tx, entry)
		})
		if err != nil {
			logger.Error("Failed to persist batch failure", "error", err)
		}
	}

	if s.dlq != nil {
		payload, err := json.Marshal(job)
		if err != nil {
			logger.Error("Failed to marshal job for DLQ", "error", err)
			return
		}
		if err := s.dlq.PublishToDLQ(ctx, job.BatchID.String(), payload, reason); err != nil {
			logger.Error("Failed to publish failed job to DLQ", "error", err)
		}
	}
}

func (s *ProcessingServiceImpl) recordTransition(ctx context.Context, tx pgx.Tx, entry *audit.Entry) error {
	if err := s.logRepo.WithTx(tx).Append(ctx, entry); err != nil {
		return err
	}
	msg, err := outbox.NewMessage(entry)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, msg)
}
