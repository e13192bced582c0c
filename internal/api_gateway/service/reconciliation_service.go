package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/audit"
	"github.com/adspend-finance-core/internal/domain/outbox"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/domain/spend"
	"github.com/adspend-finance-core/internal/platform/messaging/producers"
)

// ReconciliationServiceImpl implements the ReconciliationService interface
type ReconciliationServiceImpl struct {
	txRunner    TxRunner
	batchRepo   reconciliation.BatchRepository
	discRepo    reconciliation.DiscrepancyRepository
	logRepo     audit.LogRepository
	outboxRepo  outbox.Repository
	reportRepo  spend.PlatformReportRepository
	trailRepo   audit.TrailRepository
	jobProducer producers.MessagePublisher
	logger      *slog.Logger
}

// NewReconciliationService creates a new reconciliation management service
func NewReconciliationService(
	logger *slog.Logger,
	txRunner TxRunner,
	batchRepo reconciliation.BatchRepository,
	discRepo reconciliation.DiscrepancyRepository,
	logRepo audit.LogRepository,
	outboxRepo outbox.Repository,
	reportRepo spend.PlatformReportRepository,
	trailRepo audit.TrailRepository,
	jobProducer producers.MessagePublisher,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		txRunner:    txRunner,
		batchRepo:   batchRepo,
		discRepo:    discRepo,
		logRepo:     logRepo,
		outboxRepo:  outboxRepo,
		reportRepo:  reportRepo,
		trailRepo:   trailRepo,
		jobProducer: jobProducer,
		logger:      logger,
	}
}

// CreateBatch persists a new pending batch together with its creation log
// entry.
func (s *ReconciliationServiceImpl) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*reconciliation.Batch, error) {
	batch, err := reconciliation.NewBatch(cmd.Name, cmd.PeriodStart, cmd.PeriodEnd, cmd.Source, cmd.AccountIDs, cmd.CreatedBy)
	if err != nil {
		return nil, err
	}

	entry := audit.NewEntry(audit.EntityReconciliationBatch, batch.ID, "", string(batch.Status), cmd.CreatedBy, "", cmd.CorrelationID)

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.batchRepo.WithTx(tx).Create(ctx, batch); err != nil {
			return err
		}
		return s.recordTransition(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reconciliation batch created",
		"batch_id", batch.ID.String(),
		"name", batch.Name,
		"total_accounts", batch.TotalAccounts,
		"source", string(batch.Source),
		"correlation_id", cmd.CorrelationID)

	return batch, nil
}

// GetBatch retrieves a batch by its ID
func (s *ReconciliationServiceImpl) GetBatch(ctx context.Context, id uuid.UUID) (*reconciliation.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// ListBatches retrieves batches ordered by creation time, newest first
func (s *ReconciliationServiceImpl) ListBatches(ctx context.Context, limit, offset int) ([]*reconciliation.Batch, error) {
	return s.batchRepo.List(ctx, limit, offset)
}

// StartBatch moves a pending batch to in_progress and dispatches the
// processing job. The job is published only after the transition commits;
// the processor re-reads the batch and skips anything not in progress, so a
// duplicated or late job is harmless.
func (s *ReconciliationServiceImpl) StartBatch(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Batch, error) {
	batch, err := s.applyBatchTransition(ctx, id, cmd, func(b *reconciliation.Batch) error {
		return b.Start()
	})
	if err != nil {
		return nil, err
	}

	job := reconciliation.NewJob(batch, cmd.CorrelationID)
	if err := s.jobProducer.Publish(ctx, batch.ID.String(), job); err != nil {
		s.logger.Error("Failed to publish reconciliation job",
			"batch_id", batch.ID.String(),
			"error", err)
		return nil, fmt.Errorf("batch started but job dispatch failed: %w", err)
	}

	s.logger.Info("Reconciliation job dispatched",
		"batch_id", batch.ID.String(),
		"total_accounts", batch.TotalAccounts,
		"correlation_id", cmd.CorrelationID)

	return batch, nil
}

// CancelBatch moves a pending or in-progress batch to cancelled. In-flight
// per-account work is discarded by the processor's in-progress write guard.
func (s *ReconciliationServiceImpl) CancelBatch(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Batch, error) {
	return s.applyBatchTransition(ctx, id, cmd, func(b *reconciliation.Batch) error {
		return b.Cancel()
	})
}

// SubmitPlatformSpend records manual platform spend figures for a pending
// batch
func (s *ReconciliationServiceImpl) SubmitPlatformSpend(ctx context.Context, batchID uuid.UUID, entries []PlatformSpendEntry, submittedBy string) error {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status != reconciliation.BatchStatusPending {
		return ErrPlatformSpendLocked
	}

	now := time.Now().UTC()
	for _, e := range entries {
		if e.AccountID == "" {
			return ErrEmptySpendAccountID
		}
		if e.Amount.IsNegative() {
			return ErrNegativePlatformSpend
		}
		report := &spend.PlatformReport{
			BatchID:     batchID,
			AccountID:   e.AccountID,
			Amount:      e.Amount,
			SubmittedBy: submittedBy,
			SubmittedAt: now,
		}
		if err := s.reportRepo.Upsert(ctx, report); err != nil {
			return err
		}
	}

	s.logger.Info("Platform spend submitted",
		"batch_id", batchID.String(),
		"entries", len(entries),
		"submitted_by", submittedBy)

	return nil
}

// ListDiscrepancies retrieves a batch's discrepancies matching the filter
func (s *ReconciliationServiceImpl) ListDiscrepancies(ctx context.Context, batchID uuid.UUID, filter reconciliation.DiscrepancyFilter) ([]*reconciliation.Discrepancy, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.discRepo.ListByBatch(ctx, batchID, filter)
}

// GetDiscrepancy retrieves a discrepancy by its ID
func (s *ReconciliationServiceImpl) GetDiscrepancy(ctx context.Context, id uuid.UUID) (*reconciliation.Discrepancy, error) {
	return s.discRepo.GetByID(ctx, id)
}

// BeginInvestigation moves a pending discrepancy to investigating.
func (s *ReconciliationServiceImpl) BeginInvestigation(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Discrepancy, error) {
	return s.applyResolutionTransition(ctx, id, cmd, func(d *reconciliation.Discrepancy) error {
		return d.BeginInvestigation(cmd.ActorID)
	})
}

// ResolveDiscrepancy closes a discrepancy with an explanation.
func (s *ReconciliationServiceImpl) ResolveDiscrepancy(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Discrepancy, error) {
	return s.applyResolutionTransition(ctx, id, cmd, func(d *reconciliation.Discrepancy) error {
		return d.Resolve(cmd.ActorID, cmd.Remark)
	})
}

// IgnoreDiscrepancy closes a discrepancy as an accepted non-issue.
func (s *ReconciliationServiceImpl) IgnoreDiscrepancy(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*reconciliation.Discrepancy, error) {
	return s.applyResolutionTransition(ctx, id, cmd, func(d *reconciliation.Discrepancy) error {
		return d.Ignore(cmd.ActorID, cmd.Remark)
	})
}

// BatchHistory reconstructs the batch's transition history from the audit
// trail
func (s *ReconciliationServiceImpl) BatchHistory(ctx context.Context, id uuid.UUID) ([]*audit.Entry, error) {
	if _, err := s.batchRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.trailRepo.ListByEntity(ctx, audit.EntityReconciliationBatch, id)
}

func (s *ReconciliationServiceImpl) applyBatchTransition(ctx context.Context, id uuid.UUID, cmd TransitionCommand, mutate func(b *reconciliation.Batch) error) (*reconciliation.Batch, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := batch.Status
	if err := mutate(batch); err != nil {
		return nil, err
	}

	entry := audit.NewEntry(audit.EntityReconciliationBatch, batch.ID, string(from), string(batch.Status), cmd.ActorID, cmd.Remark, cmd.CorrelationID)

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.batchRepo.WithTx(tx).Update(ctx, batch); err != nil {
			return err
		}
		return s.recordTransition(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reconciliation batch transitioned",
		"batch_id", batch.ID.String(),
		"from_status", string(from),
		"to_status", string(batch.Status),
		"actor_id", cmd.ActorID,
		"correlation_id", cmd.CorrelationID)

	return batch, nil
}

func (s *ReconciliationServiceImpl) applyResolutionTransition(ctx context.Context, id uuid.UUID, cmd TransitionCommand, mutate func(d *reconciliation.Discrepancy) error) (*reconciliation.Discrepancy, error) {
	d, err := s.discRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := d.ResolutionStatus
	if err := mutate(d); err != nil {
		return nil, err
	}

	entry := audit.NewEntry(audit.EntityAccountDiscrepancy, d.ID, string(from), string(d.ResolutionStatus), cmd.ActorID, cmd.Remark, cmd.CorrelationID)

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.discRepo.WithTx(tx).Update(ctx, d); err != nil {
			return err
		}
		return s.recordTransition(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Discrepancy resolution transitioned",
		"discrepancy_id", d.ID.String(),
		"batch_id", d.BatchID.String(),
		"from_status", string(from),
		"to_status", string(d.ResolutionStatus),
		"actor_id", cmd.ActorID,
		"correlation_id", cmd.CorrelationID)

	return d, nil
}

func (s *ReconciliationServiceImpl) recordTransition(ctx context.Context, tx pgx.Tx, entry *audit.Entry) error {
	if err := s.logRepo.WithTx(tx).Append(ctx, entry); err != nil {
		return err
	}
	msg, err := outbox.NewMessage(entry)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, msg)
}
