package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adspend-finance-core/internal/domain/audit"
	"github.com/adspend-finance-core/internal/domain/outbox"
	"github.com/adspend-finance-core/internal/domain/topup"
)

// TopupServiceImpl implements the TopupService interface
type TopupServiceImpl struct {
	txRunner   TxRunner
	topupRepo  topup.Repository
	logRepo    audit.LogRepository
	outboxRepo outbox.Repository
	refData    topup.ReferenceData
	trailRepo  audit.TrailRepository
	feePolicy  topup.FeePolicy
	logger     *slog.Logger
}

// NewTopupService creates a new top-up workflow service
func NewTopupService(
	logger *slog.Logger,
	txRunner TxRunner,
	topupRepo topup.Repository,
	logRepo audit.LogRepository,
	outboxRepo outbox.Repository,
	refData topup.ReferenceData,
	trailRepo audit.TrailRepository,
	feePolicy topup.FeePolicy,
) *TopupServiceImpl {
	return &TopupServiceImpl{
		txRunner:   txRunner,
		topupRepo:  topupRepo,
		logRepo:    logRepo,
		outboxRepo: outboxRepo,
		refData:    refData,
		trailRepo:  trailRepo,
		feePolicy:  feePolicy,
		logger:     logger,
	}
}

// Create validates the referenced metadata and persists a new pending
// request together with its creation log entry.
func (s *TopupServiceImpl) Create(ctx context.Context, cmd CreateTopupCommand) (*topup.Request, error) {
	if err := s.checkReferences(ctx, cmd); err != nil {
		return nil, err
	}

	req, err := topup.NewRequest(cmd.AdAccountID, cmd.ProjectID, cmd.ChannelID, cmd.Amount, cmd.RequestedBy, cmd.Remark)
	if err != nil {
		return nil, err
	}

	entry := audit.NewEntry(audit.EntityTopupRequest, req.ID, "", string(req.Status), cmd.RequestedBy, cmd.Remark, cmd.CorrelationID)

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.topupRepo.WithTx(tx).Create(ctx, req); err != nil {
			return err
		}
		return s.recordTransition(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Top-up request created",
		"request_id", req.ID.String(),
		"ad_account_id", req.AdAccountID,
		"amount", req.Amount.String(),
		"correlation_id", cmd.CorrelationID)

	return req, nil
}

// GetByID retrieves a top-up request by its ID
func (s *TopupServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*topup.Request, error) {
	return s.topupRepo.GetByID(ctx, id)
}

// List retrieves top-up requests matching the filter
func (s *TopupServiceImpl) List(ctx context.Context, filter topup.ListFilter) ([]*topup.Request, error) {
	return s.topupRepo.List(ctx, filter)
}

// Approve moves a pending request to approved.
func (s *TopupServiceImpl) Approve(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error) {
	return s.applyTransition(ctx, id, cmd, func(req *topup.Request) error {
		return req.Approve(cmd.ActorID, cmd.Remark)
	})
}

// Pay moves an approved request to paid, charging the service fee computed
// by the configured fee policy.
func (s *TopupServiceImpl) Pay(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error) {
	return s.applyTransition(ctx, id, cmd, func(req *topup.Request) error {
		return req.Pay(cmd.ActorID, cmd.Remark, s.feePolicy(req.Amount))
	})
}

// ConfirmReceipt moves a paid request to the terminal done state.
func (s *TopupServiceImpl) ConfirmReceipt(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error) {
	return s.applyTransition(ctx, id, cmd, func(req *topup.Request) error {
		return req.ConfirmReceipt(cmd.ActorID, cmd.Remark)
	})
}

// Reject moves a request to the terminal rejected state.
func (s *TopupServiceImpl) Reject(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*topup.Request, error) {
	return s.applyTransition(ctx, id, cmd, func(req *topup.Request) error {
		return req.Reject(cmd.ActorID, cmd.Remark)
	})
}

// History reconstructs the request's transition history from the audit trail
func (s *TopupServiceImpl) History(ctx context.Context, id uuid.UUID) ([]*audit.Entry, error) {
	if _, err := s.topupRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.trailRepo.ListByEntity(ctx, audit.EntityTopupRequest, id)
}

// applyTransition re-reads the request, applies the mutation and commits
// the optimistic-locked write, the log row and the outbox row atomically.
func (s *TopupServiceImpl) applyTransition(ctx context.Context, id uuid.UUID, cmd TransitionCommand, mutate func(req *topup.Request) error) (*topup.Request, error) {
	req, err := s.topupRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := req.Status
	if err := mutate(req); err != nil {
		return nil, err
	}

	entry := audit.NewEntry(audit.EntityTopupRequest, req.ID, string(from), string(req.Status), cmd.ActorID, cmd.Remark, cmd.CorrelationID)

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.topupRepo.WithTx(tx).Update(ctx, req); err != nil {
			return err
		}
		return s.recordTransition(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Top-up request transitioned",
		"request_id", req.ID.String(),
		"from_status", string(from),
		"to_status", string(req.Status),
		"actor_id", cmd.ActorID,
		"correlation_id", cmd.CorrelationID)

	return req, nil
}

// recordTransition appends the log entry and enqueues its outbox message
// within the caller's transaction. The outbox message is built after the
// append so the payload carries the assigned log id.
func (s *TopupServiceImpl) recordTransition(ctx context.Context, tx pgx.Tx, entry *audit.Entry) error {
	if err := s.logRepo.WithTx(tx).Append(ctx, entry); err != nil {
		return err
	}
	msg, err := outbox.NewMessage(entry)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, msg)
}

func (s *TopupServiceImpl) checkReferences(ctx context.Context, cmd CreateTopupCommand) error {
	checks := []struct {
		kind  string
		id    string
		check func(context.Context, string) (bool, error)
	}{
		{"ad account", cmd.AdAccountID, s.refData.AdAccountExists},
		{"project", cmd.ProjectID, s.refData.ProjectExists},
		{"channel", cmd.ChannelID, s.refData.ChannelExists},
	}

	for _, c := range checks {
		exists, err := c.check(ctx, c.id)
		if err != nil {
			return fmt.Errorf("failed to check %s reference: %w", c.kind, err)
		}
		if !exists {
			return topup.ErrUnknownReference{Kind: c.kind, ID: c.id}
		}
	}
	return nil
}
