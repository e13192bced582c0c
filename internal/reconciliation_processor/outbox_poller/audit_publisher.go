// Package outbox_poller mirrors pending transition log entries from the
// Postgres outbox into the MongoDB audit trail.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adspend-finance-core/internal/domain/audit"
	"github.com/adspend-finance-core/internal/domain/outbox"
)

// TrailPublisher publishes outbox messages to the audit trail
type TrailPublisher interface {
	PublishToTrail(ctx context.Context, message *outbox.Message) error
}

// TrailPublisherImpl implements TrailPublisher
type TrailPublisherImpl struct {
	outboxRepo outbox.Repository
	trailRepo  audit.TrailRepository
	logger     *slog.Logger
}

// NewTrailPublisher creates a new publisher
func NewTrailPublisher(
	outboxRepo outbox.Repository,
	trailRepo audit.TrailRepository,
	logger *slog.Logger,
) TrailPublisher {
	return &TrailPublisherImpl{
		outboxRepo: outboxRepo,
		trailRepo:  trailRepo,
		logger:     logger,
	}
}

// PublishToTrail mirrors one outbox message into the audit trail. The trail
// write is idempotent on the (entity, log id) pair, so a crash between the
// write and the status update only causes a harmless rewrite.
func (p *TrailPublisherImpl) PublishToTrail(ctx context.Context, message *outbox.Message) error {
	entry, err := message.Entry()
	if err != nil {
		p.logger.Error("Failed to unmarshal transition entry from outbox payload",
			"outbox_id", message.ID, "entity_id", message.EntityID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if entry.CorrelationID != "" {
		logger = p.logger.With("correlation_id", entry.CorrelationID)
	}

	if err := p.trailRepo.Create(ctx, entry); err != nil {
		logger.Error("Failed to write audit trail entry",
			"outbox_id", message.ID,
			"entity_type", string(entry.EntityType),
			"entity_id", entry.EntityID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to write audit trail entry for outbox %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "entity_id", message.EntityID, "error", err,
		)
		return fmt.Errorf("trail write for outbox %d OK, but failed to mark as PROCESSED: %w", message.ID, err)
	}

	logger.Debug("Outbox message mirrored to audit trail",
		"outbox_id", message.ID,
		"entity_type", string(entry.EntityType),
		"entity_id", entry.EntityID.String(),
	)
	return nil
}
