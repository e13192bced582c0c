// Package consumer adapts Kafka messages into reconciliation job
// processing calls.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/platform/messaging/producers"
	"github.com/adspend-finance-core/internal/reconciliation_processor/service"
)

// JobEventHandler handles incoming reconciliation job messages from Kafka
type JobEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewJobEventHandler creates a new handler
func NewJobEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *JobEventHandler {
	return &JobEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages
func (h *JobEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var job reconciliation.Job
	if err := json.Unmarshal(value, &job); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal reconciliation job from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if job.CorrelationID != "" {
		logger = h.logger.With("correlation_id", job.CorrelationID)
	}

	logger.Info("Received reconciliation job",
		"batch_id", job.BatchID.String(),
		"batch_name", job.BatchName,
		"source", string(job.Source),
		"total_accounts", len(job.AccountIDs),
	)

	if err := h.processingService.ProcessJob(ctx, &job); err != nil {
		logger.Error("Failed to process reconciliation job",
			"batch_id", job.BatchID.String(),
			"error", err,
		)
		return fmt.Errorf("processing batch %s failed: %w", job.BatchID.String(), err)
	}

	logger.Info("Reconciliation job handled", "batch_id", job.BatchID.String())
	return nil // Success, commit offset
}
