package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/adspend-finance-core/internal/config"
	"github.com/segmentio/kafka-go"
)

// JobProducer publishes reconciliation jobs for the processor to pick up.
type JobProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewJobProducer creates the gateway-side producer and ensures the job
// topic exists.
func NewJobProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*JobProducer, error) {
	if cfg.JobTopic == "" {
		return nil, fmt.Errorf("kafka job topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for job producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.JobTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure job topic %s exists: %w", cfg.JobTopic, err)
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.JobTopic,
		Balancer: &kafka.LeastBytes{},
		// Batch starts are operator actions, not a hot path; require all
		// acks and write synchronously so a lost job is an error the
		// gateway can surface.
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &JobProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.JobTopic,
	}, nil
}

func (p *JobProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal reconciliation job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish reconciliation job",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish reconciliation job to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published reconciliation job",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *JobProducer) Close() error {
	p.logger.Info("Closing reconciliation job producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
