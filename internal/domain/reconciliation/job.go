package reconciliation

import (
	"time"

	"github.com/google/uuid"
)

// Job defines the Kafka message handed to the reconciliation processor when
// a batch is started. It carries everything the processor needs so a job can
// be replayed without re-reading gateway state.
type Job struct {
	BatchID       uuid.UUID   `json:"batch_id"`
	BatchName     string      `json:"batch_name"`
	PeriodStart   time.Time   `json:"period_start"`
	PeriodEnd     time.Time   `json:"period_end"`
	Source        SpendSource `json:"platform_spend_source"`
	AccountIDs    []string    `json:"account_ids"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewJob builds the processing job for a started batch.
func NewJob(b *Batch, correlationID string) *Job {
	return &Job{
		BatchID:       b.ID,
		BatchName:     b.Name,
		PeriodStart:   b.PeriodStart,
		PeriodEnd:     b.PeriodEnd,
		Source:        b.Source,
		AccountIDs:    b.AccountIDs,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
}
