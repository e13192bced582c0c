package spendsource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/domain/spend"
)

// ManualSource serves figures an operator submitted through the gateway
// before starting the batch.
type ManualSource struct {
	reportRepo spend.PlatformReportRepository
	logger     *slog.Logger
}

// NewManualSource creates a resolver over operator-submitted figures
func NewManualSource(logger *slog.Logger, reportRepo spend.PlatformReportRepository) *ManualSource {
	return &ManualSource{
		reportRepo: reportRepo,
		logger:     logger,
	}
}

// Resolve loads all submitted figures for the batch
func (s *ManualSource) Resolve(ctx context.Context, job *reconciliation.Job) (map[string]money.Amount, error) {
	reports, err := s.reportRepo.MapForBatch(ctx, job.BatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submitted platform spend: %w", err)
	}

	s.logger.Info("Resolved platform spend from manual submissions",
		"batch_id", job.BatchID.String(),
		"accounts_with_figures", len(reports))

	return reports, nil
}
