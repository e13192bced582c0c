package spendsource

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
)

// accountSpendResponse is the platform reporting API payload for one account
type accountSpendResponse struct {
	AccountID string `json:"account_id"`
	Spend     string `json:"spend"`
}

// APISource fetches spend figures from the ad platform's reporting API, one
// request per account. A failed or empty lookup leaves the account without
// a figure rather than failing the batch.
type APISource struct {
	client *resty.Client
	logger *slog.Logger
}

// NewAPISource creates a resolver backed by the platform reporting API
func NewAPISource(logger *slog.Logger, baseURL string, timeout time.Duration) *APISource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &APISource{
		client: client,
		logger: logger,
	}
}

// Resolve fetches the reported spend for each account in the job's period
func (s *APISource) Resolve(ctx context.Context, job *reconciliation.Job) (map[string]money.Amount, error) {
	figures := make(map[string]money.Amount, len(job.AccountIDs))

	for _, accountID := range job.AccountIDs {
		var result accountSpendResponse

		resp, err := s.client.R().
			SetContext(ctx).
			SetPathParam("accountID", accountID).
			SetQueryParams(map[string]string{
				"period_start": job.PeriodStart.Format(time.RFC3339),
				"period_end":   job.PeriodEnd.Format(time.RFC3339),
			}).
			SetResult(&result).
			Get("/v1/accounts/{accountID}/spend")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Platform spend API request failed",
				"batch_id", job.BatchID.String(),
				"account_id", accountID,
				"error", err)
			continue
		}

		if resp.StatusCode() != http.StatusOK {
			s.logger.Warn("Platform spend API returned non-OK status",
				"batch_id", job.BatchID.String(),
				"account_id", accountID,
				"status", resp.StatusCode())
			continue
		}

		amount, err := money.NewFromString(result.Spend)
		if err != nil {
			s.logger.Warn("Platform spend API returned unparsable amount",
				"batch_id", job.BatchID.String(),
				"account_id", accountID,
				"spend", result.Spend)
			continue
		}

		figures[accountID] = amount
	}

	s.logger.Info("Resolved platform spend from reporting API",
		"batch_id", job.BatchID.String(),
		"accounts_with_figures", len(figures),
		"accounts_requested", len(job.AccountIDs))

	return figures, nil
}
