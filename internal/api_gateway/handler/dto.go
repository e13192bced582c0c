package handler

import (
	"time"

	"github.com/adspend-finance-core/internal/domain/reconciliation"
	"github.com/adspend-finance-core/internal/domain/topup"
)

// CreateTopupRequest represents a request to create a top-up request.
// Amounts travel as strings to avoid float rounding in transit.
type CreateTopupRequest struct {
	AdAccountID string `json:"ad_account_id" binding:"required"`
	ProjectID   string `json:"project_id" binding:"required"`
	ChannelID   string `json:"channel_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	RequestedBy string `json:"requested_by" binding:"required"`
	Remark      string `json:"remark"`
}

// TransitionRequest represents a workflow action on an existing entity
type TransitionRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Remark  string `json:"remark"`
}

// ResolutionRequest represents a discrepancy resolution action. Notes are
// mandatory for resolve and ignore.
type ResolutionRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Notes   string `json:"notes"`
}

// TopupResponse represents a top-up request in API responses
type TopupResponse struct {
	ID               string    `json:"id"`
	AdAccountID      string    `json:"ad_account_id"`
	ProjectID        string    `json:"project_id"`
	ChannelID        string    `json:"channel_id"`
	RequestedBy      string    `json:"requested_by"`
	Amount           string    `json:"amount"`
	ServiceFeeAmount *string   `json:"service_fee_amount,omitempty"`
	Status           string    `json:"status"`
	Remark           string    `json:"remark,omitempty"`
	CreatedBy        string    `json:"created_by"`
	UpdatedBy        string    `json:"updated_by"`
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toTopupResponse(req *topup.Request) *TopupResponse {
	resp := &TopupResponse{
		ID:          req.ID.String(),
		AdAccountID: req.AdAccountID,
		ProjectID:   req.ProjectID,
		ChannelID:   req.ChannelID,
		RequestedBy: req.RequestedBy,
		Amount:      req.Amount.String(),
		Status:      string(req.Status),
		Remark:      req.Remark,
		CreatedBy:   req.CreatedBy,
		UpdatedBy:   req.UpdatedBy,
		Version:     req.Version,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
	if req.ServiceFeeAmount != nil {
		fee := req.ServiceFeeAmount.String()
		resp.ServiceFeeAmount = &fee
	}
	return resp
}

func toTopupResponses(reqs []*topup.Request) []*TopupResponse {
	responses := make([]*TopupResponse, len(reqs))
	for i, req := range reqs {
		responses[i] = toTopupResponse(req)
	}
	return responses
}

// CreateBatchRequest represents a request to create a reconciliation batch
type CreateBatchRequest struct {
	Name        string    `json:"name" binding:"required"`
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
	Source      string    `json:"platform_spend_source" binding:"required"`
	AccountIDs  []string  `json:"account_ids" binding:"required"`
	CreatedBy   string    `json:"created_by" binding:"required"`
}

// PlatformSpendEntryRequest is one manual platform spend figure
type PlatformSpendEntryRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

// SubmitPlatformSpendRequest represents a manual platform spend submission
type SubmitPlatformSpendRequest struct {
	SubmittedBy string                      `json:"submitted_by" binding:"required"`
	Entries     []PlatformSpendEntryRequest `json:"entries" binding:"required,min=1"`
}

// BatchResponse represents a reconciliation batch in API responses
type BatchResponse struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	PeriodStart          time.Time  `json:"period_start"`
	PeriodEnd            time.Time  `json:"period_end"`
	Status               string     `json:"status"`
	Source               string     `json:"platform_spend_source"`
	AccountIDs           []string   `json:"account_ids"`
	TotalAccounts        int        `json:"total_accounts"`
	ProcessedAccounts    int        `json:"processed_accounts"`
	TotalSystemSpend     string     `json:"total_system_spend"`
	TotalPlatformSpend   string     `json:"total_platform_spend"`
	TotalDifference      string     `json:"total_difference"`
	DifferencePercentage string     `json:"difference_percentage"`
	FailureReason        string     `json:"failure_reason,omitempty"`
	CreatedBy            string     `json:"created_by"`
	Version              int        `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

func toBatchResponse(b *reconciliation.Batch) *BatchResponse {
	return &BatchResponse{
		ID:                   b.ID.String(),
		Name:                 b.Name,
		PeriodStart:          b.PeriodStart,
		PeriodEnd:            b.PeriodEnd,
		Status:               string(b.Status),
		Source:               string(b.Source),
		AccountIDs:           b.AccountIDs,
		TotalAccounts:        b.TotalAccounts,
		ProcessedAccounts:    b.ProcessedAccounts,
		TotalSystemSpend:     b.TotalSystemSpend.String(),
		TotalPlatformSpend:   b.TotalPlatformSpend.String(),
		TotalDifference:      b.TotalDifference.String(),
		DifferencePercentage: b.DifferencePercentage.String(),
		FailureReason:        b.FailureReason,
		CreatedBy:            b.CreatedBy,
		Version:              b.Version,
		CreatedAt:            b.CreatedAt,
		UpdatedAt:            b.UpdatedAt,
		CompletedAt:          b.CompletedAt,
	}
}

func toBatchResponses(batches []*reconciliation.Batch) []*BatchResponse {
	responses := make([]*BatchResponse, len(batches))
	for i, b := range batches {
		responses[i] = toBatchResponse(b)
	}
	return responses
}

// DiscrepancyResponse represents an account discrepancy in API responses
type DiscrepancyResponse struct {
	ID                   string     `json:"id"`
	BatchID              string     `json:"batch_id"`
	AccountID            string     `json:"account_id"`
	SystemSpend          string     `json:"system_spend"`
	PlatformSpend        string     `json:"platform_spend"`
	Difference           string     `json:"difference"`
	DifferencePercentage string     `json:"difference_percentage"`
	Type                 string     `json:"discrepancy_type"`
	Severity             string     `json:"severity"`
	ResolutionStatus     string     `json:"resolution_status"`
	Notes                string     `json:"notes,omitempty"`
	ResolvedBy           string     `json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes      string     `json:"resolution_notes,omitempty"`
	Version              int        `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func toDiscrepancyResponse(d *reconciliation.Discrepancy) *DiscrepancyResponse {
	return &DiscrepancyResponse{
		ID:                   d.ID.String(),
		BatchID:              d.BatchID.String(),
		AccountID:            d.AccountID,
		SystemSpend:          d.SystemSpend.String(),
		PlatformSpend:        d.PlatformSpend.String(),
		Difference:           d.Difference.String(),
		DifferencePercentage: d.DifferencePercentage.String(),
		Type:                 string(d.Type),
		Severity:             string(d.Severity),
		ResolutionStatus:     string(d.ResolutionStatus),
		Notes:                d.Notes,
		ResolvedBy:           d.ResolvedBy,
		ResolvedAt:           d.ResolvedAt,
		ResolutionNotes:      d.ResolutionNotes,
		Version:              d.Version,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func toDiscrepancyResponses(ds []*reconciliation.Discrepancy) []*DiscrepancyResponse {
	responses := make([]*DiscrepancyResponse, len(ds))
	for i, d := range ds {
		responses[i] = toDiscrepancyResponse(d)
	}
	return responses
}
