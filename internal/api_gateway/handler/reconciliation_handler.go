package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adspend-finance-core/internal/api_gateway/middleware"
	"github.com/adspend-finance-core/internal/api_gateway/service"
	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
)

// ReconciliationHandler handles reconciliation batch and discrepancy HTTP
// requests
type ReconciliationHandler struct {
	reconService service.ReconciliationService
	logger       *slog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(logger *slog.Logger, reconService service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconService: reconService,
		logger:       logger,
	}
}

// CreateBatch handles POST /api/v1/reconciliation/batches
func (h *ReconciliationHandler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	cmd := service.CreateBatchCommand{
		Name:          req.Name,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		Source:        reconciliation.SpendSource(req.Source),
		AccountIDs:    req.AccountIDs,
		CreatedBy:     req.CreatedBy,
		CorrelationID: middleware.GetCorrelationID(c),
	}

	batch, err := h.reconService.CreateBatch(c.Request.Context(), cmd)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondCreated(c, toBatchResponse(batch))
}

// GetBatch handles GET /api/v1/reconciliation/batches/:id
func (h *ReconciliationHandler) GetBatch(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	batch, err := h.reconService.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondOK(c, toBatchResponse(batch))
}

// ListBatches handles GET /api/v1/reconciliation/batches
func (h *ReconciliationHandler) ListBatches(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	batches, err := h.reconService.ListBatches(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondOK(c, toBatchResponses(batches))
}

// StartBatch handles POST /api/v1/reconciliation/batches/:id/start
func (h *ReconciliationHandler) StartBatch(c *gin.Context) {
	h.batchTransition(c, h.reconService.StartBatch, RespondAccepted)
}

// CancelBatch handles POST /api/v1/reconciliation/batches/:id/cancel
func (h *ReconciliationHandler) CancelBatch(c *gin.Context) {
	h.batchTransition(c, h.reconService.CancelBatch, RespondOK)
}

// BatchHistory handles GET /api/v1/reconciliation/batches/:id/history
func (h *ReconciliationHandler) BatchHistory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.reconService.BatchHistory(c.Request.Context(), id)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondOK(c, entries)
}

// SubmitPlatformSpend handles POST /api/v1/reconciliation/batches/:id/platform-spend
func (h *ReconciliationHandler) SubmitPlatformSpend(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req SubmitPlatformSpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	entries := make([]service.PlatformSpendEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		amount, err := money.NewFromString(e.Amount)
		if err != nil {
			RespondBadRequest(c, "Invalid amount for account "+e.AccountID+": "+e.Amount)
			return
		}
		entries = append(entries, service.PlatformSpendEntry{
			AccountID: e.AccountID,
			Amount:    amount,
		})
	}

	if err := h.reconService.SubmitPlatformSpend(c.Request.Context(), id, entries, req.SubmittedBy); err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondOK(c, gin.H{"batch_id": id.String(), "entries": len(entries)})
}

// ListDiscrepancies handles GET /api/v1/reconciliation/batches/:id/discrepancies
func (h *ReconciliationHandler) ListDiscrepancies(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	filter := reconciliation.DiscrepancyFilter{
		Type:             reconciliation.DiscrepancyType(c.Query("type")),
		Severity:         reconciliation.Severity(c.Query("severity")),
		ResolutionStatus: reconciliation.ResolutionStatus(c.Query("resolution_status")),
	}

	ds, err := h.reconService.ListDiscrepancies(c.Request.Context(), id, filter)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondOK(c, toDiscrepancyResponses(ds))
}

// GetDiscrepancy handles GET /api/v1/reconciliation/discrepancies/:id
func (h *ReconciliationHandler) GetDiscrepancy(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	d, err := h.reconService.GetDiscrepancy(c.Request.Context(), id)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondOK(c, toDiscrepancyResponse(d))
}

// InvestigateDiscrepancy handles POST /api/v1/reconciliation/discrepancies/:id/investigate
func (h *ReconciliationHandler) InvestigateDiscrepancy(c *gin.Context) {
	h.resolutionTransition(c, h.reconService.BeginInvestigation)
}

// ResolveDiscrepancy handles POST /api/v1/reconciliation/discrepancies/:id/resolve
func (h *ReconciliationHandler) ResolveDiscrepancy(c *gin.Context) {
	h.resolutionTransition(c, h.reconService.ResolveDiscrepancy)
}

// IgnoreDiscrepancy handles POST /api/v1/reconciliation/discrepancies/:id/ignore
func (h *ReconciliationHandler) IgnoreDiscrepancy(c *gin.Context) {
	h.resolutionTransition(c, h.reconService.IgnoreDiscrepancy)
}

func (h *ReconciliationHandler) batchTransition(
	c *gin.Context,
	action func(ctx context.Context, id uuid.UUID, cmd service.TransitionCommand) (*reconciliation.Batch, error),
	respond func(c *gin.Context, data interface{}),
) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	cmd := service.TransitionCommand{
		ActorID:       req.ActorID,
		Remark:        req.Remark,
		CorrelationID: middleware.GetCorrelationID(c),
	}

	batch, err := action(c.Request.Context(), id, cmd)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	respond(c, toBatchResponse(batch))
}

func (h *ReconciliationHandler) resolutionTransition(
	c *gin.Context,
	action func(ctx context.Context, id uuid.UUID, cmd service.TransitionCommand) (*reconciliation.Discrepancy, error),
) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req ResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	cmd := service.TransitionCommand{
		ActorID:       req.ActorID,
		Remark:        req.Notes,
		CorrelationID: middleware.GetCorrelationID(c),
	}

	d, err := action(c.Request.Context(), id, cmd)
	if err != nil {
		h.handleReconciliationError(c, err)
		return
	}

	RespondOK(c, toDiscrepancyResponse(d))
}

// handleReconciliationError translates domain errors into HTTP responses
func (h *ReconciliationHandler) handleReconciliationError(c *gin.Context, err error) {
	var batchNotFound reconciliation.ErrBatchNotFound
	var discNotFound reconciliation.ErrDiscrepancyNotFound
	var conflict reconciliation.ErrConcurrentModification
	var illegalBatch reconciliation.ErrIllegalBatchTransition
	var illegalResolution reconciliation.ErrIllegalResolutionTransition

	switch {
	case errors.As(err, &batchNotFound):
		RespondNotFound(c, batchNotFound.Error())
	case errors.As(err, &discNotFound):
		RespondNotFound(c, discNotFound.Error())
	case errors.As(err, &conflict):
		RespondConflict(c, "CONCURRENT_MODIFICATION", conflict.Error())
	case errors.As(err, &illegalBatch):
		RespondConflict(c, "ILLEGAL_TRANSITION", illegalBatch.Error())
	case errors.As(err, &illegalResolution):
		RespondConflict(c, "ILLEGAL_TRANSITION", illegalResolution.Error())
	case errors.Is(err, service.ErrPlatformSpendLocked):
		RespondConflict(c, "PLATFORM_SPEND_LOCKED", err.Error())
	case errors.Is(err, reconciliation.ErrInvalidPeriod),
		errors.Is(err, reconciliation.ErrEmptyAccountList),
		errors.Is(err, reconciliation.ErrEmptyBatchName),
		errors.Is(err, reconciliation.ErrInvalidSpendSource),
		errors.Is(err, reconciliation.ErrEmptyCreator),
		errors.Is(err, reconciliation.ErrEmptyResolutionNotes),
		errors.Is(err, service.ErrEmptySpendAccountID),
		errors.Is(err, service.ErrNegativePlatformSpend):
		RespondUnprocessable(c, err.Error())
	default:
		h.logger.Error("Unhandled reconciliation error",
			"error", err,
			"correlation_id", middleware.GetCorrelationID(c))
		RespondInternalError(c)
	}
}
