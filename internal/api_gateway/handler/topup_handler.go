// Package handler implements the HTTP layer of the API gateway: request
// binding, workflow action dispatch and domain error translation.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adspend-finance-core/internal/api_gateway/middleware"
	"github.com/adspend-finance-core/internal/api_gateway/service"
	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/topup"
)

// TopupHandler handles top-up workflow HTTP requests
type TopupHandler struct {
	topupService service.TopupService
	logger       *slog.Logger
}

// NewTopupHandler creates a new top-up handler
func NewTopupHandler(logger *slog.Logger, topupService service.TopupService) *TopupHandler {
	return &TopupHandler{
		topupService: topupService,
		logger:       logger,
	}
}

// Create handles POST /api/v1/topups
func (h *TopupHandler) Create(c *gin.Context) {
	var req CreateTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request format: "+err.Error())
		return
	}

	amount, err := money.NewFromString(req.Amount)
	if err != nil {
		RespondBadRequest(c, "Invalid amount: "+req.Amount)
		return
	}

	cmd := service.CreateTopupCommand{
		AdAccountID:   req.AdAccountID,
		ProjectID:     req.ProjectID,
		ChannelID:     req.ChannelID,
		Amount:        amount,
		RequestedBy:   req.RequestedBy,
		Remark:        req.Remark,
		CorrelationID: middleware.GetCorrelationID(c),
	}

	created, err := h.topupService.Create(c.Request.Context(), cmd)
	if err != nil {
		h.handleTopupError(c, err)
		return
	}

	RespondCreated(c, toTopupResponse(created))
}

// Get handles GET /api/v1/topups/:id
func (h *TopupHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	req, err := h.topupService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleTopupError(c, err)
		return
	}

	RespondOK(c, toTopupResponse(req))
}

// List handles GET /api/v1/topups
func (h *TopupHandler) List(c *gin.Context) {
	filter := topup.ListFilter{
		AdAccountID: c.Query("ad_account_id"),
		ProjectID:   c.Query("project_id"),
		Status:      topup.Status(c.Query("status")),
		Limit:       parseIntQuery(c, "limit", 50),
		Offset:      parseIntQuery(c, "offset", 0),
	}

	reqs, err := h.topupService.List(c.Request.Context(), filter)
	if err != nil {
		h.handleTopupError(c, err)
		return
	}

	RespondOK(c, toTopupResponses(reqs))
}

// Approve handles POST /api/v1/topups/:id/approve
func (h *TopupHandler) Approve(c *gin.Context) {
	h.transition(c, h.topupService.Approve)
}

// Pay handles POST /api/v1/topups/:id/pay
func (h *TopupHandler) Pay(c *gin.Context) {
	h.transition(c, h.topupService.Pay)
}

// ConfirmReceipt handles POST /api/v1/topups/:id/confirm
func (h *TopupHandler) ConfirmReceipt(c *gin.Context) {
	h.transition(c, h.topupService.ConfirmReceipt)
}

// Reject handles POST /api/v1/topups/:id/reject
func (h *TopupHandler) Reject(c *gin.Context) {
	h.transition(c, h.topupService.Reject)
}

// History handles GET /api/v1/topups/:id/history
func (h *TopupHandler) History(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.topupService.History(c.Request.Context(), id)
	if err != nil {
		h.handleTopupError(c, err)
		return
	}

	RespondOK(c, entries)
}

func (h *TopupHandler) transition(c *gin.Context, action func(ctx context.Context, id uuid.UUID, cmd service.TransitionCommand) (*topup.Request, error)) {
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

	updated, err := action(c.Request.Context(), id, cmd)
	if err != nil {
		h.handleTopupError(c, err)
		return
	}

	RespondOK(c, toTopupResponse(updated))
}

// handleTopupError translates domain errors into HTTP responses
func (h *TopupHandler) handleTopupError(c *gin.Context, err error) {
	var notFound topup.ErrRequestNotFound
	var conflict topup.ErrConcurrentModification
	var illegal topup.ErrIllegalTransition
	var unknownRef topup.ErrUnknownReference

	switch {
	case errors.As(err, &notFound):
		RespondNotFound(c, notFound.Error())
	case errors.As(err, &conflict):
		RespondConflict(c, "CONCURRENT_MODIFICATION", conflict.Error())
	case errors.As(err, &illegal):
		RespondConflict(c, "ILLEGAL_TRANSITION", illegal.Error())
	case errors.As(err, &unknownRef):
		RespondUnprocessable(c, unknownRef.Error())
	case errors.Is(err, topup.ErrInvalidAmount),
		errors.Is(err, topup.ErrEmptyRequester),
		errors.Is(err, topup.ErrEmptyActor),
		errors.Is(err, topup.ErrRemarkRequired),
		errors.Is(err, topup.ErrNegativeFee):
		RespondUnprocessable(c, err.Error())
	default:
		h.logger.Error("Unhandled top-up workflow error",
			"error", err,
			"correlation_id", middleware.GetCorrelationID(c))
		RespondInternalError(c)
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondBadRequest(c, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
