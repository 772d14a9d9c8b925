package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/internal/movements/service"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// MovementHandler handles movement ledger endpoints
type MovementHandler struct {
	service *service.LedgerService
	logger  *logger.Logger
}

// NewMovementHandler creates a new movement handler
func NewMovementHandler(svc *service.LedgerService, log *logger.Logger) *MovementHandler {
	return &MovementHandler{
		service: svc,
		logger:  log,
	}
}

// List lists ledger entries
func (h *MovementHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 500 {
		perPage = 100
	}

	filter := repository.ListFilter{
		SKU:         r.URL.Query().Get("sku"),
		OrderNumber: r.URL.Query().Get("order_number"),
		Page:        page,
		PageSize:    perPage,
	}
	if v := r.URL.Query().Get("exported"); v != "" {
		exported := v == "true"
		filter.Exported = &exported
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}

	movements, total, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// MarkExportedRequest is the payload for confirming an export
type MarkExportedRequest struct {
	MovementIDs []int64 `json:"movement_ids" validate:"required,min=1"`
}

// MarkExported flags movements as written to the external ledger
func (h *MovementHandler) MarkExported(w http.ResponseWriter, r *http.Request) {
	var req MarkExportedRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	marked, err := h.service.MarkExported(r.Context(), req.MovementIDs)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"marked": marked})
}

// ReopenRequest is the payload for returning movements to the export queue
type ReopenRequest struct {
	MovementIDs []int64 `json:"movement_ids" validate:"required,min=1"`
	Reason      string  `json:"reason" validate:"required"`
}

// Reopen returns exported movements to the unexported set
func (h *MovementHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	var req ReopenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	reopened, err := h.service.Reopen(r.Context(), req.MovementIDs, req.Reason)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"reopened": reopened})
}

// QueueDepth reports the unexported backlog
func (h *MovementHandler) QueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := h.service.QueueDepth(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"unexported": depth})
}
