package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pinoerp/wms-backend/internal/picklist/service"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// PicklistHandler handles pick batch endpoints
type PicklistHandler struct {
	service *service.PicklistService
	logger  *logger.Logger
}

// NewPicklistHandler creates a new picklist handler
func NewPicklistHandler(svc *service.PicklistService, log *logger.Logger) *PicklistHandler {
	return &PicklistHandler{
		service: svc,
		logger:  log,
	}
}

// ConsolidateRequest is the payload for a consolidation preview
type ConsolidateRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"required,min=1"`
	Policy   string  `json:"policy,omitempty" validate:"omitempty,oneof=requested outstanding"`
}

// Consolidate aggregates orders into one walking list without creating a
// batch.
func (h *PicklistHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	var req ConsolidateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	policy := service.PolicyFullRequested
	if req.Policy == string(service.PolicyOutstanding) {
		policy = service.PolicyOutstanding
	}

	lines, err := h.service.Consolidate(r.Context(), req.OrderIDs, policy)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lines)
}

// CreateBatchRequest is the payload for creating a pick batch
type CreateBatchRequest struct {
	OrderIDs []int64 `json:"order_ids" validate:"required,min=1"`
}

// CreateBatch stamps pending orders onto a new pick batch
func (h *PicklistHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	picklist, orders, err := h.service.CreateBatch(r.Context(), req.OrderIDs)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, map[string]interface{}{
		"picklist": picklist,
		"orders":   orders,
	})
}

// List lists pick batches
func (h *PicklistHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	picklists, total, err := h.service.ListBatches(r.Context(), page, perPage)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, picklists, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get returns a pick batch with its orders
func (h *PicklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	picklist, orders, err := h.service.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"picklist": picklist,
		"orders":   orders,
	})
}

// Lines re-consolidates a batch, showing only what is still outstanding
func (h *PicklistHandler) Lines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.ConsolidateBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lines)
}

// Progress reports batch completion
func (h *PicklistHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.GetProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, progress)
}
