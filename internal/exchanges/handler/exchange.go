package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pinoerp/wms-backend/internal/exchanges/repository"
	"github.com/pinoerp/wms-backend/internal/exchanges/service"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// ExchangeHandler handles exchange endpoints
type ExchangeHandler struct {
	service *service.ExchangeService
	logger  *logger.Logger
}

// NewExchangeHandler creates a new exchange handler
func NewExchangeHandler(svc *service.ExchangeService, log *logger.Logger) *ExchangeHandler {
	return &ExchangeHandler{service: svc, logger: log}
}

// RegisterLineRequest is one returned/replacement pair
type RegisterLineRequest struct {
	ReturnedSKU    string `json:"returned_sku" validate:"required"`
	ReturnedQty    int    `json:"returned_qty" validate:"required,gt=0"`
	ReplacementSKU string `json:"replacement_sku" validate:"required"`
	ReplacementQty int    `json:"replacement_qty" validate:"required,gt=0"`
}

// RegisterRequest opens an exchange against an original order
type RegisterRequest struct {
	OriginalRef string                `json:"original_ref" validate:"required"`
	Modality    string                `json:"modality" validate:"required,oneof=IMMEDIATE DEFERRED"`
	Lines       []RegisterLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Register handles POST /exchanges
func (h *ExchangeHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	lines := make([]service.RegisterLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.RegisterLine{
			ReturnedSKU:    l.ReturnedSKU,
			ReturnedQty:    l.ReturnedQty,
			ReplacementSKU: l.ReplacementSKU,
			ReplacementQty: l.ReplacementQty,
		})
	}

	exchange, err := h.service.Register(r.Context(), req.OriginalRef, lines, repository.Modality(req.Modality))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.Created(w, exchange)
}

// ReceiveReturnRequest records the assessed condition of the return parcel
type ReceiveReturnRequest struct {
	Condition string `json:"condition" validate:"required,oneof=OK DAMAGED WRONG_ITEM"`
}

// ReceiveReturn handles POST /exchanges/{id}/receive
func (h *ExchangeHandler) ReceiveReturn(w http.ResponseWriter, r *http.Request) {
	var req ReceiveReturnRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	exchange, err := h.service.ReceiveReturn(r.Context(), chi.URLParam(r, "id"), req.Condition)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, exchange)
}

// Get handles GET /exchanges/{id}
func (h *ExchangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	exchange, err := h.service.GetExchange(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, exchange)
}

// List handles GET /exchanges
func (h *ExchangeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	exchanges, total, err := h.service.ListExchanges(r.Context(), r.URL.Query().Get("intake_status"), page, pageSize)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	httputil.JSONWithMeta(w, http.StatusOK, exchanges, &httputil.Meta{
		Page:       page,
		PerPage:    pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}
