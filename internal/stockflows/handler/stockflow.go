package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	movementsrepo "github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/internal/stockflows/service"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// StockFlowHandler handles internal flow endpoints
type StockFlowHandler struct {
	service *service.StockFlowService
	logger  *logger.Logger
}

// NewStockFlowHandler creates a new stock flow handler
func NewStockFlowHandler(svc *service.StockFlowService, log *logger.Logger) *StockFlowHandler {
	return &StockFlowHandler{service: svc, logger: log}
}

// OpenRequest selects the internal flow to open a working order for
type OpenRequest struct {
	Channel string `json:"channel" validate:"required,oneof=TRANSFER INGRESS EGRESS"`
}

// Open handles POST /stock-flows
func (h *StockFlowHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	order, err := h.service.OpenWorkingOrder(r.Context(), domain.Channel(req.Channel))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

// ListWorking handles GET /stock-flows?channel=TRANSFER
func (h *StockFlowHandler) ListWorking(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListWorking(r.Context(), domain.Channel(r.URL.Query().Get("channel")))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, orders)
}

// AddLineRequest is one scanned or typed entry
type AddLineRequest struct {
	Code     string `json:"code" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,gt=0"`
}

// AddLine handles POST /stock-flows/{id}/lines
func (h *StockFlowHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	orderID, err := flowOrderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req AddLineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.service.AddByCode(r.Context(), orderID, req.Code, req.Quantity)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

// FinalizeRequest carries the operator's pool and counterparty choices
type FinalizeRequest struct {
	SourcePool string         `json:"source_pool" validate:"omitempty,oneof=SALES_FLOOR WAREHOUSE"`
	FloorSplit map[string]int `json:"floor_split,omitempty"`
	PartyName  *string        `json:"party_name,omitempty"`
	PartyCode  *string        `json:"party_code,omitempty"`
}

// Finalize handles POST /stock-flows/{id}/finalize
func (h *StockFlowHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	orderID, err := flowOrderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req FinalizeRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
		if err := httputil.Validate(&req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	order, err := h.service.Finalize(r.Context(), orderID, service.FinalizeOptions{
		SourcePool: movementsrepo.Pool(req.SourcePool),
		FloorSplit: req.FloorSplit,
		PartyName:  req.PartyName,
		PartyCode:  req.PartyCode,
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

func flowOrderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.BadRequest("invalid order id")
	}
	return id, nil
}
