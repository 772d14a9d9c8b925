package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pinoerp/wms-backend/internal/replenishment/service"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// ReplenishmentHandler handles replenishment endpoints
type ReplenishmentHandler struct {
	service *service.ReplenishmentService
	logger  *logger.Logger
}

// NewReplenishmentHandler creates a new replenishment handler
func NewReplenishmentHandler(svc *service.ReplenishmentService, log *logger.Logger) *ReplenishmentHandler {
	return &ReplenishmentHandler{service: svc, logger: log}
}

// RuleRequest sets the floor minimum and refill quantity for a sku
type RuleRequest struct {
	SKU         string `json:"sku" validate:"required"`
	MinFloorQty int    `json:"min_floor_qty" validate:"gte=0"`
	RefillQty   int    `json:"refill_qty" validate:"required,gt=0"`
}

// SetRule handles PUT /replenishment/rules
func (h *ReplenishmentHandler) SetRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	rule, err := h.service.SetRule(r.Context(), req.SKU, req.MinFloorQty, req.RefillQty)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rule)
}

// ListRules handles GET /replenishment/rules
func (h *ReplenishmentHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rules)
}

// GetRule handles GET /replenishment/rules/{sku}
func (h *ReplenishmentHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.GetRule(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /replenishment/rules/{sku}
func (h *ReplenishmentHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRule(r.Context(), chi.URLParam(r, "sku")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// Suggestions handles GET /replenishment/suggestions
func (h *ReplenishmentHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.Suggestions(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, suggestions)
}

// GenerateOrderRequest lists the accepted suggestion skus
type GenerateOrderRequest struct {
	SKUs []string `json:"skus" validate:"required,min=1,dive,required"`
}

// GenerateOrder handles POST /replenishment/orders
func (h *ReplenishmentHandler) GenerateOrder(w http.ResponseWriter, r *http.Request) {
	var req GenerateOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	order, err := h.service.GenerateOrder(r.Context(), req.SKUs)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.Created(w, order)
}
