package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/internal/orders/repository"
	"github.com/pinoerp/wms-backend/internal/orders/service"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// OrderHandler handles order endpoints
type OrderHandler struct {
	service *service.OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

// CreateOrderRequest is the payload for creating an order
type CreateOrderRequest struct {
	OrderNumber   string                   `json:"order_number" validate:"required"`
	Channel       string                   `json:"channel" validate:"required,oneof=MARKETPLACE ECOMMERCE MANUAL TRANSFER INGRESS EGRESS REPLENISHMENT CONSIGNMENT EXCHANGE"`
	FlowType      string                   `json:"flow_type,omitempty" validate:"omitempty,oneof=MARKETPLACE ECOMMERCE MANUAL"`
	CustomerName  *string                  `json:"customer_name,omitempty"`
	CustomerCode  *string                  `json:"customer_code,omitempty"`
	LogisticsType *string                  `json:"logistics_type,omitempty"`
	TrackingCode  *string                  `json:"tracking_code,omitempty"`
	InvoiceNumber *string                  `json:"invoice_number,omitempty"`
	Notes         *string                  `json:"notes,omitempty"`
	Items         []CreateOrderItemRequest `json:"items" validate:"dive"`
}

// CreateOrderItemRequest is one line of a new order
type CreateOrderItemRequest struct {
	SKU          string  `json:"sku" validate:"required"`
	Description  *string `json:"description,omitempty"`
	RequestedQty int     `json:"requested_qty" validate:"required,gt=0"`
}

// Create creates a new order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	order := &domain.Order{
		OrderNumber:   req.OrderNumber,
		Channel:       domain.Channel(req.Channel),
		CustomerName:  req.CustomerName,
		CustomerCode:  req.CustomerCode,
		LogisticsType: req.LogisticsType,
		TrackingCode:  req.TrackingCode,
		InvoiceNumber: req.InvoiceNumber,
		Notes:         req.Notes,
	}
	if req.FlowType != "" {
		ft := domain.FlowType(req.FlowType)
		order.FlowType = &ft
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, &domain.Item{
			SKU:          it.SKU,
			Description:  it.Description,
			RequestedQty: it.RequestedQty,
		})
	}

	created, err := h.service.CreateOrder(r.Context(), order)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, created)
}

// List lists orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	filter := repository.ListFilter{
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		PageSize: perPage,
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := domain.Status(v)
		filter.Status = &st
	}
	if v := r.URL.Query().Get("channel"); v != "" {
		ch := domain.Channel(v)
		filter.Channel = &ch
	}
	if v := r.URL.Query().Get("picklist_id"); v != "" {
		filter.PicklistID = &v
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets an order by id or business number
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	var order *domain.Order
	var err error
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		order, err = h.service.GetOrder(r.Context(), id)
	} else {
		order, err = h.service.GetOrderByNumber(r.Context(), ref)
	}
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// MoveStatusRequest is the payload for a lifecycle transition
type MoveStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// MoveStatus performs a lifecycle transition
func (h *OrderHandler) MoveStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req MoveStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	order, err := h.service.MoveStatus(r.Context(), id, domain.Status(req.Status))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// AttachDocsRequest carries admin paperwork references
type AttachDocsRequest struct {
	LabelRef      *string `json:"label_ref,omitempty"`
	InvoiceRef    *string `json:"invoice_ref,omitempty"`
	InvoiceNumber *string `json:"invoice_number,omitempty"`
}

// AttachDocs records paperwork on a manual order
func (h *OrderHandler) AttachDocs(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req AttachDocsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	order, err := h.service.AttachDocs(r.Context(), id, req.LabelRef, req.InvoiceRef, req.InvoiceNumber)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// CancelRequest is the payload for cancellation
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel cancels an order
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req CancelRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	order, err := h.service.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// Delete removes an order. ?force=true overrides the in-flight guard.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := h.service.DeleteOrder(r.Context(), id, force); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// AddItemRequest is the payload for adding a line
type AddItemRequest struct {
	SKU          string  `json:"sku" validate:"required"`
	Description  *string `json:"description,omitempty"`
	RequestedQty int     `json:"requested_qty" validate:"required,gt=0"`
}

// AddItem adds a line to an order
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req AddItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	item, err := h.service.AddItem(r.Context(), id, &domain.Item{
		SKU:          req.SKU,
		Description:  req.Description,
		RequestedQty: req.RequestedQty,
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, item)
}

// RemoveItem deletes a line from an order
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	sku := chi.URLParam(r, "sku")
	if err := h.service.RemoveItem(r.Context(), id, sku); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.BadRequest("invalid order id")
	}
	return id, nil
}
