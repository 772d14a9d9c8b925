package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pinoerp/wms-backend/internal/orders/domain"
	"github.com/pinoerp/wms-backend/internal/picking/service"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// PickingHandler handles packing bench endpoints
type PickingHandler struct {
	service *service.PickingService
	logger  *logger.Logger
}

// NewPickingHandler creates a new picking handler
func NewPickingHandler(svc *service.PickingService, log *logger.Logger) *PickingHandler {
	return &PickingHandler{
		service: svc,
		logger:  log,
	}
}

// ScanRequest is the payload for booking scanned units
type ScanRequest struct {
	Code     string `json:"code" validate:"required"`
	Quantity int    `json:"quantity,omitempty" validate:"omitempty,gt=0"`
}

// Scan books scanned units against an order line
func (h *PickingHandler) Scan(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req ScanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	result, err := h.service.Scan(r.Context(), id, req.Code, req.Quantity)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// LearnAliasRequest teaches an unknown barcode against an order line
type LearnAliasRequest struct {
	Code     string `json:"code" validate:"required"`
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity,omitempty" validate:"omitempty,gt=0"`
}

// LearnAlias records a barcode alias for one of the order's lines and
// books the scan in the same call
func (h *PickingHandler) LearnAlias(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req LearnAliasRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	result, err := h.service.LearnAlias(r.Context(), id, req.Code, req.SKU, req.Quantity)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// ResetLine zeroes a line's picked quantity
func (h *PickingHandler) ResetLine(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := h.service.ResetLine(r.Context(), id, chi.URLParam(r, "sku")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// ParcelRequest is one package of a packed order
type ParcelRequest struct {
	WeightKg float64 `json:"weight_kg" validate:"required,gt=0"`
	LengthCm *int    `json:"length_cm,omitempty" validate:"omitempty,gt=0"`
	WidthCm  *int    `json:"width_cm,omitempty" validate:"omitempty,gt=0"`
	HeightCm *int    `json:"height_cm,omitempty" validate:"omitempty,gt=0"`
}

// SetParcelsRequest replaces an order's parcel set
type SetParcelsRequest struct {
	Parcels []ParcelRequest `json:"parcels" validate:"required,min=1,dive"`
}

// SetParcels records the physical packages for an order
func (h *PickingHandler) SetParcels(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req SetParcelsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	parcels := make([]*domain.Parcel, len(req.Parcels))
	for i, p := range req.Parcels {
		parcels[i] = &domain.Parcel{
			WeightKg: p.WeightKg,
			LengthCm: p.LengthCm,
			WidthCm:  p.WidthCm,
			HeightCm: p.HeightCm,
		}
	}

	order, err := h.service.SetParcels(r.Context(), id, parcels)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// ConfirmPacked closes the picking phase for an order
func (h *PickingHandler) ConfirmPacked(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	order, err := h.service.ConfirmPacked(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// DispatchRequest tunes movement emission on dispatch
type DispatchRequest struct {
	FloorSplit map[string]int `json:"floor_split,omitempty"`
}

// ConfirmDispatch hands a ready order to the carrier
func (h *PickingHandler) ConfirmDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req DispatchRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	order, err := h.service.ConfirmDispatch(r.Context(), id, service.DispatchOptions{
		FloorSplit: req.FloorSplit,
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.BadRequest("invalid order id")
	}
	return id, nil
}
