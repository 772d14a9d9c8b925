package handler

import (
	"net/http"

	"github.com/pinoerp/wms-backend/internal/marketplace/service"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// MarketplaceHandler handles marketplace intake endpoints
type MarketplaceHandler struct {
	service *service.SyncService
	logger  *logger.Logger
}

// NewMarketplaceHandler creates a new marketplace handler
func NewMarketplaceHandler(svc *service.SyncService, log *logger.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{service: svc, logger: log}
}

// Sync handles POST /marketplace/sync
func (h *MarketplaceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Run(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, report)
}

// ConsignmentLineRequest is one consignment line
type ConsignmentLineRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// ImportConsignmentRequest registers a fulfillment stock shipment
type ImportConsignmentRequest struct {
	Number string                   `json:"number" validate:"required"`
	Lines  []ConsignmentLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ImportConsignment handles POST /marketplace/consignments
func (h *MarketplaceHandler) ImportConsignment(w http.ResponseWriter, r *http.Request) {
	var req ImportConsignmentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	lines := make([]service.ConsignmentLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.ConsignmentLine{SKU: l.SKU, Quantity: l.Quantity})
	}

	order, err := h.service.ImportConsignment(r.Context(), req.Number, lines)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.Created(w, order)
}
