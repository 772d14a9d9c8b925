package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pinoerp/wms-backend/internal/catalog/service"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// CatalogHandler handles product catalog endpoints
type CatalogHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc *service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  log,
	}
}

// ListProducts lists catalog entries
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}
	includeHidden := r.URL.Query().Get("include_hidden") == "true"

	products, total, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("search"), includeHidden, page, perPage)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, products, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetProduct returns one catalog entry
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Resolve maps a scanned code to a product
func (h *CatalogHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// LearnAliasRequest is the payload for teaching a barcode
type LearnAliasRequest struct {
	Code string `json:"code" validate:"required"`
	SKU  string `json:"sku" validate:"required"`
}

// LearnAlias records a scanned code against a SKU
func (h *CatalogHandler) LearnAlias(w http.ResponseWriter, r *http.Request) {
	var req LearnAliasRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := h.service.LearnAlias(r.Context(), req.Code, req.SKU); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"code": req.Code, "sku": req.SKU})
}

// ImportSnapshot triggers a legacy snapshot import
func (h *CatalogHandler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ImportSnapshot(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// SearchCustomers looks up customers
func (h *CatalogHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	parties, err := h.service.SearchCustomers(r.Context(), r.URL.Query().Get("search"), limit)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, parties)
}

// SearchSuppliers looks up suppliers
func (h *CatalogHandler) SearchSuppliers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	parties, err := h.service.SearchSuppliers(r.Context(), r.URL.Query().Get("search"), limit)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, parties)
}
