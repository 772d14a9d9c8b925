package service

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pinoerp/wms-backend/internal/catalog/cache"
	"github.com/pinoerp/wms-backend/internal/catalog/legacy"
	"github.com/pinoerp/wms-backend/internal/catalog/repository"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/errors"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

// CatalogService owns product lookup, barcode learning and the legacy
// snapshot import.
type CatalogService struct {
	db          *database.DB
	productRepo *repository.ProductRepository
	aliasRepo   *repository.AliasRepository
	partyRepo   *repository.PartyRepository
	snapshots   *legacy.SnapshotReader
	cache       *cache.LookupCache
	logger      *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	db *database.DB,
	productRepo *repository.ProductRepository,
	aliasRepo *repository.AliasRepository,
	partyRepo *repository.PartyRepository,
	snapshots *legacy.SnapshotReader,
	lookupCache *cache.LookupCache,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		db:          db,
		productRepo: productRepo,
		aliasRepo:   aliasRepo,
		partyRepo:   partyRepo,
		snapshots:   snapshots,
		cache:       lookupCache,
		logger:      log,
	}
}

// ImportReport summarizes what a snapshot import changed
type ImportReport struct {
	Products  int           `json:"products"`
	New       int           `json:"new"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Customers int           `json:"customers"`
	Suppliers int           `json:"suppliers"`
	Took      time.Duration `json:"took_ns"`
}

// Resolve maps a scanned code to a product. Codes resolve in order:
// exact SKU, catalog barcode, learned alias. Hidden products resolve for
// scanning purposes, an article leaving the catalog must not break open
// orders.
func (s *CatalogService) Resolve(ctx context.Context, code string) (*repository.Product, error) {
	if sku, ok := s.cache.Get(ctx, code); ok {
		if p, err := s.productRepo.GetBySKU(ctx, sku); err == nil {
			return p, nil
		}
		s.cache.Invalidate(ctx, code)
	}

	p, err := s.resolveUncached(ctx, code)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, code, p.SKU)
	return p, nil
}

func (s *CatalogService) resolveUncached(ctx context.Context, code string) (*repository.Product, error) {
	if p, err := s.productRepo.GetBySKU(ctx, code); err == nil {
		return p, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if p, err := s.productRepo.GetByEAN(ctx, code); err == nil {
		return p, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	alias, err := s.aliasRepo.Get(ctx, code)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.UnknownBarcode(code)
		}
		return nil, err
	}

	p, err := s.productRepo.GetBySKU(ctx, alias.SKU)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.UnknownBarcode(code)
		}
		return nil, err
	}
	return p, nil
}

// LearnAlias records a scanned code against a SKU after verifying the SKU
// exists. Overwriting an alias invalidates the cached resolution.
func (s *CatalogService) LearnAlias(ctx context.Context, code, sku string) error {
	if code == "" || sku == "" {
		return errors.BadRequest("code and sku are required")
	}

	if _, err := s.productRepo.GetBySKU(ctx, sku); err != nil {
		return err
	}

	if err := s.aliasRepo.Learn(ctx, code, sku); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, code)
	s.logger.Info().Str("code", code).Str("sku", sku).Msg("barcode alias learned")
	return nil
}

// GetProduct returns a catalog entry
func (s *CatalogService) GetProduct(ctx context.Context, sku string) (*repository.Product, error) {
	return s.productRepo.GetBySKU(ctx, sku)
}

// EnsureProduct registers a sku seen on an inbound order but missing
// from the catalog. Quantities start at zero until the next snapshot
// import reconciles them. An existing entry is left untouched.
func (s *CatalogService) EnsureProduct(ctx context.Context, sku string, description *string) (*repository.Product, error) {
	p, err := s.productRepo.GetBySKU(ctx, sku)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	p = &repository.Product{SKU: sku, Description: description}
	if _, err := s.productRepo.Upsert(ctx, s.db, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("sku", sku).Msg("product auto-registered")
	return p, nil
}

// ListProducts lists catalog entries
func (s *CatalogService) ListProducts(ctx context.Context, search string, includeHidden bool, page, pageSize int) ([]*repository.Product, int64, error) {
	return s.productRepo.List(ctx, search, includeHidden, page, pageSize)
}

// SearchCustomers looks up customers by code or name fragment
func (s *CatalogService) SearchCustomers(ctx context.Context, search string, limit int) ([]*repository.Party, error) {
	return s.partyRepo.SearchCustomers(ctx, search, limit)
}

// SearchSuppliers looks up suppliers by code or name fragment
func (s *CatalogService) SearchSuppliers(ctx context.Context, search string, limit int) ([]*repository.Party, error) {
	return s.partyRepo.SearchSuppliers(ctx, search, limit)
}

// GetCustomer returns a customer by legacy account code
func (s *CatalogService) GetCustomer(ctx context.Context, code string) (*repository.Party, error) {
	return s.partyRepo.GetCustomerByCode(ctx, code)
}

// Ledger accounts used when a counterparty cannot be matched against the
// directory. Marketplace identities always book against ML regardless of
// what the directory holds.
const (
	fallbackCustomerAccount = "9999"
	fallbackSupplierAccount = "0000"
	marketplaceAccount      = "ML"
)

// ResolveCustomerCode maps a free-typed customer name or code to a
// ledger account. Exact name matches win over substring matches, an
// all-digit input passes through as a raw account code, and anything
// unmatched is truncated to fit the ledger's 20-char account field.
func (s *CatalogService) ResolveCustomerCode(ctx context.Context, nameOrCode string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(nameOrCode))
	if name == "" {
		return fallbackCustomerAccount, nil
	}
	switch name {
	case "ML", "MELI", "MERCADOLIBRE":
		return marketplaceAccount, nil
	}

	party, err := s.partyRepo.FindCustomerByName(ctx, name)
	if err == nil {
		return party.Code, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return "", err
	}
	return passthroughAccount(name), nil
}

// ResolveSupplierCode is the supplier-side counterpart of
// ResolveCustomerCode.
func (s *CatalogService) ResolveSupplierCode(ctx context.Context, nameOrCode string) (string, error) {
	name := strings.TrimSpace(nameOrCode)
	if name == "" {
		return fallbackSupplierAccount, nil
	}

	party, err := s.partyRepo.FindSupplierByName(ctx, name)
	if err == nil {
		return party.Code, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return "", err
	}
	return passthroughAccount(name), nil
}

// passthroughAccount books an unmatched counterparty. Pure numbers are
// assumed to already be account codes, anything else is truncated to the
// ledger's 20-char account field.
func passthroughAccount(name string) string {
	if name != "" && strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
		return name
	}
	if len(name) > 20 {
		return name[:20]
	}
	return name
}

// ImportSnapshot reads the legacy exports and reconciles the local
// catalog against them. Articles missing from the snapshot are hidden,
// not deleted. The whole import is one transaction so a torn read of the
// share never leaves a half-updated catalog.
func (s *CatalogService) ImportSnapshot(ctx context.Context) (*ImportReport, error) {
	start := time.Now()

	products, err := s.snapshots.ReadProducts(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.snapshots.ReadCustomers(ctx)
	if err != nil {
		return nil, err
	}
	suppliers, err := s.snapshots.ReadSuppliers(ctx)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{Products: len(products)}
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		skus := make([]string, 0, len(products))
		for i := range products {
			rec := &products[i]
			skus = append(skus, rec.SKU)

			p := &repository.Product{
				SKU:          rec.SKU,
				FloorQty:     rec.FloorQty,
				WarehouseQty: rec.WarehouseQty,
			}
			if rec.EAN != "" {
				p.EAN = &rec.EAN
			}
			if rec.Description != "" {
				p.Description = &rec.Description
			}

			result, err := s.productRepo.Upsert(ctx, tx, p)
			if err != nil {
				return err
			}
			switch result {
			case repository.UpsertInserted:
				report.New++
			case repository.UpsertUpdated:
				report.Updated++
			default:
				report.Unchanged++
			}
		}

		removed, err := s.productRepo.HideMissing(ctx, tx, skus)
		if err != nil {
			return err
		}
		report.Removed = int(removed)

		for _, rec := range customers {
			if err := s.partyRepo.UpsertCustomer(ctx, tx, &repository.Party{Code: rec.Code, Name: rec.Name}); err != nil {
				return err
			}
			report.Customers++
		}
		for _, rec := range suppliers {
			if err := s.partyRepo.UpsertSupplier(ctx, tx, &repository.Party{Code: rec.Code, Name: rec.Name}); err != nil {
				return err
			}
			report.Suppliers++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Took = time.Since(start)
	s.logger.Info().
		Int("products", report.Products).
		Int("new", report.New).
		Int("updated", report.Updated).
		Int("removed", report.Removed).
		Dur("took", report.Took).
		Msg("legacy snapshot imported")

	return report, nil
}
