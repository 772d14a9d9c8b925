package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pinoerp/wms-backend/internal/catalog/cache"
	cataloghandler "github.com/pinoerp/wms-backend/internal/catalog/handler"
	"github.com/pinoerp/wms-backend/internal/catalog/legacy"
	catalogrepo "github.com/pinoerp/wms-backend/internal/catalog/repository"
	catalogservice "github.com/pinoerp/wms-backend/internal/catalog/service"
	exchangeevents "github.com/pinoerp/wms-backend/internal/exchanges/events"
	exchangehandler "github.com/pinoerp/wms-backend/internal/exchanges/handler"
	exchangerepo "github.com/pinoerp/wms-backend/internal/exchanges/repository"
	exchangeservice "github.com/pinoerp/wms-backend/internal/exchanges/service"
	marketclient "github.com/pinoerp/wms-backend/internal/marketplace/client"
	marketevents "github.com/pinoerp/wms-backend/internal/marketplace/events"
	markethandler "github.com/pinoerp/wms-backend/internal/marketplace/handler"
	marketservice "github.com/pinoerp/wms-backend/internal/marketplace/service"
	movementevents "github.com/pinoerp/wms-backend/internal/movements/events"
	movementhandler "github.com/pinoerp/wms-backend/internal/movements/handler"
	movementrepo "github.com/pinoerp/wms-backend/internal/movements/repository"
	movementservice "github.com/pinoerp/wms-backend/internal/movements/service"
	orderevents "github.com/pinoerp/wms-backend/internal/orders/events"
	orderhandler "github.com/pinoerp/wms-backend/internal/orders/handler"
	orderrepo "github.com/pinoerp/wms-backend/internal/orders/repository"
	orderservice "github.com/pinoerp/wms-backend/internal/orders/service"
	pickinghandler "github.com/pinoerp/wms-backend/internal/picking/handler"
	pickingservice "github.com/pinoerp/wms-backend/internal/picking/service"
	picklistevents "github.com/pinoerp/wms-backend/internal/picklist/events"
	picklisthandler "github.com/pinoerp/wms-backend/internal/picklist/handler"
	picklistrepo "github.com/pinoerp/wms-backend/internal/picklist/repository"
	picklistservice "github.com/pinoerp/wms-backend/internal/picklist/service"
	replenishmenthandler "github.com/pinoerp/wms-backend/internal/replenishment/handler"
	replenishmentrepo "github.com/pinoerp/wms-backend/internal/replenishment/repository"
	replenishmentservice "github.com/pinoerp/wms-backend/internal/replenishment/service"
	stockflowhandler "github.com/pinoerp/wms-backend/internal/stockflows/handler"
	stockflowservice "github.com/pinoerp/wms-backend/internal/stockflows/service"
	"github.com/pinoerp/wms-backend/pkg/config"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/httputil"
	"github.com/pinoerp/wms-backend/pkg/i18n"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("wms-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("wms-server", cfg.Server.Environment)
	log.Info().Msg("starting WMS Server")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publishers
	orderPublisher, err := orderevents.NewOrderEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create order event publisher")
	}
	movementPublisher, err := movementevents.NewMovementEventPublisher(rmq, "wms-server", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create movement event publisher")
	}
	picklistPublisher, err := picklistevents.NewPicklistEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create picklist event publisher")
	}
	exchangePublisher, err := exchangeevents.NewExchangeEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create exchange event publisher")
	}
	marketPublisher, err := marketevents.NewMarketplaceEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create marketplace event publisher")
	}

	// Initialize repositories
	orderRepository := orderrepo.NewOrderRepository(db)
	movementRepository := movementrepo.NewMovementRepository(db)
	picklistRepository := picklistrepo.NewPicklistRepository(db)
	exchangeRepository := exchangerepo.NewExchangeRepository(db)
	productRepository := catalogrepo.NewProductRepository(db)
	aliasRepository := catalogrepo.NewAliasRepository(db)
	partyRepository := catalogrepo.NewPartyRepository(db)
	ruleRepository := replenishmentrepo.NewRuleRepository(db)

	// Initialize services
	lookupCache := cache.New(cfg.Redis, cfg.Catalog.CacheTTL, log)
	defer lookupCache.Close()

	snapshots := legacy.NewSnapshotReader(cfg.Legacy, log)
	catalogSvc := catalogservice.NewCatalogService(db, productRepository, aliasRepository, partyRepository, snapshots, lookupCache, log)
	orderSvc := orderservice.NewOrderService(db, orderRepository, orderPublisher, log)
	ledgerSvc := movementservice.NewLedgerService(db, movementRepository, orderRepository, movementPublisher, log)
	picklistSvc := picklistservice.NewPicklistService(db, picklistRepository, orderRepository, picklistPublisher, log)
	pickingSvc := pickingservice.NewPickingService(db, orderRepository, catalogSvc, ledgerSvc, exchangeRepository, orderPublisher, log)
	exchangeSvc := exchangeservice.NewExchangeService(db, exchangeRepository, orderRepository, movementRepository, exchangePublisher, orderPublisher, log)
	stockflowSvc := stockflowservice.NewStockFlowService(db, orderRepository, catalogSvc, ledgerSvc, orderPublisher, log)
	replenishmentSvc := replenishmentservice.NewReplenishmentService(db, ruleRepository, orderRepository, catalogSvc, orderPublisher, log)
	syncSvc := marketservice.NewSyncService(db, cfg.Marketplace, marketclient.NewHTTPClient(cfg.Marketplace), orderRepository, catalogSvc, marketPublisher, orderPublisher, log)

	// Initialize handlers
	orderHandler := orderhandler.NewOrderHandler(orderSvc, log)
	movementHandler := movementhandler.NewMovementHandler(ledgerSvc, log)
	picklistHandler := picklisthandler.NewPicklistHandler(picklistSvc, log)
	pickingHandler := pickinghandler.NewPickingHandler(pickingSvc, log)
	exchangeHandler := exchangehandler.NewExchangeHandler(exchangeSvc, log)
	catalogHandler := cataloghandler.NewCatalogHandler(catalogSvc, log)
	stockflowHandler := stockflowhandler.NewStockFlowHandler(stockflowSvc, log)
	replenishmentHandler := replenishmenthandler.NewReplenishmentHandler(replenishmentSvc, log)
	marketplaceHandler := markethandler.NewMarketplaceHandler(syncSvc, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Operator", "X-Station", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)
	r.Use(httputil.OperatorMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "wms-server",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Order lifecycle
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/", orderHandler.Create)
			r.Get("/{id}", orderHandler.Get)
			r.Post("/{id}/status", orderHandler.MoveStatus)
			r.Post("/{id}/documents", orderHandler.AttachDocs)
			r.Post("/{id}/cancel", orderHandler.Cancel)
			r.Delete("/{id}", orderHandler.Delete)
			r.Post("/{id}/items", orderHandler.AddItem)
			r.Delete("/{id}/items/{sku}", orderHandler.RemoveItem)

			// Picking on an order
			r.Post("/{id}/scan", pickingHandler.Scan)
			r.Post("/{id}/aliases", pickingHandler.LearnAlias)
			r.Post("/{id}/items/{sku}/reset", pickingHandler.ResetLine)
			r.Put("/{id}/parcels", pickingHandler.SetParcels)
			r.Post("/{id}/packed", pickingHandler.ConfirmPacked)
			r.Post("/{id}/dispatch", pickingHandler.ConfirmDispatch)
		})

		// Picklists
		r.Route("/picklists", func(r chi.Router) {
			r.Get("/", picklistHandler.List)
			r.Post("/", picklistHandler.CreateBatch)
			r.Post("/consolidate", picklistHandler.Consolidate)
			r.Get("/{id}", picklistHandler.Get)
			r.Get("/{id}/lines", picklistHandler.Lines)
			r.Get("/{id}/progress", picklistHandler.Progress)
		})

		// Movement ledger
		r.Route("/movements", func(r chi.Router) {
			r.Get("/", movementHandler.List)
			r.Get("/queue-depth", movementHandler.QueueDepth)
			r.Post("/mark-exported", movementHandler.MarkExported)
			r.Post("/reopen", movementHandler.Reopen)
		})

		// Exchanges
		r.Route("/exchanges", func(r chi.Router) {
			r.Get("/", exchangeHandler.List)
			r.Post("/", exchangeHandler.Register)
			r.Get("/{id}", exchangeHandler.Get)
			r.Post("/{id}/receive", exchangeHandler.ReceiveReturn)
		})

		// Internal stock flows
		r.Route("/stock-flows", func(r chi.Router) {
			r.Get("/", stockflowHandler.ListWorking)
			r.Post("/", stockflowHandler.Open)
			r.Post("/{id}/lines", stockflowHandler.AddLine)
			r.Post("/{id}/finalize", stockflowHandler.Finalize)
		})

		// Replenishment
		r.Route("/replenishment", func(r chi.Router) {
			r.Get("/rules", replenishmentHandler.ListRules)
			r.Put("/rules", replenishmentHandler.SetRule)
			r.Get("/rules/{sku}", replenishmentHandler.GetRule)
			r.Delete("/rules/{sku}", replenishmentHandler.DeleteRule)
			r.Get("/suggestions", replenishmentHandler.Suggestions)
			r.Post("/orders", replenishmentHandler.GenerateOrder)
		})

		// Catalog
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/products/{sku}", catalogHandler.GetProduct)
			r.Get("/resolve/{code}", catalogHandler.Resolve)
			r.Post("/aliases", catalogHandler.LearnAlias)
			r.Post("/import", catalogHandler.ImportSnapshot)
			r.Get("/customers", catalogHandler.SearchCustomers)
			r.Get("/suppliers", catalogHandler.SearchSuppliers)
		})

		// Marketplace intake
		r.Route("/marketplace", func(r chi.Router) {
			r.Post("/sync", marketplaceHandler.Sync)
			r.Post("/consignments", marketplaceHandler.ImportConsignment)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
