package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"olxmarket_api/config"
	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/olx/app/web/handlers"
	"olxmarket_api/internal/olx/business/services"
	"olxmarket_api/internal/olx/business/services/get"
	"olxmarket_api/internal/olx/business/services/sync"
	olxstorage "olxmarket_api/internal/olx/storage"
	"olxmarket_api/internal/olx/pkg/clients"
	"olxmarket_api/internal/importer/images"
	"olxmarket_api/internal/importer/normalize"
	"olxmarket_api/internal/importer/queue"
	"olxmarket_api/internal/importer/service"
	importstorage "olxmarket_api/internal/importer/storage"
	"olxmarket_api/metrics"
	"olxmarket_api/migrations/infrastructure"
	olxmigrations "olxmarket_api/migrations/marketplaces/olx"
	"olxmarket_api/pkg/dbconnect"
	"olxmarket_api/pkg/dbconnect/migration"
	"olxmarket_api/pkg/logger"
	"olxmarket_api/pkg/middleware"
)

// OlxServer wires the import pipeline and the marketplace sync engine behind
// the operator HTTP API.
type OlxServer struct {
	dbconnect.Database
	cfg    *config.AppConfig
	log    logger.Logger
	writer io.Writer
}

func NewOlxServer(connector dbconnect.Database, cfg *config.AppConfig, writer io.Writer) *OlxServer {
	_log := logger.NewLogger(writer, "[OlxServer]")
	return &OlxServer{Database: connector, cfg: cfg, log: _log, writer: writer}
}

// Run applies migrations, starts the task queue consumer and serves the API
// until ctx is cancelled.
func (s *OlxServer) Run(ctx context.Context) error {
	db, err := s.Connect()
	if err != nil {
		return err
	}
	defer db.Close()

	migrationApply := []migration.MigrationInterface{
		&infrastructure.MigrationsSchema{},
		&infrastructure.CoreSchema{},
		&infrastructure.CreateShopsTable{},
		&infrastructure.CreateCategoryTemplatesTable{},
		&infrastructure.CreateProductsTable{},
		&infrastructure.CreateImportLogsTable{},
		&infrastructure.CreateImportedProductsTable{},
		&infrastructure.CreateListingsTable{},
		&olxmigrations.CreateOlxSchema{},
		&olxmigrations.CreateOlxCategoriesTable{},
		&olxmigrations.CreateOlxCategoryAttributesTable{},
		&olxmigrations.CreateOlxLocationsTable{},
	}
	for _, _migration := range migrationApply {
		if err := _migration.UpMigration(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}
	s.log.Log("migrations applied successfully")

	vals := s.cfg.Olx.OlxValues

	// import pipeline
	logRepo := importstorage.NewImportLogRepository(db)
	stagingRepo := importstorage.NewStagingRepository(db)
	productRepo := importstorage.NewProductRepository(db)
	fetcher := images.NewHTTPFetcher(vals.ImageFetch.Timeout)
	normalizer := normalize.NewNormalizer(fetcher, vals, logger.NewLogger(s.writer, "[Normalizer]"))
	importService := service.NewImportService(
		logRepo, stagingRepo, productRepo, normalizer,
		vals.Import.WorkerCount,
		logger.NewLogger(s.writer, "[ImportService]"),
	)

	// marketplace side
	shopRepo := olxstorage.NewShopRepository(db)
	categoryRepo := olxstorage.NewCategoryRepository(db)
	locationRepo := olxstorage.NewLocationRepository(db)
	listingRepo := olxstorage.NewListingRepository(db)
	templateRepo := olxstorage.NewTemplateRepository(db)
	taxonomyReader := olxstorage.NewTaxonomyReader(categoryRepo, locationRepo)

	auth := services.NewOlxAuth(shopRepo, s.cfg.Olx.BaseURL, logger.NewLogger(s.writer, "[OlxAuth]"))
	client := clients.NewOlxClient(s.cfg.Olx.BaseURL, auth, vals, logger.NewLogger(s.writer, "[OlxClient]"))

	categoryService := get.NewCategoryService(client)
	locationService := get.NewLocationService(client)
	listingService := get.NewListingService(client)

	taxonomySync := sync.NewTaxonomySync(
		categoryService, locationService, categoryRepo, locationRepo,
		logger.NewLogger(s.writer, "[TaxonomySync]"),
	)
	engine := sync.NewEngine(
		productRepo, listingRepo, templateRepo, taxonomyReader, listingService,
		logRepo, stagingRepo, models.RoundingPolicy(vals.RoundingPolicy),
		logger.NewLogger(s.writer, "[SyncEngine]"),
	)

	var producer *queue.Producer
	if s.cfg.Amqp.URL != "" {
		amqpClient, err := queue.New(s.cfg.Amqp.URL, s.cfg.Amqp.ImportQueue)
		if err != nil {
			return err
		}
		defer amqpClient.Close()

		producer = queue.NewProducer(amqpClient.Channel, s.cfg.Amqp.ImportQueue)
		consumer := queue.NewConsumer(
			amqpClient.Channel,
			logger.NewLogger(s.writer, "[ImportConsumer]"),
			s.cfg.Amqp.ImportQueue,
			s.cfg.Amqp.Workers,
		)
		if err := consumer.Consume(ctx, func(ctx context.Context, body []byte) error {
			var task queue.ImportTask
			if err := json.Unmarshal(body, &task); err != nil {
				s.log.Log("dropping undecodable import task: %v", err)
				return nil
			}
			_, err := importService.Run(ctx, task.ImportLogID, task.Mapping)
			var notRunnable *service.NotRunnableError
			if errors.As(err, &notRunnable) {
				// a redelivered task for a finished log; requeueing it
				// would loop forever
				s.log.Log("dropping import task for log %d: %v", task.ImportLogID, err)
				return nil
			}
			return err
		}); err != nil {
			return err
		}
		s.log.Log("import task consumer started on %s", s.cfg.Amqp.ImportQueue)
	}

	router := s.router(importService, producer, taxonomySync, engine, vals.Import.StaleAfter)

	server := &http.Server{
		Addr:    s.cfg.Server.Address,
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Log("shutdown: %v", err)
		}
	}()

	s.log.Log("listening on %s", s.cfg.Server.Address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *OlxServer) router(importService *service.ImportService, producer *queue.Producer, taxonomySync *sync.TaxonomySync, engine *sync.Engine, staleAfter time.Duration) chi.Router {
	validate := validator.New()
	importHandler := handlers.NewImportHandler(importService, producer, validate, logger.NewLogger(s.writer, "[ImportHandler]"))
	taxonomyHandler := handlers.NewTaxonomyHandler(taxonomySync, validate, logger.NewLogger(s.writer, "[TaxonomyHandler]"))
	listingHandler := handlers.NewListingHandler(engine, validate, logger.NewLogger(s.writer, "[ListingHandler]"))

	router := chi.NewRouter()
	router.Use(middleware.PrometheusMiddleware)
	router.Handle("/metrics", metrics.MetricsHandler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/imports", importHandler.StartImport)
		r.Get("/imports/stale", importHandler.Stale(staleAfter))
		r.Get("/imports/{id}", importHandler.Status)
		r.Post("/imports/{id}/retry", importHandler.Retry)

		r.Post("/taxonomy/sync", taxonomyHandler.Sync)

		r.Post("/products/{id}/publish", listingHandler.Publish())
		r.Post("/products/{id}/update", listingHandler.Update())
		r.Post("/products/{id}/unpublish", listingHandler.Unpublish())
		r.Post("/products/{id}/remove", listingHandler.Remove())
		r.Post("/products/publish", listingHandler.BulkPublish())
		r.Post("/products/update", listingHandler.BulkUpdate())
		r.Post("/products/remove", listingHandler.BulkRemove())

		r.Post("/marketplace/sync", listingHandler.MarketplaceSync)
	})
	return router
}
