package app

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"alertmtl.app/alerts"
	"alertmtl.app/api"
	"alertmtl.app/config"
	"alertmtl.app/database"
	"alertmtl.app/dispatch"
	"alertmtl.app/metrics"
	"alertmtl.app/providers"
	"alertmtl.app/repository"
	"alertmtl.app/scheduler"
	"alertmtl.app/service"
	"alertmtl.app/waste"
)

// Application represents the main application with all its dependencies
type Application struct {
	config    *config.Config
	db        *gorm.DB
	server    *api.Server
	scheduler *scheduler.Scheduler
	geobase   service.GeobaseServiceInterface
}

// NewApplication creates and initializes a new application instance
func NewApplication() (*Application, error) {
	app := &Application{}

	if err := app.loadConfiguration(); err != nil {
		return nil, err
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, err
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}

	return app, nil
}

func (app *Application) loadConfiguration() error {
	slog.Info("Loading configuration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("load application configuration: %w", err)
	}

	app.config = cfg
	slog.Info("Configuration loaded successfully")
	return nil
}

func (app *Application) initializeDatabase() error {
	slog.Info("Initializing database...")

	db, err := database.InitDB(app.config.Database)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return fmt.Errorf("initialize database connection: %w", err)
	}

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		return fmt.Errorf("run database migrations: %w", err)
	}

	seeded, err := database.SeedZoneRules(db)
	if err != nil {
		slog.Error("Failed to seed zone rules", "error", err)
		return fmt.Errorf("seed zone schedule rules: %w", err)
	}
	if seeded > 0 {
		slog.Info("Seeded default zone rules", "count", seeded)
	}

	app.db = db
	slog.Info("Database initialized successfully")
	return nil
}

func (app *Application) initializeServices() error {
	slog.Info("Initializing services...")

	registry := dispatch.NewRegistry(
		dispatch.Montreal(time.Duration(app.config.Montreal.PollMinutes)*time.Minute),
		dispatch.Quebec(time.Duration(app.config.Quebec.PollMinutes)*time.Minute),
	)

	location, err := time.LoadLocation(app.config.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("load scheduler timezone: %w", err)
	}

	// Create the snow status manager with caching and logging decorators
	statusManager, err := app.createStatusManager()
	if err != nil {
		return fmt.Errorf("create status manager: %w", err)
	}

	// Create email provider and service
	emailProvider := providers.NewSMTPEmailProvider(&app.config.Email)
	emailService := service.NewEmailService(emailProvider, app.config.AppBaseURL)

	// Create repositories
	subscriberRepo := repository.NewSubscriberRepository(app.db)
	addressRepo := repository.NewAddressRepository(app.db)
	historyRepo := repository.NewAlertHistoryRepository(app.db)
	zoneRules := repository.NewZoneRuleRepository(app.db)
	geobaseRepo := repository.NewGeobaseRepository(app.db)

	if err := zoneRules.Reload(); err != nil {
		return fmt.Errorf("load zone schedule rules: %w", err)
	}
	slog.Info("Zone schedule rules loaded", "count", zoneRules.RuleCount())

	// Create the alerting core
	alertMetrics := metrics.NewAlertMetrics()
	dispatcher := service.NewAlertDispatcher(historyRepo, emailService, alertMetrics)
	tracker := alerts.NewTracker(app.config.Alerts.TransitionLogSize)
	engine := alerts.NewEngine(registry)

	// Create services
	snowService := service.NewSnowService(
		statusManager,
		registry,
		tracker,
		engine,
		addressRepo,
		dispatcher,
		alertMetrics,
	)

	wasteService := service.NewWasteService(
		waste.NewCalculator(zoneRules),
		zoneRules,
		registry,
		addressRepo,
		engine,
		dispatcher,
		alertMetrics,
		location,
	)

	geobaseService := service.NewGeobaseService(
		providers.NewGeobaseClient(&app.config.Geobase),
		geobaseRepo,
		&app.config.Geobase,
	)

	subscriptionService := service.NewSubscriptionService(
		app.db,
		subscriberRepo,
		addressRepo,
		geobaseService,
		registry,
		emailService,
	)

	// Create server and scheduler
	server, err := api.NewServer(api.ServerOptions{
		DB:                  app.db,
		Config:              app.config,
		SnowService:         snowService,
		WasteService:        wasteService,
		SubscriptionService: subscriptionService,
		GeobaseService:      geobaseService,
		Dispatcher:          dispatcher,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	app.server = server

	app.scheduler = scheduler.NewScheduler(
		app.config,
		registry,
		snowService,
		wasteService,
		geobaseService,
		historyRepo,
		alertMetrics,
		location,
	)
	app.geobase = geobaseService

	slog.Info("Services initialized successfully")
	return nil
}

// createStatusManager builds the per-city snow providers behind the shared
// snapshot cache
func (app *Application) createStatusManager() (*providers.ProviderManager, error) {
	slog.Debug("Creating snow status manager...")

	statusManager, err := providers.NewProviderManagerBuilder().
		WithMontreal(&app.config.Montreal).
		WithQuebec(&app.config.Quebec).
		WithCache(&app.config.Cache).
		WithStaleFactor(app.config.Alerts.StaleFactor).
		Build()
	if err != nil {
		return nil, err
	}

	slog.Debug("Status manager created", "config", statusManager.GetProviderInfo())
	return statusManager, nil
}

// Start starts the application
func (app *Application) Start() error {
	slog.Info("Starting application...")

	slog.Info("Starting scheduler...")
	if err := app.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// Warm the street dataset without blocking startup; lookups fall back
	// to sortation-area entities until it lands
	go func() {
		if err := app.geobase.EnsureFresh(); err != nil {
			slog.Warn("Geobase dataset refresh failed", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "port", app.config.Server.Port)
	return app.server.Start()
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	slog.Info("Shutting down application...")

	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.db != nil {
		if err := database.CloseDB(app.db); err != nil {
			slog.Warn("Error closing database", "error", err)
		}
	}

	slog.Info("Application shutdown complete")
	return nil
}

// Config returns the application configuration
func (app *Application) Config() *config.Config {
	return app.config
}
