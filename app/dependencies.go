package app

import (
	"context"
	"fmt"

	"github.com/upb/cfaccess/access"
	"github.com/upb/cfaccess/config"
	"github.com/upb/cfaccess/handlers"
	"github.com/upb/cfaccess/middleware"
	"github.com/upb/cfaccess/repositories"
	"github.com/upb/cfaccess/repositories/postgres"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory, nil when no account database is configured
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Accounts repositories.AccountRepository

	// Access pipeline
	KeySets       *access.KeySetCache
	Authenticator *access.Authenticator

	// HTTP
	AccessMiddleware *middleware.AccessMiddleware
	HealthHandler    *handlers.HealthHandler
	SessionHandler   *handlers.SessionHandler
	SiteHandler      *handlers.SiteHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	deps.initRepositories()

	// Initialize the access pipeline
	deps.initAccess(cfg)

	// Initialize handlers
	if err := deps.initHandlers(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Info("no account database configured, account binding disabled")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if cfg.Database.InitSchema {
		if err := d.DB.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to initialize account schema: %w", err)
		}
	}

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	if d.RepoFactory == nil {
		return
	}

	repos := d.RepoFactory.NewRepositories()
	d.Accounts = repos.Accounts

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initAccess(cfg *config.Config) {
	if cfg.Access.AuthURL == "" || cfg.Access.Audience == "" {
		d.Logger.Warn("edge access not configured, protected routes will deny every request",
			zap.Bool("auth_url_set", cfg.Access.AuthURL != ""),
			zap.Bool("audience_set", cfg.Access.Audience != ""))
	}

	fetcher := access.NewHTTPFetcher(cfg.Access.HTTPTimeout)
	d.KeySets = access.NewKeySetCache(fetcher, cfg.Access.CacheConfig(), d.Logger)
	verifier := access.NewVerifier(cfg.Access.ClockSkew, d.Logger)

	var resolver access.IdentityResolver
	if d.Accounts != nil {
		resolver = access.NewResolver(d.Accounts, d.Logger)
	}

	d.Authenticator = access.NewAuthenticator(d.KeySets, verifier, resolver, d.Logger)
	d.AccessMiddleware = middleware.NewAccessMiddleware(d.Authenticator, cfg.Access.Settings(), d.Accounts, d.Logger)

	d.Logger.Info("access pipeline initialized",
		zap.Strings("contexts", access.ParseContexts(cfg.Access.Contexts)),
		zap.Bool("require_account", cfg.Access.RequireAccount),
		zap.Bool("assign_account", cfg.Access.AssignAccount),
		zap.Bool("obfuscate", cfg.Access.Obfuscate))
}

func (d *Dependencies) initHandlers(cfg *config.Config) error {
	var db handlers.DatabaseChecker
	if d.DB != nil {
		db = d.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(db, d.KeySets, d.Logger)
	d.SessionHandler = handlers.NewSessionHandler(d.Logger)

	site, err := handlers.NewSiteHandler(cfg.UpstreamURL, d.Logger)
	if err != nil {
		return err
	}
	d.SiteHandler = site
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
