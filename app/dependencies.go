package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubpulse/activity-monitor/clients/email"
	"github.com/clubpulse/activity-monitor/clients/sheets"
	"github.com/clubpulse/activity-monitor/config"
	"github.com/clubpulse/activity-monitor/internal/observability"
	"github.com/clubpulse/activity-monitor/internal/scheduler"
	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/repositories/postgres"
	"github.com/clubpulse/activity-monitor/services/queue"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"github.com/clubpulse/activity-monitor/services/scan"
	"github.com/clubpulse/activity-monitor/services/templates"
	"github.com/clubpulse/activity-monitor/services/thresholds"
	"github.com/clubpulse/activity-monitor/session"
	"go.uber.org/zap"
)

// Scheduled job names
const (
	JobScan     = "scan"
	JobDispatch = "dispatch"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Collaborators
	Sheets *sheets.Client
	Sender email.Sender // nil when no provider is configured

	// Services
	Hub        *realtime.Hub
	Catalog    *templates.Catalog
	Writer     *queue.Writer
	Scanner    *scan.Service
	Gate       *queue.Gate
	Dispatcher *queue.Dispatcher
	Tracker    *queue.Tracker
	Thresholds *thresholds.Service
	Scheduler  *scheduler.Scheduler

	Settings       scan.Settings
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := factory.GetDB().HealthCheck(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	deps, err := NewDependenciesWithRepositories(cfg, logger, factory.NewRepositories(), factory.GetTransactionManager())
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	deps.RepoFactory = factory
	deps.DB = factory.GetDB()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesWithRepositories wires the services on top of existing repositories
func NewDependenciesWithRepositories(
	cfg *config.Config,
	logger *zap.Logger,
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Repos:     repos,
		TxManager: txMgr,
		Settings:  SettingsFromConfig(cfg),
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if err := deps.initCollaborators(); err != nil {
		return nil, err
	}
	if err := deps.initServices(); err != nil {
		return nil, err
	}
	if err := deps.initAuth(); err != nil {
		return nil, err
	}
	if err := deps.initScheduler(); err != nil {
		return nil, err
	}

	return deps, nil
}

// SettingsFromConfig converts the monitor, sheet and email configuration into run settings
func SettingsFromConfig(cfg *config.Config) scan.Settings {
	return scan.Settings{
		SpreadsheetID:    cfg.Sheets.SpreadsheetID,
		Range:            cfg.Sheets.Range,
		DefaultThreshold: cfg.Monitor.DefaultThreshold,
		Queue: queue.Settings{
			Aliases:       templates.AliasesFromConfig(cfg.Monitor.RoleAliases),
			SubjectPrefix: cfg.Monitor.SubjectPrefix,
			From:          cfg.Email.From,
			ReplyTo:       cfg.Email.ReplyTo,
		},
	}
}

func (d *Dependencies) initCollaborators() error {
	d.Sheets = sheets.NewClient(sheets.Config{
		APIKey:  d.Config.Sheets.APIKey,
		BaseURL: d.Config.Sheets.BaseURL,
		Timeout: d.Config.Sheets.Timeout,
	})

	if !emailConfigured(d.Config.Email) {
		d.Logger.Warn("email provider not configured, dispatch disabled",
			zap.String("provider", d.Config.Email.Provider))
		return nil
	}

	sender, err := email.NewSender(d.Config.Email)
	if err != nil {
		return fmt.Errorf("failed to initialize email sender: %w", err)
	}
	d.Sender = sender
	d.Logger.Info("email sender initialized", zap.String("provider", sender.Name()))
	return nil
}

func emailConfigured(cfg config.EmailConfig) bool {
	if strings.TrimSpace(cfg.From) == "" {
		return false
	}
	switch strings.ToLower(cfg.Provider) {
	case "smtp":
		return cfg.SMTP.Host != ""
	default:
		return cfg.APIKey != ""
	}
}

func (d *Dependencies) initServices() error {
	catalog, err := templates.NewCatalog()
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}
	d.Catalog = catalog

	d.Hub = realtime.NewHub(d.Logger, d.Metrics, realtime.DefaultConfig())

	adminRoles := d.Config.Auth.AdminRoles
	d.Writer = queue.NewWriter(d.Repos, d.TxManager, catalog, d.Hub, d.Metrics, d.Logger)
	d.Scanner = scan.NewService(d.Sheets, d.Writer, d.Repos, d.Metrics, d.Logger)
	d.Gate = queue.NewGate(d.Repos, d.TxManager, d.Hub, d.Metrics, d.Logger, adminRoles)
	d.Tracker = queue.NewTracker(d.Repos, d.TxManager, d.Hub, d.Metrics, d.Logger)
	d.Thresholds = thresholds.NewService(d.Repos, d.TxManager, d.Hub, d.Logger, adminRoles)

	// A nil sender makes every dispatch fail fast with a configuration error.
	d.Dispatcher = queue.NewDispatcher(d.Repos, d.TxManager, d.Sender, d.Hub, d.Metrics, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initAuth() error {
	if d.Config.Auth.SessionSecret == "" {
		d.Logger.Warn("session secret not configured, dashboard API will reject every request")
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return nil
	}

	validator, err := session.NewValidator(session.Config{
		Secret: d.Config.Auth.SessionSecret,
		Issuer: d.Config.Auth.SessionIssuer,
		Leeway: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session validator: %w", err)
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	return nil
}

func (d *Dependencies) initScheduler() error {
	loc, err := scheduler.LoadLocation(d.Config.Scheduler.Timezone)
	if err != nil {
		return err
	}
	d.Scheduler = scheduler.New(d.Logger, loc, d.Config.Scheduler.JobTimeout)

	jobs := []scheduler.Job{
		{
			Name: JobScan,
			Spec: d.Config.Scheduler.ScanSpec,
			Run: func(ctx context.Context) error {
				_, err := d.Scanner.Run(ctx, models.SystemActor, d.Settings)
				return err
			},
		},
		{
			Name: JobDispatch,
			Spec: d.Config.Scheduler.DispatchSpec,
			Run: func(ctx context.Context) error {
				_, err := d.Dispatcher.Run(ctx, d.Settings.Queue)
				return err
			},
		},
	}
	for _, job := range jobs {
		if err := d.Scheduler.Add(job); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.Name, err)
		}
	}
	return nil
}

// rejectAllValidator rejects all tokens (used when no session secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Start launches the realtime hub and, when enabled, the scheduler
func (d *Dependencies) Start() error {
	if err := d.Hub.Start(); err != nil {
		return err
	}
	if d.Config.Scheduler.Enabled {
		d.Scheduler.Start()
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Scheduler != nil {
		if err := d.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop scheduler: %w", err))
		}
	}

	if d.Hub != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Hub.Stop(timeout); err != nil {
			d.Logger.Debug("realtime hub stop", zap.Error(err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
