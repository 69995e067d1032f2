package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/clubpulse/activity-monitor/app"
	"github.com/clubpulse/activity-monitor/handlers"
	"github.com/clubpulse/activity-monitor/internal/observability"
	appmiddleware "github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(appmiddleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(deps.Metrics.Instrument)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(dbOrNil(deps), deps.Logger)
	queueHandler := handlers.NewQueueHandler(deps.Gate, deps.Logger)
	thresholdHandler := handlers.NewThresholdHandler(deps.Thresholds, cfg.Monitor.DefaultThreshold, deps.Logger)
	adminActionHandler := handlers.NewAdminActionHandler(deps.Repos.AdminActions, deps.Logger)
	jobHandler := handlers.NewJobHandler(deps.Scanner, deps.Dispatcher, deps.Settings, deps.Logger)
	webhookHandler := handlers.NewWebhookHandler(deps.Tracker, deps.Logger)
	realtimeHandler := handlers.NewRealtimeHandler(deps.Hub, cfg.Server.AllowedOrigins, deps.Logger)

	// Probes and metrics
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Scheduled triggers (shared-secret bearer)
	r.Route("/cron", func(r chi.Router) {
		r.Use(appmiddleware.CronAuth(cfg.Auth.CronSecret, cfg.IsDevelopment(), deps.Logger))
		r.Use(middleware.Timeout(cfg.Scheduler.JobTimeout))
		r.Post("/scan", jobHandler.HandleCronScan)
		r.Post("/dispatch", jobHandler.HandleCronDispatch)
	})

	// Email provider webhooks
	r.With(appmiddleware.VerifyWebhookSignature(cfg.Email.WebhookSecret, deps.Logger)).
		Post("/webhooks/email", webhookHandler.HandleEmailEvent)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		// Long-lived; registered before the request timeout applies
		r.Get("/realtime", realtimeHandler.HandleSubscribe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/queue", func(r chi.Router) {
				r.Get("/", queueHandler.HandleList)
				r.Get("/{id}", queueHandler.HandleGet)

				r.Group(func(r chi.Router) {
					r.Use(deps.AuthMiddleware.RequireRole(cfg.Auth.AdminRoles...))
					r.Post("/approve-all", queueHandler.HandleApproveAll)
					r.Post("/{id}/approve", queueHandler.HandleApprove)
					r.Post("/{id}/cancel", queueHandler.HandleCancel)
					r.Post("/{id}/transition", queueHandler.HandleTransition)
				})
			})

			r.Route("/thresholds", func(r chi.Router) {
				r.Get("/", thresholdHandler.HandleList)
				r.With(deps.AuthMiddleware.RequireRole(cfg.Auth.AdminRoles...)).Put("/{role}", thresholdHandler.HandleUpsert)
				r.With(deps.AuthMiddleware.RequireRole(cfg.Auth.AdminRoles...)).Delete("/{role}", thresholdHandler.HandleDelete)
			})

			r.Route("/admin-actions", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(cfg.Auth.AdminRoles...))
				r.Get("/", adminActionHandler.HandleList)
			})
		})

		// Manual job triggers run as long as a scheduled run would
		r.Route("/jobs", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireRole(cfg.Auth.AdminRoles...))
			r.Use(middleware.Timeout(cfg.Scheduler.JobTimeout))
			r.Post("/scan", jobHandler.HandleScan)
			r.Post("/dispatch", jobHandler.HandleDispatch)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

func dbOrNil(deps *app.Dependencies) *sql.DB {
	if deps.DB == nil {
		return nil
	}
	return deps.DB.DB
}
