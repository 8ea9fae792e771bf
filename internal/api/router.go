package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shelfware/veridict/internal/api/handlers"
	mw "github.com/shelfware/veridict/internal/api/middleware"
	"github.com/shelfware/veridict/internal/config"
	"github.com/shelfware/veridict/internal/domain"
	"github.com/shelfware/veridict/internal/service"
	"github.com/shelfware/veridict/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router   *chi.Mux
	Resolver *service.ResolverService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	sourceStore := store.NewSourceStore(db)
	evidenceStore := store.NewEvidenceStore(db)
	assertionStore := store.NewAssertionStore(db)
	resolvedStore := store.NewResolvedValueStore(db)

	// Services
	resolverSvc := service.NewResolverService(assertionStore, resolvedStore, logger,
		config.ResolverWorkers(), config.ResolverQueueSize())
	sourceSvc := service.NewSourceService(sourceStore, logger)
	evidenceSvc := service.NewEvidenceService(sourceStore, evidenceStore, assertionStore, resolverSvc, logger)
	auditSvc := service.NewAuditService(sourceStore, evidenceStore, assertionStore, resolvedStore, evidenceSvc, resolverSvc, logger)

	// Handlers
	sourceHandler := handlers.NewSourceHandler(sourceSvc)
	evidenceHandler := handlers.NewEvidenceHandler(evidenceSvc)
	entityHandler := handlers.NewEntityHandler(auditSvc, resolverSvc)
	assertionHandler := handlers.NewAssertionHandler(auditSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Resolver:  resolverSvc,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		// Sources
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", sourceHandler.Register)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sourceHandler.GetByID)
				r.Patch("/modifier", sourceHandler.UpdateModifier)
			})
		})

		// Evidence ingestion
		r.Post("/evidence", evidenceHandler.Submit)

		// Entities: resolved values, audit trail, overrides
		r.Route("/entities/{id}", func(r chi.Router) {
			r.Get("/evidence", entityHandler.ListEvidence)
			r.Get("/resolved", entityHandler.GetAllResolved)
			r.Get("/resolved/{field}", entityHandler.GetResolvedValue)
			r.Get("/fields/{field}/history", entityHandler.ExplainField)
			r.Post("/overrides", entityHandler.SubmitOverride)
			r.Post("/resolve", entityHandler.Resolve)
			r.Delete("/", entityHandler.Remove)
		})

		// Assertions: manual retraction
		r.Post("/assertions/{id}/deactivate", assertionHandler.Deactivate)
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.SourceStore        = (*store.SourceStore)(nil)
	_ domain.EvidenceStore      = (*store.EvidenceStore)(nil)
	_ domain.AssertionStore     = (*store.AssertionStore)(nil)
	_ domain.ResolvedValueStore = (*store.ResolvedValueStore)(nil)
	_ service.ResolutionQueue   = (*service.ResolverService)(nil)
)
