package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/access"
	"github.com/emabi2002/landcasesystem-sub000/internal/advice"
	"github.com/emabi2002/landcasesystem-sub000/internal/alert"
	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile"
	caseapi "github.com/emabi2002/landcasesystem-sub000/internal/casefile/api"
	caseinfra "github.com/emabi2002/landcasesystem-sub000/internal/casefile/infrastructure"
	"github.com/emabi2002/landcasesystem-sub000/internal/delegation"
	"github.com/emabi2002/landcasesystem-sub000/internal/directory"
	"github.com/emabi2002/landcasesystem-sub000/internal/history"
	"github.com/emabi2002/landcasesystem-sub000/internal/legacy"
	"github.com/emabi2002/landcasesystem-sub000/internal/notify"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/auth"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/config"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/database"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/events"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/metrics"
	secmiddleware "github.com/emabi2002/landcasesystem-sub000/internal/shared/middleware"
)

// App holds the shared process-level dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    events.EventBus
	Legacy *legacy.Importer
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Server.Env)
	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database not available")
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	bus, err := events.NewEventBus(ctx, cfg.EventDB, log)
	if err != nil {
		log.Warn().Err(err).Msg("event store not available, using in-process bus")
		bus = events.NewNoopBus(log)
	}
	app.Bus = bus
	defer bus.Close()

	// Access control: static roles plus cached group grants
	accessRepo := access.NewRepository(db.Pool)
	grantSource := access.NewGrantSource(accessRepo, 30*time.Second)
	evaluator := authz.NewEvaluator(grantSource)

	// Repositories
	caseRepo := caseinfra.NewPostgresRepository(db.Pool)
	delegationRepo := delegation.NewPostgresRepository(db.Pool)
	adviceRepo := advice.NewPostgresRepository(db.Pool)
	alertRepo := alert.NewPostgresRepository(db.Pool)
	notifyRepo := notify.NewPostgresRepository(db.Pool)
	userRepo := directory.NewPostgresRepository(db.Pool)

	historyRepo := history.NewRepository(db.Pool)
	if err := historyRepo.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("history chain initialization failed")
	}

	// Services
	adviceSvc := advice.NewService(adviceRepo, caseRepo, evaluator, bus, log)
	alertSvc := alert.NewService(alertRepo, caseRepo, evaluator, bus, log)
	caseSvc := casefile.NewService(caseRepo, evaluator, bus, alertSvc, adviceSvc, log)
	delegationSvc := delegation.NewService(delegationRepo, caseRepo, evaluator, bus, log)

	// Event consumers
	historySub := history.NewSubscriber(historyRepo, bus)
	if err := historySub.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("history subscriber failed to start")
	}

	dispatcher := notify.NewDispatcher(notifyRepo, userRepo, delegationRepo, adviceRepo, cfg.Notify, log)
	if err := dispatcher.Start(ctx, bus); err != nil {
		log.Fatal().Err(err).Msg("notification dispatcher failed to start")
	}

	// Legacy register import
	if cfg.Legacy.Enabled {
		importer := legacy.NewImporter(cfg.Legacy, userRepo, caseRepo, log)
		if err := importer.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("legacy importer failed to start")
		} else {
			app.Legacy = importer
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := importer.Stop(stopCtx); err != nil {
					log.Error().Err(err).Msg("legacy importer stop failed")
				}
			}()
		}
	}

	rateLimiter := secmiddleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(rateLimiter.Middleware)
	r.Use(metrics.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		r.Mount("/cases", caseapi.NewHandler(caseSvc).Routes())
		r.Mount("/delegations", delegation.NewHandler(delegationSvc).Routes())
		r.Mount("/advice", advice.NewHandler(adviceSvc).Routes())
		r.Mount("/alerts", alert.NewHandler(alertSvc).Routes())
		r.Mount("/notifications", notify.NewHandler(notifyRepo).Routes())
		r.Mount("/history", history.NewHandler(historyRepo, evaluator).Routes())
		r.Mount("/access", access.NewHandler(accessRepo, evaluator, grantSource).Routes())
		r.Mount("/users", directory.NewHandler(userRepo, evaluator).Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Bool("event_store", cfg.EventDB.Enabled).
		Bool("legacy_import", cfg.Legacy.Enabled).
		Msg("land case system listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	<-done
	log.Info().Msg("server stopped")
}

func newLogger(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Land Case Management System",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if err := app.Bus.Health(); err != nil {
			checks["event_store"] = "not ready: " + err.Error()
		} else {
			checks["event_store"] = "ready"
		}

		if app.Legacy != nil {
			if err := app.Legacy.Health(r.Context()); err != nil {
				checks["legacy"] = "not ready: " + err.Error()
			} else {
				checks["legacy"] = "ready"
			}
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"checks": checks,
		})
	}
}
