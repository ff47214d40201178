// cmd/registration-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"msad-registration/internal/api"
	"msad-registration/internal/common/auth"
	"msad-registration/internal/common/camunda"
	"msad-registration/internal/common/config"
	"msad-registration/internal/common/database"
	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/observability"
	"msad-registration/internal/common/storage"
	"msad-registration/internal/registration/draft"
	"msad-registration/internal/registration/feed"
	"msad-registration/internal/registration/submission"
	"msad-registration/internal/registration/upload"
	"msad-registration/internal/registration/wizard"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"service": "registration-api"})

	zapLog.Info("Starting registration API...")

	obs := observability.New("registration-api", log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	records, err := submission.NewPostgresStore(pg.DB, cfg.Registration.Table)
	if err != nil {
		zapLog.Fatal("invalid application table", zap.Error(err))
	}
	if cfg.Database.Postgres.AutoMigrate {
		if err := records.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("Application schema ensured", zap.String("table", cfg.Registration.Table))
	}

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()

	drafts := draft.NewRedisStore(rdb.Client, log,
		draft.WithKeyPrefix(cfg.Registration.DraftKeyPrefix),
		draft.WithTTL(cfg.Registration.DraftExpiry()),
	)
	events := feed.New(rdb.Client, log)

	// --- Object storage ---
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		zapLog.Fatal("storage init failed", zap.Error(err))
	}
	uploader := upload.NewAdapter(store, log,
		upload.WithDefaultBucket(cfg.Storage.DefaultBucket),
		upload.WithDefaultMaxSize(cfg.Registration.MaxUploadBytes),
	)
	var files http.Handler
	if local, ok := store.(*storage.LocalStore); ok {
		files = local.Handler()
	}

	// --- Submission ---
	steps := wizard.DefaultSteps(
		wizard.WithAgeRange(cfg.Registration.MinAge, cfg.Registration.MaxAge),
		wizard.WithMinWords(cfg.Registration.MinWords),
	)
	opts := []submission.Option{
		submission.WithPublisher(events),
		submission.WithReferenceGenerator(submission.NewReferenceGenerator(cfg.Registration.ReferencePrefix)),
		submission.WithRequireIdentity(cfg.Registration.RequireIdentity),
		submission.WithTimeout(config.GetDuration(cfg.Registration.SubmitTimeout)),
	}

	checks := map[string]api.Check{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	var zeebe *camunda.Client
	if cfg.Camunda.StartReview {
		if err := config.RequireCamunda(cfg); err != nil {
			zapLog.Fatal("review start enabled without a broker", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientFromConfig(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		opts = append(opts, submission.WithReviewStarter(camunda.NewReviewStarter(zeebe, cfg.Camunda.ReviewProcessID)))
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Review process start enabled", zap.String("processId", cfg.Camunda.ReviewProcessID))
	}

	orchestrator := submission.NewOrchestrator(steps, drafts, records, log, opts...)

	var identity api.Identifier
	if cfg.Auth.Keycloak.Enabled() {
		identity = auth.NewKeycloakClientFromConfig(cfg.Auth.Keycloak)
		zapLog.Info("Keycloak token introspection enabled", zap.String("realm", cfg.Auth.Keycloak.Realm))
	} else if cfg.Registration.RequireIdentity {
		zapLog.Fatal("registration.require_identity needs auth.keycloak to be configured")
	}

	server := api.New(api.Deps{
		Steps:     steps,
		Drafts:    drafts,
		Uploader:  uploader,
		Submitter: orchestrator,
		Identity:  identity,
		Feed:      events,
		Checks:    checks,
		Files:     files,
		Obs:       obs,
	}, log,
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		api.WithMaxUploadBytes(cfg.Registration.MaxUploadBytes),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: it would cut the event stream.
		ReadTimeout: config.GetDuration(cfg.Server.ReadTimeout),
	}

	go func() {
		zapLog.Info("Registration API listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("Registration API failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	zapLog.Info("Registration API stopped gracefully")
}
