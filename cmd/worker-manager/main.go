// cmd/worker-manager/main.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclients "msad-registration/internal/common/aws"
	"msad-registration/internal/common/camunda"
	"msad-registration/internal/common/config"
	"msad-registration/internal/common/database"
	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/observability"
	"msad-registration/internal/common/resilience"
	"msad-registration/internal/registration/feed"
	"msad-registration/internal/registration/submission"

	ica "msad-registration/internal/workers/application/index-contestant-application"
	src "msad-registration/internal/workers/application/send-registration-confirmation"
	uas "msad-registration/internal/workers/application/update-application-status"
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
				zap.Int("maxRetries", maxRetries),
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
	if err := config.RequireCamunda(cfg); err != nil {
		bootLog.Fatal("invalid camunda configuration", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"service": "worker-manager"})

	zapLog.Info("Starting worker manager...")

	obs := observability.New("worker-manager", log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientFromConfig(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

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
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (change feed) ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	events := feed.New(rdb.Client, log)
	checks := map[string]func(context.Context) error{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
		"zeebe":    zeebe.HealthCheck,
	}

	var workers []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.HandlerFunc) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		w := camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, obs, log)
		w.Start()
		workers = append(workers, w)
		zapLog.Info("worker started",
			zap.String("taskType", taskType),
			zap.Int("maxJobsActive", wcfg.MaxJobsActive),
			zap.Int("timeout_ms", wcfg.Timeout),
		)
	}

	if config.IsWorkerEnabled(cfg, uas.TaskType) {
		handler, err := uas.NewHandler(uas.LoadConfig(cfg), pg.DB, events, log)
		if err != nil {
			zapLog.Fatal("failed to create update-application-status handler", zap.Error(err))
		}
		start(uas.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, ica.TaskType) {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		checks["elasticsearch"] = es.Ping

		records, err := submission.NewPostgresStore(pg.DB, cfg.Registration.Table)
		if err != nil {
			zapLog.Fatal("invalid application table", zap.Error(err))
		}
		handler := ica.NewHandler(ica.LoadConfig(cfg), records, es.Client, log)
		if err := handler.EnsureIndex(ctx); err != nil {
			zapLog.Warn("could not ensure search index, indexing will use dynamic mapping", zap.Error(err))
		}
		start(ica.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, src.TaskType) {
		var (
			email src.EmailSender
			sms   src.SMSSender
		)
		if cfg.Notifications.Email.Enabled {
			ses, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.Email.FromEmail)
			if err != nil {
				zapLog.Fatal("failed to create SES client", zap.Error(err))
			}
			email = ses
		}
		if cfg.Notifications.SMS.Enabled {
			sns, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.SMS.SenderID)
			if err != nil {
				zapLog.Fatal("failed to create SNS client", zap.Error(err))
			}
			sms = sns
		}
		executor := resilience.NewExecutor(resilience.ConfigFromNotifications(cfg.Notifications), log)
		handler := src.NewHandler(src.LoadConfig(cfg), email, sms, executor, log)
		start(src.TaskType, handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Ops server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"workers": len(workers),
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		results := map[string]string{}
		for name, check := range checks {
			checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			err := check(checkCtx)
			cancel()
			if err != nil {
				results[name] = err.Error()
				status, code = "not_ready", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": results,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	ops := &http.Server{Addr: cfg.Server.OpsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.OpsAddress))
		if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		for _, w := range workers {
			w.Stop()
		}
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		zapLog.Warn("workers did not stop before the shutdown timeout")
	}

	if err := ops.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping ops server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
