// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ymfb-workers/internal/common/aws"
	"ymfb-workers/internal/common/config"
	"ymfb-workers/internal/common/database"
	commonhttp "ymfb-workers/internal/common/http"
	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/common/observability"
	"ymfb-workers/pkg/registry"

	// Account Workers (1)
	ard "ymfb-workers/internal/workers/account/account-review-decision"

	// Loan Workers (4)
	lc "ymfb-workers/internal/workers/loan/loan-create"
	lrd "ymfb-workers/internal/workers/loan/loan-review-decision"
	ls "ymfb-workers/internal/workers/loan/loan-search"
	lsub "ymfb-workers/internal/workers/loan/loan-submit"

	// Auth & Notification Workers (2)
	al "ymfb-workers/internal/workers/auth/admin-login"
	dn "ymfb-workers/internal/workers/notification/decision-notify"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	if reg, err := registry.LoadRegistry(cfg.Registry.Path); err != nil {
		zapLog.Warn("activity registry unavailable", zap.Error(err))
	} else {
		zapLog.Info("activity registry loaded",
			zap.String("version", reg.Version),
			zap.Int("activities", len(reg.Activities)),
		)
	}

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
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

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Notification Clients ---
	var sesClient *aws.SESClient
	if cfg.Notifications.AWS.SES.Enabled {
		sesClient, err = aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
	}

	var snsClient *aws.SNSClient
	if cfg.Notifications.AWS.SNS.Enabled {
		snsClient, err = aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
	}

	portalTimeout := time.Duration(cfg.Notifications.Portal.Timeout) * time.Millisecond
	if portalTimeout <= 0 {
		portalTimeout = 10 * time.Second
	}
	portalClient := commonhttp.NewClient(portalTimeout)

	zapLog.Info("All external service clients initialized")

	// --- Register Workers ---

	// --- 1. Loan Workers (4) ---
	if cfg.Workers[lc.TaskType].Enabled {
		handler := lc.NewHandler(
			&lc.Config{
				Timeout:          time.Duration(cfg.Workers[lc.TaskType].Timeout) * time.Millisecond,
				MaxNumberRetries: 5,
			},
			pg.DB, log,
		)
		startWorker(zeebeClient, lc.TaskType, cfg.Workers[lc.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[lsub.TaskType].Enabled {
		handler := lsub.NewHandler(
			&lsub.Config{
				Timeout: time.Duration(cfg.Workers[lsub.TaskType].Timeout) * time.Millisecond,
			},
			pg.DB, redis.Client, log,
		)
		startWorker(zeebeClient, lsub.TaskType, cfg.Workers[lsub.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[lrd.TaskType].Enabled {
		handler := lrd.NewHandler(
			&lrd.Config{
				Timeout: time.Duration(cfg.Workers[lrd.TaskType].Timeout) * time.Millisecond,
			},
			pg.DB, redis.Client, esClient.Client, log,
		)
		startWorker(zeebeClient, lrd.TaskType, cfg.Workers[lrd.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ls.TaskType].Enabled {
		handler := ls.NewHandler(
			&ls.Config{
				Timeout:      time.Duration(cfg.Workers[ls.TaskType].Timeout) * time.Millisecond,
				CacheTTL:     60 * time.Second,
				DefaultLimit: 20,
				MaxLimit:     100,
			},
			esClient.Client, redis.Client, log,
		)
		startWorker(zeebeClient, ls.TaskType, cfg.Workers[ls.TaskType], handler.Handle, zapLog)
	}

	// --- 2. Account Workers (1) ---
	if cfg.Workers[ard.TaskType].Enabled {
		handler := ard.NewHandler(
			&ard.Config{
				Timeout: time.Duration(cfg.Workers[ard.TaskType].Timeout) * time.Millisecond,
			},
			pg.DB, log,
		)
		startWorker(zeebeClient, ard.TaskType, cfg.Workers[ard.TaskType], handler.Handle, zapLog)
	}

	// --- 3. Auth Workers (1) ---
	if cfg.Workers[al.TaskType].Enabled {
		handler := al.NewHandler(
			&al.Config{
				Timeout: time.Duration(cfg.Workers[al.TaskType].Timeout) * time.Millisecond,
			},
			pg.DB, cfg.Admin, log,
		)
		startWorker(zeebeClient, al.TaskType, cfg.Workers[al.TaskType], handler.Handle, zapLog)
	}

	// --- 4. Notification Workers (1) ---
	if cfg.Workers[dn.TaskType].Enabled {
		handler := dn.NewHandler(
			&dn.Config{
				Timeout: time.Duration(cfg.Workers[dn.TaskType].Timeout) * time.Millisecond,
			},
			cfg.Notifications, sesClient, snsClient, portalClient, log,
		)
		startWorker(zeebeClient, dn.TaskType, cfg.Workers[dn.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All 7 workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = shutdownCtx

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	instrumented := func(jobClient worker.JobClient, job entities.Job) {
		start := time.Now()
		handlerFunc(jobClient, job)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(instrumented).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
