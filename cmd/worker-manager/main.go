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
	redisv8 "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dealflow-workers/internal/common/auth"
	"dealflow-workers/internal/common/camunda"
	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/common/database"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/common/webhook"
	"dealflow-workers/pkg/registry"

	// Dealflow Workers (3)
	ce "dealflow-workers/internal/workers/dealflow/calculate-engagement"
	rbm "dealflow-workers/internal/workers/dealflow/rank-buyer-matches"
	sbd "dealflow-workers/internal/workers/dealflow/score-buyer-deal"

	// Alert Workers (2)
	mda "dealflow-workers/internal/workers/alerts/match-deal-alerts"
	sda "dealflow-workers/internal/workers/alerts/send-deal-alert"

	// Pipeline Workers (3)
	cvl "dealflow-workers/internal/workers/pipeline/create-valuation-lead"
	oss "dealflow-workers/internal/workers/pipeline/override-score"
	sas "dealflow-workers/internal/workers/pipeline/sync-agreement-status"

	// Enrichment Workers (1)
	ebc "dealflow-workers/internal/workers/enrichment/extract-buyer-criteria"

	// Data Access Workers (2)
	qp "dealflow-workers/internal/workers/data-access/query-postgresql"
	sl "dealflow-workers/internal/workers/data-access/search-listings"
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
	// Bootstrap logger until the config tells us level, format and output.
	zapLog := logger.New("info", "console")
	defer func() { _ = zapLog.Sync() }()

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	// The activity registry is tooling metadata; problems are logged, never fatal.
	if reg, err := registry.LoadRegistry("configs/activity-registry.json"); err != nil {
		zapLog.Warn("Activity registry not loaded", zap.Error(err))
	} else if err := reg.Validate(); err != nil {
		zapLog.Warn("Activity registry invalid", zap.Error(err))
	} else {
		zapLog.Info("Activity registry loaded", zap.Int("activities", len(reg.Activities)))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

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
		// Test the connection with context
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
		// Test the connection with context
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	if info, err := esClient.Info(ctx); err == nil {
		zapLog.Info("Elasticsearch connected successfully",
			zap.String("cluster", info.ClusterName),
			zap.String("version", info.Version))
	} else {
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// The agreement sync worker still runs on go-redis v8, so it gets its
	// own client against the same server. Connectivity was already proven
	// by the v9 ping above.
	agreementCache := redisv8.NewClient(&redisv8.Options{
		Addr:     cfg.Database.Redis.Address,
		Password: cfg.Database.Redis.Password,
		DB:       cfg.Database.Redis.DB,
	})
	defer agreementCache.Close()

	// --- Init Camunda client wrapper for the self-registering workers ---
	camundaClient, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		RequestTimeout:         time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
	})
	if err != nil {
		zapLog.Fatal("camunda client failed", zap.Error(err))
	}
	defer camundaClient.Close()

	// --- Init External Service Clients ---
	supabase := auth.NewSupabaseClient(
		cfg.Supabase.ProjectURL,
		cfg.Supabase.ServiceRoleKey,
		config.GetDuration(cfg.Supabase.AdminTimeout),
	)

	webhooks := webhook.NewDispatcher(cfg.Webhooks, cfg.Supabase.ServiceRoleKey, log)

	zapLog.Info("All external service clients initialized")

	// --- START: Register ALL 11 Workers ---

	// --- 1. Dealflow Workers (3) ---
	if wc := config.GetWorkerConfig(cfg, sbd.TaskType); wc.Enabled {
		handler := sbd.NewHandler(
			&sbd.Config{
				CacheTTL: time.Duration(cfg.Scoring.CacheTTLSeconds) * time.Second,
				Timeout:  config.GetDuration(wc.Timeout),
			},
			pg.DB, redis.Client, log,
		)
		startWorker(zeebeClient, sbd.TaskType, wc, handler.Handle, zapLog)
	}

	if wc := config.GetWorkerConfig(cfg, ce.TaskType); wc.Enabled {
		handler := ce.NewHandler(
			&ce.Config{
				Timeout: config.GetDuration(wc.Timeout),
			},
			pg.DB, log,
		)
		startWorker(zeebeClient, ce.TaskType, wc, handler.Handle, zapLog)
	}

	if wc := config.GetWorkerConfig(cfg, rbm.TaskType); wc.Enabled {
		handler := rbm.NewHandler(
			&rbm.Config{
				DefaultLimit: 10,
				Timeout:      config.GetDuration(wc.Timeout),
			},
			pg.DB, log,
		)
		startWorker(zeebeClient, rbm.TaskType, wc, handler.Handle, zapLog)
	}

	// --- 2. Alert Workers (2) ---
	if wc := config.GetWorkerConfig(cfg, mda.TaskType); wc.Enabled {
		handler := mda.NewHandler(
			&mda.Config{
				Timeout: config.GetDuration(wc.Timeout),
			},
			pg.DB, log,
		)
		startWorker(zeebeClient, mda.TaskType, wc, handler.Handle, zapLog)
	}

	if wc := config.GetWorkerConfig(cfg, sda.TaskType); wc.Enabled {
		handler, err := sda.NewHandler(
			&sda.Config{
				EmailEnabled: cfg.Notifications.Email.Enabled,
				SMSEnabled:   cfg.Notifications.SMS.Enabled,
				FromEmail:    cfg.Notifications.Email.FromEmail,
				AWSRegion:    cfg.Notifications.AWS.Region,
				AWSEndpoint:  cfg.Notifications.AWS.Endpoint,
				Timeout:      config.GetDuration(wc.Timeout),
			},
			webhooks, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create send-deal-alert handler", zap.Error(err))
		}
		startWorker(zeebeClient, sda.TaskType, wc, handler.Handle, zapLog)
	}

	// --- 3. Pipeline Workers (3, self-registering) ---
	// These read their own worker config, so Register is a no-op when the
	// worker is disabled.
	cvlHandler, err := cvl.NewHandler(cvl.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		DB:        pg.DB,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create valuation lead handler", zap.Error(err))
	}
	if err := cvlHandler.Register(); err != nil {
		zapLog.Fatal("failed to register valuation lead worker", zap.Error(err))
	}

	sasHandler, err := sas.NewHandler(sas.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		DB:        pg.DB,
		Auth:      supabase,
		Redis:     agreementCache,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create agreement sync handler", zap.Error(err))
	}
	if err := sasHandler.Register(); err != nil {
		zapLog.Fatal("failed to register agreement sync worker", zap.Error(err))
	}

	ossHandler, err := oss.NewHandler(oss.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		DB:        pg.DB,
		Auth:      supabase,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create score override handler", zap.Error(err))
	}
	if err := ossHandler.Register(); err != nil {
		zapLog.Fatal("failed to register score override worker", zap.Error(err))
	}

	// --- 4. Enrichment Workers (1) ---
	if wc := config.GetWorkerConfig(cfg, ebc.TaskType); wc.Enabled {
		ebcCfg := ebc.LoadConfig()
		ebcCfg.APIBaseURL = cfg.Extraction.BaseURL
		ebcCfg.APIKey = cfg.Extraction.APIKey
		if cfg.Extraction.Model != "" {
			ebcCfg.Model = cfg.Extraction.Model
		}
		if cfg.Extraction.Timeout > 0 {
			ebcCfg.Timeout = config.GetDuration(cfg.Extraction.Timeout)
		}
		handler := ebc.NewHandler(ebcCfg, log)
		startWorker(zeebeClient, ebc.TaskType, wc, handler.Handle, zapLog)
	}

	// --- 5. Data Access Workers (2) ---
	if wc := config.GetWorkerConfig(cfg, qp.TaskType); wc.Enabled {
		qpCfg := qp.LoadConfig()
		qpCfg.Timeout = config.GetDuration(wc.Timeout)
		handler := qp.NewHandler(qpCfg, pg.DB, log)
		startWorker(zeebeClient, qp.TaskType, wc, handler.Handle, zapLog)
	}

	if wc := config.GetWorkerConfig(cfg, sl.TaskType); wc.Enabled {
		slCfg := sl.LoadConfig()
		slCfg.Timeout = config.GetDuration(wc.Timeout)
		handler := sl.NewHandler(slCfg, esClient.Client, log)
		startWorker(zeebeClient, sl.TaskType, wc, handler.Handle, zapLog)
	}

	zapLog.Info("All 11 workers registered successfully")

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

	for _, w := range jobWorkers {
		w.Close()
	}
	cvlHandler.Close()
	sasHandler.Close()
	ossHandler.Close()

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// jobWorkers collects every open subscription so shutdown can close
// them before the Zeebe client goes away.
var jobWorkers []*camunda.Worker

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	jobWorkers = append(jobWorkers, camunda.StartWorker(
		client,
		taskType,
		wcfg.MaxJobsActive,
		time.Duration(wcfg.Timeout)*time.Millisecond,
		handlerFunc,
		log,
	))
}
