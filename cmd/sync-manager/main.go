// cmd/sync-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"recruitsync/internal/alerts"
	"recruitsync/internal/common/aws"
	"recruitsync/internal/common/config"
	"recruitsync/internal/common/database"
	"recruitsync/internal/common/logger"
	"recruitsync/internal/common/observability"
	"recruitsync/internal/crm"
	"recruitsync/internal/repository/postgres"
	"recruitsync/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("starting sync manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Infrastructure connections with bounded startup retries.
	var pg *database.PostgresClient
	err = retryWithBackoff(5, 2*time.Second, func() error {
		var openErr error
		pg, openErr = database.NewPostgres(cfg.Database.Postgres)
		if openErr != nil {
			return openErr
		}
		return pg.Ping(ctx)
	})
	if err != nil {
		zapLogger.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(5, 2*time.Second, func() error {
		return redis.Ping(ctx)
	})
	if err != nil {
		zapLogger.Fatal("redis unavailable", zap.Error(err))
	}
	defer redis.Close()

	// CRM access layer.
	tokens, err := crm.NewTokenManager(cfg.CRM, log)
	if err != nil {
		zapLogger.Fatal("invalid CRM credentials", zap.Error(err))
	}
	executor := crm.NewExecutor(cfg.CRM, tokens, log)
	batcher := crm.NewBatcher(executor, log)

	// Alert channels degrade to no-ops when disabled.
	var sender alerts.Sender = alerts.NoopSender{}
	if cfg.Alerts.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Alerts.AWS.Region)
		if err != nil {
			zapLogger.Fatal("sns client init failed", zap.Error(err))
		}
		sender = alerts.NewSNSSender(snsClient, cfg.Alerts.SNS.TopicARN, log)
	}

	var notifier alerts.Notifier = alerts.NoopNotifier{}
	if cfg.Alerts.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Alerts.AWS.Region)
		if err != nil {
			zapLogger.Fatal("ses client init failed", zap.Error(err))
		}
		notifier = alerts.NewSESNotifier(sesClient, cfg.Alerts.SES.FromEmail, cfg.Alerts.SES.ToEmail)
	}

	// Persistence.
	jobStore := postgres.NewJobOppRepository(pg.DB)
	oppStore := postgres.NewCandidateOppRepository(pg.DB)
	candidateStore := postgres.NewCandidateRepository(pg.DB)
	countryStore := postgres.NewCountryRepository(pg.DB)

	// Sync services.
	mapper, err := sync.NewMapper(countryStore, sender, cfg.Sync.PublishCutover, log)
	if err != nil {
		zapLogger.Fatal("mapper init failed", zap.Error(err))
	}
	jobService := sync.NewJobOppService(executor, jobStore, mapper, cfg.Sync, log)
	oppService := sync.NewCandidateOppService(executor, batcher, jobService, oppStore, candidateStore,
		mapper, sender, notifier, cfg.Sync, log)

	scheduler := sync.NewScheduler(redis, jobService, oppService, obs, cfg.Sync, log)
	scheduler.Start(ctx)

	metricsServer := startMetricsServer(cfg.App.MetricsAddr, log)

	// Block until shutdown is requested.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", map[string]interface{}{"signal": sig.String()})

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server shutdown failed", nil)
	}
}

func startMetricsServer(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics server listening", map[string]interface{}{"addr": addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed", nil)
		}
	}()
	return server
}

func retryWithBackoff(attempts int, initial time.Duration, fn func() error) error {
	delay := initial
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}
