package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telephone-billing/internal/bills"
	"telephone-billing/internal/calls"
	"telephone-billing/internal/config"
	"telephone-billing/internal/observability"
	"telephone-billing/internal/pipeline"
	"telephone-billing/internal/queue"
	"telephone-billing/internal/storage"
	"telephone-billing/internal/tasks"
	"telephone-billing/pkg/logger"
	"telephone-billing/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "worker")
	slog.SetDefault(log)

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.Migrate(rootCtx, db); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.Register(reg)

	q := queue.NewRedisQueue(rdb)
	pub := &queue.RetryPublisher{Publisher: q, Retry: queue.DefaultRetryConfig()}
	tracker := tasks.NewTracker(tasks.NewPostgresRepo(db), tasks.NewRedisLocker(rdb))
	callSvc := calls.NewService(calls.NewPostgresRepo(db))
	billSvc := bills.NewService(bills.NewPostgresRepo(db), cfg.Tariff)

	dispatcher, err := pipeline.NewDispatcher(
		calls.RegistryRegistration(callSvc, tracker, pub),
		calls.CallRegistration(callSvc, tracker, pub),
		bills.Registration(billSvc, tracker, pub),
	)
	if err != nil {
		log.Error("dispatcher init failed", "err", err)
		os.Exit(1)
	}

	w := &queue.Worker{
		Source:      q,
		Publisher:   pub,
		Dispatcher:  dispatcher,
		Concurrency: cfg.Worker.Concurrency,
		Retry:       queue.DefaultRetryConfig(),
		Log:         log,
	}
	if cfg.Worker.RatePerSec > 0 {
		burst := int(cfg.Worker.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		w.Limiter = rate.NewLimiter(rate.Limit(cfg.Worker.RatePerSec), burst)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
		}
	}()

	backlogTriggers := append(dispatcher.Triggers(), pipeline.TriggerBillDone)
	go queue.WatchBacklog(logger.With(rootCtx, log), q, backlogTriggers, 15*time.Second)

	if err := w.Run(rootCtx); err != nil {
		log.Error("worker failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown failed", "err", err)
	}
}
