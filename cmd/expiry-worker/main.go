package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/db"
	"github.com/hackgods/salon-scheduling/internal/logging"
	"github.com/hackgods/salon-scheduling/internal/metrics"
	"github.com/hackgods/salon-scheduling/internal/realtime"
	redisclient "github.com/hackgods/salon-scheduling/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: "expiry-worker",
		Env:     cfg.Env,
	})
	slog.SetDefault(logger)

	if cfg.PendingAppointmentTTL <= 0 && cfg.RescheduleRequestTTL <= 0 {
		logger.Info("expiry disabled, set PENDING_APPOINTMENT_TTL or RESCHEDULE_REQUEST_TTL to enable")
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("expiry-worker stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	logger.Info("expiry-worker starting up",
		"schedule", cfg.ExpirySchedule,
		"pending_ttl", cfg.PendingAppointmentTTL,
		"reschedule_ttl", cfg.RescheduleRequestTTL,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection error: %w", err)
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis connection error: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "err", err)
		}
	}()

	m := metrics.NewSchedulingMetrics(prometheus.NewRegistry())

	// The worker has no websocket clients of its own, so cancellations only
	// reach api-server instances through the shared broker.
	var publishers []realtime.Publisher
	if cfg.RealtimeBroker == "redis" {
		publishers = append(publishers, realtime.NewRedisBroadcaster(rdb, realtime.DefaultRedisChannel))
	}
	if brokers := realtime.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaPub := realtime.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		defer func() { _ = kafkaPub.Close() }()
		publishers = append(publishers, kafkaPub)
	}

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisEmployeeLocker(rdb, cfg.LockTTL, cfg.LockWait)
	svc := appointment.NewService(repo, locker, cfg,
		appointment.WithPublisher(realtime.NewFanout(logger, m, publishers...)),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger),
	)

	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(cfg.ExpirySchedule, func() { runOnce(rootCtx, svc, logger) }); err != nil {
		return fmt.Errorf("invalid EXPIRY_SCHEDULE %q: %w", cfg.ExpirySchedule, err)
	}

	runOnce(rootCtx, svc, logger)
	c.Start()

	<-rootCtx.Done()
	logger.Info("shutdown signal received, stopping expiry worker")
	<-c.Stop().Done()
	return nil
}

func runOnce(ctx context.Context, svc *appointment.Service, logger *slog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	report, err := svc.ExpireStale(runCtx)
	if err != nil {
		logger.Error("expiry run failed", "err", err)
		return
	}
	logger.Info("expiry run finished",
		"appointments", report.Appointments,
		"reschedule_requests", report.RescheduleRequests,
		"took", time.Since(start),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
