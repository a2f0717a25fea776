package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpadp "loan-tracker/internal/adapter/http"
	mw "loan-tracker/internal/adapter/middleware"
	"loan-tracker/internal/adapter/repository/gormrepo"
	"loan-tracker/internal/config"
	"loan-tracker/internal/infrastructure/cache"
	"loan-tracker/internal/infrastructure/db"
	"loan-tracker/internal/infrastructure/logger"
	"loan-tracker/internal/usecase/loan"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	gdb, err := db.Open(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := gormrepo.Migrate(gdb); err != nil {
		return err
	}
	repo := gormrepo.NewLoanRepository(gdb)
	if cfg.SeedData {
		if _, err := db.Seed(ctx, repo); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := httpadp.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
		Metrics:        mw.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if cfg.IdempotencyEnabled() {
		rdb, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts.Idempotency = mw.Idempotency(rdb, cfg.IdempotencyTTL(), log)
		log.Info("idempotency enabled", "redis", cfg.RedisAddr, "ttl", cfg.IdempotencyTTL())
	}

	uc := loan.NewUsecase(repo, log)
	e := httpadp.NewRouter(httpadp.NewHandler(sqlDB), httpadp.NewLoanHandler(uc, log), opts)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		log.Info("listening", "addr", addr, "db_driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
