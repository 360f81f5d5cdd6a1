package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/ledger/company"
	"github.com/ledgerline/ledgerline/internal/ledger/templates"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	companyRepo := company.NewRepository(pool)
	templatesRepo := templates.NewRepository(pool)
	installer := templates.NewInstaller(templatesRepo, logger)
	auditLog := shared.NewAuditLogger(pool)

	router := app.NewRouter(app.RouterParams{
		Pool:    pool,
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// The installer is idempotent, so the sweep is safe to repeat on every
	// boot. Companies with incomplete defaults are logged and skipped.
	group.Go(func() error {
		ids, err := companyRepo.ListIDs(groupCtx)
		if err != nil {
			logger.Warn("list companies for template sweep", slog.Any("error", err))
			return nil
		}
		now := time.Now()
		for _, id := range ids {
			companyCfg, err := companyRepo.Get(groupCtx, id)
			if err != nil {
				logger.Warn("load company config", slog.Int64("company_id", id), slog.Any("error", err))
				continue
			}
			installed, err := installer.EnsureDefaults(groupCtx, companyCfg, now)
			if err != nil {
				logger.Warn("ensure default templates", slog.Int64("company_id", id), slog.Any("error", err))
				continue
			}
			if installed == 0 {
				continue
			}
			if err := auditLog.Record(groupCtx, shared.AuditLog{
				CompanyID: id,
				Action:    "templates.install",
				Entity:    "company",
				EntityID:  strconv.FormatInt(id, 10),
				Meta:      map[string]any{"role_mappings": installed},
				At:        now,
			}); err != nil {
				logger.Warn("record template install audit", slog.Int64("company_id", id), slog.Any("error", err))
			}
		}
		return nil
	})

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("runtime", slog.Any("error", err))
		os.Exit(1)
	}
}
