package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/quotla/quotla-api/internal/api"
	"github.com/quotla/quotla-api/internal/billing"
	"github.com/quotla/quotla-api/internal/config"
	"github.com/quotla/quotla-api/internal/describe"
	"github.com/quotla/quotla-api/internal/export"
	"github.com/quotla/quotla-api/internal/fx"
	"github.com/quotla/quotla-api/internal/observability/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("QUOTLA_CONFIG"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	rates := fx.NewService(
		fx.NewHTTPProvider(cfg.FX, nil, logger),
		fx.NewRateCache(cfg.FX.CacheTTL),
		logger,
	)
	var describer api.Describer
	if cfg.Describe.Provider != describe.ProviderNone {
		describer = describe.New(cfg.Describe, logger)
	}
	svc := api.NewService(cfg.API, api.Deps{
		FX:        rates,
		Exporter:  export.New(cfg.Export, logger),
		Describer: describer,
		Audit:     api.NewMemoryAuditRecorder(),
		Numbers:   billing.TimestampNumbers{},
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: cfg.API.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("quotla api listening",
			slog.String("addr", cfg.API.Addr),
			slog.String("pdfEngine", cfg.Export.PDFEngine),
			slog.String("aiProvider", cfg.Describe.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
