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

	"github.com/prometheus/client_golang/prometheus"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	biliadapter "github.com/zihaowei/bilipanel/internal/adapter/driven/bili"
	sqliteadapter "github.com/zihaowei/bilipanel/internal/adapter/driven/sqlite"
	httphandler "github.com/zihaowei/bilipanel/internal/adapter/driving/http"
	"github.com/zihaowei/bilipanel/internal/application"
	"github.com/zihaowei/bilipanel/internal/config"
	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on a missing or malformed secret key).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"crawl_interval", cfg.CrawlInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	cookieStore, err := sqliteadapter.NewCookieRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	paramsStore := sqliteadapter.NewParamsRepo(db)
	videoStore := sqliteadapter.NewVideoRepo(db)
	commentStore := sqliteadapter.NewCommentRepo(db)
	maintenanceStore := sqliteadapter.NewMaintenanceRepo(db)
	client := biliadapter.NewClient()

	// 6. Seed the runtime configuration from persisted state.
	params := model.DefaultCrawlerParams()
	if stored, err := paramsStore.Get(ctx); err != nil {
		return err
	} else if stored != nil {
		params = stored.Clamped()
	}
	runtime := application.NewRuntimeConfig(params)

	if stored, _, err := cookieStore.GetValid(ctx); err != nil {
		return err
	} else if stored != nil {
		if err := runtime.SetCookie(stored.Value); err != nil {
			slog.Warn("stored cookie is unusable, starting without one", "error", err)
		} else {
			slog.Info("cookie restored from database")
		}
	}

	// 7. Create application services.
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	settingsSvc := application.NewSettingsService(
		cookieStore, paramsStore, maintenanceStore, runtime, collector, slog.Default())
	qrLoginSvc := application.NewQRLoginService(client, settingsSvc, slog.Default())
	defer qrLoginSvc.Cleanup()

	crawlSvc := application.NewCrawlService(
		client, videoStore, commentStore, runtime, collector, cfg.CrawlInterval)
	go crawlSvc.Start(ctx)

	// 8. Create HTTP handler and start the server.
	apiHandler := httphandler.NewHandler(
		settingsSvc, qrLoginSvc, crawlSvc, runtime,
		client, videoStore, commentStore, slog.Default())
	mux := httphandler.NewServeMux(apiHandler, collector, metrics.Handler(registry), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("bilipanel started",
		"listen_addr", cfg.ListenAddr,
		"crawl_interval", cfg.CrawlInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
