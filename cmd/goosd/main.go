// Entry point for the goosd control-state service: chi router, SSE broadcast
// hub, SQLite observability store.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/oceanbureau/goosd/api"
	"github.com/oceanbureau/goosd/config"
	"github.com/oceanbureau/goosd/controls"
	"github.com/oceanbureau/goosd/dbopen"
	"github.com/oceanbureau/goosd/hub"
	"github.com/oceanbureau/goosd/observability"
)

func main() {
	configPath := env("CONFIG", "goosd.yaml")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("config load failed", "path", configPath, "error", err)
		os.Exit(1)
	}
	if addr := os.Getenv("LISTEN"); addr != "" {
		cfg.Listen = addr
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.DBPath = path
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Observability store: optional, never on the control path.
	var events *observability.EventLogger
	if cfg.DBPath != "" {
		db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
		if err != nil {
			slog.Error("observability db open failed", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := observability.Init(db); err != nil {
			slog.Error("observability schema failed", "error", err)
			os.Exit(1)
		}
		events = observability.NewEventLogger(db)

		hb := observability.NewHeartbeatWriter(db, "goosd", 15*time.Second)
		hb.Start(ctx)
		defer hb.Stop()

		if err := observability.Cleanup(ctx, db, observability.RetentionConfig{
			EventLogsDays:  cfg.Retention.EventLogsDays,
			HeartbeatsDays: cfg.Retention.HeartbeatsDays,
			RunVacuumAfter: cfg.Retention.RunVacuumAfter,
		}); err != nil {
			slog.Warn("observability cleanup failed", "error", err)
		}
	}

	store := controls.NewStore()
	broadcast := hub.New(
		hub.WithLogger(logger),
		hub.WithHeartbeatInterval(cfg.HeartbeatInterval()),
		hub.WithBufferSize(cfg.SubscriberBuffer),
		hub.WithEvictedHook(func(subscriberID string) {
			events.LogEvent(ctx, observability.ControlEvent{
				Type:         observability.EventSubscriberEvicted,
				SubscriberID: subscriberID,
			})
		}),
	)
	go broadcast.Run(ctx)

	handler := api.NewHandler(store, broadcast,
		api.WithEventLogger(events),
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Register(r)

	// WriteTimeout stays 0: the stream endpoint holds responses open
	// indefinitely and relies on heartbeats to detect dead peers.
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
