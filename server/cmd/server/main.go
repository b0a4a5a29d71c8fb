package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/funnelstack/server/internal/api"
	"github.com/obsidianstack/funnelstack/server/internal/config"
	"github.com/obsidianstack/funnelstack/server/internal/source"
	"github.com/obsidianstack/funnelstack/server/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard UI static files from this directory (e.g. ui/dist); leave empty to disable")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	slog.Info("funnelstack-server starting",
		"config", *configPath,
		"http_port", cfg.Server.HTTPPort,
		"data_driver", cfg.Data.Driver,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to set up tracing", "err", err)
		os.Exit(1)
	}

	src, closeSrc, err := source.New(cfg.Data)
	if err != nil {
		slog.Error("failed to open data source", "err", err)
		os.Exit(1)
	}

	handler := api.New(src,
		api.WithCORSOrigin(cfg.Server.CORSOrigin),
		api.WithSourceCloser(closeSrc),
	)

	// Hot reload: a changed data section swaps the source for later requests.
	// Port, CORS and telemetry changes need a restart.
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		current := cfg.Data
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			if next.Data == current {
				return
			}
			newSrc, newClose, err := source.New(next.Data)
			if err != nil {
				slog.Error("config: new data source rejected", "err", err)
				return
			}
			handler.SetSource(newSrc, newClose)
			current = next.Data
			slog.Info("config: data source switched", "driver", next.Data.Driver)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", handler)
	httpMux.Handle("/metrics", handler)

	// Optional: serve the pre-built dashboard UI from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("funnelstack-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("tracing shutdown", "err", err)
	}
	<-watchDone
	if err := handler.Close(); err != nil {
		slog.Warn("closing data source", "err", err)
	}
}
