package entrypoint

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkowalik/ankiconv/internal/config"
	http_controllers "github.com/mkowalik/ankiconv/internal/http"
	"github.com/mkowalik/ankiconv/internal/logger"
	"github.com/mkowalik/ankiconv/internal/pipeline"
	"github.com/mkowalik/ankiconv/internal/worker"
)

// Run starts the HTTP server and blocks until an interrupt, then shuts
// down gracefully within the configured timeout.
func Run(cfg *config.Config, version string) {
	log, err := logger.New(cfg.Global.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting ankiconv", "version", version)

	p := pipeline.New(log)
	manager := worker.NewManager(p, worker.NewLimitedRunner(cfg.Worker.Conversions), log)
	router := http_controllers.NewRouter(cfg, manager, log, version)

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down", "timeout", timeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Discard any conversions still in flight before the server stops.
	manager.Cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown failed", "error", err)
	}

	log.Info("server exiting")
}
