package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/controlplane"
	"github.com/fentz26/tasklist/internal/logging"
	"github.com/fentz26/tasklist/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

var (
	listenAddr  string
	storagePath string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the tasklist daemon",
	Long: `Starts the daemon which owns the task collection, saves it in the
background and serves the HTTP API.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&storagePath, "path", "", "Data file for file and sqlite storage (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	log.Info("Starting tasklist daemon",
		zap.String("listen", cfg.Server.Listen),
		zap.String("storage", cfg.Storage.Driver),
		zap.Duration("debounce", cfg.Persistence.Debounce))

	app, err := openLocal(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server := controlplane.NewServer(app.service, cfg.Server.Listen, cfg.Server.AllowedOrigins, log.Named("http"))

	var flusher *scheduler.AutoFlusher
	if cfg.Persistence.AutoFlush {
		flusher = scheduler.NewAutoFlusher(app.store, cfg.Persistence.AutoFlushInterval, log.Named("autoflush"))
		flusher.Start()
	}

	// Channel to receive server errors
	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	ops := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
		"storage": func(ctx context.Context) error {
			// Shutdown returns once in-flight requests finish, so the final
			// save sees every mutation.
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("HTTP server shutdown error", zap.Error(err))
			}
			if flusher != nil {
				flusher.Stop()
			}
			return app.saveAndClose(ctx)
		},
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, ops)

	select {
	case exitCode := <-wait:
		log.Info("Shutdown complete", zap.Int("exit_code", exitCode))
		if exitCode != 0 {
			logging.Sync(log)
			os.Exit(exitCode)
		}
		return nil
	case err, ok := <-serverErr:
		if !ok {
			// Closed by Shutdown; the signal path owns the exit.
			exitCode := <-wait
			log.Info("Shutdown complete", zap.Int("exit_code", exitCode))
			return nil
		}
		log.Error("Server error", zap.Error(err))
		if flusher != nil {
			flusher.Stop()
		}
		if cerr := app.saveAndClose(context.Background()); cerr != nil {
			log.Error("Final save failed", zap.Error(cerr))
		}
		return err
	}
}
