package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/medixpert/internal/adapters/http/api"
	"github.com/okian/medixpert/internal/adapters/http/swagger"
	service "github.com/okian/medixpert/internal/app"
	"github.com/okian/medixpert/pkg/logger"
	"github.com/okian/medixpert/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var trainOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP inference API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), trainOnStart)
		},
	}
	cmd.Flags().BoolVar(&trainOnStart, "train-on-start", true, "Train before serving when the model is missing or stale")
	return cmd
}

func (c *cli) serve(parent context.Context, trainOnStart bool) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			c.log.Error(ctx, "close store", logger.Error(err))
		}
	}()
	if err := c.seedIfEmpty(ctx, store); err != nil {
		return err
	}

	trainer := c.newTrainer(store)
	if trainOnStart {
		if err := trainIfStale(ctx, trainer); err != nil {
			c.log.Warn(ctx, "startup training failed; serving from fallback", logger.Error(err))
		}
	}
	svc := c.newService(store)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if c.cfg.RetrainSchedule != "" {
		retrainer, err := service.NewRetrainer(trainer, svc, c.cfg.RetrainSchedule, c.log.Named("retrain"))
		if err != nil {
			return err
		}
		retrainer.Start(ctx)
		defer retrainer.Stop()
	}

	go startSystemMetricsUpdater(ctx)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithMaxHistoryLimit(c.cfg.MaxHistoryLimit),
		api.WithLogger(c.log.Named("api")),
	).Register(mux)

	srv := &http.Server{
		Addr:              c.cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.Info(ctx, "starting HTTP server", logger.String("addr", c.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Join(api.ErrServe, err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	c.log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	c.log.Info(ctx, "server stopped")
	return nil
}

func trainIfStale(ctx context.Context, t *service.Trainer) error {
	stale, err := t.Stale(ctx)
	if err != nil || !stale {
		return err
	}
	_, err = t.Train(ctx)
	return err
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.Default().UpdateSystem(m.Alloc, runtime.NumGoroutine())
}
