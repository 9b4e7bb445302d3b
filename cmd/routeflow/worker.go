package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lthibault/jitterbug/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/routeingest/internal/app"
	"github.com/Lllllllleong/routeingest/internal/metrics"
	"github.com/Lllllllleong/routeingest/internal/models"
)

const gracefulShutdownTimeout = 10 * time.Second

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run batches on a timer and follow continuations until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cloud {
			return eris.New("worker runs in local mode only; cloud continuations go through workflows")
		}
		if err := cfg.Validate(false); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, app.ModeLocal)
		if err != nil {
			return err
		}
		defer a.Close()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return serveMetrics(ctx, ":"+strconv.Itoa(cfg.Server.Port)) })
		g.Go(func() error { return workLoop(ctx, a, cfg.Worker.Interval) })
		return g.Wait()
	},
}

func metricsRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", metrics.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

func serveMetrics(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: metricsRouter(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(shutdownCtx)
		zap.L().Info("metrics server terminated")
	}()

	zap.L().Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func workLoop(ctx context.Context, a *app.App, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 20})
	defer ticker.Stop()

	runOnce(ctx, a, models.RunRequest{Source: models.TriggerWorker})
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce(ctx, a, models.RunRequest{Source: models.TriggerWorker})
		case handle := <-a.Continuations.C():
			runOnce(ctx, a, models.RunRequest{Source: models.TriggerContinuation, ExecutionName: handle})
		}
	}
}

// runOnce logs run failures; the worker keeps going until stopped.
func runOnce(ctx context.Context, a *app.App, req models.RunRequest) {
	report, err := a.Coordinator.Run(ctx, req)
	if err != nil {
		zap.L().Error("run failed", zap.String("source", req.Source), zap.Error(err))
		return
	}
	if !report.Acquired {
		zap.L().Info("run skipped, lock held", zap.String("source", req.Source))
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
