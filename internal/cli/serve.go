package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fueleu/cbledger/internal/api"
	"github.com/fueleu/cbledger/internal/app/banking"
	"github.com/fueleu/cbledger/internal/app/compliance"
	"github.com/fueleu/cbledger/internal/app/pooling"
	"github.com/fueleu/cbledger/internal/infra/logging"
	"github.com/fueleu/cbledger/internal/infra/observability"
	"github.com/fueleu/cbledger/internal/infra/sqlite"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the cbledger HTTP API. Configuration comes from the TOML file,
then CBLEDGER_* environment variables (including those from --env-file).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	calc, err := newCalculator(cfg)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	tracer := observability.NewTracer(observability.DefaultMaxSpans)
	srv := api.NewServer(api.Deps{
		Compliance: compliance.NewService(calc, db, logger, tracer),
		Banking:    banking.NewService(db, logger, tracer),
		Pooling:    pooling.NewService(db, logger, tracer),
		Routes:     db,
		Tracer:     tracer,
		Logger:     logger,
	})
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}
	srv.SetCORSOrigin(cfg.API.CORSOrigin)

	readTimeout, err := cfg.API.ReadTimeoutDuration()
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           srv.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("storage", db.Path()),
			zap.Bool("metrics", cfg.API.Metrics),
			zap.Bool("strict_years", cfg.Regulation.StrictYears),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
