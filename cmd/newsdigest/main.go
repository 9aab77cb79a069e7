// newsdigest pulls the latest article from a list of industry news sites
// through an AI extraction API, deduplicates them by (source, title) and
// serves them grouped by date.
//
//	newsdigest serve    HTTP API plus the built-in ingestion schedule (default)
//	newsdigest ingest   run the pipeline once and print the report
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"newsdigest/internal/api"
	"newsdigest/internal/config"
	"newsdigest/internal/logger"
	"newsdigest/internal/scheduler"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("newsdigest failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "newsdigest",
		Short:         "Industry news digest: ingestion pipeline and read API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside local development.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "ingest",
		Short: "Run the ingestion pipeline once and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout())
		},
	})
	return root
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	return newApp(ctx, cfg, log)
}

func runIngest(parent context.Context, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.ingest.Ingest(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runServe(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.logger

	// ── Scheduler ───────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if a.cfg.IngestSchedule != "" {
		var opts []scheduler.Option
		if a.cfg.IngestOnStart {
			opts = append(opts, scheduler.WithRunOnStart())
		}
		sched = scheduler.New(a.ingest, a.cfg.IngestSchedule, log, opts...)
		if err := sched.Start(ctx); err != nil {
			return err
		}
	} else {
		log.Info("built-in ingestion schedule disabled")
	}

	// ── HTTP server ─────────────────────────────────────────────────────────
	h := api.NewHandler(a.query, a.ingest, a.backend, a.cfg.RecentWindowDays, log)
	router := api.NewRouter(h, api.ServerConfig{IngestPerMinute: a.cfg.IngestRatePerMin, IngestBurst: 1}, log)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", a.cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// /ingest runs the whole pipeline: eight sites, retries and delays.
		WriteTimeout: 15 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "version", api.Version, "store", a.cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	log.Info("stopped")
	return nil
}
