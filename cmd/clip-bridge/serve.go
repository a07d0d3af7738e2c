package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendant/clip-bridge/internal/catalog"
	"github.com/tendant/clip-bridge/internal/config"
	"github.com/tendant/clip-bridge/internal/dam"
	"github.com/tendant/clip-bridge/internal/dbosruntime"
	"github.com/tendant/clip-bridge/internal/extractor"
	"github.com/tendant/clip-bridge/internal/handlers"
	"github.com/tendant/clip-bridge/internal/ledger"
	"github.com/tendant/clip-bridge/internal/metadata"
	"github.com/tendant/clip-bridge/internal/metrics"
	"github.com/tendant/clip-bridge/internal/publish"
	"github.com/tendant/clip-bridge/internal/queue"
	"github.com/tendant/clip-bridge/internal/workflows"
)

const shutdownTimeout = 10 * time.Second

// serveFlags maps serve flags onto configuration keys
var serveFlags = map[string]string{
	"listen":       config.KeyListenAddr,
	"workers":      config.KeyWorkers,
	"queue-size":   config.KeyQueueCapacity,
	"extractor":    config.KeyExtractorPath,
	"tool-timeout": config.KeyToolTimeout,
	"log-level":    config.KeyLogLevel,
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server and processing workers",
		Long: `Builds the metadata field catalog in Helix DAM, then listens for webhooks
on POST /webhook and processes queued .clip files in the background.

DAM_URL and ACCOUNT_KEY must be set in the environment or a .env file.`,
		Example: `  # Start on the default 0.0.0.0:8080 with one worker
  clip-bridge serve

  # Two workers, five minute limit per extraction
  clip-bridge serve --workers 2 --tool-timeout 5m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags(), serveFlags); err != nil {
				return err
			}
			setupLogging(v.GetString(config.KeyLogLevel))

			cfg, err := config.Load(v)
			if err != nil {
				slog.Error("Invalid configuration", "err", err)
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("listen", "0.0.0.0:8080", "Address to listen on")
	cmd.Flags().Int("workers", 1, "Number of processing workers")
	cmd.Flags().Int("queue-size", 1024, "Maximum number of files waiting in the in-memory queue")
	cmd.Flags().String("extractor", extractor.DefaultTool, "Path to the clip_extractor binary")
	cmd.Flags().String("tool-timeout", "0s", "Time limit for one extractor run (0 = no limit)")
	cmd.Flags().String("log-level", "debug", "Log level (debug, info, warn, error)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	damClient := dam.NewClient(cfg.DAMURL, cfg.AccountKey, cfg.DAMTimeout)

	// The catalog must be complete before any webhook is accepted.
	slog.Info("Building metadata field catalog", "dam", cfg.DAMURL)
	cat, err := catalog.Build(ctx, damClient, metadata.FieldNames())
	if err != nil {
		slog.Error("Failed to build metadata field catalog", "err", err)
		return err
	}
	slog.Info("✓ Metadata field catalog ready", "fields", cat.Len())

	q := queue.NewMemory(cfg.QueueCapacity)
	m := metrics.New(q.Len)

	workflow := workflows.NewClipWorkflow(
		damClient,
		extractor.New(cfg.ExtractorPath, cfg.ToolTimeout),
		publish.NewPublisher(damClient, cat, cfg.PreviewMaxDim),
		m,
		cfg.TempDir,
	)

	var runner *workflows.WorkflowRunner
	if cfg.Durable() {
		rt, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
			DatabaseURL:        cfg.DBOSDatabaseURL,
			AppName:            "clip-bridge",
			QueueName:          cfg.DBOSQueueName,
			Concurrency:        cfg.Workers,
			ApplicationVersion: cfg.DBOSAppVersion,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize DBOS: %w", err)
		}
		l, err := ledger.New(ctx, rt.DB())
		if err != nil {
			rt.Shutdown(shutdownTimeout)
			return err
		}

		// Register before launch
		runner = workflows.NewDurableWorkflowRunner(workflow, rt, l, m)
		if err := rt.Launch(); err != nil {
			rt.Shutdown(shutdownTimeout)
			return fmt.Errorf("failed to launch DBOS: %w", err)
		}
		defer rt.Shutdown(shutdownTimeout)
		slog.Info("✓ DBOS runtime initialized", "queue", rt.QueueName(), "concurrency", rt.Concurrency())
	} else {
		runner = workflows.NewWorkflowRunner(workflow, q, m)
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	runner.Start(workerCtx, cfg.Workers)

	webhook := handlers.NewWebhookHandler(runner, m, cfg.WebhookSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", webhook.HandleWebhook)
	mux.HandleFunc("/health", webhook.HandleHealth)
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("clip-bridge listening", "addr", cfg.ListenAddr, "workers", cfg.Workers, "durable", cfg.Durable())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err := <-serverErr:
		stopWorkers()
		runner.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "err", err)
	}

	// Workers finish the job in hand; anything still queued is dropped.
	if pending := q.Len(); pending > 0 {
		slog.Warn("Dropping queued files", "count", pending)
	}
	q.Close()
	stopWorkers()
	runner.Wait()

	slog.Info("Server stopped")
	return nil
}
