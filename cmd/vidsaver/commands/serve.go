package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidsaver/vidsaver/config"
	"github.com/vidsaver/vidsaver/db"
	"github.com/vidsaver/vidsaver/errors"
	"github.com/vidsaver/vidsaver/fetch"
	"github.com/vidsaver/vidsaver/gate"
	"github.com/vidsaver/vidsaver/logger"
	"github.com/vidsaver/vidsaver/queue"
	"github.com/vidsaver/vidsaver/server"
)

// ServeCmd starts the download queue server
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the download queue server",
	Long: `Start the VidSaver server: HTTP API, background worker and
crash recovery. Runs until interrupted; in-flight downloads are given
time to record their outcome on shutdown.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logger.Initialize(cfg.Server.JSONLogs); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer logger.Sync()
	log := logger.Named("serve")

	database, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database, log); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Downloads.RootDirectory, 0o755); err != nil {
		return errors.Wrap(err, "failed to create download root directory")
	}

	store := queue.NewStore(database)

	policy, err := queue.PolicyFromSeconds(cfg.Downloads.RetryDelaysSeconds)
	if err != nil {
		return err
	}

	classifier := fetch.NewClassifier(cfg.Security.NonRetryableErrors)

	var fetchOpts []fetch.Option
	if cfg.Downloads.CookieFile != "" {
		fetchOpts = append(fetchOpts, fetch.WithCookieFile(cfg.Downloads.CookieFile))
	}
	fetcher := fetch.NewYTDLP(fetchOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := queue.NewWorkerPool(ctx, store, fetcher, classifier.Retryable, policy,
		queue.WorkerPoolConfig{
			Workers:      cfg.Downloads.MaxConcurrent,
			PollInterval: time.Duration(cfg.Downloads.PollIntervalSeconds) * time.Second,
			JobTimeout:   time.Duration(cfg.Downloads.TimeoutSeconds) * time.Second,
			DownloadDir:  cfg.Downloads.RootDirectory,
			MinFreeBytes: uint64(cfg.Downloads.MinFreeMB) * 1024 * 1024,
		}, logger.Logger)
	if err := pool.Start(); err != nil {
		return errors.Wrap(err, "failed to start worker pool")
	}

	admission := gate.New(cfg.Security.RateLimitPerOwner,
		time.Duration(cfg.Security.RateWindowMinutes)*time.Minute)

	srv := server.New(store, pool, admission, server.Config{
		Port:                cfg.Server.Port,
		GlobalRatePerSecond: cfg.Server.GlobalRatePerSecond,
		AllowedDomains:      cfg.Security.AllowedDomains,
	}, logger.Logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infow("Shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			pool.Stop()
			return errors.Wrap(err, "server failed")
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP shutdown did not complete cleanly", "error", err)
	}

	// Stop the pool last so in-flight requests can still observe job state.
	pool.Stop()

	log.Infow("Shutdown complete")
	return nil
}

// loadConfig honors the --config flag, falling back to the search path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.Root().PersistentFlags().GetString("config")
	}
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
