package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/lethe/internal/archive"
	"github.com/dativo-io/lethe/internal/config"
	"github.com/dativo-io/lethe/internal/server"
)

var (
	serveAddr        string
	serveCORSOrigins []string
	serveNoArchive   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with the archive retention schedule",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: listen_addr from config)")
	serveCmd.Flags().StringSliceVar(&serveCORSOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	serveCmd.Flags().BoolVar(&serveNoArchive, "no-archive", false, "disable the mapping archive endpoints")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("initializing detector: %w", err)
	}
	if err := eng.Detector().Ready(ctx); err != nil {
		// Serve anyway; /health?detail=true reports the detector as degraded.
		log.Warn().Err(err).Str("detector", cfg.Detector).Msg("detector_not_ready")
	}

	opts := []server.Option{
		server.WithAPIKeys(cfg.APIKeys),
		server.WithRateLimit(cfg.RateLimitRPM),
		server.WithGlobalRateLimit(cfg.RateLimitGlobal),
		server.WithMaxBodyBytes(int64(cfg.MaxDocumentMB) << 20),
		server.WithCORSOrigins(serveCORSOrigins),
		server.WithVersion(resolvedVersion()),
	}

	var scheduler *archive.RetentionScheduler
	if !serveNoArchive {
		store, err := archive.NewStore(cfg.ArchiveDBPath())
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer store.Close()
		opts = append(opts, server.WithArchive(store))

		scheduler = archive.NewRetentionScheduler(store, cfg.RetentionDays)
		if err := scheduler.Register(cfg.RetentionSchedule); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if !cfg.AuthEnabled() {
		log.Warn().Msg("api_keys_not_configured: HTTP API is unauthenticated")
	}

	srv := server.NewServer(eng, opts...)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	cronEntries := 0
	if scheduler != nil {
		cronEntries = scheduler.Entries()
	}
	log.Info().
		Str("addr", addr).
		Str("detector", cfg.Detector).
		Bool("archive", !serveNoArchive).
		Bool("auth", cfg.AuthEnabled()).
		Int("cron_entries", cronEntries).
		Msg("lethe_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
