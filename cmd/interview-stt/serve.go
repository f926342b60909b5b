package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/snarg/interview-stt/internal/api"
	"github.com/snarg/interview-stt/internal/database"
	"github.com/snarg/interview-stt/internal/metrics"
	"github.com/snarg/interview-stt/internal/transcribe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&overrides.HTTPAddr, "http-addr", "",
			"HTTP listen address (overrides HTTP_ADDR)")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("interview-stt starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transcript log (optional)
	var (
		db   *database.DB
		rec  transcribe.Recorder
		opts = api.ServerOptions{Version: version, StartTime: startTime}
	)
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, cfg.DatabaseURL, dbPoolOptions(cfg), dbLog)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			log.Error().Err(err).Msg("schema migration failed")
			return err
		}
		tlog := database.NewTranscriptLog(db, cfg.TranscriptLogBatchSize, cfg.TranscriptLogFlushInterval, dbLog)
		defer tlog.Close()
		rec = tlog
		opts.DB = db
	} else {
		log.Info().Msg("DATABASE_URL not set, transcript log disabled")
	}

	svc, conv := buildPipeline(cfg, rec, log)
	opts.Converter = conv.Available()

	var pool *pgxpool.Pool
	if db != nil {
		pool = db.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(pool, svc, svc))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, svc, opts, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("interview-stt stopped")
	return nil
}
