package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snarg/interview-stt/internal/config"
	"github.com/snarg/interview-stt/internal/database"
	"github.com/snarg/interview-stt/internal/transcribe"
)

var overrides config.Overrides

var rootCmd = &cobra.Command{
	Use:   "interview-stt",
	Short: "Speech-to-text gateway with multi-provider fallback",
	Long: `interview-stt accepts short recorded answers and returns a transcript,
trying each configured speech-to-text provider in priority order.

Modes:
  interview-stt              Run the HTTP server (default)
  interview-stt serve        Run the HTTP server
  interview-stt transcribe   Transcribe a local file and print the result
  interview-stt providers    Show the resolved provider chain
  interview-stt history      Show recent entries from the transcript log`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&overrides.EnvFile, "env-file", "",
		"Path to .env file (default: .env)")
	rootCmd.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "",
		"Log level: trace, debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&overrides.DatabaseURL, "database-url", "",
		"PostgreSQL URL for the transcript log (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&overrides.FFmpegPath, "ffmpeg", "",
		"Path to the ffmpeg binary (overrides FFMPEG_PATH)")

	rootCmd.AddCommand(serveCmd, transcribeCmd, providersCmd, historyCmd)
}

// loadConfig reads configuration and builds the process logger from it.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if strings.EqualFold(cfg.LogFormat, "console") {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.With().Timestamp().Logger().Level(level)
}

// buildPipeline assembles converter, provider chain, cache and service.
// rec may be nil.
func buildPipeline(cfg *config.Config, rec transcribe.Recorder, log zerolog.Logger) (*transcribe.Service, *transcribe.FFmpegConverter) {
	sttLog := log.With().Str("component", "stt").Logger()

	ffmpeg := transcribe.LookupFFmpeg(cfg.FFmpegPath)
	if ffmpeg == "" {
		sttLog.Warn().Msg("ffmpeg not found, providers will receive audio in its original format")
	}
	conv := transcribe.NewFFmpegConverter(ffmpeg, sttLog)

	adapters := transcribe.BuildAdapters(cfg.STT, sttLog)
	orch := transcribe.NewOrchestrator(adapters, conv, cfg.STT.Timeout, sttLog)
	cache := transcribe.NewCache(cfg.CacheMaxEntries)

	var preprocess transcribe.Encoding
	if cfg.PreprocessEncoding != "" {
		enc, err := transcribe.ParseEncoding(cfg.PreprocessEncoding)
		if err != nil {
			sttLog.Warn().Err(err).Msg("ignoring PREPROCESS_ENCODING")
		} else {
			preprocess = enc
		}
	}

	// MIN_AUDIO_BYTES=0 is the operator's way to switch the floor off.
	minBytes := cfg.MinAudioBytes
	if minBytes == 0 {
		minBytes = transcribe.NoMinAudioBytes
	}

	svc := transcribe.NewService(orch, cache, conv, transcribe.ServiceOptions{
		MinAudioBytes:      minBytes,
		CacheSampleBytes:   cfg.CacheSampleBytes,
		PreprocessEncoding: preprocess,
		DefaultLanguage:    cfg.STT.DefaultLanguage,
		Recorder:           rec,
		Log:                sttLog,
	})

	names := make([]string, 0, orch.ProviderCount())
	for _, d := range orch.Descriptors() {
		names = append(names, d.Name)
	}
	sttLog.Info().Strs("chain", names).Msg("provider chain ready")
	if len(names) == 0 {
		sttLog.Warn().Msg("no transcription providers configured, every request will fail")
	}
	return svc, conv
}

func dbPoolOptions(cfg *config.Config) database.PoolOptions {
	return database.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns}
}

// withTimeout is a small helper for one-shot CLI commands.
func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
