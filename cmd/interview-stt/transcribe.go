package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/snarg/interview-stt/internal/transcribe"
)

var (
	fileFormat   string
	fileLanguage string
	jsonOutput   bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE",
	Short: "Transcribe a local audio file through the provider chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVar(&fileFormat, "format", "",
		"Audio encoding (webm, ogg, opus, wav, mp3, m4a, flac); default from file extension")
	transcribeCmd.Flags().StringVar(&fileLanguage, "language", "",
		"Language code (default STT_DEFAULT_LANGUAGE)")
	transcribeCmd.Flags().BoolVar(&jsonOutput, "json", false,
		"Print the full result as JSON")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	format := fileFormat
	if format == "" {
		format = filepath.Ext(path)
	}
	enc, err := transcribe.ParseEncoding(format)
	if err != nil {
		return err
	}

	svc, _ := buildPipeline(cfg, nil, log)

	// Generous bound: every provider may use its full timeout.
	budget := time.Duration(len(svc.Providers())+1) * cfg.STT.Timeout
	ctx, cancel := withTimeout(budget)
	defer cancel()

	res, err := svc.Transcribe(ctx, transcribe.AudioClip{
		Data:     data,
		Encoding: enc,
		Language: fileLanguage,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		e := json.NewEncoder(out)
		e.SetIndent("", "  ")
		return e.Encode(res)
	}
	fmt.Fprintln(out, res.Text)
	log.Info().
		Str("provider", res.Provider).
		Int64("elapsed_ms", res.ElapsedMs).
		Str("language", res.Language).
		Msg("transcription complete")
	return nil
}
