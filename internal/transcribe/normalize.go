package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/interview-stt/internal/metrics"
)

// Converter transcodes audio between encodings.
type Converter interface {
	Convert(ctx context.Context, data []byte, from, to Encoding) ([]byte, error)
}

// LookupFFmpeg resolves the ffmpeg binary once at startup. An explicit path
// wins over $PATH. Returns "" if nothing usable is found.
func LookupFFmpeg(configured string) string {
	if configured != "" {
		if p, err := exec.LookPath(configured); err == nil {
			return p
		}
		return ""
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p
	}
	return ""
}

// runFunc executes the converter binary. Swapped out in tests.
type runFunc func(ctx context.Context, bin string, args []string) error

// FFmpegConverter shells out to ffmpeg against temporary files.
type FFmpegConverter struct {
	bin    string
	tmpDir string
	run    runFunc
	log    zerolog.Logger
}

// NewFFmpegConverter creates a converter for the resolved binary path.
// An empty path yields a converter whose every real conversion fails with
// ErrToolUnavailable.
func NewFFmpegConverter(bin string, log zerolog.Logger) *FFmpegConverter {
	return &FFmpegConverter{
		bin:    bin,
		tmpDir: os.TempDir(),
		run:    runCommand,
		log:    log,
	}
}

// Available reports whether a binary was resolved.
func (c *FFmpegConverter) Available() bool { return c.bin != "" }

// Convert returns data unchanged when from == to. Otherwise it writes the
// input to a temp file, runs ffmpeg, and reads the output back. Both temp
// files are removed on every return path.
func (c *FFmpegConverter) Convert(ctx context.Context, data []byte, from, to Encoding) ([]byte, error) {
	if from == to {
		return data, nil
	}
	if c.bin == "" {
		metrics.ConversionsTotal.WithLabelValues(string(to), "unavailable").Inc()
		return nil, ErrToolUnavailable
	}

	id := uuid.NewString()
	inPath := filepath.Join(c.tmpDir, "interview-stt-"+id+"-in."+from.Ext())
	outPath := filepath.Join(c.tmpDir, "interview-stt-"+id+"-out."+to.Ext())
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		metrics.ConversionsTotal.WithLabelValues(string(to), "error").Inc()
		return nil, fmt.Errorf("%w: write temp input: %v", ErrConversionFailed, err)
	}

	args := append([]string{"-hide_banner", "-loglevel", "error", "-y", "-i", inPath}, codecArgs(to)...)
	args = append(args, outPath)

	if err := c.run(ctx, c.bin, args); err != nil {
		metrics.ConversionsTotal.WithLabelValues(string(to), "error").Inc()
		return nil, fmt.Errorf("%w: %s -> %s: %v", ErrConversionFailed, from, to, err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		metrics.ConversionsTotal.WithLabelValues(string(to), "error").Inc()
		return nil, fmt.Errorf("%w: read output: %v", ErrConversionFailed, err)
	}
	if len(out) == 0 {
		metrics.ConversionsTotal.WithLabelValues(string(to), "error").Inc()
		return nil, fmt.Errorf("%w: %s -> %s produced no output", ErrConversionFailed, from, to)
	}

	metrics.ConversionsTotal.WithLabelValues(string(to), "ok").Inc()
	c.log.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Int("in_bytes", len(data)).
		Int("out_bytes", len(out)).
		Msg("audio converted")
	return out, nil
}

// codecArgs picks the output codec. Speech models are trained on 16 kHz
// mono, so every target is downmixed and resampled to that.
func codecArgs(to Encoding) []string {
	base := []string{"-vn", "-ac", "1", "-ar", "16000"}
	switch to {
	case EncodingWAV:
		return append(base, "-c:a", "pcm_s16le", "-f", "wav")
	case EncodingFLAC:
		return append(base, "-c:a", "flac", "-f", "flac")
	case EncodingMP3:
		return append(base, "-c:a", "libmp3lame", "-q:a", "4", "-f", "mp3")
	case EncodingOGG, EncodingOpus:
		return append(base, "-c:a", "libopus", "-b:a", "32k", "-f", "ogg")
	case EncodingWebM:
		return append(base, "-c:a", "libopus", "-b:a", "32k", "-f", "webm")
	case EncodingM4A:
		return append(base, "-c:a", "aac", "-b:a", "64k", "-f", "ipod")
	}
	return base
}

func runCommand(ctx context.Context, bin string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200]
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return fmt.Errorf("exit %d: %s", exitErr.ExitCode(), msg)
		}
		return err
	}
	return nil
}
