package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/interview-stt/internal/transcribe"
)

// ErrLogClosed is returned by TranscriptLog after Close.
var ErrLogClosed = errors.New("transcript log closed")

const (
	defaultLogBatchSize     = 50
	defaultLogFlushInterval = 2 * time.Second
	logWriteTimeout         = 10 * time.Second
)

var transcriptionColumns = []string{
	"provider", "text", "language", "encoding", "audio_bytes",
	"fingerprint", "confidence", "elapsed_ms", "created_at",
}

// TranscriptLog buffers successful transcriptions and writes them in
// batches, so a slow database never adds latency to a request.
type TranscriptLog struct {
	batch  *batcher[*TranscriptionRow]
	insert func(ctx context.Context, rows []*TranscriptionRow) (int64, error)
	log    zerolog.Logger
}

// NewTranscriptLog creates a batching recorder on top of db. Zero size or
// interval selects the defaults.
func NewTranscriptLog(db *DB, size int, interval time.Duration, log zerolog.Logger) *TranscriptLog {
	return newTranscriptLog(db.CopyTranscriptions, size, interval, log)
}

func newTranscriptLog(insert func(context.Context, []*TranscriptionRow) (int64, error), size int, interval time.Duration, log zerolog.Logger) *TranscriptLog {
	if size <= 0 {
		size = defaultLogBatchSize
	}
	if interval <= 0 {
		interval = defaultLogFlushInterval
	}
	l := &TranscriptLog{insert: insert, log: log}
	l.batch = newBatcher(size, interval, l.flush)
	return l
}

// RecordTranscription implements transcribe.Recorder. It only queues the row.
func (l *TranscriptLog) RecordTranscription(ctx context.Context, clip transcribe.AudioClip, fingerprint string, r *transcribe.Result) error {
	if !l.batch.add(newTranscriptionRow(clip, fingerprint, r)) {
		return ErrLogClosed
	}
	return nil
}

// Close writes anything still queued.
func (l *TranscriptLog) Close() {
	l.batch.stop()
}

func (l *TranscriptLog) flush(rows []*TranscriptionRow) {
	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()

	start := time.Now()
	n, err := l.insert(ctx, rows)
	if err != nil {
		l.log.Error().Err(err).Int("rows", len(rows)).Msg("transcript log write failed")
		return
	}
	l.log.Debug().
		Int64("rows", n).
		Dur("took", time.Since(start)).
		Msg("transcript log flushed")
}

// CopyTranscriptions bulk-inserts rows with the COPY protocol.
func (db *DB) CopyTranscriptions(ctx context.Context, rows []*TranscriptionRow) (int64, error) {
	return db.Pool.CopyFrom(ctx,
		pgx.Identifier{"transcriptions"},
		transcriptionColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.Provider, r.Text, r.Language, r.Encoding, r.AudioBytes,
				r.Fingerprint, r.Confidence, r.ElapsedMs, r.CreatedAt,
			}, nil
		}),
	)
}
