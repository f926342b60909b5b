package database

import (
	"context"
	"time"

	"github.com/snarg/interview-stt/internal/transcribe"
)

// TranscriptionRow is one entry of the transcript log. Audio bytes are never
// stored, only their size and fingerprint.
type TranscriptionRow struct {
	Provider    string
	Text        string
	Language    string
	Encoding    string
	AudioBytes  int
	Fingerprint string
	Confidence  *float64
	ElapsedMs   int64
	CreatedAt   time.Time
}

// TranscriptionAPI is the read shape of a logged transcription.
type TranscriptionAPI struct {
	ID          int64     `json:"id"`
	Provider    string    `json:"provider"`
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	Encoding    string    `json:"encoding"`
	AudioBytes  int       `json:"audio_bytes"`
	Fingerprint string    `json:"fingerprint"`
	Confidence  *float64  `json:"confidence,omitempty"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// newTranscriptionRow flattens a successful pipeline result into a log row.
func newTranscriptionRow(clip transcribe.AudioClip, fingerprint string, r *transcribe.Result) *TranscriptionRow {
	created := r.Timestamp
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &TranscriptionRow{
		Provider:    r.Provider,
		Text:        r.Text,
		Language:    r.Language,
		Encoding:    string(clip.Encoding),
		AudioBytes:  len(clip.Data),
		Fingerprint: fingerprint,
		Confidence:  r.Confidence,
		ElapsedMs:   r.ElapsedMs,
		CreatedAt:   created,
	}
}

// ListRecentTranscriptions returns the newest logged transcriptions first.
func (db *DB) ListRecentTranscriptions(ctx context.Context, limit int) ([]TranscriptionAPI, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, provider, text, language, encoding, audio_bytes,
			fingerprint, confidence, elapsed_ms, created_at
		FROM transcriptions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TranscriptionAPI
	for rows.Next() {
		var t TranscriptionAPI
		if err := rows.Scan(
			&t.ID, &t.Provider, &t.Text, &t.Language, &t.Encoding, &t.AudioBytes,
			&t.Fingerprint, &t.Confidence, &t.ElapsedMs, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
