package transcribe

import (
	"fmt"
	"strings"
	"time"
)

// Encoding identifies an audio container/codec.
type Encoding string

const (
	EncodingWebM Encoding = "webm"
	EncodingOGG  Encoding = "ogg"
	EncodingOpus Encoding = "opus"
	EncodingWAV  Encoding = "wav"
	EncodingMP3  Encoding = "mp3"
	EncodingM4A  Encoding = "m4a"
	EncodingFLAC Encoding = "flac"
)

// AllEncodings lists every encoding the pipeline accepts from callers.
var AllEncodings = []Encoding{
	EncodingWebM, EncodingOGG, EncodingOpus, EncodingWAV,
	EncodingMP3, EncodingM4A, EncodingFLAC,
}

var mimeTypes = map[Encoding]string{
	EncodingWebM: "audio/webm",
	EncodingOGG:  "audio/ogg",
	EncodingOpus: "audio/opus",
	EncodingWAV:  "audio/wav",
	EncodingMP3:  "audio/mpeg",
	EncodingM4A:  "audio/mp4",
	EncodingFLAC: "audio/flac",
}

// aliases maps browser/MIME spellings onto the canonical encodings.
var aliases = map[string]Encoding{
	"weba":     EncodingWebM,
	"oga":      EncodingOGG,
	"wave":     EncodingWAV,
	"x-wav":    EncodingWAV,
	"vnd.wave": EncodingWAV,
	"mpeg":     EncodingMP3,
	"mpga":     EncodingMP3,
	"mp4":      EncodingM4A,
	"x-m4a":    EncodingM4A,
	"aac":      EncodingM4A,
	"x-flac":   EncodingFLAC,
}

// ParseEncoding accepts a bare name ("webm"), a file extension (".wav") or a
// MIME type ("audio/webm;codecs=opus").
func ParseEncoding(s string) (Encoding, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	v = strings.TrimPrefix(v, "audio/")
	v = strings.TrimPrefix(v, "video/")
	v = strings.TrimPrefix(v, ".")

	e := Encoding(v)
	if e.Valid() {
		return e, nil
	}
	if a, ok := aliases[v]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
}

// Valid reports whether e is one of the canonical encodings.
func (e Encoding) Valid() bool {
	_, ok := mimeTypes[e]
	return ok
}

// MIMEType returns the Content-Type used when sending e to a provider.
func (e Encoding) MIMEType() string {
	if m, ok := mimeTypes[e]; ok {
		return m
	}
	return "application/octet-stream"
}

// Ext returns the file extension (without dot) for e.
func (e Encoding) Ext() string { return string(e) }

// AudioClip is one recorded utterance submitted for transcription.
// The pipeline never keeps Data beyond the request.
type AudioClip struct {
	Data     []byte
	Encoding Encoding
	Language string
}

// Transcript is what a single adapter returns.
type Transcript struct {
	Text       string
	Confidence *float64 // nil if the provider doesn't report one
}

// Result is the uniform outcome handed back to callers and stored in the cache.
type Result struct {
	Text       string
	Provider   string
	Confidence *float64
	ElapsedMs  int64 // 0 for cache hits
	Cached     bool
	Language   string
	Timestamp  time.Time
}

func normalizeLanguage(lang, fallback string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return fallback
	}
	return lang
}
