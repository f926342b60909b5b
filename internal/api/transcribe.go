package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/interview-stt/internal/transcribe"
)

// Transcriber is the pipeline the HTTP layer drives. *transcribe.Service
// implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, clip transcribe.AudioClip) (*transcribe.Result, error)
	Providers() []transcribe.Descriptor
	CacheStats() transcribe.CacheStats
}

// statusClientClosedRequest is nginx's non-standard code for a client that
// hung up before the response was ready.
const statusClientClosedRequest = 499

// multipartMemory is how much of an upload is buffered in memory before
// spilling to disk.
const multipartMemory = 8 << 20

var allowedMIMETypes = map[string]bool{
	"audio/webm":               true,
	"video/webm":               true,
	"audio/wav":                true,
	"audio/wave":               true,
	"audio/x-wav":              true,
	"audio/mp3":                true,
	"audio/mpeg":               true,
	"audio/ogg":                true,
	"audio/opus":               true,
	"audio/mp4":                true,
	"audio/m4a":                true,
	"audio/x-m4a":              true,
	"audio/flac":               true,
	"audio/x-flac":             true,
	"application/octet-stream": true,
}

// TranscribeResponse is the success body of POST /transcribe.
type TranscribeResponse struct {
	Success    bool      `json:"success"`
	Text       string    `json:"text"`
	Provider   string    `json:"provider"`
	Confidence *float64  `json:"confidence,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Cached     bool      `json:"cached"`
	Language   string    `json:"language"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProviderStatus describes one link of the fallback chain.
type ProviderStatus struct {
	Name               string   `json:"name"`
	Priority           int      `json:"priority"`
	RequiresCredential bool     `json:"requires_credential"`
	Accepted           []string `json:"accepted_encodings"`
	TimeoutMs          int64    `json:"timeout_ms,omitempty"`
}

// StatusResponse is the body of GET /transcription/status.
type StatusResponse struct {
	Providers []ProviderStatus      `json:"providers"`
	Primary   string                `json:"primary"`
	Total     int                   `json:"total"`
	Cache     transcribe.CacheStats `json:"cache"`
}

type TranscribeHandler struct {
	svc      Transcriber
	maxBytes int64
	log      zerolog.Logger
}

func NewTranscribeHandler(svc Transcriber, maxBytes int64, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		svc:      svc,
		maxBytes: maxBytes,
		log:      log.With().Str("handler", "transcribe").Logger(),
	}
}

// Routes registers the transcription endpoints.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/transcribe", h.Transcribe)
	r.Get("/transcription/status", h.Status)
}

// Transcribe handles POST /api/v1/transcribe.
// Multipart form: "audio" file, optional "format" and "language" fields.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge, "audio file exceeds upload limit")
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrEmptyAudio, "No audio file provided")
		return
	}
	defer file.Close()

	mime := baseMIME(header.Header.Get("Content-Type"))
	if mime != "" && !allowedMIMETypes[mime] {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrUnsupportedEncoding, "unsupported audio type "+mime)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "failed to read audio file")
		return
	}

	enc, err := resolveEncoding(r.FormValue("format"), mime, header.Filename)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrUnsupportedEncoding, err.Error())
		return
	}

	res, err := h.svc.Transcribe(r.Context(), transcribe.AudioClip{
		Data:     data,
		Encoding: enc,
		Language: r.FormValue("language"),
	})
	if err != nil {
		h.writeTranscribeError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, TranscribeResponse{
		Success:    true,
		Text:       res.Text,
		Provider:   res.Provider,
		Confidence: res.Confidence,
		DurationMs: res.ElapsedMs,
		Cached:     res.Cached,
		Language:   res.Language,
		Timestamp:  res.Timestamp,
	})
}

func (h *TranscribeHandler) writeTranscribeError(w http.ResponseWriter, r *http.Request, err error) {
	var allErr *transcribe.AllProvidersFailedError
	switch {
	case errors.Is(err, transcribe.ErrEmptyAudio):
		WriteErrorWithCode(w, http.StatusBadRequest, ErrEmptyAudio, "No audio data received")
	case errors.Is(err, transcribe.ErrTooShort):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Audio too short",
			Code:    ErrAudioTooShort,
			Message: "Please record at least 1 second of audio",
		})
	case errors.Is(err, transcribe.ErrUnsupportedEncoding):
		WriteErrorWithCode(w, http.StatusBadRequest, ErrUnsupportedEncoding, err.Error())
	case errors.As(err, &allErr):
		var names []string
		for _, d := range h.svc.Providers() {
			names = append(names, d.Name)
		}
		WriteJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:     "Transcription failed",
			Code:      ErrAllProvidersFailed,
			Message:   allErr.Error(),
			Providers: names,
		})
	case r.Context().Err() != nil:
		// Nobody is listening; the status only shows up in the access log.
		h.log.Info().Err(err).Msg("client went away during transcription")
		w.WriteHeader(statusClientClosedRequest)
	default:
		h.log.Error().Err(err).Msg("transcription failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "internal server error")
	}
}

// Status handles GET /api/v1/transcription/status.
func (h *TranscribeHandler) Status(w http.ResponseWriter, r *http.Request) {
	descs := h.svc.Providers()
	resp := StatusResponse{
		Providers: make([]ProviderStatus, 0, len(descs)),
		Total:     len(descs),
		Cache:     h.svc.CacheStats(),
	}
	for _, d := range descs {
		accepted := make([]string, len(d.Accepted))
		for i, e := range d.Accepted {
			accepted[i] = string(e)
		}
		resp.Providers = append(resp.Providers, ProviderStatus{
			Name:               d.Name,
			Priority:           d.Priority,
			RequiresCredential: d.RequiresCredential,
			Accepted:           accepted,
			TimeoutMs:          d.Timeout.Milliseconds(),
		})
	}
	if len(descs) > 0 {
		resp.Primary = descs[0].Name
	}
	WriteJSON(w, http.StatusOK, resp)
}

func baseMIME(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// resolveEncoding picks the clip encoding: explicit form field, then the
// part's MIME type, then the filename extension, then webm.
func resolveEncoding(format, mime, filename string) (transcribe.Encoding, error) {
	if format != "" {
		return transcribe.ParseEncoding(format)
	}
	if mime != "" && mime != "application/octet-stream" {
		if enc, err := transcribe.ParseEncoding(mime); err == nil {
			return enc, nil
		}
	}
	if ext := filepath.Ext(filename); ext != "" {
		if enc, err := transcribe.ParseEncoding(ext); err == nil {
			return enc, nil
		}
	}
	return transcribe.EncodingWebM, nil
}
