package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WhisperClient calls a self-hosted OpenAI-compatible /v1/audio/transcriptions
// endpoint (speaches, faster-whisper-server, whisper.cpp server).
type WhisperClient struct {
	url          string
	model        string
	timeout      time.Duration
	probeTimeout time.Duration
	client       *http.Client
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// NewWhisperClient creates a new Whisper HTTP client.
func NewWhisperClient(endpoint, model string, timeout, probeTimeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:          endpoint,
		model:        model,
		timeout:      timeout,
		probeTimeout: probeTimeout,
		client:       &http.Client{},
	}
}

func (wc *WhisperClient) Descriptor() Descriptor {
	return Descriptor{
		Name:     "whisper",
		Priority: 8,
		Accepted: []Encoding{
			EncodingWebM, EncodingOGG, EncodingWAV,
			EncodingMP3, EncodingM4A, EncodingFLAC,
		},
		Preferred: EncodingWAV,
		Timeout:   wc.timeout,
	}
}

// Transcribe posts the clip as multipart/form-data. Only the fields every
// compatible server understands are sent.
func (wc *WhisperClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio."+enc.Ext())
	if err != nil {
		return nil, providerError("whisper", fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return nil, providerError("whisper", fmt.Errorf("copy audio data: %w", err))
	}
	if wc.model != "" {
		w.WriteField("model", wc.model)
	}
	if language != "" {
		w.WriteField("language", language)
	}
	w.WriteField("response_format", "json")
	w.WriteField("temperature", "0")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return nil, providerError("whisper", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, err := send(wc.client, "whisper", req)
	if err != nil {
		return nil, err
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, providerError("whisper", fmt.Errorf("decode response: %w", err))
	}
	return &Transcript{Text: strings.TrimSpace(result.Text)}, nil
}

// Probe checks the server's /health endpoint. Self-hosted servers are often
// down, and a quick probe saves a full per-attempt timeout.
func (wc *WhisperClient) Probe(ctx context.Context) error {
	u, err := url.Parse(wc.url)
	if err != nil {
		return fmt.Errorf("parse whisper url: %w", err)
	}
	healthURL := u.Scheme + "://" + u.Host + "/health"

	if wc.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wc.probeTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return err
	}
	resp, err := wc.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
