package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AssemblyAIClient uploads audio, submits a transcription job and polls it
// until it completes, errors, or maxWait elapses.
type AssemblyAIClient struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	maxWait      time.Duration
	timeout      time.Duration
	client       *http.Client
}

type assemblyUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyTranscript struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"` // queued, processing, completed, error
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Error      string   `json:"error"`
}

// NewAssemblyAIClient creates a client. maxWait bounds the polling phase; the
// caller must choose it since the upstream job has no natural deadline.
func NewAssemblyAIClient(apiKey, baseURL, model string, pollInterval, maxWait, timeout time.Duration) *AssemblyAIClient {
	return &AssemblyAIClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		timeout:      timeout,
		client:       &http.Client{},
	}
}

func (a *AssemblyAIClient) Descriptor() Descriptor {
	return Descriptor{
		Name:               "assemblyai",
		Priority:           1,
		RequiresCredential: true,
		Accepted:           AllEncodings,
		Preferred:          EncodingWAV,
		// Upload and submit get the regular budget on top of the polling bound.
		Timeout: a.maxWait + a.timeout,
	}
}

func (a *AssemblyAIClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	uploadURL, err := a.upload(ctx, data)
	if err != nil {
		return nil, err
	}
	id, err := a.submit(ctx, uploadURL, language)
	if err != nil {
		return nil, err
	}
	return a.poll(ctx, id)
}

func (a *AssemblyAIClient) upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/upload", bytes.NewReader(data))
	if err != nil {
		return "", providerError("assemblyai", fmt.Errorf("create upload request: %w", err))
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	body, err := send(a.client, "assemblyai", req)
	if err != nil {
		return "", err
	}
	var up assemblyUploadResponse
	if err := json.Unmarshal(body, &up); err != nil {
		return "", providerError("assemblyai", fmt.Errorf("decode upload response: %w", err))
	}
	if up.UploadURL == "" {
		return "", providerErrorf("assemblyai", "upload returned no upload_url")
	}
	return up.UploadURL, nil
}

func (a *AssemblyAIClient) submit(ctx context.Context, audioURL, language string) (string, error) {
	payload := map[string]any{
		"audio_url":    audioURL,
		"punctuate":    true,
		"format_text":  true,
		"speech_model": a.model,
	}
	if language != "" {
		payload["language_code"] = language
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/transcript", bytes.NewReader(b))
	if err != nil {
		return "", providerError("assemblyai", fmt.Errorf("create submit request: %w", err))
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := send(a.client, "assemblyai", req)
	if err != nil {
		return "", err
	}
	var tr assemblyTranscript
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", providerError("assemblyai", fmt.Errorf("decode submit response: %w", err))
	}
	if tr.ID == "" {
		return "", providerErrorf("assemblyai", "submit returned no transcript id")
	}
	return tr.ID, nil
}

func (a *AssemblyAIClient) poll(ctx context.Context, id string) (*Transcript, error) {
	deadline := time.Now().Add(a.maxWait)
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		tr, err := a.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		switch tr.Status {
		case "completed":
			return &Transcript{Text: strings.TrimSpace(tr.Text), Confidence: tr.Confidence}, nil
		case "error":
			return nil, providerErrorf("assemblyai", "transcription failed: %s", tr.Error)
		}

		if time.Now().Add(a.pollInterval).After(deadline) {
			return nil, providerErrorf("assemblyai", "transcript %s still %s after %s", id, tr.Status, a.maxWait)
		}
		select {
		case <-ctx.Done():
			return nil, &ProviderError{Provider: "assemblyai", Detail: "polling aborted: " + ctx.Err().Error(), Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (a *AssemblyAIClient) fetch(ctx context.Context, id string) (*assemblyTranscript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, providerError("assemblyai", fmt.Errorf("create poll request: %w", err))
	}
	req.Header.Set("Authorization", a.apiKey)

	body, err := send(a.client, "assemblyai", req)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			pe.Detail = "poll: " + pe.Detail
		}
		return nil, err
	}
	var tr assemblyTranscript
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, providerError("assemblyai", fmt.Errorf("decode poll response: %w", err))
	}
	return &tr, nil
}
