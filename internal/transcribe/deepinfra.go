package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DeepInfraClient calls DeepInfra's native inference API for Whisper models.
type DeepInfraClient struct {
	apiKey  string
	baseURL string
	model   string // e.g. "openai/whisper-large-v3-turbo"
	timeout time.Duration
	client  *http.Client
}

type deepInfraResponse struct {
	Text     string             `json:"text"`
	Language string             `json:"language"`
	Segments []deepInfraSegment `json:"segments"`
}

type deepInfraSegment struct {
	Text string `json:"text"`
}

// NewDeepInfraClient creates a new DeepInfra inference client.
func NewDeepInfraClient(apiKey, baseURL, model string, timeout time.Duration) *DeepInfraClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &DeepInfraClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (di *DeepInfraClient) Descriptor() Descriptor {
	return Descriptor{
		Name:               "deepinfra",
		Priority:           7,
		RequiresCredential: true,
		Accepted: []Encoding{
			EncodingWebM, EncodingOGG, EncodingWAV,
			EncodingMP3, EncodingM4A, EncodingFLAC,
		},
		Preferred: EncodingWAV,
		Timeout:   di.timeout,
	}
}

// Transcribe posts the clip to {baseURL}{model}. DeepInfra names the file
// field "audio", not "file".
func (di *DeepInfraClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("audio", "audio."+enc.Ext())
	if err != nil {
		return nil, providerError("deepinfra", fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return nil, providerError("deepinfra", fmt.Errorf("copy audio data: %w", err))
	}
	if language != "" {
		w.WriteField("language", language)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, di.baseURL+di.model, &buf)
	if err != nil {
		return nil, providerError("deepinfra", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+di.apiKey)

	body, err := send(di.client, "deepinfra", req)
	if err != nil {
		return nil, err
	}

	var result deepInfraResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, providerError("deepinfra", fmt.Errorf("decode response: %w", err))
	}

	text := strings.TrimSpace(result.Text)
	if text == "" && len(result.Segments) > 0 {
		// Some models only fill segments.
		parts := make([]string, 0, len(result.Segments))
		for _, seg := range result.Segments {
			if s := strings.TrimSpace(seg.Text); s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, " ")
	}
	return &Transcript{Text: text}, nil
}
