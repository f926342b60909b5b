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

// HuggingFaceClient calls the hosted Inference API, trying each configured
// model in order until one returns text. The key is optional; anonymous
// requests are rate limited harder but work.
type HuggingFaceClient struct {
	apiKey  string
	baseURL string
	models  []string
	timeout time.Duration
	client  *http.Client
}

func NewHuggingFaceClient(apiKey, baseURL string, models []string, timeout time.Duration) *HuggingFaceClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HuggingFaceClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		models:  models,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (h *HuggingFaceClient) Descriptor() Descriptor {
	return Descriptor{
		Name:      "huggingface",
		Priority:  9,
		Accepted:  []Encoding{EncodingWAV, EncodingMP3, EncodingFLAC},
		Preferred: EncodingWAV,
		Timeout:   h.timeout,
	}
}

func (h *HuggingFaceClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	if !h.Descriptor().Accepts(enc) {
		return nil, providerErrorf("huggingface", "encoding %s not supported by hosted models", enc)
	}
	if len(h.models) == 0 {
		return nil, providerErrorf("huggingface", "no models configured")
	}

	var last *ProviderError
	for _, model := range h.models {
		text, err := h.call(ctx, model, data, enc)
		if err == nil {
			return &Transcript{Text: text}, nil
		}
		last = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, last
}

func (h *HuggingFaceClient) call(ctx context.Context, model string, data []byte, enc Encoding) (string, *ProviderError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+model, bytes.NewReader(data))
	if err != nil {
		return "", providerError("huggingface", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", enc.MIMEType())
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	body, err := send(h.client, "huggingface", req)
	if err != nil {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			pe = providerError("huggingface", err)
		}
		pe.Detail = model + ": " + pe.Detail
		return "", pe
	}

	text, err := parseHuggingFace(body)
	if err != nil {
		return "", providerErrorf("huggingface", "%s: %v", model, err)
	}
	if text == "" {
		return "", providerErrorf("huggingface", "%s: empty transcription", model)
	}
	return text, nil
}

// parseHuggingFace accepts both {"text": ...} and [{"generated_text": ...}].
func parseHuggingFace(body []byte) (string, error) {
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		return strings.TrimSpace(obj.Text), nil
	}
	var arr []struct {
		GeneratedText string `json:"generated_text"`
		Text          string `json:"text"`
	}
	if err := json.Unmarshal(body, &arr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(arr) == 0 {
		return "", nil
	}
	if arr[0].GeneratedText != "" {
		return strings.TrimSpace(arr[0].GeneratedText), nil
	}
	return strings.TrimSpace(arr[0].Text), nil
}
