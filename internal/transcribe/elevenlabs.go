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

// ElevenLabsClient calls the ElevenLabs Speech-to-Text API.
type ElevenLabsClient struct {
	apiKey   string
	url      string
	model    string // "scribe_v1" or "scribe_v2"
	keyterms string // comma-separated boost terms
	timeout  time.Duration
	client   *http.Client
}

type elevenlabsResponse struct {
	LanguageCode        string  `json:"language_code"`
	LanguageProbability float64 `json:"language_probability"`
	Text                string  `json:"text"`
}

// NewElevenLabsClient creates a new ElevenLabs STT client.
func NewElevenLabsClient(apiKey, url, model, keyterms string, timeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:   apiKey,
		url:      url,
		model:    model,
		keyterms: keyterms,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

func (el *ElevenLabsClient) Descriptor() Descriptor {
	return Descriptor{
		Name:               "elevenlabs",
		Priority:           6,
		RequiresCredential: true,
		Accepted:           AllEncodings,
		Preferred:          EncodingWAV,
		Timeout:            el.timeout,
	}
}

func (el *ElevenLabsClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio."+enc.Ext())
	if err != nil {
		return nil, providerError("elevenlabs", fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(data); err != nil {
		return nil, providerError("elevenlabs", fmt.Errorf("copy audio data: %w", err))
	}
	w.WriteField("model_id", el.model)
	if language != "" {
		w.WriteField("language_code", language)
	}
	if kt := el.buildKeyterms(); kt != "" {
		w.WriteField("keyterms", kt)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, el.url, &buf)
	if err != nil {
		return nil, providerError("elevenlabs", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("xi-api-key", el.apiKey)

	body, err := send(el.client, "elevenlabs", req)
	if err != nil {
		return nil, err
	}

	var result elevenlabsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, providerError("elevenlabs", fmt.Errorf("decode response: %w", err))
	}
	return &Transcript{Text: strings.TrimSpace(result.Text)}, nil
}

// buildKeyterms turns the comma-separated config string into the JSON array
// of {"text": "term"} objects the API expects.
func (el *ElevenLabsClient) buildKeyterms() string {
	type keyterm struct {
		Text string `json:"text"`
	}
	var arr []keyterm
	for _, t := range strings.Split(el.keyterms, ",") {
		if t = strings.TrimSpace(t); t != "" {
			arr = append(arr, keyterm{Text: t})
		}
	}
	if len(arr) == 0 {
		return ""
	}
	b, _ := json.Marshal(arr)
	return string(b)
}
