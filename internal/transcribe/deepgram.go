package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DeepgramClient calls Deepgram's prerecorded /v1/listen endpoint with the raw
// audio as the request body.
type DeepgramClient struct {
	apiKey   string
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func NewDeepgramClient(apiKey, endpoint, model string, timeout time.Duration) *DeepgramClient {
	return &DeepgramClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    model,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

func (d *DeepgramClient) Descriptor() Descriptor {
	return Descriptor{
		Name:               "deepgram",
		Priority:           2,
		RequiresCredential: true,
		Accepted:           AllEncodings,
		Preferred:          EncodingWAV,
		Timeout:            d.timeout,
	}
}

func (d *DeepgramClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	if language != "" {
		q.Set("language", language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"?"+q.Encode(), bytes.NewReader(data))
	if err != nil {
		return nil, providerError("deepgram", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", enc.MIMEType())

	body, err := send(d.client, "deepgram", req)
	if err != nil {
		return nil, err
	}

	var result deepgramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, providerError("deepgram", fmt.Errorf("decode response: %w", err))
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return nil, providerErrorf("deepgram", "response contained no alternatives")
	}
	alt := result.Results.Channels[0].Alternatives[0]
	return &Transcript{
		Text:       strings.TrimSpace(alt.Transcript),
		Confidence: floatPtr(alt.Confidence),
	}, nil
}
