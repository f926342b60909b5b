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

// AzureClient calls the Azure Speech short-audio REST endpoint.
type AzureClient struct {
	apiKey   string
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

type azureResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	NBest             []struct {
		Confidence float64 `json:"Confidence"`
		Display    string  `json:"Display"`
	} `json:"NBest"`
}

// NewAzureClient builds the regional endpoint unless endpoint overrides it.
func NewAzureClient(apiKey, region, endpoint string, timeout time.Duration) *AzureClient {
	if endpoint == "" {
		endpoint = "https://" + region + ".stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"
	}
	return &AzureClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

func (az *AzureClient) Descriptor() Descriptor {
	return Descriptor{
		Name:               "azure",
		Priority:           4,
		RequiresCredential: true,
		Accepted:           []Encoding{EncodingWAV, EncodingOGG},
		Preferred:          EncodingWAV,
		Timeout:            az.timeout,
	}
}

func (az *AzureClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	var contentType string
	switch enc {
	case EncodingWAV:
		contentType = "audio/wav; codecs=audio/pcm; samplerate=16000"
	case EncodingOGG:
		contentType = "audio/ogg; codecs=opus"
	default:
		return nil, providerErrorf("azure", "encoding %s not supported", enc)
	}

	q := url.Values{}
	q.Set("language", regionLanguage(language))
	q.Set("format", "detailed")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, az.endpoint+"?"+q.Encode(), bytes.NewReader(data))
	if err != nil {
		return nil, providerError("azure", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", az.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	body, err := send(az.client, "azure", req)
	if err != nil {
		return nil, err
	}

	var result azureResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, providerError("azure", fmt.Errorf("decode response: %w", err))
	}
	if result.RecognitionStatus != "Success" {
		return nil, providerErrorf("azure", "recognition status %s", result.RecognitionStatus)
	}

	t := &Transcript{Text: strings.TrimSpace(result.DisplayText)}
	if len(result.NBest) > 0 {
		if t.Text == "" {
			t.Text = strings.TrimSpace(result.NBest[0].Display)
		}
		t.Confidence = floatPtr(result.NBest[0].Confidence)
	}
	return t, nil
}
