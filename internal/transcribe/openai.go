package transcribe

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient transcribes through the hosted OpenAI audio API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient creates a client. baseURL is optional and points the SDK at
// a proxy or compatible gateway.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}
}

func (o *OpenAIClient) Descriptor() Descriptor {
	return Descriptor{
		Name:               "openai",
		Priority:           5,
		RequiresCredential: true,
		Accepted: []Encoding{
			EncodingWebM, EncodingOGG, EncodingWAV,
			EncodingMP3, EncodingM4A, EncodingFLAC,
		},
		Preferred: EncodingWAV,
		Timeout:   o.timeout,
	}
}

func (o *OpenAIClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "audio." + enc.Ext(), // the SDK takes the upload's filename from here
		Reader:   bytes.NewReader(data),
		Language: language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, openAIError(err)
	}
	return &Transcript{Text: strings.TrimSpace(resp.Text)}, nil
}

func openAIError(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return &ProviderError{Provider: "openai", Detail: "invalid OpenAI API key", Err: err}
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			strings.Contains(strings.ToLower(apiErr.Message), "quota"):
			return &ProviderError{Provider: "openai", Detail: "OpenAI API quota exceeded", Err: err}
		}
		return &ProviderError{Provider: "openai", Detail: truncate(apiErr.Message), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: "openai", Detail: truncate(reqErr.Error()), Err: err}
	}
	return providerError("openai", err)
}
