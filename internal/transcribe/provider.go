package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Adapter is the interface for speech-to-text backends.
type Adapter interface {
	Descriptor() Descriptor
	Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error)
}

// Prober is implemented by adapters that can answer a cheap liveness check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Descriptor is the static description of an adapter. It is built once at
// startup and never changes afterwards.
type Descriptor struct {
	Name               string
	Priority           int // lower runs first
	RequiresCredential bool
	Accepted           []Encoding
	// Preferred is the conversion target when the clip's encoding isn't accepted.
	Preferred Encoding
	// Timeout overrides the chain-wide per-attempt timeout when non-zero.
	Timeout time.Duration
}

// Accepts reports whether the backend takes enc natively.
func (d Descriptor) Accepts(enc Encoding) bool {
	for _, a := range d.Accepted {
		if a == enc {
			return true
		}
	}
	return false
}

// prioritized overrides an adapter's default priority.
type prioritized struct {
	Adapter
	priority int
}

func (p prioritized) Descriptor() Descriptor {
	d := p.Adapter.Descriptor()
	d.Priority = p.priority
	return d
}

// Probe forwards to the wrapped adapter when it supports probing.
func (p prioritized) Probe(ctx context.Context) error {
	if pr, ok := p.Adapter.(Prober); ok {
		return pr.Probe(ctx)
	}
	return nil
}

const maxErrorBody = 200

// send performs req and returns the body of a 2xx response. Anything else
// becomes a ProviderError carrying the status and a trimmed body.
func send(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, providerError(provider, fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError(provider, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Provider: provider,
			Detail:   fmt.Sprintf("API error (status %d): %s", resp.StatusCode, errorSnippet(body)),
		}
	}
	return body, nil
}

// errorSnippet pulls a human-readable message out of common error payload
// shapes, falling back to the raw body.
func errorSnippet(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
		ErrMsg  string          `json:"err_msg"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, raw := range []json.RawMessage{payload.Error, payload.Detail} {
			if len(raw) == 0 {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return truncate(s)
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
				return truncate(nested.Message)
			}
		}
		if payload.Message != "" {
			return truncate(payload.Message)
		}
		if payload.ErrMsg != "" {
			return truncate(payload.ErrMsg)
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

// regionLanguage expands a bare language to the region-qualified tag some
// providers insist on.
func regionLanguage(lang string) string {
	switch lang {
	case "", "en":
		return "en-US"
	case "es":
		return "es-ES"
	case "fr":
		return "fr-FR"
	case "de":
		return "de-DE"
	case "pt":
		return "pt-BR"
	}
	if strings.Contains(lang, "-") {
		return lang
	}
	return lang + "-" + strings.ToUpper(lang)
}

func floatPtr(f float64) *float64 { return &f }
