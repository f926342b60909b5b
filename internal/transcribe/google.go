package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleClient calls Cloud Speech-to-Text speech:recognize with an API key
// and base64 inline audio. MP3 is only understood by the v1p1beta1 API; on v1
// mp3 clips are converted to FLAC first.
type GoogleClient struct {
	apiKey   string
	endpoint string
	model    string
	mp3      bool
	timeout  time.Duration
	client   *http.Client
}

type googleRecognitionConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	Model                      string `json:"model,omitempty"`
}

type googleRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type googleResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// googleEncodings maps what we send to Google's RecognitionConfig enum and
// the sample rate it must be declared with. FLAC carries its own rate.
var googleEncodings = map[Encoding]struct {
	name string
	rate int
}{
	EncodingWebM: {"WEBM_OPUS", 48000},
	EncodingOGG:  {"OGG_OPUS", 48000},
	EncodingWAV:  {"LINEAR16", 16000},
	EncodingFLAC: {"FLAC", 0},
	EncodingMP3:  {"MP3", 16000},
}

func NewGoogleClient(apiKey, endpoint, model string, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    model,
		mp3:      strings.Contains(endpoint, "/v1p1beta1/"),
		timeout:  timeout,
		client:   &http.Client{},
	}
}

func (g *GoogleClient) Descriptor() Descriptor {
	accepted := []Encoding{EncodingWebM, EncodingOGG, EncodingWAV, EncodingFLAC}
	if g.mp3 {
		accepted = append(accepted, EncodingMP3)
	}
	return Descriptor{
		Name:               "google",
		Priority:           3,
		RequiresCredential: true,
		Accepted:           accepted,
		Preferred:          EncodingFLAC,
		Timeout:            g.timeout,
	}
}

func (g *GoogleClient) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	ge, ok := googleEncodings[enc]
	if !ok {
		return nil, providerErrorf("google", "encoding %s not supported", enc)
	}
	if enc == EncodingMP3 && !g.mp3 {
		return nil, providerErrorf("google", "mp3 requires the v1p1beta1 endpoint")
	}

	var payload googleRequest
	payload.Config = googleRecognitionConfig{
		Encoding:                   ge.name,
		SampleRateHertz:            ge.rate,
		LanguageCode:               regionLanguage(language),
		EnableAutomaticPunctuation: true,
		Model:                      g.model,
	}
	payload.Audio.Content = base64.StdEncoding.EncodeToString(data)
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, providerError("google", fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?key="+url.QueryEscape(g.apiKey), bytes.NewReader(b))
	if err != nil {
		return nil, providerError("google", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := send(g.client, "google", req)
	if err != nil {
		return nil, err
	}

	var result googleResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, providerError("google", fmt.Errorf("decode response: %w", err))
	}

	var lines []string
	var conf *float64
	for _, r := range result.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		lines = append(lines, strings.TrimSpace(alt.Transcript))
		if conf == nil {
			conf = floatPtr(alt.Confidence)
		}
	}
	return &Transcript{Text: strings.TrimSpace(strings.Join(lines, "\n")), Confidence: conf}, nil
}
