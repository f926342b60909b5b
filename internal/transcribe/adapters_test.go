package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var audio = []byte("fake-audio-bytes-0123456789")

func TestDeepgramClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token dg-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/webm" {
			t.Errorf("Content-Type = %q", got)
		}
		q := r.URL.Query()
		if q.Get("model") != "nova-2" || q.Get("language") != "en" || q.Get("smart_format") != "true" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != string(audio) {
			t.Errorf("body = %q", body)
		}
		fmt.Fprint(w, `{"results":{"channels":[{"alternatives":[{"transcript":" hello world ","confidence":0.93}]}]}}`)
	}))
	defer srv.Close()

	c := NewDeepgramClient("dg-key", srv.URL, "nova-2", time.Second)
	tr, err := c.Transcribe(context.Background(), audio, EncodingWebM, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "hello world" {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Confidence == nil || *tr.Confidence != 0.93 {
		t.Errorf("Confidence = %v", tr.Confidence)
	}
}

func TestDeepgramClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"err_msg":"Invalid credentials."}`)
	}))
	defer srv.Close()

	c := NewDeepgramClient("bad", srv.URL, "nova-2", time.Second)
	_, err := c.Transcribe(context.Background(), audio, EncodingWebM, "en")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.Provider != "deepgram" || !strings.Contains(pe.Detail, "status 401") || !strings.Contains(pe.Detail, "Invalid credentials") {
		t.Errorf("ProviderError = %+v", pe)
	}
}

func TestGoogleClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		var req googleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Config.Encoding != "WEBM_OPUS" || req.Config.SampleRateHertz != 48000 {
			t.Errorf("config = %+v", req.Config)
		}
		if req.Config.LanguageCode != "en-US" || !req.Config.EnableAutomaticPunctuation {
			t.Errorf("config = %+v", req.Config)
		}
		if req.Audio.Content != base64.StdEncoding.EncodeToString(audio) {
			t.Error("audio content not base64 of input")
		}
		fmt.Fprint(w, `{"results":[
			{"alternatives":[{"transcript":"hello","confidence":0.9}]},
			{"alternatives":[{"transcript":"world","confidence":0.8}]}]}`)
	}))
	defer srv.Close()

	c := NewGoogleClient("g-key", srv.URL, "latest_long", time.Second)
	tr, err := c.Transcribe(context.Background(), audio, EncodingWebM, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "hello\nworld" {
		t.Errorf("Text = %q", tr.Text)
	}
	if !c.Descriptor().Accepts(EncodingFLAC) || c.Descriptor().Accepts(EncodingMP3) {
		t.Error("accepted encodings wrong")
	}
}

func TestGoogleClient_MP3(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req googleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Config.Encoding != "MP3" || req.Config.SampleRateHertz != 16000 {
			t.Errorf("config = %+v", req.Config)
		}
		fmt.Fprint(w, `{"results":[{"alternatives":[{"transcript":"mp3 ok","confidence":0.7}]}]}`)
	}))
	defer srv.Close()

	t.Run("v1 converts to flac", func(t *testing.T) {
		c := NewGoogleClient("g-key", srv.URL+"/v1/speech:recognize", "", time.Second)
		d := c.Descriptor()
		if d.Accepts(EncodingMP3) || d.Preferred != EncodingFLAC {
			t.Errorf("descriptor = %+v, want mp3 routed through flac", d)
		}
		_, err := c.Transcribe(context.Background(), audio, EncodingMP3, "en")
		if err == nil || !strings.Contains(err.Error(), "v1p1beta1") {
			t.Errorf("err = %v, want v1p1beta1 detail", err)
		}
		if hits.Load() != 0 {
			t.Error("mp3 should not be sent to the v1 endpoint")
		}
	})

	t.Run("v1p1beta1 sends mp3", func(t *testing.T) {
		c := NewGoogleClient("g-key", srv.URL+"/v1p1beta1/speech:recognize", "", time.Second)
		if !c.Descriptor().Accepts(EncodingMP3) {
			t.Fatal("v1p1beta1 should accept mp3")
		}
		tr, err := c.Transcribe(context.Background(), audio, EncodingMP3, "en")
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if tr.Text != "mp3 ok" {
			t.Errorf("Text = %q", tr.Text)
		}
	})
}

func TestAzureClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "az-key" {
			t.Errorf("missing subscription key")
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "audio/wav") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.URL.Query().Get("language") != "en-US" || r.URL.Query().Get("format") != "detailed" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"RecognitionStatus":"Success","DisplayText":"Hello world.","NBest":[{"Confidence":0.87,"Display":"Hello world."}]}`)
	}))
	defer srv.Close()

	c := NewAzureClient("az-key", "", srv.URL, time.Second)
	tr, err := c.Transcribe(context.Background(), audio, EncodingWAV, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Hello world." || tr.Confidence == nil || *tr.Confidence != 0.87 {
		t.Errorf("got %q / %v", tr.Text, tr.Confidence)
	}
}

func TestAzureClient_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"RecognitionStatus":"NoMatch"}`)
	}))
	defer srv.Close()

	c := NewAzureClient("az-key", "", srv.URL, time.Second)
	_, err := c.Transcribe(context.Background(), audio, EncodingWAV, "en")
	if err == nil || !strings.Contains(err.Error(), "NoMatch") {
		t.Errorf("err = %v, want NoMatch failure", err)
	}
}

func TestAzureClient_RegionEndpoint(t *testing.T) {
	c := NewAzureClient("k", "westeurope", "", time.Second)
	want := "https://westeurope.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"
	if c.endpoint != want {
		t.Errorf("endpoint = %q", c.endpoint)
	}
}

func TestMultipartClients(t *testing.T) {
	tests := []struct {
		name      string
		fileField string
		authCheck func(r *http.Request) bool
		reply     string
		build     func(url string) Adapter
		want      string
	}{
		{
			name:      "whisper",
			fileField: "file",
			authCheck: func(r *http.Request) bool { return r.FormValue("response_format") == "json" },
			reply:     `{"text":" self hosted "}`,
			build: func(url string) Adapter {
				return NewWhisperClient(url+"/v1/audio/transcriptions", "large-v3", time.Second, time.Second)
			},
			want: "self hosted",
		},
		{
			name:      "deepinfra",
			fileField: "audio",
			authCheck: func(r *http.Request) bool {
				return r.Header.Get("Authorization") == "Bearer di-key" &&
					strings.HasSuffix(r.URL.Path, "/openai/whisper-large-v3-turbo")
			},
			reply: `{"text":"","segments":[{"text":"from"},{"text":"segments"}]}`,
			build: func(url string) Adapter {
				return NewDeepInfraClient("di-key", url+"/v1/inference", "openai/whisper-large-v3-turbo", time.Second)
			},
			want: "from segments",
		},
		{
			name:      "elevenlabs",
			fileField: "file",
			authCheck: func(r *http.Request) bool {
				return r.Header.Get("xi-api-key") == "el-key" &&
					r.FormValue("model_id") == "scribe_v1" &&
					r.FormValue("keyterms") == `[{"text":"kubernetes"},{"text":"golang"}]`
			},
			reply: `{"language_code":"en","text":"scribe text"}`,
			build: func(url string) Adapter {
				return NewElevenLabsClient("el-key", url, "scribe_v1", "kubernetes, golang", time.Second)
			},
			want: "scribe text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("parse multipart: %v", err)
					return
				}
				f, hdr, err := r.FormFile(tt.fileField)
				if err != nil {
					t.Errorf("form file %q: %v", tt.fileField, err)
					return
				}
				body, _ := io.ReadAll(f)
				if string(body) != string(audio) {
					t.Errorf("uploaded %q", body)
				}
				if hdr.Filename != "audio.wav" {
					t.Errorf("filename = %q", hdr.Filename)
				}
				if !tt.authCheck(r) {
					t.Errorf("request check failed: headers=%v form=%v", r.Header, r.MultipartForm.Value)
				}
				fmt.Fprint(w, tt.reply)
			}))
			defer srv.Close()

			tr, err := tt.build(srv.URL).Transcribe(context.Background(), audio, EncodingWAV, "en")
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if tr.Text != tt.want {
				t.Errorf("Text = %q, want %q", tr.Text, tt.want)
			}
		})
	}
}

func TestWhisperClient_Probe(t *testing.T) {
	var unhealthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("probe path = %q", r.URL.Path)
		}
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewWhisperClient(srv.URL+"/v1/audio/transcriptions", "", time.Second, 200*time.Millisecond)
	if err := c.Probe(context.Background()); err != nil {
		t.Errorf("Probe healthy: %v", err)
	}
	unhealthy.Store(true)
	if err := c.Probe(context.Background()); err == nil {
		t.Error("Probe should fail on 503")
	}
}

func TestAssemblyAIClient(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string // returned by successive polls
		maxWait  time.Duration
		wantText string
		wantErr  string
	}{
		{"completes", []string{"queued", "processing", "completed"}, time.Second, "polled text", ""},
		{"errors", []string{"processing", "error"}, time.Second, "", "transcription failed: audio too noisy"},
		{"times out", []string{"processing"}, 30 * time.Millisecond, "", "still processing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var polls atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "aai-key" {
					t.Errorf("upload auth = %q", r.Header.Get("Authorization"))
				}
				fmt.Fprint(w, `{"upload_url":"https://cdn.example/abc"}`)
			})
			mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if body["audio_url"] != "https://cdn.example/abc" || body["language_code"] != "en" {
					t.Errorf("submit body = %v", body)
				}
				fmt.Fprint(w, `{"id":"tr-1","status":"queued"}`)
			})
			mux.HandleFunc("/v2/transcript/tr-1", func(w http.ResponseWriter, r *http.Request) {
				n := int(polls.Add(1)) - 1
				if n >= len(tt.statuses) {
					n = len(tt.statuses) - 1
				}
				resp := assemblyTranscript{ID: "tr-1", Status: tt.statuses[n]}
				if resp.Status == "completed" {
					resp.Text = "polled text"
					resp.Confidence = floatPtr(0.91)
				}
				if resp.Status == "error" {
					resp.Error = "audio too noisy"
				}
				json.NewEncoder(w).Encode(resp)
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			c := NewAssemblyAIClient("aai-key", srv.URL, "best", 5*time.Millisecond, tt.maxWait, time.Second)
			tr, err := c.Transcribe(context.Background(), audio, EncodingWebM, "en")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if tr.Text != tt.wantText {
				t.Errorf("Text = %q", tr.Text)
			}
			if tr.Confidence == nil || *tr.Confidence != 0.91 {
				t.Errorf("Confidence = %v", tr.Confidence)
			}
		})
	}
}

func TestAssemblyAIClient_DescriptorTimeoutCoversPolling(t *testing.T) {
	c := NewAssemblyAIClient("k", "http://x", "best", time.Second, 2*time.Minute, 30*time.Second)
	if got := c.Descriptor().Timeout; got != 2*time.Minute+30*time.Second {
		t.Errorf("Timeout = %s", got)
	}
}

func TestHuggingFaceClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected auth header without key")
		}
		switch r.URL.Path {
		case "/models/openai/whisper-tiny":
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":"Model is currently loading"}`)
		case "/models/openai/whisper-base":
			fmt.Fprint(w, `{"text":""}`)
		default:
			fmt.Fprint(w, `[{"generated_text":" third time lucky "}]`)
		}
	}))
	defer srv.Close()

	c := NewHuggingFaceClient("", srv.URL+"/models", []string{
		"openai/whisper-tiny", "openai/whisper-base", "openai/whisper-small",
	}, time.Second)
	tr, err := c.Transcribe(context.Background(), audio, EncodingWAV, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "third time lucky" {
		t.Errorf("Text = %q", tr.Text)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3 models tried", hits.Load())
	}
}

func TestHuggingFaceClient_RejectsWebM(t *testing.T) {
	c := NewHuggingFaceClient("", "http://127.0.0.1:1/", []string{"m"}, time.Second)
	_, err := c.Transcribe(context.Background(), audio, EncodingWebM, "en")
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("err = %v", err)
	}
}

func TestLocalModel(t *testing.T) {
	m := NewLocalModel("coqui")
	_, err := m.Transcribe(context.Background(), audio, EncodingWAV, "en")
	var pe *ProviderError
	if !errors.As(err, &pe) || !strings.Contains(pe.Detail, "coqui is not installed") {
		t.Errorf("err = %v", err)
	}
}

func TestOpenAIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "whisper-1", time.Second)
	_, err := c.Transcribe(context.Background(), audio, EncodingWAV, "en")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.Detail != "OpenAI API quota exceeded" {
		t.Errorf("Detail = %q", pe.Detail)
	}
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"from openai"}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "whisper-1", time.Second)
	tr, err := c.Transcribe(context.Background(), audio, EncodingWAV, "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "from openai" {
		t.Errorf("Text = %q", tr.Text)
	}
}

func TestErrorSnippetTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := errorSnippet([]byte(long))
	if len(got) != maxErrorBody+3 {
		t.Errorf("len = %d, want %d", len(got), maxErrorBody+3)
	}
}

func TestRegionLanguage(t *testing.T) {
	tests := map[string]string{"": "en-US", "en": "en-US", "es": "es-ES", "en-GB": "en-GB", "it": "it-IT"}
	for in, want := range tests {
		if got := regionLanguage(in); got != want {
			t.Errorf("regionLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
