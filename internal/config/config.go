package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`

	AuthToken      string  `env:"AUTH_TOKEN"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// DatabaseURL enables the transcript log when set.
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"4"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"0"`

	// Rows are written in batches of this size, or after the interval.
	TranscriptLogBatchSize     int           `env:"TRANSCRIPT_LOG_BATCH_SIZE" envDefault:"50"`
	TranscriptLogFlushInterval time.Duration `env:"TRANSCRIPT_LOG_FLUSH_INTERVAL" envDefault:"2s"`

	// MinAudioBytes of 0 disables the too-short check.
	MinAudioBytes  int   `env:"MIN_AUDIO_BYTES" envDefault:"1000"`
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"`

	CacheMaxEntries  int `env:"CACHE_MAX_ENTRIES" envDefault:"500"`
	CacheSampleBytes int `env:"CACHE_SAMPLE_BYTES" envDefault:"4096"`

	FFmpegPath         string `env:"FFMPEG_PATH"`
	PreprocessEncoding string `env:"PREPROCESS_ENCODING"`

	STT STTConfig
}

// STTConfig holds the provider chain settings. A provider joins the chain
// only when its credential (or URL, for self-hosted servers) is present.
type STTConfig struct {
	Timeout         time.Duration `env:"STT_TIMEOUT" envDefault:"30s"`
	ProbeTimeout    time.Duration `env:"STT_PROBE_TIMEOUT" envDefault:"800ms"`
	Priority        []string      `env:"STT_PRIORITY" envSeparator:","`
	DefaultLanguage string        `env:"STT_DEFAULT_LANGUAGE" envDefault:"en"`
	LocalModels     []string      `env:"STT_LOCAL_MODELS" envSeparator:","`
	HFEnabled       bool          `env:"STT_HF_ENABLED" envDefault:"true"`

	AssemblyAIKey          string        `env:"ASSEMBLYAI_API_KEY"`
	AssemblyAIURL          string        `env:"ASSEMBLYAI_URL" envDefault:"https://api.assemblyai.com"`
	AssemblyAIModel        string        `env:"ASSEMBLYAI_MODEL" envDefault:"best"`
	AssemblyAIPollInterval time.Duration `env:"ASSEMBLYAI_POLL_INTERVAL" envDefault:"1s"`
	AssemblyAIMaxWait      time.Duration `env:"ASSEMBLYAI_MAX_WAIT"`

	DeepgramKey   string `env:"DEEPGRAM_API_KEY"`
	DeepgramURL   string `env:"DEEPGRAM_URL" envDefault:"https://api.deepgram.com/v1/listen"`
	DeepgramModel string `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`

	GoogleKey   string `env:"GOOGLE_CLOUD_SPEECH_KEY"`
	GoogleURL   string `env:"GOOGLE_CLOUD_SPEECH_URL" envDefault:"https://speech.googleapis.com/v1/speech:recognize"`
	GoogleModel string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"latest_long"`

	AzureKey    string `env:"AZURE_SPEECH_KEY"`
	AzureRegion string `env:"AZURE_SPEECH_REGION"`
	AzureURL    string `env:"AZURE_SPEECH_URL"`

	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_STT_MODEL" envDefault:"whisper-1"`

	ElevenLabsKey      string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsURL      string `env:"ELEVENLABS_URL" envDefault:"https://api.elevenlabs.io/v1/speech-to-text"`
	ElevenLabsModel    string `env:"ELEVENLABS_MODEL" envDefault:"scribe_v1"`
	ElevenLabsKeyterms string `env:"ELEVENLABS_KEYTERMS"`

	DeepInfraKey   string `env:"DEEPINFRA_API_KEY"`
	DeepInfraURL   string `env:"DEEPINFRA_URL" envDefault:"https://api.deepinfra.com/v1/inference/"`
	DeepInfraModel string `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`

	WhisperURL   string `env:"WHISPER_URL"`
	WhisperModel string `env:"WHISPER_MODEL"`

	HFKey    string   `env:"HF_API_KEY"`
	HFURL    string   `env:"HF_URL" envDefault:"https://api-inference.huggingface.co/models/"`
	HFModels []string `env:"HF_MODEL" envSeparator:"," envDefault:"openai/whisper-tiny,openai/whisper-base,openai/whisper-small"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	FFmpegPath  string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.FFmpegPath != "" {
		cfg.FFmpegPath = overrides.FFmpegPath
	}

	cfg.STT.Priority = trimList(cfg.STT.Priority)
	cfg.STT.LocalModels = trimList(cfg.STT.LocalModels)
	cfg.STT.HFModels = trimList(cfg.STT.HFModels)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks rules that span more than one variable.
func (c *Config) Validate() error {
	var errs []error
	if c.MinAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("MIN_AUDIO_BYTES must be >= 0, got %d", c.MinAudioBytes))
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be >= 1, got %d", c.DBMaxConns))
	}
	if c.CacheMaxEntries < 1 {
		errs = append(errs, fmt.Errorf("CACHE_MAX_ENTRIES must be >= 1, got %d", c.CacheMaxEntries))
	}
	if c.CacheSampleBytes < 1 {
		errs = append(errs, fmt.Errorf("CACHE_SAMPLE_BYTES must be >= 1, got %d", c.CacheSampleBytes))
	}
	if c.STT.Timeout <= 0 {
		errs = append(errs, errors.New("STT_TIMEOUT must be positive"))
	}
	if c.STT.AzureKey != "" && c.STT.AzureRegion == "" && c.STT.AzureURL == "" {
		errs = append(errs, errors.New("AZURE_SPEECH_REGION is required when AZURE_SPEECH_KEY is set"))
	}
	if c.STT.AssemblyAIKey != "" {
		// The upstream job can run arbitrarily long; the bound has to be chosen by the operator.
		if c.STT.AssemblyAIMaxWait <= 0 {
			errs = append(errs, errors.New("ASSEMBLYAI_MAX_WAIT is required when ASSEMBLYAI_API_KEY is set"))
		}
		if c.STT.AssemblyAIPollInterval <= 0 {
			errs = append(errs, errors.New("ASSEMBLYAI_POLL_INTERVAL must be positive"))
		}
	}
	return errors.Join(errs...)
}

func trimList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
