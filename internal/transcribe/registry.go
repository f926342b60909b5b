package transcribe

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/snarg/interview-stt/internal/config"
)

// BuildAdapters creates an adapter for every provider whose credential (or
// URL, for self-hosted servers) is configured. Priorities come from
// cfg.Priority when set: listed names run first in list order, everything
// else keeps its default order after them.
func BuildAdapters(cfg config.STTConfig, log zerolog.Logger) []Adapter {
	var adapters []Adapter

	if cfg.AssemblyAIKey != "" {
		adapters = append(adapters, NewAssemblyAIClient(cfg.AssemblyAIKey, cfg.AssemblyAIURL, cfg.AssemblyAIModel,
			cfg.AssemblyAIPollInterval, cfg.AssemblyAIMaxWait, cfg.Timeout))
	}
	if cfg.DeepgramKey != "" {
		adapters = append(adapters, NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramURL, cfg.DeepgramModel, cfg.Timeout))
	}
	if cfg.GoogleKey != "" {
		adapters = append(adapters, NewGoogleClient(cfg.GoogleKey, cfg.GoogleURL, cfg.GoogleModel, cfg.Timeout))
	}
	if cfg.AzureKey != "" {
		adapters = append(adapters, NewAzureClient(cfg.AzureKey, cfg.AzureRegion, cfg.AzureURL, cfg.Timeout))
	}
	if cfg.OpenAIKey != "" {
		adapters = append(adapters, NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Timeout))
	}
	if cfg.ElevenLabsKey != "" {
		adapters = append(adapters, NewElevenLabsClient(cfg.ElevenLabsKey, cfg.ElevenLabsURL, cfg.ElevenLabsModel,
			cfg.ElevenLabsKeyterms, cfg.Timeout))
	}
	if cfg.DeepInfraKey != "" {
		adapters = append(adapters, NewDeepInfraClient(cfg.DeepInfraKey, cfg.DeepInfraURL, cfg.DeepInfraModel, cfg.Timeout))
	}
	if cfg.WhisperURL != "" {
		adapters = append(adapters, NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.Timeout, cfg.ProbeTimeout))
	}
	if cfg.HFEnabled && len(cfg.HFModels) > 0 {
		adapters = append(adapters, NewHuggingFaceClient(cfg.HFKey, cfg.HFURL, cfg.HFModels, cfg.Timeout))
	}
	for _, name := range cfg.LocalModels {
		adapters = append(adapters, NewLocalModel(strings.ToLower(name)))
	}

	adapters = applyPriority(adapters, cfg.Priority, log)

	for _, a := range adapters {
		d := a.Descriptor()
		log.Info().
			Str("provider", d.Name).
			Int("priority", d.Priority).
			Dur("timeout", d.Timeout).
			Msg("stt provider enabled")
	}
	if len(adapters) == 0 {
		log.Warn().Msg("no stt providers configured, every transcription will fail")
	}
	return adapters
}

func applyPriority(adapters []Adapter, order []string, log zerolog.Logger) []Adapter {
	if len(order) == 0 {
		return adapters
	}
	rank := make(map[string]int, len(order))
	for i, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := rank[name]; !dup {
			rank[name] = i + 1
		}
	}

	known := make(map[string]bool, len(adapters))
	out := make([]Adapter, len(adapters))
	for i, a := range adapters {
		d := a.Descriptor()
		known[d.Name] = true
		if r, ok := rank[d.Name]; ok {
			out[i] = prioritized{Adapter: a, priority: r}
		} else {
			out[i] = prioritized{Adapter: a, priority: len(rank) + d.Priority}
		}
	}
	for name := range rank {
		if !known[name] {
			log.Warn().Str("provider", name).Msg("STT_PRIORITY names a provider that is not configured")
		}
	}
	return out
}
