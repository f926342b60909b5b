package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/snarg/interview-stt/internal/metrics"
)

// Runner executes the provider chain. *Orchestrator is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, clip AudioClip) (*Result, error)
	Descriptors() []Descriptor
}

// ResultCache stores successful results by fingerprint. *Cache is the
// production implementation.
type ResultCache interface {
	Get(fingerprint string) (CacheEntry, bool)
	Put(fingerprint string, r Result)
	Stats() CacheStats
}

// Recorder persists successful transcriptions, e.g. to the transcript log.
type Recorder interface {
	RecordTranscription(ctx context.Context, clip AudioClip, fingerprint string, r *Result) error
}

// ServiceOptions configures a Service. Zero values fall back to defaults.
type ServiceOptions struct {
	// MinAudioBytes is the too-short floor; NoMinAudioBytes disables it.
	MinAudioBytes    int
	CacheSampleBytes int
	// PreprocessEncoding, when set, converts every uncached clip up front.
	PreprocessEncoding Encoding
	DefaultLanguage    string
	Recorder           Recorder
	Log                zerolog.Logger
}

const recordTimeout = 2 * time.Second

// maxSharedReruns bounds how often a request restarts after joining a run
// whose owner went away.
const maxSharedReruns = 3

// Service is the single entry point for transcription.
type Service struct {
	orch        Runner
	cache       ResultCache
	conv        Converter
	validator   Validator
	sampleBytes int
	preprocess  Encoding
	language    string
	recorder    Recorder
	log         zerolog.Logger

	inflight singleflight.Group
}

// NewService wires the pipeline. conv may be nil when preprocessing is off.
func NewService(orch Runner, cache ResultCache, conv Converter, opts ServiceOptions) *Service {
	switch {
	case opts.MinAudioBytes == NoMinAudioBytes:
		opts.MinAudioBytes = 0
	case opts.MinAudioBytes <= 0:
		opts.MinAudioBytes = DefaultMinAudioBytes
	}
	if opts.CacheSampleBytes <= 0 {
		opts.CacheSampleBytes = DefaultSampleBytes
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	return &Service{
		orch:        orch,
		cache:       cache,
		conv:        conv,
		validator:   Validator{MinBytes: opts.MinAudioBytes},
		sampleBytes: opts.CacheSampleBytes,
		preprocess:  opts.PreprocessEncoding,
		language:    opts.DefaultLanguage,
		recorder:    opts.Recorder,
		log:         opts.Log,
	}
}

// Transcribe validates clip, answers from the cache when possible, and
// otherwise runs the provider chain. Concurrent calls for the same audio
// share one chain run.
func (s *Service) Transcribe(ctx context.Context, clip AudioClip) (*Result, error) {
	if clip.Encoding == "" {
		clip.Encoding = EncodingWebM
	}
	clip.Language = normalizeLanguage(clip.Language, s.language)

	if err := s.validator.Validate(clip); err != nil {
		metrics.TranscriptionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	fp := Fingerprint(clip, s.sampleBytes)
	if entry, ok := s.cache.Get(fp); ok {
		metrics.TranscriptionsTotal.WithLabelValues("cached").Inc()
		s.log.Debug().Str("fingerprint", fp).Str("provider", entry.Result.Provider).Msg("cache hit")
		r := entry.Result
		return &r, nil
	}

	for rerun := 0; ; rerun++ {
		ch := s.inflight.DoChan(fp, func() (any, error) {
			return s.run(ctx, clip, fp)
		})

		select {
		case <-ctx.Done():
			metrics.TranscriptionsTotal.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("transcription cancelled: %w", ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				// The run we joined belonged to a caller that has since gone away.
				if res.Shared && ctx.Err() == nil && isCancellation(res.Err) && rerun < maxSharedReruns {
					continue
				}
				if isCancellation(res.Err) {
					metrics.TranscriptionsTotal.WithLabelValues("cancelled").Inc()
				} else {
					metrics.TranscriptionsTotal.WithLabelValues("failed").Inc()
				}
				return nil, res.Err
			}
			metrics.TranscriptionsTotal.WithLabelValues("success").Inc()
			r := *res.Val.(*Result)
			return &r, nil
		}
	}
}

func (s *Service) run(ctx context.Context, clip AudioClip, fp string) (*Result, error) {
	work := clip
	if s.preprocess != "" && s.conv != nil && clip.Encoding != s.preprocess {
		data, err := s.conv.Convert(ctx, clip.Data, clip.Encoding, s.preprocess)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("from", string(clip.Encoding)).
				Str("to", string(s.preprocess)).
				Msg("preprocessing failed, using original audio")
		} else {
			work.Data = data
			work.Encoding = s.preprocess
		}
	}

	res, err := s.orch.Run(ctx, work)
	if err != nil {
		var allErr *AllProvidersFailedError
		if errors.As(err, &allErr) {
			s.log.Error().
				Int("attempts", len(allErr.Attempts)).
				Str("last_error", allErr.LastDetail).
				Msg("all providers failed")
		}
		return nil, err
	}

	s.cache.Put(fp, *res)
	s.log.Info().
		Str("provider", res.Provider).
		Int64("elapsed_ms", res.ElapsedMs).
		Int("text_len", len(res.Text)).
		Str("language", res.Language).
		Msg("transcription complete")

	if s.recorder != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		if err := s.recorder.RecordTranscription(rctx, clip, fp, res); err != nil {
			s.log.Warn().Err(err).Msg("failed to record transcription")
		}
		cancel()
	}
	return res, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Providers returns the configured chain in attempt order.
func (s *Service) Providers() []Descriptor { return s.orch.Descriptors() }

// ProviderCount returns the chain length.
func (s *Service) ProviderCount() int { return len(s.orch.Descriptors()) }

// CacheStats returns the response cache counters.
func (s *Service) CacheStats() CacheStats { return s.cache.Stats() }

// CacheSize implements metrics.CacheStats.
func (s *Service) CacheSize() (entries, capacity int) {
	st := s.cache.Stats()
	return st.Entries, st.Capacity
}
