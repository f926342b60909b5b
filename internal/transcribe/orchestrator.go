package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/interview-stt/internal/metrics"
)

// DefaultAttemptTimeout applies to adapters that don't declare their own.
const DefaultAttemptTimeout = 30 * time.Second

// Orchestrator walks a priority-ordered adapter chain, one attempt at a time,
// and returns the first non-empty transcript.
type Orchestrator struct {
	adapters []Adapter
	descs    []Descriptor
	conv     Converter
	timeout  time.Duration
	log      zerolog.Logger
}

// NewOrchestrator sorts adapters by ascending priority. Ties keep the order
// they were passed in. conv may be nil, in which case clips are always sent
// in their original encoding.
func NewOrchestrator(adapters []Adapter, conv Converter, timeout time.Duration, log zerolog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	sorted := make([]Adapter, len(adapters))
	copy(sorted, adapters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Descriptor().Priority < sorted[j].Descriptor().Priority
	})
	descs := make([]Descriptor, len(sorted))
	for i, a := range sorted {
		descs[i] = a.Descriptor()
	}
	return &Orchestrator{
		adapters: sorted,
		descs:    descs,
		conv:     conv,
		timeout:  timeout,
		log:      log,
	}
}

// Descriptors returns the chain in the order it is tried.
func (o *Orchestrator) Descriptors() []Descriptor {
	out := make([]Descriptor, len(o.descs))
	copy(out, o.descs)
	return out
}

// ProviderCount returns the number of adapters in the chain.
func (o *Orchestrator) ProviderCount() int { return len(o.adapters) }

type conversion struct {
	data []byte
	err  error
}

// Run tries each adapter in order. A failure, timeout, or empty transcript
// moves on to the next adapter; cancellation of ctx stops the walk.
func (o *Orchestrator) Run(ctx context.Context, clip AudioClip) (*Result, error) {
	if len(o.adapters) == 0 {
		return nil, &AllProvidersFailedError{LastDetail: "no transcription providers configured"}
	}

	start := time.Now()
	// One conversion per target encoding per request, failures included.
	converted := make(map[Encoding]conversion)
	var attempts []Attempt
	var lastDetail string

	for i, a := range o.adapters {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("transcription cancelled: %w", err)
		}
		desc := o.descs[i]

		data, enc := o.prepare(ctx, clip, desc, converted)

		attemptStart := time.Now()
		t, err := o.attempt(ctx, a, desc, data, enc, clip.Language)
		elapsed := time.Since(attemptStart)
		metrics.ProviderDuration.WithLabelValues(desc.Name).Observe(elapsed.Seconds())

		if err == nil {
			metrics.ProviderAttemptsTotal.WithLabelValues(desc.Name, "success").Inc()
			o.log.Info().
				Str("provider", desc.Name).
				Int("attempt", len(attempts)+1).
				Dur("elapsed", elapsed).
				Msg("transcription succeeded")
			return &Result{
				Text:       strings.TrimSpace(t.Text),
				Provider:   desc.Name,
				Confidence: t.Confidence,
				ElapsedMs:  time.Since(start).Milliseconds(),
				Language:   clip.Language,
				Timestamp:  time.Now().UTC(),
			}, nil
		}

		if ctx.Err() != nil {
			metrics.ProviderAttemptsTotal.WithLabelValues(desc.Name, "cancelled").Inc()
			return nil, fmt.Errorf("transcription cancelled: %w", ctx.Err())
		}

		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ProviderAttemptsTotal.WithLabelValues(desc.Name, outcome).Inc()

		detail := err.Error()
		var pe *ProviderError
		if errors.As(err, &pe) {
			detail = pe.Detail
		}
		lastDetail = desc.Name + ": " + detail
		attempts = append(attempts, Attempt{Provider: desc.Name, Detail: detail, Elapsed: elapsed})

		o.log.Warn().
			Str("provider", desc.Name).
			Str("encoding", string(enc)).
			Dur("elapsed", elapsed).
			Str("error", detail).
			Msg("provider failed, trying next")
	}

	return nil, &AllProvidersFailedError{LastDetail: lastDetail, Attempts: attempts}
}

// prepare returns the bytes to send to desc. If the clip's encoding isn't
// accepted it is converted to desc.Preferred; a failed conversion falls back
// to the original bytes and lets the provider decide.
func (o *Orchestrator) prepare(ctx context.Context, clip AudioClip, desc Descriptor, converted map[Encoding]conversion) ([]byte, Encoding) {
	if desc.Accepts(clip.Encoding) || o.conv == nil || desc.Preferred == "" {
		return clip.Data, clip.Encoding
	}
	c, ok := converted[desc.Preferred]
	if !ok {
		c.data, c.err = o.conv.Convert(ctx, clip.Data, clip.Encoding, desc.Preferred)
		converted[desc.Preferred] = c
		if c.err != nil {
			o.log.Warn().
				Err(c.err).
				Str("provider", desc.Name).
				Str("from", string(clip.Encoding)).
				Str("to", string(desc.Preferred)).
				Msg("conversion failed, sending original audio")
		}
	}
	if c.err != nil {
		return clip.Data, clip.Encoding
	}
	return c.data, desc.Preferred
}

func (o *Orchestrator) attempt(ctx context.Context, a Adapter, desc Descriptor, data []byte, enc Encoding, language string) (*Transcript, error) {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p, ok := a.(Prober); ok {
		if err := p.Probe(actx); err != nil {
			return nil, &ProviderError{Provider: desc.Name, Detail: "unavailable: " + err.Error(), Err: err}
		}
	}

	t, err := a.Transcribe(actx, data, enc, language)
	if err != nil {
		if actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &ProviderError{
				Provider: desc.Name,
				Detail:   fmt.Sprintf("timed out after %s", timeout),
				Err:      context.DeadlineExceeded,
			}
		}
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, providerError(desc.Name, err)
	}
	if t == nil || strings.TrimSpace(t.Text) == "" {
		return nil, providerErrorf(desc.Name, "empty transcription")
	}
	return t, nil
}
