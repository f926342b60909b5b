package transcribe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestOrchestrator_FallbackOrder(t *testing.T) {
	a := newFake("first", 1, "", errors.New("boom"))
	b := newFake("second", 2, "hello world", nil)
	c := newFake("third", 3, "should not be called", nil)

	// Pass them out of order; the orchestrator sorts by priority.
	o := NewOrchestrator([]Adapter{c, b, a}, nil, time.Second, zerolog.Nop())

	res, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "second" {
		t.Errorf("Provider = %q, want second", res.Provider)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Language != "en" {
		t.Errorf("Language = %q, want en", res.Language)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 || c.calls.Load() != 0 {
		t.Errorf("calls = %d/%d/%d, want 1/1/0", a.calls.Load(), b.calls.Load(), c.calls.Load())
	}

	names := []string{}
	for _, d := range o.Descriptors() {
		names = append(names, d.Name)
	}
	if got := strings.Join(names, ","); got != "first,second,third" {
		t.Errorf("Descriptors order = %s", got)
	}
}

func TestOrchestrator_TwoFailuresThenSuccess(t *testing.T) {
	seq := &callLog{}
	a := newFake("a", 1, "", providerErrorf("a", "API error (status 503): overloaded"))
	b := newFake("b", 2, "", errors.New("connection reset"))
	c := newFake("c", 3, "third time lucky", nil)
	for _, f := range []*fakeAdapter{a, b, c} {
		f.seq = seq
	}

	o := NewOrchestrator([]Adapter{b, c, a}, nil, time.Second, zerolog.Nop())
	res, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "c" || res.Text != "third time lucky" {
		t.Errorf("result = %s/%q, want c/third time lucky", res.Provider, res.Text)
	}
	if got := seq.String(); got != "a,b,c" {
		t.Errorf("call order = %s, want a,b,c", got)
	}
}

func TestOrchestrator_Exhaustion(t *testing.T) {
	a := newFake("a", 1, "", providerErrorf("a", "API error (status 500): internal"))
	b := newFake("b", 2, "", providerErrorf("b", "API error (status 401): invalid key"))
	o := NewOrchestrator([]Adapter{a, b}, nil, time.Second, zerolog.Nop())

	_, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	var allErr *AllProvidersFailedError
	if !errors.As(err, &allErr) {
		t.Fatalf("err = %v, want *AllProvidersFailedError", err)
	}
	if len(allErr.Attempts) != 2 {
		t.Errorf("Attempts = %d, want 2", len(allErr.Attempts))
	}
	if !strings.Contains(allErr.LastDetail, "invalid key") {
		t.Errorf("LastDetail = %q, want last adapter's detail", allErr.LastDetail)
	}
	if !strings.Contains(err.Error(), "2 attempted") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestOrchestrator_EmptyChain(t *testing.T) {
	o := NewOrchestrator(nil, nil, time.Second, zerolog.Nop())
	_, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	var allErr *AllProvidersFailedError
	if !errors.As(err, &allErr) {
		t.Fatalf("err = %v, want *AllProvidersFailedError", err)
	}
	if !strings.Contains(allErr.LastDetail, "no transcription providers configured") {
		t.Errorf("LastDetail = %q", allErr.LastDetail)
	}
}

func TestOrchestrator_EmptyTextAdvances(t *testing.T) {
	a := newFake("silent", 1, "   ", nil)
	b := newFake("talker", 2, "  hi there  ", nil)
	o := NewOrchestrator([]Adapter{a, b}, nil, time.Second, zerolog.Nop())

	res, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "talker" || res.Text != "hi there" {
		t.Errorf("got %s/%q, want talker/%q", res.Provider, res.Text, "hi there")
	}
}

func TestOrchestrator_ConversionMemoized(t *testing.T) {
	a := newFake("a", 1, "", errors.New("nope"))
	a.desc.Accepted = []Encoding{EncodingWAV}
	b := newFake("b", 2, "ok", nil)
	b.desc.Accepted = []Encoding{EncodingWAV}
	conv := &fakeConverter{}

	o := NewOrchestrator([]Adapter{a, b}, conv, time.Second, zerolog.Nop())
	if _, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := conv.calls.Load(); got != 1 {
		t.Errorf("conversions = %d, want 1", got)
	}
	for _, f := range []*fakeAdapter{a, b} {
		if enc := f.encodings(); len(enc) != 1 || enc[0] != EncodingWAV {
			t.Errorf("%s received %v, want [wav]", f.desc.Name, enc)
		}
	}
}

func TestOrchestrator_FailedConversionPassesOriginal(t *testing.T) {
	a := newFake("a", 1, "", errors.New("nope"))
	a.desc.Accepted = []Encoding{EncodingWAV}
	b := newFake("b", 2, "ok", nil)
	b.desc.Accepted = []Encoding{EncodingWAV}
	conv := &fakeConverter{err: ErrToolUnavailable}

	o := NewOrchestrator([]Adapter{a, b}, conv, time.Second, zerolog.Nop())
	if _, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := conv.calls.Load(); got != 1 {
		t.Errorf("conversions = %d, want 1 (failure remembered)", got)
	}
	if enc := b.encodings(); len(enc) != 1 || enc[0] != EncodingWebM {
		t.Errorf("b received %v, want original webm", enc)
	}
}

func TestOrchestrator_AttemptTimeout(t *testing.T) {
	slow := newFake("slow", 1, "", nil)
	slow.block = true
	slow.desc.Timeout = 20 * time.Millisecond
	fast := newFake("fast", 2, "done", nil)

	o := NewOrchestrator([]Adapter{slow, fast}, nil, time.Second, zerolog.Nop())
	res, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "fast" {
		t.Errorf("Provider = %q, want fast", res.Provider)
	}
}

func TestOrchestrator_TimeoutDetail(t *testing.T) {
	slow := newFake("slow", 1, "", nil)
	slow.block = true
	o := NewOrchestrator([]Adapter{slow}, nil, 20*time.Millisecond, zerolog.Nop())

	_, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	var allErr *AllProvidersFailedError
	if !errors.As(err, &allErr) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(allErr.LastDetail, "timed out after 20ms") {
		t.Errorf("LastDetail = %q", allErr.LastDetail)
	}
}

func TestOrchestrator_CancelStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := newFake("first", 1, "", nil)
	first.block = true
	second := newFake("second", 2, "never", nil)

	o := NewOrchestrator([]Adapter{first, second}, nil, time.Second, zerolog.Nop())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := o.Run(ctx, clipOf(5000, EncodingWebM, "en"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if second.calls.Load() != 0 {
		t.Error("second provider called after cancellation")
	}
}

func TestOrchestrator_ProbeFailureAdvances(t *testing.T) {
	probed := &probeAdapter{fakeAdapter: newFake("local", 1, "never", nil), err: errors.New("connection refused")}
	next := newFake("next", 2, "ok", nil)

	o := NewOrchestrator([]Adapter{probed, next}, nil, time.Second, zerolog.Nop())
	res, err := o.Run(context.Background(), clipOf(5000, EncodingWebM, "en"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "next" {
		t.Errorf("Provider = %q", res.Provider)
	}
	if probed.calls.Load() != 0 {
		t.Error("Transcribe called despite failed probe")
	}
}

type probeAdapter struct {
	*fakeAdapter
	err error
}

func (p *probeAdapter) Probe(ctx context.Context) error { return p.err }
