package transcribe

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeAdapter returns a canned transcript or error and counts calls.
type fakeAdapter struct {
	desc  Descriptor
	text  string
	err   error
	block bool     // wait for ctx instead of answering
	seq   *callLog // shared across adapters to check attempt order

	calls atomic.Int32
	mu    sync.Mutex
	got   []Encoding
}

func newFake(name string, priority int, text string, err error) *fakeAdapter {
	return &fakeAdapter{
		desc: Descriptor{
			Name:      name,
			Priority:  priority,
			Accepted:  AllEncodings,
			Preferred: EncodingWAV,
		},
		text: text,
		err:  err,
	}
}

func (f *fakeAdapter) Descriptor() Descriptor { return f.desc }

func (f *fakeAdapter) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	f.calls.Add(1)
	if f.seq != nil {
		f.seq.add(f.desc.Name)
	}
	f.mu.Lock()
	f.got = append(f.got, enc)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Transcript{Text: f.text}, nil
}

func (f *fakeAdapter) encodings() []Encoding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Encoding(nil), f.got...)
}

// callLog records adapter names in the order they were called.
type callLog struct {
	mu    sync.Mutex
	names []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *callLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.names, ",")
}

// fakeConverter records conversions and optionally fails.
type fakeConverter struct {
	err   error
	calls atomic.Int32
}

func (c *fakeConverter) Convert(ctx context.Context, data []byte, from, to Encoding) ([]byte, error) {
	if from == to {
		return data, nil
	}
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte(string(to)+":"), data...), nil
}

// countingCache wraps Cache and counts Get and Put calls.
type countingCache struct {
	*Cache
	gets atomic.Int32
	puts atomic.Int32
}

func newCountingCache(capacity int) *countingCache {
	return &countingCache{Cache: NewCache(capacity)}
}

func (c *countingCache) Get(fp string) (CacheEntry, bool) {
	c.gets.Add(1)
	return c.Cache.Get(fp)
}

func (c *countingCache) Put(fp string, r Result) {
	c.puts.Add(1)
	c.Cache.Put(fp, r)
}

func clipOf(n int, enc Encoding, lang string) AudioClip {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return AudioClip{Data: data, Encoding: enc, Language: lang}
}
