package transcribe

import (
	"context"
	"time"
)

// LocalModel stands in for an on-box engine (coqui, wav2vec, silero) that an
// operator listed but this build cannot run. It always fails immediately so
// the chain moves on without waiting.
type LocalModel struct {
	name string
}

func NewLocalModel(name string) *LocalModel {
	return &LocalModel{name: name}
}

func (l *LocalModel) Descriptor() Descriptor {
	return Descriptor{
		Name:      l.name,
		Priority:  10,
		Accepted:  AllEncodings,
		Preferred: EncodingWAV,
		Timeout:   time.Second,
	}
}

func (l *LocalModel) Transcribe(ctx context.Context, data []byte, enc Encoding, language string) (*Transcript, error) {
	return nil, providerErrorf(l.name, "%s is not installed on this server", l.name)
}
