package transcribe

// DefaultMinAudioBytes approximates one second of compressed speech.
const DefaultMinAudioBytes = 1000

// NoMinAudioBytes in ServiceOptions.MinAudioBytes turns the size floor off.
const NoMinAudioBytes = -1

// Validator rejects clips that cannot be worth a provider call.
//
// MinBytes is a byte-count floor, not a decoded duration: compressed
// containers vary too much for the byte length to map exactly onto seconds,
// but anything below the floor has never contained a usable utterance.
type Validator struct {
	MinBytes int
}

// Validate checks the clip without touching the cache or the network.
func (v Validator) Validate(clip AudioClip) error {
	if len(clip.Data) == 0 {
		return ErrEmptyAudio
	}
	if len(clip.Data) < v.MinBytes {
		return ErrTooShort
	}
	if !clip.Encoding.Valid() {
		return ErrUnsupportedEncoding
	}
	return nil
}
