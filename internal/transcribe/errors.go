package transcribe

import (
	"errors"
	"fmt"
	"time"
)

// Input validation failures. These are returned to the caller as-is.
var (
	ErrEmptyAudio          = errors.New("audio buffer is empty")
	ErrTooShort            = errors.New("audio too short - please record at least 1 second")
	ErrUnsupportedEncoding = errors.New("unsupported audio encoding")
)

// Format normalization failures. The pipeline treats them as soft.
var (
	ErrToolUnavailable  = errors.New("ffmpeg not available")
	ErrConversionFailed = errors.New("audio conversion failed")
)

// IsValidationError reports whether err means the caller sent bad audio.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyAudio) ||
		errors.Is(err, ErrTooShort) ||
		errors.Is(err, ErrUnsupportedEncoding)
}

// ProviderError is the only error type adapters return. Detail is meant for
// logs and for the terminal AllProvidersFailedError message.
type ProviderError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Detail
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Detail: err.Error(), Err: err}
}

func providerErrorf(provider, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: provider, Detail: fmt.Sprintf(format, args...)}
}

// Attempt records one adapter call made while walking the fallback chain.
type Attempt struct {
	Provider string
	Detail   string
	Elapsed  time.Duration
}

// AllProvidersFailedError is returned when the chain is empty or exhausted.
type AllProvidersFailedError struct {
	LastDetail string
	Attempts   []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all transcription providers failed: " + e.LastDetail
	}
	return fmt.Sprintf("all transcription providers failed (%d attempted). Last error: %s",
		len(e.Attempts), e.LastDetail)
}
