package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/speaksmart/pkg/provider/stt"
)

// STT wraps an [stt.Provider] with a [CircuitBreaker]. Only errors in the
// stt.ErrUnavailable family count as backend failures; a single unintelligible
// recording (stt.ErrSpeech) says nothing about backend health.
type STT struct {
	provider stt.Provider
	breaker  *CircuitBreaker
}

// Compile-time interface assertion.
var _ stt.Provider = (*STT)(nil)

// NewSTT protects provider with a breaker built from cfg. cfg.IsFailure is
// replaced with the ErrUnavailable classifier.
func NewSTT(provider stt.Provider, cfg CircuitBreakerConfig) *STT {
	cfg.IsFailure = func(err error) bool { return errors.Is(err, stt.ErrUnavailable) }
	return &STT{provider: provider, breaker: NewCircuitBreaker(cfg)}
}

// Breaker exposes the underlying breaker, e.g. for health checks.
func (s *STT) Breaker() *CircuitBreaker { return s.breaker }

// Transcribe forwards to the wrapped provider unless the breaker is open, in
// which case it fails fast with stt.ErrUnavailable.
func (s *STT) Transcribe(ctx context.Context, wavPath string) (string, error) {
	var text string
	err := s.breaker.Execute(func() error {
		var err error
		text, err = s.provider.Transcribe(ctx, wavPath)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return "", fmt.Errorf("%w: %w", stt.ErrUnavailable, err)
	}
	return text, err
}
