// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider turns one canonical waveform file (16 kHz mono 16-bit PCM WAV,
// as produced by audio.FFmpeg.ToWAV) into transcript text. The backend is
// selected once at startup; callers never probe for capabilities.
//
// Failures fall into two families so callers can react uniformly:
// ErrUnavailable when the backend cannot be reached or was never configured,
// and ErrSpeech when the backend ran but could not produce a transcript.
package stt

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSpeech reports that the backend processed the audio but failed to
	// produce a transcript.
	ErrSpeech = errors.New("stt: transcription failed")

	// ErrUnavailable reports that the backend is not usable: missing model,
	// unreachable server, bad credentials, or an unsupported provider name.
	ErrUnavailable = errors.New("stt: backend unavailable")
)

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use; voice messages from
// different users are transcribed in parallel.
type Provider interface {
	// Transcribe returns the trimmed transcript of the WAV file at wavPath.
	// Errors wrap ErrSpeech or ErrUnavailable.
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Disabled is a Provider that always fails with ErrUnavailable. It stands in
// when the configured backend could not be constructed so the rest of the
// bot keeps running.
type Disabled struct {
	Reason string
}

var _ Provider = Disabled{}

// Transcribe always returns ErrUnavailable annotated with d.Reason.
func (d Disabled) Transcribe(context.Context, string) (string, error) {
	if d.Reason == "" {
		return "", ErrUnavailable
	}
	return "", fmt.Errorf("%w: %s", ErrUnavailable, d.Reason)
}
