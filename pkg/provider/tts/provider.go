// Package tts defines the Provider interface for Text-to-Speech backends.
//
// TTS is used offline by the prompt generator: each practice phrase is
// synthesised once into a WAV file, which ffmpeg then converts into the
// Ogg/Opus prompt sent to users. Providers therefore return one complete WAV
// document per call rather than a stream.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Voice describes a voice offered by a TTS backend.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice and returns a complete
	// RIFF/WAV document (16-bit PCM).
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)

	// ListVoices returns the voices available from this provider.
	ListVoices(ctx context.Context) ([]Voice, error)
}
