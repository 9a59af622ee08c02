// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to script a transcript (or an error) and to inspect which WAV
// files the caller handed over.
//
// Example:
//
//	p := &mock.Provider{Text: "how do I change my plan"}
//	text, _ := p.Transcribe(ctx, "/tmp/x.wav")
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/MrWong99/speaksmart/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// WavPath is the path passed to Transcribe.
	WavPath string
	// Existed reports whether the file was present at call time.
	Existed bool
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe when Err is nil.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Text, Err.
func (p *Provider) Transcribe(_ context.Context, wavPath string) (string, error) {
	_, statErr := os.Stat(wavPath)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{WavPath: wavPath, Existed: statErr == nil})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
