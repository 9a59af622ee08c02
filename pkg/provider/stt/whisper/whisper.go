// Package whisper provides whisper.cpp-backed STT providers.
//
// Provider talks to a running whisper-server binary, which exposes a REST API
// at POST /inference. NativeProvider links the whisper.cpp library through its
// Go bindings and runs inference in-process.
//
// whisper.cpp is a batch engine, which fits the one-file-per-voice-message
// model: each Transcribe call uploads (or decodes) one WAV file and returns
// the joined segment text.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	text, err := p.Transcribe(ctx, "/tmp/voice.wav")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/speaksmart/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server
// (e.g., "en", "ru"). Defaults to "en". "auto" lets the server detect it.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads the WAV file at wavPath to the /inference endpoint as
// multipart/form-data and returns the trimmed transcript.
//
// Connection failures and 5xx responses wrap stt.ErrUnavailable; anything
// else that prevents a transcript wraps stt.ErrSpeech.
func (p *Provider) Transcribe(ctx context.Context, wavPath string) (string, error) {
	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("whisper: read %s: %w: %v", wavPath, stt.ErrSpeech, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w: %v", stt.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w: %v", stt.ErrSpeech, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("whisper: server returned HTTP %d: %w", resp.StatusCode, stt.ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("whisper: server returned HTTP %d: %w: %s", resp.StatusCode, stt.ErrSpeech, bytes.TrimSpace(data))
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w: %v", stt.ErrSpeech, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisper: %w: %s", stt.ErrSpeech, result.Error)
	}
	return strings.TrimSpace(result.Text), nil
}
