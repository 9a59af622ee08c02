// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
//
// Each Transcribe call opens one streaming session, sends the WAV file's PCM
// payload as binary frames, asks Deepgram to flush with CloseStream, and joins
// every final result received before the server closes the socket.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrWong99/speaksmart/pkg/audio"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
	"github.com/coder/websocket"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkBytes is 250 ms of 16 kHz mono 16-bit audio.
	chunkBytes = 8000
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "ru").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithKeywords boosts recognition of the given words. Each entry is sent as
// Deepgram's "word:boost" keyword parameter.
func WithKeywords(keywords map[string]float64) Option {
	return func(p *Provider) {
		p.keywords = keywords
	}
}

// WithEndpoint overrides the streaming endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	language string
	keywords map[string]float64
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: deepgramEndpoint,
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams the WAV file at wavPath to Deepgram and returns the
// joined final transcripts.
func (p *Provider) Transcribe(ctx context.Context, wavPath string) (string, error) {
	pcm, format, err := audio.ReadWAVFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("deepgram: %w: %v", stt.ErrSpeech, err)
	}

	wsURL, err := p.buildURL(format)
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return "", fmt.Errorf("deepgram: dial: %w: %v", stt.ErrUnavailable, err)
	}
	defer conn.CloseNow()

	// Results arrive while audio is still being sent; read concurrently so
	// the server never blocks on a full socket.
	type result struct {
		text string
		err  error
	}
	results := make(chan result, 1)
	go func() {
		text, err := readFinals(ctx, conn)
		results <- result{text, err}
	}()

	for off := 0; off < len(pcm); off += chunkBytes {
		end := min(off+chunkBytes, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return "", fmt.Errorf("deepgram: send audio: %w: %v", stt.ErrUnavailable, err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return "", fmt.Errorf("deepgram: close stream: %w: %v", stt.ErrUnavailable, err)
	}

	r := <-results
	if r.err != nil {
		return "", r.err
	}
	conn.Close(websocket.StatusNormalClosure, "transcription complete")
	return r.text, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given audio
// format.
func (p *Provider) buildURL(format audio.Format) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(format.SampleRate))
	q.Set("channels", strconv.Itoa(format.Channels))

	for kw, boost := range p.keywords {
		q.Add("keywords", fmt.Sprintf("%s:%g", kw, boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// readFinals collects final transcripts until the server closes the
// connection. A normal closure ends the transcript; anything else is an error.
func readFinals(ctx context.Context, conn *websocket.Conn) (string, error) {
	var parts []string
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return strings.Join(parts, " "), nil
			}
			return "", fmt.Errorf("deepgram: read: %w: %v", stt.ErrSpeech, err)
		}
		if text, ok := parseFinal(msg); ok {
			parts = append(parts, text)
		}
	}
}

// parseFinal extracts the transcript of a final Results message. Interim
// results, metadata, and empty alternatives are ignored.
func parseFinal(data []byte) (string, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", false
	}
	if resp.Type != "Results" || !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
		return "", false
	}
	text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
	return text, text != ""
}
