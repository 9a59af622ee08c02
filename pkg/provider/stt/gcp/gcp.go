// Package gcp provides an STT provider backed by Google Cloud Speech-to-Text
// (v1 synchronous Recognize). Voice messages are short, so the whole WAV
// payload is sent inline as LINEAR16 content.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MrWong99/speaksmart/pkg/audio"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
)

const defaultLanguage = "en-US"

var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the Cloud Speech v1 API.
type Provider struct {
	client   *speech.Client
	language string
	model    string
}

// Option is a functional option for Provider.
type Option func(*settings)

type settings struct {
	language   string
	model      string
	clientOpts []option.ClientOption
}

// WithLanguage sets the BCP-47 recognition language. Defaults to "en-US".
func WithLanguage(lang string) Option {
	return func(s *settings) { s.language = lang }
}

// WithModel selects a recognition model such as "latest_short".
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithClientOptions appends Google API client options (endpoint, credentials).
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// ClientOptionsFromEnv returns credential options from
// GOOGLE_APPLICATION_CREDENTIALS_JSON (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path). Neither set means application
// default credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}

// New dials the Speech API. The caller must Close the provider.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	s := &settings{language: defaultLanguage}
	for _, o := range opts {
		o(s)
	}
	c, err := speech.NewClient(ctx, s.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcp stt: speech client: %w: %v", stt.ErrUnavailable, err)
	}
	return &Provider{client: c, language: s.language, model: s.model}, nil
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, wavPath string) (string, error) {
	pcm, format, err := audio.ReadWAVFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("gcp stt: %w: %v", stt.ErrSpeech, err)
	}
	if len(pcm) == 0 {
		return "", nil
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(format.SampleRate),
			AudioChannelCount:          int32(format.Channels),
			LanguageCode:               p.language,
			Model:                      p.model,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	}

	// No retries: a failed voice message is re-sent by the user.
	resp, err := p.client.Recognize(ctx, req, gax.WithRetry(func() gax.Retryer { return nil }))
	if err != nil {
		return "", fmt.Errorf("gcp stt: recognize: %w", classify(err))
	}

	var parts []string
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", stt.ErrSpeech, err)
	default:
		return fmt.Errorf("%w: %v", stt.ErrUnavailable, err)
	}
}
