package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/MrWong99/speaksmart/internal/config"
	"github.com/MrWong99/speaksmart/internal/resilience"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
	"github.com/MrWong99/speaksmart/pkg/provider/stt/deepgram"
	"github.com/MrWong99/speaksmart/pkg/provider/stt/gcp"
	sttopenai "github.com/MrWong99/speaksmart/pkg/provider/stt/openai"
	"github.com/MrWong99/speaksmart/pkg/provider/stt/whisper"
	"github.com/MrWong99/speaksmart/pkg/provider/tts"
	"github.com/MrWong99/speaksmart/pkg/provider/tts/coqui"
	"github.com/MrWong99/speaksmart/pkg/provider/tts/elevenlabs"
)

// RegisterBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptionString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := entry.OptionInt("concurrency", 0); n > 0 {
			opts = append(opts, whisper.WithNativeConcurrency(n))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("gcp", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []gcp.Option
		if entry.Model != "" {
			opts = append(opts, gcp.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, gcp.WithLanguage(lang))
		}
		var clientOpts []option.ClientOption
		if entry.APIKey != "" {
			clientOpts = append(clientOpts, option.WithAPIKey(entry.APIKey))
		}
		if file := entry.OptionString("credentials_file"); file != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(file))
		}
		if entry.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithEndpoint(entry.BaseURL))
		}
		if len(clientOpts) > 0 {
			opts = append(opts, gcp.WithClientOptions(clientOpts...))
		}
		return gcp.New(context.Background(), opts...)
	})

	reg.RegisterSTT("disabled", func(config.ProviderEntry) (stt.Provider, error) {
		return stt.Disabled{Reason: "speech recognition is disabled in the configuration"}, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptionString("output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURLs(entry.OptionString("ws_url"), entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.OptionString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	slog.Debug("registered providers", "stt", reg.STTNames())
}

// SpeechToText is the recogniser built from configuration.
type SpeechToText struct {
	Provider stt.Provider

	// Guard is the circuit breaker wrapping Provider. nil for a disabled
	// recogniser.
	Guard *resilience.STT

	// Closer releases the underlying client, when it holds one.
	Closer io.Closer
}

// BuildSTT creates the configured recogniser behind a circuit breaker.
// A missing, unknown or failing provider degrades to [stt.Disabled] carrying
// the reason, so the bot keeps serving support while practice answers report
// the recogniser as unavailable.
func BuildSTT(reg *config.Registry, cfg config.ProvidersConfig) SpeechToText {
	entry := cfg.STT
	if entry.Name == "" {
		return SpeechToText{Provider: stt.Disabled{Reason: "no stt provider configured"}}
	}
	p, err := reg.CreateSTT(entry)
	if err != nil {
		slog.Warn("stt provider unavailable, practice answers will fail", "name", entry.Name, "err", err)
		return SpeechToText{Provider: stt.Disabled{Reason: fmt.Sprintf("stt provider %q: %v", entry.Name, err)}}
	}
	if _, disabled := p.(stt.Disabled); disabled {
		return SpeechToText{Provider: p}
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name)

	guard := resilience.NewSTT(p, resilience.CircuitBreakerConfig{
		Name:         "stt/" + entry.Name,
		MaxFailures:  cfg.STTBreaker.MaxFailures,
		ResetTimeout: cfg.STTBreaker.ResetTimeout,
		OnStateChange: func(name string, to resilience.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "state", to.String())
		},
	})
	built := SpeechToText{Provider: guard, Guard: guard}
	if c, ok := p.(io.Closer); ok {
		built.Closer = c
	}
	return built
}

// BuildTTS creates the configured synthesiser and the voice to use with it.
func BuildTTS(reg *config.Registry, entry config.ProviderEntry) (tts.Provider, tts.Voice, error) {
	if entry.Name == "" {
		return nil, tts.Voice{}, errors.New("app: providers.tts is not configured")
	}
	p, err := reg.CreateTTS(entry)
	if err != nil {
		return nil, tts.Voice{}, fmt.Errorf("app: create tts provider %q: %w", entry.Name, err)
	}
	voice := tts.Voice{
		ID:       entry.OptionString("voice_id"),
		Provider: entry.Name,
	}
	slog.Info("provider created", "kind", "tts", "name", entry.Name)
	return p, voice, nil
}
