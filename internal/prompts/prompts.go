// Package prompts renders the audio prompts of the practice phrase set.
//
// Each phrase's expected text is synthesised with a TTS provider into a
// temporary WAV file, which ffmpeg encodes into the Ogg/Opus file named by
// the phrase. Existing prompts are left alone unless overwriting is requested.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/practice"
	"github.com/MrWong99/speaksmart/pkg/provider/tts"
)

const defaultConcurrency = 2

// Encoder converts a WAV file into a voice prompt. *audio.FFmpeg implements it.
type Encoder interface {
	ToOpus(ctx context.Context, src, dst string) error
}

// Config holds the collaborators of a [Generator].
type Config struct {
	TTS     tts.Provider
	Encoder Encoder
	Voice   tts.Voice

	// WorkDir holds the temporary WAV files. It is created if missing.
	WorkDir string

	// Overwrite regenerates prompts whose file already exists.
	Overwrite bool

	// Concurrency bounds parallel syntheses. Defaults to 2.
	Concurrency int

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Status is the outcome for one phrase.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result reports what happened to one phrase.
type Result struct {
	ID     string
	File   string
	Status Status
	Err    error
}

// Generator produces prompt files.
type Generator struct {
	cfg Config
}

// New validates cfg.
func New(cfg Config) (*Generator, error) {
	var errs []error
	if cfg.TTS == nil {
		errs = append(errs, errors.New("prompts: tts provider is required"))
	}
	if cfg.Encoder == nil {
		errs = append(errs, errors.New("prompts: encoder is required"))
	}
	if cfg.WorkDir == "" {
		errs = append(errs, errors.New("prompts: work dir is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Generator{cfg: cfg}, nil
}

// Validate checks that every phrase names an id, a file and the text to
// speak. All problems are reported together.
func Validate(phrases []practice.Phrase) error {
	var errs []error
	for i, p := range phrases {
		if strings.TrimSpace(p.ID) == "" {
			errs = append(errs, fmt.Errorf("prompts: phrase %d: id is required", i))
		}
		if strings.TrimSpace(p.File) == "" {
			errs = append(errs, fmt.Errorf("prompts: phrase %d (%s): file is required", i, p.ID))
		}
		if strings.TrimSpace(p.ExpectedText) == "" {
			errs = append(errs, fmt.Errorf("prompts: phrase %d (%s): expected_text is required", i, p.ID))
		}
	}
	return errors.Join(errs...)
}

// Generate renders every phrase. Phrases are validated up front and nothing
// is generated when any is invalid. A failing phrase does not stop the
// others; the returned error joins all failures. Results keep phrase order.
func (g *Generator) Generate(ctx context.Context, phrases []practice.Phrase) ([]Result, error) {
	if err := Validate(phrases); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(g.cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("prompts: create work dir: %w", err)
	}

	results := make([]Result, len(phrases))
	var eg errgroup.Group
	eg.SetLimit(g.cfg.Concurrency)
	for i, p := range phrases {
		eg.Go(func() error {
			results[i] = g.one(ctx, p)
			return nil
		})
	}
	_ = eg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("prompts: %s: %w", r.ID, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (g *Generator) one(ctx context.Context, p practice.Phrase) Result {
	res := Result{ID: p.ID, File: p.File}
	if !g.cfg.Overwrite {
		if _, err := os.Stat(p.File); err == nil {
			res.Status = StatusSkipped
			slog.Info("prompts: exists, skipping", "id", p.ID, "file", p.File)
			return res
		}
	}
	if err := g.render(ctx, p); err != nil {
		res.Status = StatusFailed
		res.Err = err
		slog.Warn("prompts: generation failed", "id", p.ID, "err", err)
		return res
	}
	res.Status = StatusGenerated
	slog.Info("prompts: generated", "id", p.ID, "file", p.File)
	return res
}

func (g *Generator) render(ctx context.Context, p practice.Phrase) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	start := time.Now()
	wav, err := g.cfg.TTS.Synthesize(ctx, p.ExpectedText, g.cfg.Voice)
	g.cfg.Metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.cfg.Metrics.RecordProviderError(ctx, "tts", "synthesize")
		return fmt.Errorf("synthesize: %w", err)
	}

	tmp := filepath.Join(g.cfg.WorkDir, uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("prompts: cleanup failed", "path", tmp, "err", err)
		}
	}()
	if err := os.WriteFile(tmp, wav, 0o644); err != nil {
		return fmt.Errorf("write temp audio: %w", err)
	}

	if dir := filepath.Dir(p.File); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create prompt dir: %w", err)
		}
	}
	if err := g.cfg.Encoder.ToOpus(ctx, tmp, p.File); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
