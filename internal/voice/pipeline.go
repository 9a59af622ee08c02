// Package voice turns a user's voice message into text.
//
// One invocation of [Pipeline.Transcribe] walks the stages acquiring,
// transcoding and transcribing. Every file it creates is named with a fresh
// UUID under the work directory and removed before it returns, whether the
// run succeeded or not.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/speaksmart/internal/chat"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/store"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
)

// ErrAudio is returned when the voice file cannot be acquired or converted.
var ErrAudio = errors.New("voice: audio processing failed")

// defaultExt is used when the attachment's filename has no extension.
const defaultExt = ".ogg"

// Stage names a step of one pipeline run.
type Stage string

const (
	StageAcquiring    Stage = "acquiring"
	StageTranscoding  Stage = "transcoding"
	StageTranscribing Stage = "transcribing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Transcoder converts an audio file to the mono 16 kHz WAV the recogniser
// expects. *audio.FFmpeg implements it.
type Transcoder interface {
	ToWAV(ctx context.Context, src, dst string) error
}

// MessageLogger appends audit entries. store.Store implements it.
type MessageLogger interface {
	LogMessage(ctx context.Context, e store.Entry) error
}

// Config holds the collaborators of a [Pipeline].
type Config struct {
	Fetcher    chat.Fetcher
	Transcoder Transcoder
	STT        stt.Provider

	// Log receives the audit entry written by [Pipeline.Run]. Optional.
	Log MessageLogger

	// WorkDir holds the temporary files. It is created if missing.
	WorkDir string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Pipeline is safe for concurrent use; runs share nothing but the work
// directory.
type Pipeline struct {
	fetcher    chat.Fetcher
	transcoder Transcoder
	stt        stt.Provider
	log        MessageLogger
	workDir    string
	metrics    *observe.Metrics
}

// New validates cfg and prepares the work directory.
func New(cfg Config) (*Pipeline, error) {
	var errs []error
	if cfg.Fetcher == nil {
		errs = append(errs, errors.New("voice: fetcher is required"))
	}
	if cfg.Transcoder == nil {
		errs = append(errs, errors.New("voice: transcoder is required"))
	}
	if cfg.STT == nil {
		errs = append(errs, errors.New("voice: stt provider is required"))
	}
	if cfg.WorkDir == "" {
		errs = append(errs, errors.New("voice: work dir is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("voice: create work dir: %w", err)
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Pipeline{
		fetcher:    cfg.Fetcher,
		transcoder: cfg.Transcoder,
		stt:        cfg.STT,
		log:        cfg.Log,
		workDir:    cfg.WorkDir,
		metrics:    m,
	}, nil
}

// run tracks the files one invocation created.
type run struct {
	id      string
	created []string
	stage   Stage
}

func (r *run) track(path string) string {
	r.created = append(r.created, path)
	return path
}

// Transcribe fetches att, converts it and returns the recognised text.
// Acquisition and conversion failures wrap [ErrAudio]; recogniser errors are
// returned unchanged and belong to the stt.ErrSpeech or stt.ErrUnavailable
// families.
func (p *Pipeline) Transcribe(ctx context.Context, att chat.Attachment) (string, error) {
	ctx, span := observe.StartSpan(ctx, "voice.transcribe")
	defer span.End()

	p.metrics.ActivePipelines.Add(ctx, 1)
	defer p.metrics.ActivePipelines.Add(ctx, -1)

	r := &run{id: uuid.NewString()}
	defer p.cleanup(ctx, r)

	src, err := p.stage(ctx, r, StageAcquiring, func() (string, error) {
		return p.acquire(ctx, r, att)
	})
	if err != nil {
		return "", err
	}
	wav, err := p.stage(ctx, r, StageTranscoding, func() (string, error) {
		dst := r.track(filepath.Join(p.workDir, r.id+".wav"))
		if err := p.transcoder.ToWAV(ctx, src, dst); err != nil {
			return "", fmt.Errorf("%w: transcode: %w", ErrAudio, err)
		}
		return dst, nil
	})
	if err != nil {
		return "", err
	}
	text, err := p.stage(ctx, r, StageTranscribing, func() (string, error) {
		start := time.Now()
		text, err := p.stt.Transcribe(ctx, wav)
		p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			kind := "speech"
			if errors.Is(err, stt.ErrUnavailable) {
				kind = "unavailable"
			}
			p.metrics.RecordProviderError(ctx, "stt", kind)
		}
		return text, err
	})
	if err != nil {
		return "", err
	}
	r.stage = StageDone
	return strings.TrimSpace(text), nil
}

// Run transcribes att for a practice answer and writes the audit entry:
// "practice:<phraseID>:<text>" as in_transcript on success, the error text
// as error on failure.
func (p *Pipeline) Run(ctx context.Context, userID int64, phraseID string, att chat.Attachment) (string, error) {
	text, err := p.Transcribe(ctx, att)
	entry := store.Entry{UserID: userID, Type: store.TypeText}
	if err != nil {
		entry.Direction = store.DirError
		entry.Text = err.Error()
	} else {
		entry.Direction = store.DirInTranscript
		entry.Text = fmt.Sprintf("practice:%s:%s", phraseID, text)
	}
	if p.log != nil {
		if lerr := p.log.LogMessage(ctx, entry); lerr != nil {
			observe.Logger(ctx).Warn("voice: audit log failed", "user_id", userID, "err", lerr)
		}
	}
	return text, err
}

// stage runs fn as stage s, recording its duration and outcome.
func (p *Pipeline) stage(ctx context.Context, r *run, s Stage, fn func() (string, error)) (string, error) {
	r.stage = s
	start := time.Now()
	out, err := fn()
	status := "ok"
	if err != nil {
		status = "error"
		r.stage = StageFailed
		observe.Logger(ctx).Warn("voice: stage failed", "run", r.id, "stage", string(s), "err", err)
	}
	p.metrics.RecordStage(ctx, string(s), status, time.Since(start).Seconds())
	return out, err
}

// acquire copies the attachment into <workdir>/<id><ext>.
func (p *Pipeline) acquire(ctx context.Context, r *run, att chat.Attachment) (string, error) {
	ext := filepath.Ext(att.Filename)
	if ext == "" {
		ext = defaultExt
	}
	rc, err := p.fetcher.Fetch(ctx, att)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", ErrAudio, att.Ref, err)
	}
	defer rc.Close()

	path := r.track(filepath.Join(p.workDir, r.id+ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrAudio, path, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: download %s: %w", ErrAudio, att.Ref, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", ErrAudio, path, err)
	}
	return path, nil
}

// cleanup removes every tracked file. Failures are logged only.
func (p *Pipeline) cleanup(ctx context.Context, r *run) {
	for _, path := range r.created {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("voice: cleanup failed", "run", r.id, "path", path, "err", err)
		}
	}
	observe.Logger(ctx).Debug("voice: run finished", "run", r.id, "stage", string(r.stage))
}
