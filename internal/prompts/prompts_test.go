package prompts_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/speaksmart/internal/practice"
	"github.com/MrWong99/speaksmart/internal/prompts"
	"github.com/MrWong99/speaksmart/pkg/provider/tts"
	ttsmock "github.com/MrWong99/speaksmart/pkg/provider/tts/mock"
)

// fakeEncoder copies the WAV to dst, prefixed with "opus:". It fails for
// destinations listed in failFor.
type fakeEncoder struct {
	mu      sync.Mutex
	failFor map[string]bool
	srcs    []string
}

func (e *fakeEncoder) ToOpus(_ context.Context, src, dst string) error {
	e.mu.Lock()
	e.srcs = append(e.srcs, src)
	e.mu.Unlock()
	if e.failFor[dst] {
		return errors.New("ffmpeg exploded")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("opus:"), data...), 0o644)
}

func newGenerator(t *testing.T, p *ttsmock.Provider, enc *fakeEncoder, overwrite bool) (*prompts.Generator, string) {
	t.Helper()
	work := filepath.Join(t.TempDir(), "tmp")
	g, err := prompts.New(prompts.Config{
		TTS:       p,
		Encoder:   enc,
		Voice:     tts.Voice{ID: "rachel"},
		WorkDir:   work,
		Overwrite: overwrite,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, work
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not cleaned up: %d entries left", len(entries))
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := prompts.New(prompts.Config{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"tts provider", "encoder", "work dir"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		phrases []practice.Phrase
		wantErr []string
	}{
		{name: "empty set"},
		{name: "complete", phrases: []practice.Phrase{{ID: "p1", File: "a.ogg", ExpectedText: "hello"}}},
		{
			name:    "missing fields",
			phrases: []practice.Phrase{{ID: "p1", File: " "}, {File: "b.ogg", ExpectedText: "x"}},
			wantErr: []string{"phrase 0 (p1): file is required", "phrase 0 (p1): expected_text is required", "phrase 1: id is required"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := prompts.Validate(tc.phrases)
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, "p1.ogg")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(dir, "nested", "p2.ogg")

	p := &ttsmock.Provider{Audio: []byte("RIFF-wav")}
	enc := &fakeEncoder{}
	g, work := newGenerator(t, p, enc, false)

	results, err := g.Generate(context.Background(), []practice.Phrase{
		{ID: "p1", File: existing, ExpectedText: "Good morning"},
		{ID: "p2", File: fresh, ExpectedText: "Schedule a meeting"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if results[0].Status != prompts.StatusSkipped || results[1].Status != prompts.StatusGenerated {
		t.Errorf("results = %+v", results)
	}
	if texts := p.Texts(); len(texts) != 1 || texts[0] != "Schedule a meeting" {
		t.Errorf("synthesized = %v", texts)
	}
	if p.SynthesizeCalls[0].Voice.ID != "rachel" {
		t.Errorf("voice = %+v", p.SynthesizeCalls[0].Voice)
	}

	got, err := os.ReadFile(fresh)
	if err != nil {
		t.Fatalf("prompt not written: %v", err)
	}
	if string(got) != "opus:RIFF-wav" {
		t.Errorf("prompt = %q", got)
	}
	old, _ := os.ReadFile(existing)
	if string(old) != "old" {
		t.Errorf("existing prompt modified: %q", old)
	}
	if len(enc.srcs) != 1 || filepath.Dir(enc.srcs[0]) != work || filepath.Ext(enc.srcs[0]) != ".wav" {
		t.Errorf("encoder sources = %v", enc.srcs)
	}
	assertEmptyDir(t, work)
}

func TestGenerate_Overwrite(t *testing.T) {
	t.Parallel()

	existing := filepath.Join(t.TempDir(), "p1.ogg")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	g, _ := newGenerator(t, &ttsmock.Provider{Audio: []byte("new")}, &fakeEncoder{}, true)

	results, err := g.Generate(context.Background(), []practice.Phrase{{ID: "p1", File: existing, ExpectedText: "Hi"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if results[0].Status != prompts.StatusGenerated {
		t.Errorf("status = %s", results[0].Status)
	}
	if got, _ := os.ReadFile(existing); string(got) != "opus:new" {
		t.Errorf("prompt = %q", got)
	}
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	t.Run("encoder failure removes temp audio", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		bad := filepath.Join(dir, "bad.ogg")
		good := filepath.Join(dir, "good.ogg")
		g, work := newGenerator(t, &ttsmock.Provider{Audio: []byte("wav")}, &fakeEncoder{failFor: map[string]bool{bad: true}}, false)

		results, err := g.Generate(context.Background(), []practice.Phrase{
			{ID: "bad", File: bad, ExpectedText: "one"},
			{ID: "good", File: good, ExpectedText: "two"},
		})
		if err == nil || !strings.Contains(err.Error(), "bad") || !strings.Contains(err.Error(), "ffmpeg exploded") {
			t.Fatalf("err = %v", err)
		}
		if results[0].Status != prompts.StatusFailed || results[1].Status != prompts.StatusGenerated {
			t.Errorf("results = %+v", results)
		}
		assertEmptyDir(t, work)
	})

	t.Run("synthesis failure", func(t *testing.T) {
		t.Parallel()
		synthErr := errors.New("quota exceeded")
		g, _ := newGenerator(t, &ttsmock.Provider{SynthesizeErr: synthErr}, &fakeEncoder{}, false)

		_, err := g.Generate(context.Background(), []practice.Phrase{
			{ID: "p1", File: filepath.Join(t.TempDir(), "p1.ogg"), ExpectedText: "one"},
		})
		if !errors.Is(err, synthErr) {
			t.Errorf("err = %v, want %v", err, synthErr)
		}
	})

	t.Run("invalid phrase stops everything", func(t *testing.T) {
		t.Parallel()
		p := &ttsmock.Provider{Audio: []byte("wav")}
		g, _ := newGenerator(t, p, &fakeEncoder{}, false)

		_, err := g.Generate(context.Background(), []practice.Phrase{
			{ID: "p1", File: filepath.Join(t.TempDir(), "p1.ogg"), ExpectedText: "one"},
			{ID: "p2"},
		})
		if err == nil {
			t.Fatal("expected validation error")
		}
		if len(p.Texts()) != 0 {
			t.Errorf("synthesized despite invalid set: %v", p.Texts())
		}
	})
}
