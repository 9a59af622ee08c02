package voice_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/speaksmart/internal/chat"
	chatmock "github.com/MrWong99/speaksmart/internal/chat/mock"
	"github.com/MrWong99/speaksmart/internal/observe"
	"github.com/MrWong99/speaksmart/internal/store"
	"github.com/MrWong99/speaksmart/internal/voice"
	"github.com/MrWong99/speaksmart/pkg/audio"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
	sttmock "github.com/MrWong99/speaksmart/pkg/provider/stt/mock"
)

// writeFFmpeg creates a shell script standing in for ffmpeg. It records its
// arguments to args.txt next to itself and then runs body, where $src and
// $dst hold the input and output paths.
func writeFFmpeg(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script ffmpeg stub requires a POSIX shell")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	bin = filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsFile + "\n" +
		"src=\"$3\"\n" +
		"for dst; do :; done\n" +
		body + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return bin, argsFile
}

const okFFmpeg = `cp "$src" "$dst"`

type fixture struct {
	pipeline  *voice.Pipeline
	transport *chatmock.Transport
	stt       *sttmock.Provider
	store     *store.MemStore
	workDir   string
	argsFile  string
}

func newFixture(t *testing.T, ffmpegBody string) *fixture {
	t.Helper()
	bin, argsFile := writeFFmpeg(t, ffmpegBody)
	f := &fixture{
		transport: &chatmock.Transport{Files: map[string][]byte{
			"https://cdn.example/voice-1": []byte("OggS-fake-voice"),
		}},
		stt:      &sttmock.Provider{Text: "  I would like to change my plan \n"},
		store:    store.NewMemStore(),
		workDir:  filepath.Join(t.TempDir(), "tmp"),
		argsFile: argsFile,
	}
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	f.pipeline, err = voice.New(voice.Config{
		Fetcher:    f.transport,
		Transcoder: audio.NewFFmpeg(bin),
		STT:        f.stt,
		Log:        f.store,
		WorkDir:    f.workDir,
		Metrics:    met,
	})
	if err != nil {
		t.Fatalf("voice.New: %v", err)
	}
	return f
}

func (f *fixture) assertWorkDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("work dir not cleaned up: %v", names)
	}
}

var voiceAtt = chat.Attachment{Ref: "https://cdn.example/voice-1", Filename: "voice-message.ogg"}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okFFmpeg)
	text, err := f.pipeline.Run(context.Background(), 7, "p1", voiceAtt)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "I would like to change my plan" {
		t.Errorf("text = %q", text)
	}

	if len(f.stt.Calls) != 1 {
		t.Fatalf("stt calls = %d, want 1", len(f.stt.Calls))
	}
	call := f.stt.Calls[0]
	if !call.Existed {
		t.Error("wav file did not exist when the recogniser ran")
	}
	if filepath.Dir(call.WavPath) != f.workDir || filepath.Ext(call.WavPath) != ".wav" {
		t.Errorf("wav path = %q, want <workdir>/<id>.wav", call.WavPath)
	}

	args, err := os.ReadFile(f.argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	fields := strings.Fields(string(args))
	if len(fields) != 8 || fields[0] != "-y" || fields[1] != "-i" ||
		strings.Join(fields[3:7], " ") != "-ac 1 -ar 16000" || fields[7] != call.WavPath {
		t.Errorf("ffmpeg args = %q", fields)
	}
	if filepath.Ext(fields[2]) != ".ogg" {
		t.Errorf("source = %q, want .ogg extension", fields[2])
	}

	f.assertWorkDirEmpty(t)

	msgs := f.store.Messages()
	if len(msgs) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(msgs))
	}
	want := store.Entry{UserID: 7, Direction: store.DirInTranscript, Type: store.TypeText, Text: "practice:p1:I would like to change my plan"}
	got := msgs[0]
	got.CreatedAt = want.CreatedAt
	if got != want {
		t.Errorf("audit entry = %+v, want %+v", got, want)
	}
}

func TestTranscribe_SourceExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		wantExt  string
	}{
		{name: "keeps extension", filename: "answer.mp3", wantExt: ".mp3"},
		{name: "defaults to ogg", filename: "", wantExt: ".ogg"},
		{name: "no extension", filename: "voice", wantExt: ".ogg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, okFFmpeg)
			att := voiceAtt
			att.Filename = tc.filename
			if _, err := f.pipeline.Transcribe(context.Background(), att); err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			args, _ := os.ReadFile(f.argsFile)
			fields := strings.Fields(string(args))
			if len(fields) < 3 || filepath.Ext(fields[2]) != tc.wantExt {
				t.Errorf("ffmpeg args = %q, want source with %s", fields, tc.wantExt)
			}
		})
	}
}

func TestRun_TranscodeFailureCleansUp(t *testing.T) {
	t.Parallel()

	// Leave a partially written target behind and fail.
	f := newFixture(t, `echo partial > "$dst"; echo "Invalid data found when processing input" >&2; exit 1`)
	_, err := f.pipeline.Run(context.Background(), 7, "p1", voiceAtt)
	if !errors.Is(err, voice.ErrAudio) {
		t.Fatalf("err = %v, want ErrAudio", err)
	}
	if !errors.Is(err, audio.ErrConvert) {
		t.Errorf("err = %v, want ffmpeg cause attached", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("err = %v, want stderr attached", err)
	}
	if f.stt.CallCount() != 0 {
		t.Error("recogniser ran after failed transcode")
	}
	f.assertWorkDirEmpty(t)

	msgs := f.store.Messages()
	if len(msgs) != 1 || msgs[0].Direction != store.DirError || msgs[0].Text != err.Error() {
		t.Errorf("audit entries = %+v, want one error entry with the error text", msgs)
	}
}

func TestTranscribe_FetchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okFFmpeg)
	f.transport.FetchErr = errors.New("cdn timeout")
	_, err := f.pipeline.Transcribe(context.Background(), voiceAtt)
	if !errors.Is(err, voice.ErrAudio) {
		t.Fatalf("err = %v, want ErrAudio", err)
	}
	if f.stt.CallCount() != 0 {
		t.Error("recogniser ran after failed fetch")
	}
	f.assertWorkDirEmpty(t)
}

func TestTranscribe_MissingFFmpeg(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	p, err := voice.New(voice.Config{
		Fetcher:    &chatmock.Transport{Files: map[string][]byte{voiceAtt.Ref: []byte("x")}},
		Transcoder: audio.NewFFmpeg(filepath.Join(t.TempDir(), "no-ffmpeg-here")),
		STT:        &sttmock.Provider{},
		WorkDir:    workDir,
	})
	if err != nil {
		t.Fatalf("voice.New: %v", err)
	}
	_, err = p.Transcribe(context.Background(), voiceAtt)
	if !errors.Is(err, voice.ErrAudio) || !errors.Is(err, audio.ErrFFmpegMissing) {
		t.Fatalf("err = %v, want ErrAudio wrapping ErrFFmpegMissing", err)
	}
	entries, _ := os.ReadDir(workDir)
	if len(entries) != 0 {
		t.Errorf("work dir has %d leftover files", len(entries))
	}
}

func TestTranscribe_RecogniserErrorsPassThrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "speech", err: fmt.Errorf("%w: no speech detected", stt.ErrSpeech)},
		{name: "unavailable", err: fmt.Errorf("%w: model not loaded", stt.ErrUnavailable)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, okFFmpeg)
			f.stt.Err = tc.err
			_, err := f.pipeline.Transcribe(context.Background(), voiceAtt)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
			if errors.Is(err, voice.ErrAudio) {
				t.Errorf("recogniser error reported as ErrAudio: %v", err)
			}
			f.assertWorkDirEmpty(t)
		})
	}
}

func TestTranscribe_ConcurrentRunsUseDistinctFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okFFmpeg)
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.pipeline.Transcribe(context.Background(), voiceAtt); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Transcribe: %v", err)
	}

	seen := make(map[string]bool)
	for _, c := range f.stt.Calls {
		if seen[c.WavPath] {
			t.Errorf("wav path %q reused", c.WavPath)
		}
		seen[c.WavPath] = true
	}
	f.assertWorkDirEmpty(t)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := voice.New(voice.Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"fetcher", "transcoder", "stt", "work dir"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
