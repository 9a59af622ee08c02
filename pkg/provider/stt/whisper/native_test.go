package whisper_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/speaksmart/pkg/audio"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
	"github.com/MrWong99/speaksmart/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("")
	if err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath_ReturnsUnavailable(t *testing.T) {
	_, err := whisper.NewNative("/nonexistent/path/to/model.bin")
	if !errors.Is(err, stt.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestNativeTranscribe_Silence(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath, whisper.WithNativeLanguage("en"), whisper.WithNativeConcurrency(2))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	// One second of silence must not fail; whisper may return empty text.
	wav := audio.EncodeWAV(make([]byte, 32000), audio.Format{SampleRate: 16000, Channels: 1})
	path := filepath.Join(t.TempDir(), "silence.wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Transcribe(context.Background(), path); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestNativeTranscribe_WrongSampleRate(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	wav := audio.EncodeWAV(make([]byte, 480), audio.Format{SampleRate: 48000, Channels: 1})
	path := filepath.Join(t.TempDir(), "hi.wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Transcribe(context.Background(), path); !errors.Is(err, stt.ErrSpeech) {
		t.Fatalf("err = %v, want ErrSpeech", err)
	}
}
