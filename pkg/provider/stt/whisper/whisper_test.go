package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/speaksmart/pkg/audio"
	"github.com/MrWong99/speaksmart/pkg/provider/stt"
	"github.com/MrWong99/speaksmart/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// writeWAV writes a short silent WAV file and returns its path.
func writeWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.wav")
	wav := audio.EncodeWAV(make([]byte, 320), audio.Format{SampleRate: 16000, Channels: 1})
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---- provider construction --------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

// ---- transcription ----------------------------------------------------------

func TestTranscribe_SendsMultipartForm(t *testing.T) {
	t.Parallel()

	type captured struct {
		path, language, model, format string
		fileSize                      int
	}
	got := make(chan captured, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		got <- captured{
			path:     r.URL.Path,
			language: r.FormValue("language"),
			model:    r.FormValue("model"),
			format:   r.FormValue("response_format"),
			fileSize: len(data),
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  Hello world \n"})
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL+"/", whisper.WithLanguage("ru"), whisper.WithModel("small"))
	if err != nil {
		t.Fatal(err)
	}
	text, err := p.Transcribe(context.Background(), writeWAV(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("text = %q, want %q", text, "Hello world")
	}

	c := <-got
	if c.path != "/inference" {
		t.Errorf("path = %q, want /inference", c.path)
	}
	if c.language != "ru" || c.model != "small" || c.format != "json" {
		t.Errorf("fields = %+v", c)
	}
	if c.fileSize != 44+320 {
		t.Errorf("uploaded %d bytes, want %d", c.fileSize, 44+320)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) },
			want:    stt.ErrUnavailable,
		},
		{
			name:    "bad request",
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "bad audio", http.StatusBadRequest) },
			want:    stt.ErrSpeech,
		},
		{
			name:    "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("not json")) },
			want:    stt.ErrSpeech,
		},
		{
			name:    "error field",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"error":"failed to read WAV"}`)) },
			want:    stt.ErrSpeech,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p, _ := whisper.New(srv.URL)
			_, err := p.Transcribe(context.Background(), writeWAV(t))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTranscribe_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, _ := whisper.New(url)
	if _, err := p.Transcribe(context.Background(), writeWAV(t)); !errors.Is(err, stt.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	t.Parallel()

	p, _ := whisper.New("http://127.0.0.1:1")
	_, err := p.Transcribe(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))
	if !errors.Is(err, stt.ErrSpeech) {
		t.Fatalf("err = %v, want ErrSpeech", err)
	}
}
