// Package audio wraps the external ffmpeg converter and provides small
// helpers for the RIFF/WAV container used between pipeline stages.
//
// Decoding of compressed voice formats (Ogg/Opus, MP3, …) is always delegated
// to ffmpeg; this package only ever reads and writes 16-bit PCM WAV.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Canonical speech-recognition format: mono, 16 kHz, 16-bit PCM.
const (
	SpeechSampleRate = 16000
	SpeechChannels   = 1
)

var (
	// ErrSourceMissing is returned when the input file does not exist.
	ErrSourceMissing = errors.New("audio: source file does not exist")

	// ErrFFmpegMissing is returned when the configured ffmpeg binary cannot
	// be found.
	ErrFFmpegMissing = errors.New("audio: ffmpeg not found")

	// ErrConvert is returned when ffmpeg exits with a non-zero status. The
	// wrapping error carries ffmpeg's stderr.
	ErrConvert = errors.New("audio: ffmpeg conversion failed")
)

// FFmpeg runs conversions through an ffmpeg binary.
// The zero value is not usable; construct with [NewFFmpeg].
type FFmpeg struct {
	path string
}

// NewFFmpeg returns an FFmpeg using the binary at path. A bare name such as
// "ffmpeg" is resolved through PATH when a conversion runs.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

// Path returns the configured binary path.
func (f *FFmpeg) Path() string { return f.path }

// ToWAV converts src to a mono 16 kHz WAV file at dst.
func (f *FFmpeg) ToWAV(ctx context.Context, src, dst string) error {
	return f.run(ctx, src, dst,
		"-ac", fmt.Sprint(SpeechChannels),
		"-ar", fmt.Sprint(SpeechSampleRate),
	)
}

// ToOpus converts src to an Ogg/Opus voice file at dst (32 kbit/s).
func (f *FFmpeg) ToOpus(ctx context.Context, src, dst string) error {
	return f.run(ctx, src, dst, "-c:a", "libopus", "-b:a", "32k")
}

func (f *FFmpeg) run(ctx context.Context, src, dst string, outArgs ...string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	bin, err := f.resolve()
	if err != nil {
		return err
	}

	args := append([]string{"-y", "-i", src}, outArgs...)
	args = append(args, dst)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v: stderr: %s", ErrConvert, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// resolve checks that the binary exists. Paths containing a separator are
// checked directly; bare names are looked up on PATH.
func (f *FFmpeg) resolve() (string, error) {
	if strings.ContainsRune(f.path, os.PathSeparator) {
		if _, err := os.Stat(f.path); err != nil {
			return "", fmt.Errorf("%w at %q", ErrFFmpegMissing, f.path)
		}
		return f.path, nil
	}
	bin, err := exec.LookPath(f.path)
	if err != nil {
		return "", fmt.Errorf("%w at %q: %w", ErrFFmpegMissing, f.path, err)
	}
	return bin, nil
}
