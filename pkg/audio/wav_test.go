package audio_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/speaksmart/pkg/audio"
)

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x00, 0xff, 0x7f, 0x00, 0x80, 0x10, 0x00}
	f := audio.Format{SampleRate: 16000, Channels: 1}

	gotPCM, gotFmt, err := audio.DecodeWAV(audio.EncodeWAV(pcm, f))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(gotPCM, pcm) {
		t.Errorf("pcm = %v, want %v", gotPCM, pcm)
	}
	if gotFmt != f {
		t.Errorf("format = %+v, want %+v", gotFmt, f)
	}
}

func TestDecodeWAV_SkipsExtraChunks(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0}
	wav := audio.EncodeWAV(pcm, audio.Format{SampleRate: 16000, Channels: 1})

	// Insert an odd-sized LIST chunk between fmt and data, as ffmpeg does.
	list := []byte("LIST")
	list = binary.LittleEndian.AppendUint32(list, 3)
	list = append(list, 'a', 'b', 'c', 0) // pad byte

	var buf bytes.Buffer
	buf.Write(wav[:36])
	buf.Write(list)
	buf.Write(wav[36:])

	got, _, err := audio.DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	t.Parallel()

	for name, data := range map[string][]byte{
		"short":   []byte("RIFF"),
		"not wav": []byte("RIFF\x00\x00\x00\x00AVI LIST"),
		"no data": audio.EncodeWAV(nil, audio.Format{SampleRate: 8000, Channels: 1})[:36],
	} {
		if _, _, err := audio.DecodeWAV(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestReadWAVFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(path, audio.EncodeWAV([]byte{0, 0}, audio.Format{SampleRate: 16000, Channels: 1}), 0o644); err != nil {
		t.Fatal(err)
	}
	pcm, f, err := audio.ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if len(pcm) != 2 || f.SampleRate != 16000 {
		t.Errorf("got %d bytes at %+v", len(pcm), f)
	}
	if _, _, err := audio.ReadWAVFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPCMToFloat32Mono(t *testing.T) {
	t.Parallel()

	// One stereo frame: left = 16384 (0.5), right = -16384 (-0.5).
	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(16384))
	v := int16(-16384)
	binary.LittleEndian.PutUint16(pcm[2:], uint16(v))

	if got := audio.PCMToFloat32Mono(pcm, 2); len(got) != 1 || got[0] != 0 {
		t.Errorf("stereo downmix = %v, want [0]", got)
	}
	if got := audio.PCMToFloat32Mono(pcm, 1); len(got) != 2 || got[0] != 0.5 || got[1] != -0.5 {
		t.Errorf("mono = %v, want [0.5 -0.5]", got)
	}
}
