package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const bitsPerSample = 16

// Format describes the sample rate and channel count of PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM in a RIFF/WAV container.
func EncodeWAV(pcm []byte, f Format) []byte {
	byteRate := f.SampleRate * f.Channels * bitsPerSample / 8
	blockAlign := f.Channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

// DecodeWAV walks the RIFF chunks of wav and returns the PCM payload of the
// data chunk with the format from the fmt chunk. Chunk sizes are honoured, so
// files with extra chunks (LIST, fact) written by ffmpeg decode correctly.
func DecodeWAV(wav []byte) ([]byte, Format, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("audio: not a RIFF/WAVE file")
	}

	var f Format
	foundFmt := false
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return nil, Format{}, errors.New("audio: truncated fmt chunk")
			}
			if bits := binary.LittleEndian.Uint16(wav[body+14 : body+16]); bits != bitsPerSample {
				return nil, Format{}, fmt.Errorf("audio: unsupported bit depth %d", bits)
			}
			f.Channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return nil, Format{}, errors.New("audio: data chunk before fmt chunk")
			}
			end := body + size
			if end > len(wav) {
				end = len(wav)
			}
			return wav[body:end], f, nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return nil, Format{}, errors.New("audio: missing data chunk")
}

// ReadWAVFile reads and decodes the WAV file at path.
func ReadWAVFile(path string) ([]byte, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: read %q: %w", path, err)
	}
	pcm, f, err := DecodeWAV(data)
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: decode %q: %w", path, err)
	}
	return pcm, f, nil
}

// PCMToFloat32Mono converts 16-bit little-endian PCM to float32 samples in
// [-1, 1], averaging channels when there is more than one.
func PCMToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[idx:idx+2]))) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}
