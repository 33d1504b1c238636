// Package audio encodes narration PCM into WAV files and reads back their
// authoritative duration.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// SampleRate matches the pcm_44100 output of the TTS provider.
	SampleRate    = 44100
	Channels      = 1
	BitsPerSample = 16

	bytesPerSample = BitsPerSample / 8
)

// ErrNotWAV is returned when a file lacks a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a wav file")

// Silence returns d seconds of zero samples.
func Silence(seconds float64) []byte {
	n := int(seconds * SampleRate)
	if n < 0 {
		n = 0
	}
	return make([]byte, n*Channels*bytesPerSample)
}

// PCMDuration returns the duration in seconds of raw 16-bit mono PCM.
func PCMDuration(pcm []byte) float64 {
	return float64(len(pcm)) / float64(SampleRate*Channels*bytesPerSample)
}

// EncodeWAV wraps 16-bit mono PCM at SampleRate in a canonical WAV header.
func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	byteRate := SampleRate * Channels * bytesPerSample
	blockAlign := Channels * bytesPerSample

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// Probe reads the WAV file at path and returns its duration in seconds.
func Probe(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ProbeReader(f)
}

// ProbeReader walks the RIFF chunks of r and computes the data duration.
func ProbeReader(r io.Reader) (float64, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, ErrNotWAV
	}

	var byteRate uint32
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return 0, fmt.Errorf("audio: data chunk not found: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return 0, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return 0, fmt.Errorf("audio: fmt chunk too short (%d bytes)", len(body))
			}
			byteRate = binary.LittleEndian.Uint32(body[8:12])
		case "data":
			if byteRate == 0 {
				return 0, errors.New("audio: data chunk before fmt chunk")
			}
			return float64(size) / float64(byteRate), nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return 0, fmt.Errorf("audio: skip %q chunk: %w", id, err)
			}
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return 0, fmt.Errorf("audio: chunk padding: %w", err)
			}
		}
	}
}
