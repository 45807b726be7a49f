package wavio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chrisgleissner/sidflow-sub004/internal/services"
)

// Format describes the PCM layout of decoded audio.
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// Audio holds decoded samples, interleaved by channel, normalized to [-1, 1].
type Audio struct {
	Format  Format
	Samples []float64
}

// Frames returns the number of per-channel sample frames.
func (a *Audio) Frames() int {
	if a.Format.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Format.Channels
}

// Duration returns the audio length in seconds.
func (a *Audio) Duration() float64 {
	if a.Format.SampleRate == 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.Format.SampleRate)
}

const pcmFormatCode = 1

func wrapInvalid(op, message string) error {
	return services.Wrap(services.ErrValidation, "wavio", op, message, nil)
}

// DecodeFile reads and validates a WAV file from disk.
func DecodeFile(path string) (*Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a RIFF/WAVE container. Only uncompressed PCM with 1-2
// channels and 8/16/24/32-bit depth is accepted; anything else is rejected
// with a descriptive validation error.
func Decode(r io.Reader) (*Audio, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, wrapInvalid("decode", "malformed container: truncated RIFF header")
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, wrapInvalid("decode", "invalid container: missing RIFF/WAVE magic")
	}

	var format *Format
	var payload []byte

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			break
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, wrapInvalid("decode", "malformed fmt chunk: truncated")
			}
			f, err := parseFormatChunk(body)
			if err != nil {
				return nil, err
			}
			format = f
		case "data":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, wrapInvalid("decode", "malformed data chunk: truncated")
			}
			payload = body
		default:
			if _, err := io.CopyN(io.Discard, r, int64(chunkSize)); err != nil {
				return nil, wrapInvalid("decode", fmt.Sprintf("malformed chunk %q: truncated", chunkID))
			}
		}
		// chunks are word-aligned
		if chunkSize%2 == 1 {
			_, _ = io.CopyN(io.Discard, r, 1)
		}
	}

	if format == nil {
		return nil, wrapInvalid("decode", "invalid container: fmt chunk missing")
	}
	if len(payload) == 0 {
		return nil, wrapInvalid("decode", "invalid container: empty data payload")
	}

	samples, err := decodeSamples(payload, *format)
	if err != nil {
		return nil, err
	}
	return &Audio{Format: *format, Samples: samples}, nil
}

func parseFormatChunk(body []byte) (*Format, error) {
	if len(body) < 16 {
		return nil, wrapInvalid("decode", "malformed fmt chunk: too short")
	}
	audioFormat := int(binary.LittleEndian.Uint16(body[0:2]))
	channels := int(binary.LittleEndian.Uint16(body[2:4]))
	sampleRate := int(binary.LittleEndian.Uint32(body[4:8]))
	bits := int(binary.LittleEndian.Uint16(body[14:16]))

	if audioFormat != pcmFormatCode {
		return nil, wrapInvalid("decode", fmt.Sprintf("invalid format: compression code %d is not PCM", audioFormat))
	}
	if channels < 1 || channels > 2 {
		return nil, wrapInvalid("decode", fmt.Sprintf("invalid format: %d channels (expected 1 or 2)", channels))
	}
	if sampleRate <= 0 {
		return nil, wrapInvalid("decode", fmt.Sprintf("invalid format: sample rate %d", sampleRate))
	}
	switch bits {
	case 8, 16, 24, 32:
	default:
		return nil, wrapInvalid("decode", fmt.Sprintf("invalid format: %d-bit depth (expected 8/16/24/32)", bits))
	}
	return &Format{Channels: channels, SampleRate: sampleRate, BitsPerSample: bits}, nil
}

func decodeSamples(payload []byte, format Format) ([]float64, error) {
	bytesPer := format.BitsPerSample / 8
	if len(payload)%bytesPer != 0 {
		return nil, wrapInvalid("decode", "malformed data payload: size not sample-aligned")
	}
	count := len(payload) / bytesPer
	samples := make([]float64, count)

	switch format.BitsPerSample {
	case 8:
		// 8-bit WAV is unsigned, centered at 128.
		for i := 0; i < count; i++ {
			samples[i] = (float64(payload[i]) - 128) / 128
		}
	case 16:
		for i := 0; i < count; i++ {
			v := int16(binary.LittleEndian.Uint16(payload[i*2:]))
			samples[i] = float64(v) / 32768
		}
	case 24:
		for i := 0; i < count; i++ {
			b := payload[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			samples[i] = float64(v) / 8388608
		}
	case 32:
		for i := 0; i < count; i++ {
			v := int32(binary.LittleEndian.Uint32(payload[i*4:]))
			samples[i] = float64(v) / 2147483648
		}
	}
	return samples, nil
}

// Encode writes 16-bit PCM WAV. Samples are interleaved floats in [-1, 1];
// values outside that range are clipped.
func Encode(w io.Writer, sampleRate, channels int, samples []float64) error {
	if channels < 1 || channels > 2 {
		return wrapInvalid("encode", fmt.Sprintf("invalid format: %d channels", channels))
	}
	if sampleRate <= 0 {
		return wrapInvalid("encode", fmt.Sprintf("invalid format: sample rate %d", sampleRate))
	}

	dataSize := len(samples) * 2
	var header bytes.Buffer
	header.WriteString("RIFF")
	binary.Write(&header, binary.LittleEndian, uint32(36+dataSize))
	header.WriteString("WAVE")
	header.WriteString("fmt ")
	binary.Write(&header, binary.LittleEndian, uint32(16))
	binary.Write(&header, binary.LittleEndian, uint16(pcmFormatCode))
	binary.Write(&header, binary.LittleEndian, uint16(channels))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate*channels*2)) // byte rate
	binary.Write(&header, binary.LittleEndian, uint16(channels*2))            // block align
	binary.Write(&header, binary.LittleEndian, uint16(16))
	header.WriteString("data")
	binary.Write(&header, binary.LittleEndian, uint32(dataSize))
	if _, err := w.Write(header.Bytes()); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	payload := make([]byte, dataSize)
	for i, s := range samples {
		v := int16(math.Round(math.Max(-1, math.Min(1, s)) * 32767))
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(v))
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}
	return nil
}

// EncodeFile writes 16-bit PCM WAV to path.
func EncodeFile(path string, sampleRate, channels int, samples []float64) error {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleRate, channels, samples); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
