package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// FormatWAV is the only format the encoder produces.
	FormatWAV = "wav"

	headerSize    = 44
	bitsPerSample = 16
	numChannels   = 1
)

// Buffer is a decoded capture reduced to its first channel.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Seconds returns the true duration of the buffer.
func (b Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

func (b Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Payload is a WAV capture ready for JSON transport.
type Payload struct {
	Data        string `json:"data"`
	Format      string `json:"format"`
	DurationSec int    `json:"durationSec"`
}

// Header mirrors the canonical 44-byte RIFF/WAVE header.
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data size
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

var (
	ErrEmptyBuffer       = errors.New("audio: buffer has no samples")
	ErrInvalidSampleRate = errors.New("audio: sample rate must be positive")
)

// PCM16 converts one float sample to signed 16-bit PCM. Negative samples scale
// by 0x8000 and non-negative ones by 0x7FFF so both ends stay in range; the
// result truncates toward zero.
func PCM16(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	if v < 0 {
		return int16(v * 0x8000)
	}
	return int16(v * 0x7FFF)
}

// DurationSec rounds seconds to the nearest integer with a floor of 1.
func DurationSec(seconds float64) int {
	rounded := int(math.Round(seconds))
	if rounded < 1 {
		return 1
	}
	return rounded
}

// EncodeWAV writes the buffer as a canonical 16-bit mono PCM WAV file.
func EncodeWAV(buf Buffer) ([]byte, error) {
	if len(buf.Samples) == 0 {
		return nil, ErrEmptyBuffer
	}
	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSampleRate, buf.SampleRate)
	}

	dataSize := uint32(len(buf.Samples) * 2)
	header := Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(buf.SampleRate),
		ByteRate:      uint32(buf.SampleRate) * numChannels * bitsPerSample / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	samples := make([]int16, len(buf.Samples))
	for i, s := range buf.Samples {
		samples[i] = PCM16(s)
	}

	out := bytes.NewBuffer(make([]byte, 0, headerSize+int(dataSize)))
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write WAV samples: %w", err)
	}
	return out.Bytes(), nil
}

// Encode produces the transport payload for a decoded capture.
func Encode(buf Buffer) (Payload, error) {
	wav, err := EncodeWAV(buf)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Data:        base64.StdEncoding.EncodeToString(wav),
		Format:      FormatWAV,
		DurationSec: DurationSec(buf.Seconds()),
	}, nil
}

// ParseHeader reads the canonical header from the start of a WAV file.
func ParseHeader(data []byte) (Header, error) {
	var header Header
	if len(data) < headerSize {
		return header, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", headerSize, len(data))
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return header, errors.New("invalid WAV file: missing RIFF/WAVE header")
	}
	if string(header.Subchunk1ID[:]) != "fmt " || string(header.Subchunk2ID[:]) != "data" {
		return header, errors.New("invalid WAV file: not a canonical header")
	}
	return header, nil
}
