package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrDecodeFailed wraps every reason a capture could not be decoded.
var ErrDecodeFailed = errors.New("audio decode failed")

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

type fmtChunk struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	blockAlign    uint16
	bitsPerSample uint16
}

// DecodeWAV decodes a RIFF/WAVE capture into channel 0 as float samples.
// Unknown chunks (LIST, fact, ...) are skipped. Supported encodings are PCM
// 8/16-bit and IEEE float 32-bit with any channel count.
func DecodeWAV(data []byte) (Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Buffer{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrDecodeFailed)
	}

	var (
		format  *fmtChunk
		payload []byte
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streaming recorders may leave the data size unset; take what is there.
			if id == "data" {
				end = len(data)
			} else {
				return Buffer{}, fmt.Errorf("%w: truncated %q chunk", ErrDecodeFailed, id)
			}
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Buffer{}, fmt.Errorf("%w: short fmt chunk", ErrDecodeFailed)
			}
			chunk := data[body:end]
			format = &fmtChunk{
				audioFormat:   binary.LittleEndian.Uint16(chunk[0:2]),
				channels:      binary.LittleEndian.Uint16(chunk[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(chunk[4:8]),
				blockAlign:    binary.LittleEndian.Uint16(chunk[12:14]),
				bitsPerSample: binary.LittleEndian.Uint16(chunk[14:16]),
			}
			if format.audioFormat == formatExtensible && len(chunk) >= 26 {
				format.audioFormat = binary.LittleEndian.Uint16(chunk[24:26])
			}
		case "data":
			payload = data[body:end]
		}

		// chunks are word aligned
		offset = end + (end-body)%2
	}

	if format == nil {
		return Buffer{}, fmt.Errorf("%w: missing fmt chunk", ErrDecodeFailed)
	}
	if format.channels == 0 || format.sampleRate == 0 {
		return Buffer{}, fmt.Errorf("%w: invalid fmt chunk", ErrDecodeFailed)
	}

	samples, err := channelZero(format, payload)
	if err != nil {
		return Buffer{}, err
	}
	if len(samples) == 0 {
		return Buffer{}, fmt.Errorf("%w: no audio data", ErrDecodeFailed)
	}
	return Buffer{Samples: samples, SampleRate: int(format.sampleRate)}, nil
}

func channelZero(f *fmtChunk, payload []byte) ([]float32, error) {
	bytesPerSample := int(f.bitsPerSample) / 8
	frame := int(f.blockAlign)
	if frame == 0 {
		frame = bytesPerSample * int(f.channels)
	}
	if bytesPerSample == 0 || frame < bytesPerSample {
		return nil, fmt.Errorf("%w: invalid block layout", ErrDecodeFailed)
	}

	n := len(payload) / frame
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		at := payload[i*frame : i*frame+bytesPerSample]
		switch {
		case f.audioFormat == formatPCM && f.bitsPerSample == 8:
			samples[i] = (float32(at[0]) - 128) / 128
		case f.audioFormat == formatPCM && f.bitsPerSample == 16:
			samples[i] = float32(int16(binary.LittleEndian.Uint16(at))) / 0x8000
		case f.audioFormat == formatIEEEFloat && f.bitsPerSample == 32:
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(at))
		default:
			return nil, fmt.Errorf("%w: unsupported encoding (format %d, %d bits)", ErrDecodeFailed, f.audioFormat, f.bitsPerSample)
		}
	}
	return samples, nil
}
