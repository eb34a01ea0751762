// Package capture acquires microphone audio, camera frames and uploaded images
// and turns them into payloads the content normalizer accepts. Devices are
// reached through small port interfaces so a terminal, a test or a browser
// bridge can supply them.
package capture

import (
	"context"
	"image"
	"strings"

	"omnichat/internal/audio"
)

// PreferredMIMETypes lists recorder encodings in order of preference.
var PreferredMIMETypes = []string{
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/webm",
	"audio/mp4",
}

const defaultRecordingMIME = "audio/webm"

type Microphone interface {
	Open(ctx context.Context) (AudioTrack, error)
}

// AudioTrack yields encoded chunks in capture order. After Close, Next drains
// anything still buffered and then returns io.EOF.
type AudioTrack interface {
	Next(ctx context.Context) ([]byte, error)
	MIMEType() string
	Close() error
}

type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Constraints are preferences; a camera may deliver a different size.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

func DefaultConstraints() Constraints {
	return Constraints{Facing: FacingEnvironment, Width: 1280, Height: 720}
}

type Camera interface {
	Open(ctx context.Context, c Constraints) (VideoTrack, error)
}

type VideoTrack interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Decoder turns a complete recording into PCM samples.
type Decoder interface {
	Decode(data []byte, mimeType string) (audio.Buffer, error)
}

type DecoderFunc func(data []byte, mimeType string) (audio.Buffer, error)

func (f DecoderFunc) Decode(data []byte, mimeType string) (audio.Buffer, error) {
	return f(data, mimeType)
}

// WAVDecoder decodes RIFF/WAVE recordings regardless of the declared MIME type.
var WAVDecoder Decoder = DecoderFunc(func(data []byte, _ string) (audio.Buffer, error) {
	return audio.DecodeWAV(data)
})

func normalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return defaultRecordingMIME
	}
	return mimeType
}
