// Package content turns captured payloads into the ordered, provider-agnostic
// block list that every upstream adapter consumes.
package content

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindText       Kind = "text"
	KindImageURL   Kind = "image_url"
	KindInputAudio Kind = "input_audio"
)

const defaultAudioFormat = "wav"

// DefaultImagePrompt accompanies an image sent without any text.
const DefaultImagePrompt = "Please analyze this image"

var (
	// ErrEmptyRequest is returned when no payload produced a block.
	ErrEmptyRequest = errors.New("no usable input content")
	// ErrInvalidPayload marks a media payload that cannot be decoded.
	ErrInvalidPayload = errors.New("invalid media payload")
)

// ImagePayload is a base64 image data URI such as "data:image/jpeg;base64,...".
type ImagePayload struct {
	DataURI string
}

// AudioPayload is an encoded capture, normally a base64 WAV.
type AudioPayload struct {
	Data        string `json:"data"`
	Format      string `json:"format"`
	DurationSec int    `json:"durationSec"`
}

type AudioInput struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// Block is one typed unit of a user turn. Exactly one of Text, ImageURL or
// Audio is set, matching Kind.
type Block struct {
	Kind     Kind
	Text     string
	ImageURL string
	Audio    *AudioInput
}

// Request is a single stateless user turn.
type Request struct {
	Model  string
	Blocks []Block
}

// Normalize orders the payloads as text, image, audio and drops empty ones.
func Normalize(text string, image *ImagePayload, audio *AudioPayload) ([]Block, error) {
	blocks := make([]Block, 0, 3)
	if strings.TrimSpace(text) != "" {
		blocks = append(blocks, Block{Kind: KindText, Text: text})
	}
	if image != nil && image.DataURI != "" {
		blocks = append(blocks, Block{Kind: KindImageURL, ImageURL: image.DataURI})
	}
	if audio != nil && audio.Data != "" {
		format := strings.TrimSpace(audio.Format)
		if format == "" {
			format = defaultAudioFormat
		}
		blocks = append(blocks, Block{Kind: KindInputAudio, Audio: &AudioInput{Data: audio.Data, Format: format}})
	}
	if len(blocks) == 0 {
		return nil, ErrEmptyRequest
	}
	return blocks, nil
}

// HasMedia reports whether any block carries an image or audio.
func HasMedia(blocks []Block) bool {
	for _, b := range blocks {
		if b.Kind == KindImageURL || b.Kind == KindInputAudio {
			return true
		}
	}
	return false
}

// Text joins the text blocks.
func Text(blocks []Block) string {
	var parts []string
	for _, b := range blocks {
		if b.Kind == KindText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func Kinds(blocks []Block) []string {
	kinds := make([]string, len(blocks))
	for i, b := range blocks {
		kinds[i] = string(b.Kind)
	}
	return kinds
}

type imageURL struct {
	URL string `json:"url"`
}

type part struct {
	Type       Kind        `json:"type"`
	Text       *string     `json:"text,omitempty"`
	ImageURL   *imageURL   `json:"image_url,omitempty"`
	InputAudio *AudioInput `json:"input_audio,omitempty"`
}

// MarshalJSON renders the block as an OpenAI-style typed content part.
func (b Block) MarshalJSON() ([]byte, error) {
	p := part{Type: b.Kind}
	switch b.Kind {
	case KindText:
		text := b.Text
		p.Text = &text
	case KindImageURL:
		p.ImageURL = &imageURL{URL: b.ImageURL}
	case KindInputAudio:
		if b.Audio == nil {
			return nil, errors.New("content: audio block without audio")
		}
		p.InputAudio = b.Audio
	default:
		return nil, fmt.Errorf("content: unknown block kind %q", b.Kind)
	}
	return json.Marshal(p)
}

// ParseDataURI splits "data:<mime>;base64,<payload>" into its MIME type and bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URI", ErrInvalidPayload)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed data URI", ErrInvalidPayload)
	}
	mime, encoding, _ := strings.Cut(meta, ";")
	if !strings.EqualFold(encoding, "base64") {
		return "", nil, fmt.Errorf("%w: data URI is not base64", ErrInvalidPayload)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: decode data URI: %v", ErrInvalidPayload, err)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return mime, data, nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
