package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrdersTextImageAudio(t *testing.T) {
	blocks, err := Normalize("hi",
		&ImagePayload{DataURI: "data:image/png;base64,AAAA"},
		&AudioPayload{Data: "UklGRg==", Format: "wav", DurationSec: 2},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "image_url", "input_audio"}, Kinds(blocks))
	assert.Equal(t, "hi", blocks[0].Text)
	assert.Equal(t, "data:image/png;base64,AAAA", blocks[1].ImageURL)
	assert.Equal(t, &AudioInput{Data: "UklGRg==", Format: "wav"}, blocks[2].Audio)
}

func TestNormalizeSkipsEmptyPayloads(t *testing.T) {
	blocks, err := Normalize("", &ImagePayload{}, &AudioPayload{Data: "AAA"})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, KindInputAudio, blocks[0].Kind)
	assert.Equal(t, "wav", blocks[0].Audio.Format, "format defaults to wav")
	assert.True(t, HasMedia(blocks))
}

func TestNormalizeEmptyRequest(t *testing.T) {
	for name, run := range map[string]func() ([]Block, error){
		"nothing":        func() ([]Block, error) { return Normalize("", nil, nil) },
		"blank text":     func() ([]Block, error) { return Normalize("   ", nil, nil) },
		"empty payloads": func() ([]Block, error) { return Normalize("", &ImagePayload{}, &AudioPayload{Format: "wav"}) },
	} {
		_, err := run()
		assert.ErrorIs(t, err, ErrEmptyRequest, name)
	}
}

func TestBlockMarshalJSON(t *testing.T) {
	blocks, err := Normalize("describe", &ImagePayload{DataURI: "data:image/jpeg;base64,/9j="}, &AudioPayload{Data: "QUJD", Format: "mp3"})
	require.NoError(t, err)

	raw, err := json.Marshal(blocks)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"text","text":"describe"},
		{"type":"image_url","image_url":{"url":"data:image/jpeg;base64,/9j="}},
		{"type":"input_audio","input_audio":{"data":"QUJD","format":"mp3"}}
	]`, string(raw))
	assert.False(t, HasMedia(blocks[:1]))
	assert.Equal(t, "describe", Text(blocks))
}

func TestParseDataURI(t *testing.T) {
	uri := DataURI("image/png", []byte("png-bytes"))
	mime, data, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("png-bytes"), data)

	for _, bad := range []string{"http://x/y.png", "data:image/png;base64", "data:text/plain,hello", "data:image/png;base64,!!"} {
		_, _, err := ParseDataURI(bad)
		assert.ErrorIs(t, err, ErrInvalidPayload, bad)
	}
}
