package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fileChunkSize = 4096

// FileMicrophone plays a recorded file as if it were a live microphone. The
// track keeps running after the file is exhausted until it is closed.
type FileMicrophone struct {
	Path string
}

func (m FileMicrophone) Open(_ context.Context) (AudioTrack, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, openError(err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(m.Path)))
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	return &fileAudioTrack{f: f, mimeType: mimeType, closed: make(chan struct{})}, nil
}

type fileAudioTrack struct {
	f        *os.File
	mimeType string
	eof      bool
	closed   chan struct{}
	once     sync.Once
}

func (t *fileAudioTrack) Next(ctx context.Context) ([]byte, error) {
	if !t.eof {
		buf := make([]byte, fileChunkSize)
		n, err := t.f.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			_ = t.f.Close()
			return nil, err
		}
		t.eof = true
		_ = t.f.Close()
	}
	select {
	case <-t.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fileAudioTrack) MIMEType() string { return t.mimeType }

func (t *fileAudioTrack) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// ImageCamera serves a still image file as every frame.
type ImageCamera struct {
	Path string
}

func (c ImageCamera) Open(_ context.Context, _ Constraints) (VideoTrack, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, openError(err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(c.Path), err)
	}
	return &stillTrack{img: img}, nil
}

type stillTrack struct {
	img image.Image
}

func (t *stillTrack) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.img, nil
}

func (t *stillTrack) Close() error { return nil }

func openError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
