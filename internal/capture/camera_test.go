package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnichat/internal/content"
)

type fakeVideoTrack struct {
	img    image.Image
	err    error
	closed bool
}

func (t *fakeVideoTrack) Frame(context.Context) (image.Image, error) { return t.img, t.err }

func (t *fakeVideoTrack) Close() error {
	t.closed = true
	return nil
}

type fakeCamera struct {
	track       *fakeVideoTrack
	err         error
	constraints Constraints
}

func (c *fakeCamera) Open(_ context.Context, cons Constraints) (VideoTrack, error) {
	c.constraints = cons
	if c.err != nil {
		return nil, c.err
	}
	return c.track, nil
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 80), B: 200, A: 255})
		}
	}
	return img
}

func TestCameraCaptureProducesJPEG(t *testing.T) {
	track := &fakeVideoTrack{img: testImage()}
	cam := &fakeCamera{track: track}
	cc := NewCameraCapture(cam)

	require.NoError(t, cc.Open(context.Background()))
	assert.Equal(t, Constraints{Facing: FacingEnvironment, Width: 1280, Height: 720}, cam.constraints)
	assert.Equal(t, CameraPreviewing, cc.State())
	assert.False(t, cc.Released())

	payload, err := cc.Capture(context.Background())
	require.NoError(t, err)
	mime, data, err := content.ParseDataURI(payload.DataURI)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), decoded.Bounds())

	assert.True(t, track.closed)
	assert.True(t, cc.Released())
	assert.Equal(t, CameraCaptured, cc.State())
}

func TestCameraCaptureRequiresPreview(t *testing.T) {
	cc := NewCameraCapture(&fakeCamera{track: &fakeVideoTrack{img: testImage()}})
	_, err := cc.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNotPreviewing)
}

func TestCameraFrameFailureReleases(t *testing.T) {
	track := &fakeVideoTrack{err: errors.New("stream ended")}
	cc := NewCameraCapture(&fakeCamera{track: track})
	require.NoError(t, cc.Open(context.Background()))

	_, err := cc.Capture(context.Background())
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.True(t, track.closed)
	assert.True(t, cc.Released())
	assert.Equal(t, CameraIdle, cc.State())
}

func TestCameraOpenFailuresAndClose(t *testing.T) {
	cc := NewCameraCapture(&fakeCamera{err: ErrPermissionDenied})
	err := cc.Open(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, KindDeviceAccess, Kind(err))
	assert.True(t, cc.Released())

	track := &fakeVideoTrack{img: testImage()}
	cc = NewCameraCapture(&fakeCamera{track: track})
	require.NoError(t, cc.Open(context.Background()))
	assert.ErrorIs(t, cc.Open(context.Background()), ErrDeviceBusy)
	cc.Close()
	assert.True(t, track.closed)
	assert.True(t, cc.Released())
	assert.Equal(t, CameraCancelled, cc.State())
}

func TestImageCameraServesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cc := NewCameraCapture(ImageCamera{Path: path})
	require.NoError(t, cc.Open(context.Background()))
	payload, err := cc.Capture(context.Background())
	require.NoError(t, err)
	assert.Contains(t, payload.DataURI, "data:image/jpeg;base64,")
}

func TestSessionCloseReleasesAllDevices(t *testing.T) {
	audioTrack := newFakeTrack("audio/wav")
	videoTrack := &fakeVideoTrack{img: testImage()}
	s := NewSession(&fakeMic{track: audioTrack}, &fakeCamera{track: videoTrack}, nil)

	require.NoError(t, s.Recorder.Start(context.Background()))
	require.NoError(t, s.Camera.Open(context.Background()))
	assert.False(t, s.Released())

	s.Close()
	assert.True(t, s.Released())
	assert.True(t, audioTrack.isClosed())
	assert.True(t, videoTrack.closed)
}
