package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"

	"omnichat/internal/content"
)

const JPEGQuality = 80

type CameraState int

const (
	CameraIdle CameraState = iota
	CameraPreviewing
	CameraCaptured
	CameraCancelled
)

func (s CameraState) String() string {
	switch s {
	case CameraIdle:
		return "idle"
	case CameraPreviewing:
		return "previewing"
	case CameraCaptured:
		return "captured"
	case CameraCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CameraCapture holds the camera only between Open and Capture or Close.
type CameraCapture struct {
	camera      Camera
	constraints Constraints

	mu    sync.Mutex
	state CameraState
	track VideoTrack
}

func NewCameraCapture(camera Camera) *CameraCapture {
	return &CameraCapture{camera: camera, constraints: DefaultConstraints()}
}

func (c *CameraCapture) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CameraPreviewing {
		return ErrDeviceBusy
	}
	if c.camera == nil {
		return fmt.Errorf("open camera: %w", ErrDeviceUnavailable)
	}
	track, err := c.camera.Open(ctx, c.constraints)
	if err != nil {
		c.state = CameraIdle
		return deviceError("open camera", err)
	}
	c.track = track
	c.state = CameraPreviewing
	return nil
}

// Capture grabs the current frame as a JPEG data URI and releases the camera.
func (c *CameraCapture) Capture(ctx context.Context) (content.ImagePayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CameraPreviewing || c.track == nil {
		return content.ImagePayload{}, ErrNotPreviewing
	}
	track := c.track
	frame, frameErr := track.Frame(ctx)
	_ = track.Close()
	c.track = nil

	if frameErr != nil {
		c.state = CameraIdle
		return content.ImagePayload{}, deviceError("capture frame", frameErr)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		c.state = CameraIdle
		return content.ImagePayload{}, fmt.Errorf("encode frame: %w", err)
	}
	c.state = CameraCaptured
	return content.ImagePayload{DataURI: content.DataURI("image/jpeg", buf.Bytes())}, nil
}

// Close dismisses the preview without capturing.
func (c *CameraCapture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.track != nil {
		_ = c.track.Close()
		c.track = nil
	}
	if c.state == CameraPreviewing {
		c.state = CameraCancelled
	} else {
		c.state = CameraIdle
	}
}

func (c *CameraCapture) State() CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CameraCapture) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.track == nil
}
