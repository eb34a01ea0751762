package capture

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("device permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrDeviceBusy        = errors.New("capture device busy")
	ErrNoAudioCaptured   = errors.New("no audio captured")
	ErrDecodeFailed      = errors.New("captured audio could not be decoded")
	ErrInvalidFile       = errors.New("file is not an image")
	ErrFileTooLarge      = errors.New("image file exceeds the size limit")
	ErrNotRecording      = errors.New("recorder is not recording")
	ErrNotPreviewing     = errors.New("camera is not previewing")
)

type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindInputValidation ErrorKind = "input_validation"
	KindDeviceAccess    ErrorKind = "device_access"
	KindEncodingFailure ErrorKind = "encoding_failure"
)

// Kind reports which failure class a capture error belongs to.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrNotRecording), errors.Is(err, ErrNotPreviewing):
		return KindInputValidation
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrDeviceUnavailable), errors.Is(err, ErrDeviceBusy):
		return KindDeviceAccess
	case errors.Is(err, ErrNoAudioCaptured), errors.Is(err, ErrDecodeFailed):
		return KindEncodingFailure
	default:
		return KindNone
	}
}

// deviceError keeps errors a port already classified and marks the rest as
// an unavailable device.
func deviceError(op string, err error) error {
	if Kind(err) == KindDeviceAccess {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrDeviceUnavailable, err)
}
