package client

import (
	"context"
	"errors"
	"net"
	"net/http"

	"omnichat/internal/capture"
	"omnichat/internal/content"
)

type Kind int

const (
	KindInputValidation Kind = iota + 1
	KindDeviceAccess
	KindEncodingFailure
	KindUpstream
	KindUnknownUpstreamShape
	KindTimeout
	KindNetworkUnreachable
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInputValidation:
		return "input_validation"
	case KindDeviceAccess:
		return "device_access"
	case KindEncodingFailure:
		return "encoding_failure"
	case KindUpstream:
		return "upstream_error"
	case KindUnknownUpstreamShape:
		return "unknown_upstream_shape"
	case KindTimeout:
		return "timeout"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrTimeout is reported when the proxy did not answer within the turn timeout.
var ErrTimeout = errors.New("request timed out")

func Classify(err error) Kind {
	switch capture.Kind(err) {
	case capture.KindInputValidation:
		return KindInputValidation
	case capture.KindDeviceAccess:
		return KindDeviceAccess
	case capture.KindEncodingFailure:
		return KindEncodingFailure
	}

	var replyErr *ReplyError
	var netErr net.Error
	switch {
	case errors.Is(err, content.ErrEmptyRequest), errors.Is(err, content.ErrInvalidPayload):
		return KindInputValidation
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &replyErr):
		switch replyErr.Code {
		case "empty_request", "invalid_request", "request_too_large":
			return KindInputValidation
		case "unknown_upstream_response":
			return KindUnknownUpstreamShape
		case "timeout":
			return KindTimeout
		case "canceled":
			return KindCanceled
		}
		return KindUpstream
	case errors.Is(err, ErrUnknownReply):
		return KindUnknownUpstreamShape
	case errors.As(err, &netErr):
		return KindNetworkUnreachable
	default:
		return KindUpstream
	}
}

// Message is the text shown to the user for a failed turn.
func Message(err error) string {
	switch Classify(err) {
	case KindInputValidation:
		switch {
		case errors.Is(err, capture.ErrInvalidFile):
			return "Please choose an image file."
		case errors.Is(err, capture.ErrFileTooLarge):
			return "The image is too large. Please choose one under 10MB."
		case errors.Is(err, content.ErrEmptyRequest):
			return "Please type a message, add an image or record audio."
		}
		var replyErr *ReplyError
		if errors.As(err, &replyErr) && replyErr.StatusCode == http.StatusRequestEntityTooLarge {
			return "The request is too large. Try a smaller image or a shorter recording."
		}
		return "That input could not be used. Please try again."
	case KindDeviceAccess:
		if errors.Is(err, capture.ErrPermissionDenied) {
			return "Permission to use the device was denied. Please check your settings."
		}
		return "The microphone or camera is not available. Please check your device."
	case KindEncodingFailure:
		if errors.Is(err, capture.ErrNoAudioCaptured) {
			return "No audio was captured. Please try again."
		}
		return "The audio could not be processed. Please try again."
	case KindTimeout:
		return "The request timed out. Please check your network or try again later."
	case KindNetworkUnreachable:
		return "The chat server is unreachable. Make sure it is running and reachable from this device."
	case KindUnknownUpstreamShape:
		return "The AI service returned an unexpected response. Please try again."
	case KindCanceled:
		return "The request was cancelled."
	}

	var replyErr *ReplyError
	if errors.As(err, &replyErr) {
		switch {
		case replyErr.StatusCode == http.StatusUnauthorized:
			return "The API key is invalid. Please check the server configuration."
		case replyErr.StatusCode == http.StatusForbidden:
			return "Access to the API was denied. Please check its permissions."
		case replyErr.StatusCode == http.StatusTooManyRequests:
			return "Too many requests to the API. Please try again later."
		case replyErr.StatusCode >= 500:
			return "The API server had an internal error. Please try again later."
		}
	}
	return "Sorry, I can't respond right now. Please try again later."
}
