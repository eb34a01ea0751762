package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"omnichat/internal/audio"
	"omnichat/internal/content"
)

type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
	RecorderStopping
	RecorderEncoding
	RecorderReady
	RecorderFailed
)

func (s RecorderState) String() string {
	switch s {
	case RecorderIdle:
		return "idle"
	case RecorderRecording:
		return "recording"
	case RecorderStopping:
		return "stopping"
	case RecorderEncoding:
		return "encoding"
	case RecorderReady:
		return "ready"
	case RecorderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecordingSession is the in-progress capture. It is cleared when recording
// stops or is cancelled.
type RecordingSession struct {
	IsRecording bool
	Chunks      [][]byte
	StartTime   time.Time
	MIMEType    string
}

type RecorderOption func(*Recorder)

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Recorder owns the microphone for one recording at a time.
type Recorder struct {
	mic     Microphone
	decoder Decoder
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	state   RecorderState
	track   AudioTrack
	session RecordingSession
	done    chan struct{}
	stop    context.CancelFunc
	readErr error
}

func NewRecorder(mic Microphone, decoder Decoder, opts ...RecorderOption) *Recorder {
	if decoder == nil {
		decoder = WAVDecoder
	}
	r := &Recorder{
		mic:     mic,
		decoder: decoder,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Start acquires the microphone and begins collecting chunks. On failure the
// recorder stays idle and holds no device.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case RecorderRecording, RecorderStopping, RecorderEncoding:
		return ErrDeviceBusy
	}
	if r.mic == nil {
		r.state = RecorderIdle
		return fmt.Errorf("open microphone: %w", ErrDeviceUnavailable)
	}

	track, err := r.mic.Open(ctx)
	if err != nil {
		r.state = RecorderIdle
		return deviceError("open microphone", err)
	}

	readCtx, stop := context.WithCancel(context.Background())
	r.track = track
	r.stop = stop
	r.done = make(chan struct{})
	r.readErr = nil
	r.session = RecordingSession{
		IsRecording: true,
		StartTime:   r.now(),
		MIMEType:    normalizeMIME(track.MIMEType()),
	}
	r.state = RecorderRecording

	go r.read(readCtx, track, r.done)
	return nil
}

func (r *Recorder) read(ctx context.Context, track AudioTrack, done chan struct{}) {
	defer close(done)
	for {
		chunk, err := track.Next(ctx)
		if len(chunk) > 0 {
			r.mu.Lock()
			r.session.Chunks = append(r.session.Chunks, append([]byte(nil), chunk...))
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return
		}
	}
}

// Stop ends the recording, waits for the final chunk and encodes the capture
// as a WAV payload. The microphone is released on every path.
func (r *Recorder) Stop(ctx context.Context) (content.AudioPayload, error) {
	r.mu.Lock()
	if r.state != RecorderRecording {
		r.mu.Unlock()
		return content.AudioPayload{}, ErrNotRecording
	}
	r.state = RecorderStopping
	r.session.IsRecording = false
	track, done, stop := r.track, r.done, r.stop
	r.mu.Unlock()

	if err := track.Close(); err != nil {
		r.logger.Warn("microphone close failed", "error", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		stop()
		<-done
		r.release(RecorderFailed)
		return content.AudioPayload{}, ctx.Err()
	}
	stop()

	r.mu.Lock()
	chunks := r.session.Chunks
	mimeType := r.session.MIMEType
	readErr := r.readErr
	r.state = RecorderEncoding
	r.mu.Unlock()

	if readErr != nil {
		r.logger.Warn("microphone read failed", "error", readErr, "chunks", len(chunks))
	}
	if len(chunks) == 0 {
		r.release(RecorderFailed)
		return content.AudioPayload{}, ErrNoAudioCaptured
	}

	buf, err := r.decoder.Decode(bytes.Join(chunks, nil), mimeType)
	if err != nil {
		r.release(RecorderFailed)
		return content.AudioPayload{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	payload, err := audio.Encode(buf)
	if err != nil {
		r.release(RecorderFailed)
		if errors.Is(err, audio.ErrEmptyBuffer) {
			return content.AudioPayload{}, ErrNoAudioCaptured
		}
		return content.AudioPayload{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	r.release(RecorderReady)
	return content.AudioPayload{Data: payload.Data, Format: payload.Format, DurationSec: payload.DurationSec}, nil
}

// Cancel abandons an in-progress recording and releases the microphone. It
// is safe to call in any state; a Stop already in flight keeps ownership and
// releases the microphone itself.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	track, done, stop := r.track, r.done, r.stop
	state := r.state
	r.mu.Unlock()

	switch state {
	case RecorderStopping, RecorderEncoding:
		r.logger.Debug("cancel ignored while stopping", "state", state.String())
		return
	case RecorderRecording:
		if track != nil {
			stop()
			_ = track.Close()
			<-done
		}
	}
	r.release(RecorderIdle)
}

func (r *Recorder) release(next RecorderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.track = nil
	r.stop = nil
	r.session = RecordingSession{}
	r.state = next
}

// Elapsed is the time since Start, or zero when not recording.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.session.IsRecording {
		return 0
	}
	return r.now().Sub(r.session.StartTime)
}

func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns a copy of the current recording session.
func (r *Recorder) Session() RecordingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session
	s.Chunks = append([][]byte(nil), r.session.Chunks...)
	return s
}

// Released reports that the recorder holds no microphone handle.
func (r *Recorder) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.track == nil
}
