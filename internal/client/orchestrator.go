package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"omnichat/internal/capture"
	"omnichat/internal/content"
	"omnichat/internal/model"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultImagePrompt = content.DefaultImagePrompt
)

// LoadingMessages rotate while a turn is waiting for its reply.
var LoadingMessages = []string{
	"Thinking...",
	"Understanding your question...",
	"Putting the answer together...",
	"Almost there...",
}

type TurnState int

const (
	TurnComposing TurnState = iota
	TurnSending
	TurnRendering
	TurnErrorDisplay
)

func (s TurnState) String() string {
	switch s {
	case TurnComposing:
		return "composing"
	case TurnSending:
		return "sending"
	case TurnRendering:
		return "rendering"
	case TurnErrorDisplay:
		return "error-display"
	default:
		return "unknown"
	}
}

type Outcome int

const (
	OutcomeReply Outcome = iota
	OutcomeError
	OutcomeTimeout
	OutcomeNetwork
	OutcomeCanceled
)

type Sender interface {
	Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error)
}

type Revealer interface {
	Reveal(ctx context.Context, text string) <-chan struct{}
}

// Turn is one user submission. Empty fields are omitted from the request.
type Turn struct {
	ID    string
	Text  string
	Image *content.ImagePayload
	Audio *content.AudioPayload
}

type TurnResult struct {
	TurnID   string
	State    TurnState
	Outcome  Outcome
	Reply    string
	Kind     Kind
	Message  string
	Err      error
	Duration time.Duration
	// Revealed is closed when the typewriter has finished; nil without one.
	Revealed <-chan struct{}
}

type OrchestratorOption func(*Orchestrator)

func WithTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func WithRevealer(r Revealer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.revealer = r
	}
}

func WithStateHook(fn func(turnID string, state TurnState)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type Orchestrator struct {
	sender   Sender
	session  *capture.Session
	timeout  time.Duration
	revealer Revealer
	onState  func(turnID string, state TurnState)
	logger   *slog.Logger

	discarded atomic.Int64
}

func NewOrchestrator(sender Sender, session *capture.Session, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sender:  sender,
		session: session,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

type chatOutcome struct {
	resp model.ChatResponse
	err  error
}

// Send runs one turn. A reply that arrives after the timeout is dropped.
func (o *Orchestrator) Send(ctx context.Context, turn Turn) TurnResult {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	started := time.Now()
	o.setState(turn.ID, TurnComposing)

	req := model.ChatRequest{Message: turn.Text}
	var image *content.ImagePayload
	if turn.Image != nil && turn.Image.DataURI != "" {
		image = turn.Image
		req.ImageData = turn.Image.DataURI
	}
	var audioPayload *content.AudioPayload
	if turn.Audio != nil && turn.Audio.Data != "" {
		audioPayload = turn.Audio
		req.AudioData = &model.AudioData{
			Data:        turn.Audio.Data,
			Format:      turn.Audio.Format,
			DurationSec: turn.Audio.DurationSec,
		}
	}
	if _, err := content.Normalize(turn.Text, image, audioPayload); err != nil {
		return o.fail(turn.ID, started, err)
	}

	o.setState(turn.ID, TurnSending)
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var abandoned atomic.Bool
	results := make(chan chatOutcome, 1)
	go func() {
		resp, err := o.sender.Chat(callCtx, req)
		if abandoned.Load() {
			if err == nil {
				o.discarded.Add(1)
				o.logger.Debug("late reply discarded", "turn_id", turn.ID)
			}
			return
		}
		results <- chatOutcome{resp: resp, err: err}
	}()

	var out chatOutcome
	select {
	case out = <-results:
	case <-callCtx.Done():
		abandoned.Store(true)
		select {
		case out = <-results:
		default:
			out.err = callCtx.Err()
		}
	}

	if out.err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			out.err = ErrTimeout
		}
		return o.fail(turn.ID, started, out.err)
	}

	o.setState(turn.ID, TurnRendering)
	result := TurnResult{
		TurnID:   turn.ID,
		State:    TurnRendering,
		Outcome:  OutcomeReply,
		Reply:    out.resp.Message,
		Duration: time.Since(started),
	}
	if o.revealer != nil {
		result.Revealed = o.revealer.Reveal(context.WithoutCancel(ctx), out.resp.Message)
	}
	return result
}

func (o *Orchestrator) fail(turnID string, started time.Time, err error) TurnResult {
	o.setState(turnID, TurnErrorDisplay)
	kind := Classify(err)
	outcome := OutcomeError
	switch kind {
	case KindTimeout:
		outcome = OutcomeTimeout
	case KindNetworkUnreachable:
		outcome = OutcomeNetwork
	case KindCanceled:
		outcome = OutcomeCanceled
	}
	o.logger.Warn("turn failed", "turn_id", turnID, "kind", kind.String(), "error", err)
	return TurnResult{
		TurnID:   turnID,
		State:    TurnErrorDisplay,
		Outcome:  outcome,
		Kind:     kind,
		Message:  Message(err),
		Err:      err,
		Duration: time.Since(started),
	}
}

func (o *Orchestrator) setState(turnID string, state TurnState) {
	if o.onState != nil {
		o.onState(turnID, state)
	}
}

// Discarded counts replies dropped because they arrived after the timeout.
func (o *Orchestrator) Discarded() int64 {
	return o.discarded.Load()
}

func (o *Orchestrator) SendText(ctx context.Context, text string) TurnResult {
	return o.Send(ctx, Turn{Text: strings.TrimSpace(text)})
}

// SendImage sends an image with a prompt, using DefaultImagePrompt when text
// is blank.
func (o *Orchestrator) SendImage(ctx context.Context, image content.ImagePayload, text string) TurnResult {
	text = strings.TrimSpace(text)
	if text == "" {
		text = DefaultImagePrompt
	}
	return o.Send(ctx, Turn{Text: text, Image: &image})
}

func (o *Orchestrator) SendAudio(ctx context.Context, audio content.AudioPayload) TurnResult {
	return o.Send(ctx, Turn{Audio: &audio})
}

// RecordAndSend stops the session recorder and sends the captured audio.
func (o *Orchestrator) RecordAndSend(ctx context.Context) TurnResult {
	started := time.Now()
	if o.session == nil || o.session.Recorder == nil {
		return o.fail(uuid.NewString(), started, capture.ErrNotRecording)
	}
	payload, err := o.session.Recorder.Stop(ctx)
	if err != nil {
		return o.fail(uuid.NewString(), started, err)
	}
	return o.SendAudio(ctx, payload)
}

// SnapshotAndSend captures the previewing camera frame and sends it.
func (o *Orchestrator) SnapshotAndSend(ctx context.Context, text string) TurnResult {
	started := time.Now()
	if o.session == nil || o.session.Camera == nil {
		return o.fail(uuid.NewString(), started, capture.ErrNotPreviewing)
	}
	image, err := o.session.Camera.Capture(ctx)
	if err != nil {
		return o.fail(uuid.NewString(), started, err)
	}
	return o.SendImage(ctx, image, text)
}
