package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"omnichat/internal/content"
	"omnichat/internal/upstream"
)

type Option func(*Service)

type Service struct {
	adapter      upstream.Adapter
	defaultModel string
	timeout      time.Duration
	logger       *slog.Logger
	observeBlock func(kind string)
}

type Input struct {
	Message   string
	ImageData string
	Audio     *content.AudioPayload
	Model     string
}

type Result struct {
	Message  string
	Provider string
	Model    string
	Kinds    []string
	Duration time.Duration
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBlockObserver is called once per normalized block before the upstream call.
func WithBlockObserver(fn func(kind string)) Option {
	return func(s *Service) {
		s.observeBlock = fn
	}
}

func New(adapter upstream.Adapter, defaultModel string, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		adapter:      adapter,
		defaultModel: strings.TrimSpace(defaultModel),
		timeout:      timeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) Provider() string {
	return s.adapter.Name()
}

func (s *Service) Chat(ctx context.Context, in Input) (Result, error) {
	started := time.Now()

	var image *content.ImagePayload
	if in.ImageData != "" {
		image = &content.ImagePayload{DataURI: in.ImageData}
	}
	blocks, err := content.Normalize(in.Message, image, in.Audio)
	if err != nil {
		return Result{}, err
	}

	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = s.defaultModel
	}
	kinds := content.Kinds(blocks)
	if s.observeBlock != nil {
		for _, k := range kinds {
			s.observeBlock(k)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("upstream_chat",
		slog.String("provider", s.adapter.Name()),
		slog.String("model", model),
		slog.Any("blocks", kinds),
	)
	text, err := s.adapter.Complete(ctx, content.Request{Model: model, Blocks: blocks})
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: empty reply from %s", upstream.ErrUnknownShape, s.adapter.Name())
	}

	return Result{
		Message:  text,
		Provider: s.adapter.Name(),
		Model:    model,
		Kinds:    kinds,
		Duration: time.Since(started),
	}, nil
}
