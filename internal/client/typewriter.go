package client

import (
	"context"
	"io"
	"sync"
	"time"
)

const DefaultRevealDelay = 30 * time.Millisecond

// Typewriter writes text one rune at a time.
type Typewriter struct {
	out   io.Writer
	delay time.Duration
	mu    sync.Mutex
}

func NewTypewriter(out io.Writer, delay time.Duration) *Typewriter {
	if delay < 0 {
		delay = 0
	}
	return &Typewriter{out: out, delay: delay}
}

// Reveal starts writing text in the background. The returned channel is
// closed once every rune is written or ctx is done.
func (t *Typewriter) Reveal(ctx context.Context, text string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.mu.Lock()
		defer t.mu.Unlock()

		var ticker *time.Ticker
		if t.delay > 0 {
			ticker = time.NewTicker(t.delay)
			defer ticker.Stop()
		}
		for i, r := range []rune(text) {
			if i > 0 && ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			} else if ctx.Err() != nil {
				return
			}
			_, _ = io.WriteString(t.out, string(r))
		}
	}()
	return done
}
