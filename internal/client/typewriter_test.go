package client

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTypewriterRevealsEveryRune(t *testing.T) {
	out := &syncBuffer{}
	tw := NewTypewriter(out, time.Millisecond)

	done := tw.Reveal(context.Background(), "héllo, 世界")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("typewriter did not finish")
	}
	assert.Equal(t, "héllo, 世界", out.String())
}

func TestTypewriterDoesNotBlockCaller(t *testing.T) {
	out := &syncBuffer{}
	tw := NewTypewriter(out, 50*time.Millisecond)

	started := time.Now()
	done := tw.Reveal(context.Background(), "slow reveal")
	assert.Less(t, time.Since(started), 40*time.Millisecond)
	assert.Less(t, len(out.String()), len("slow reveal"))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := tw.Reveal(ctx, "never finished")
	cancel()
	<-done
	<-stopped
	assert.NotContains(t, out.String(), "never finished")
}
