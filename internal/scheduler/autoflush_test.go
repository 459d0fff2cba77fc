package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) FlushPending(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestAutoFlusher_FlushesOnTick(t *testing.T) {
	f := &countingFlusher{}
	a := NewAutoFlusher(f, 5*time.Millisecond, zap.NewNop())
	a.Start()
	defer a.Stop()

	assert.Eventually(t, func() bool { return f.calls.Load() >= 2 },
		time.Second, 5*time.Millisecond)
}

func TestAutoFlusher_KeepsRunningAfterFailure(t *testing.T) {
	f := &countingFlusher{err: errors.New("disk full")}
	a := NewAutoFlusher(f, 5*time.Millisecond, nil)
	a.Start()
	defer a.Stop()

	assert.Eventually(t, func() bool { return f.calls.Load() >= 3 },
		time.Second, 5*time.Millisecond)
}

func TestAutoFlusher_StopIsIdempotent(t *testing.T) {
	f := &countingFlusher{}
	a := NewAutoFlusher(f, time.Hour, nil)
	a.Start()

	a.Stop()
	a.Stop()

	assert.Zero(t, f.calls.Load())
}
