package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Flusher writes a pending change once it is due.
type Flusher interface {
	FlushPending(ctx context.Context) error
}

// AutoFlusher periodically flushes changes that no later mutation picked up.
// Without it a single mutation inside the debounce window stays pending until
// the next mutation or an explicit save.
type AutoFlusher struct {
	target   Flusher
	interval time.Duration
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewAutoFlusher creates a flusher checking target every interval.
func NewAutoFlusher(target Flusher, interval time.Duration, log *zap.Logger) *AutoFlusher {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AutoFlusher{
		target:   target,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the flush loop.
func (a *AutoFlusher) Start() {
	a.wg.Add(1)
	go a.loop()
	a.log.Info("Auto-flush started", zap.Duration("interval", a.interval))
}

// Stop ends the loop and waits for an in-flight flush to finish. It does not
// flush; callers save explicitly on shutdown.
func (a *AutoFlusher) Stop() {
	a.once.Do(func() {
		a.cancel()
		a.wg.Wait()
		a.log.Info("Auto-flush stopped")
	})
}

func (a *AutoFlusher) loop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if err := a.target.FlushPending(a.ctx); err != nil {
				a.log.Error("Auto-flush failed", zap.Error(err))
			}
		}
	}
}
