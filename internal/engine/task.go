package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// RepeatingTask runs fn on a fixed interval until stopped. A tick that fires
// while the previous run is still in flight is skipped, not queued.
type RepeatingTask struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	onSkip   func()

	busy atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRepeatingTask creates a stopped task. onSkip may be nil.
func NewRepeatingTask(name string, interval time.Duration, fn func(ctx context.Context), onSkip func()) *RepeatingTask {
	return &RepeatingTask{name: name, interval: interval, fn: fn, onSkip: onSkip}
}

// Start launches the loop. When immediate is set the first run starts at once
// instead of after one interval.
func (t *RepeatingTask) Start(ctx context.Context, immediate bool) error {
	if t.interval <= 0 {
		return errors.New("repeating task: interval must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("repeating task: already running")
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.running = true

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Repeating task panic recovered", slog.String("task", t.name), slog.Any("panic", r))
			}
		}()

		if immediate {
			t.fire(ctx)
		}

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Debug("Repeating task stopped", slog.String("task", t.name))
				return
			case <-ticker.C:
				t.fire(ctx)
			}
		}
	}()

	return nil
}

func (t *RepeatingTask) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !t.busy.CompareAndSwap(false, true) {
		slog.Debug("Repeating task tick skipped", slog.String("task", t.name))
		if t.onSkip != nil {
			t.onSkip()
		}
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Repeating task run panic recovered", slog.String("task", t.name), slog.Any("panic", r))
			}
		}()
		t.fn(ctx)
	}()
}

// Stop cancels the timer and waits for the loop and any in-flight run.
// No run starts after Stop returns.
func (t *RepeatingTask) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.cancel()
	t.running = false
	t.mu.Unlock()

	t.wg.Wait()
}

// Running reports whether the loop is active.
func (t *RepeatingTask) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
