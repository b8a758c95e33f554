// Package poller runs a function on a fixed interval as a cancellable
// background task with at most one invocation in flight.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStop ends the loop when returned by a tick function. A tick must use it
// instead of calling Stop, which waits for the loop to exit.
var ErrStop = errors.New("poller: stop")

// Func is one tick of work.
type Func func(ctx context.Context) error

// Task is the handle of one running loop.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the loop, including an in-flight tick, and waits for it to
// exit. Safe to call more than once.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Done is closed when the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Poller owns at most one running Task.
type Poller struct {
	name   string
	fn     Func
	logger *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	task     *Task

	// sleepFunc waits between ticks. Tests replace it to drive ticks by hand.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a stopped Poller.
func New(name string, interval time.Duration, fn Func, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		name:      name,
		fn:        fn,
		logger:    logger,
		interval:  interval,
		sleepFunc: timeSleep,
	}
}

// Start launches the loop under ctx. If a loop is already running, Start is
// a no-op and returns the running Task.
func (p *Poller) Start(ctx context.Context) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.task != nil {
		return p.task
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	p.task = t

	go p.run(loopCtx, t, p.interval)

	p.logger.Debug("poller started",
		slog.String("poller", p.name),
		slog.Duration("interval", p.interval),
	)

	return t
}

// Stop cancels the running loop and waits for it to exit. A no-op when
// nothing is running.
func (p *Poller) Stop() {
	p.mu.Lock()
	t := p.task
	p.task = nil
	p.mu.Unlock()

	if t == nil {
		return
	}

	t.Stop()

	p.logger.Debug("poller stopped", slog.String("poller", p.name))
}

// Running reports whether a loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.task != nil
}

// SetInterval changes the interval. A running loop is restarted under ctx
// so the change takes effect immediately.
func (p *Poller) SetInterval(ctx context.Context, d time.Duration) {
	p.mu.Lock()
	changed := p.interval != d
	p.interval = d
	running := p.task != nil
	p.mu.Unlock()

	if changed && running {
		p.Stop()
		p.Start(ctx)
	}
}

func (p *Poller) run(ctx context.Context, t *Task, interval time.Duration) {
	defer func() {
		p.mu.Lock()
		if p.task == t {
			p.task = nil
		}
		p.mu.Unlock()

		close(t.done)
	}()

	for {
		if err := p.sleepFunc(ctx, interval); err != nil {
			return
		}

		err := p.fn(ctx)

		switch {
		case errors.Is(err, ErrStop):
			p.logger.Debug("poller stopped by tick", slog.String("poller", p.name))

			return
		case ctx.Err() != nil:
			return
		case err != nil:
			p.logger.Warn("poll tick failed",
				slog.String("poller", p.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
