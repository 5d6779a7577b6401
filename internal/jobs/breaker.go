package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSchedulerUnavailable is returned without contacting the scheduler while
// the breaker is open.
var ErrSchedulerUnavailable = eris.New("jobs: scheduler unavailable")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// breaker stops calls to a scheduler that keeps failing. After threshold
// consecutive transient failures it rejects calls for cooldown, then lets
// one trial call through; its outcome closes or reopens it.
type breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrSchedulerUnavailable
		}
		b.setState(breakerHalfOpen)
		return nil
	case breakerHalfOpen:
		// One trial call at a time.
		return ErrSchedulerUnavailable
	}
	return nil
}

// record reports the outcome of an allowed call. Only transient failures
// count: a rejected request says nothing about the scheduler's health.
func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !isTransient(err) {
		b.failures = 0
		if b.state != breakerClosed {
			b.setState(breakerClosed)
		}
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.openedAt = b.now()
		if b.state != breakerOpen {
			b.setState(breakerOpen)
		}
	}
}

// release hands back a trial call whose caller gave up before it finished.
func (b *breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.setState(breakerOpen)
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) setState(to breakerState) {
	zap.L().Info("scheduler breaker state change",
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
		zap.Int("failures", b.failures),
	)
	b.state = to
}

// guarded runs fn if the breaker allows it and records the result.
func guarded[T any](ctx context.Context, b *breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := b.allow(); err != nil {
		var zero T
		return zero, err
	}
	val, err := fn(ctx)
	if ctx.Err() != nil {
		b.release()
		return val, err
	}
	b.record(err)
	return val, err
}
