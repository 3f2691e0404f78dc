// Package optimistic applies a local state change before the backend
// confirms it and undoes it if the backend refuses.
package optimistic

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrInFlight is returned when the same action is still pending. The
// second request is dropped, not queued.
var ErrInFlight = errors.New("action already in flight")

// Notifier surfaces a transient error to the user.
type Notifier interface {
	Error(msg string)
}

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Error(msg string) { log.Printf("notify: %s", msg) }

// Action is one optimistic change. Apply flips local state, Commit calls
// the backend and reconciles, Revert undoes exactly what Apply did.
type Action struct {
	Apply  func()
	Revert func()
	Commit func(ctx context.Context) error
	// Message is shown on failure; the error text is appended.
	Message string
}

// Runner guards actions by key so one entity's action runs at most once
// at a time.
type Runner struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	notify   Notifier
}

func NewRunner(n Notifier) *Runner {
	if n == nil {
		n = LogNotifier{}
	}
	return &Runner{inflight: map[string]struct{}{}, notify: n}
}

func (r *Runner) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[key]; busy {
		return false
	}
	r.inflight[key] = struct{}{}
	return true
}

func (r *Runner) release(key string) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
}

// InFlight reports whether key has a pending action.
func (r *Runner) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.inflight[key]
	return busy
}

// Run applies a, commits it and reverts on failure. Cancellation of ctx
// still reverts but is not reported to the user: the caller has gone away.
func (r *Runner) Run(ctx context.Context, key string, a Action) error {
	if !r.acquire(key) {
		return ErrInFlight
	}
	defer r.release(key)

	if a.Apply != nil {
		a.Apply()
	}
	err := a.Commit(ctx)
	if err == nil {
		return nil
	}
	if a.Revert != nil {
		a.Revert()
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		msg := a.Message
		if msg == "" {
			msg = "action failed"
		}
		r.notify.Error(msg + ": " + err.Error())
	}
	return err
}
