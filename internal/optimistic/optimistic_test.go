package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Error(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func flip(v *bool) Action {
	var was bool
	return Action{
		Apply:  func() { was = *v; *v = !*v },
		Revert: func() { *v = was },
	}
}

func TestRunSuccessKeepsState(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec)
	liked := false

	a := flip(&liked)
	a.Commit = func(context.Context) error { return nil }
	require.NoError(t, r.Run(context.Background(), "like:p", a))

	assert.True(t, liked)
	assert.Empty(t, rec.all())
	assert.False(t, r.InFlight("like:p"))
}

func TestRunFailureRevertsAndNotifies(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec)
	liked := false
	boom := errors.New("boom")

	a := flip(&liked)
	a.Message = "Failed to like post"
	a.Commit = func(context.Context) error {
		assert.True(t, liked, "applied before commit")
		return boom
	}
	err := r.Run(context.Background(), "like:p", a)

	assert.ErrorIs(t, err, boom)
	assert.False(t, liked)
	assert.Equal(t, []string{"Failed to like post: boom"}, rec.all())
}

func TestRunDropsWhileInFlight(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec)
	liked := false

	started := make(chan struct{})
	release := make(chan struct{})
	a := flip(&liked)
	a.Commit = func(context.Context) error {
		close(started)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), "like:p", a) }()
	<-started

	assert.True(t, r.InFlight("like:p"))
	second := flip(&liked)
	second.Commit = func(context.Context) error {
		t.Error("second commit must not run")
		return nil
	}
	assert.ErrorIs(t, r.Run(context.Background(), "like:p", second), ErrInFlight)

	// other keys are independent
	saved := false
	other := flip(&saved)
	other.Commit = func(context.Context) error { return nil }
	require.NoError(t, r.Run(context.Background(), "save:p", other))
	assert.True(t, saved)

	close(release)
	require.NoError(t, <-done)
	assert.True(t, liked)
	assert.False(t, r.InFlight("like:p"))
}

func TestRunCancelledRevertsSilently(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec)
	liked := false

	ctx, cancel := context.WithCancel(context.Background())
	a := flip(&liked)
	a.Commit = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}
	err := r.Run(ctx, "like:p", a)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, liked)
	assert.Empty(t, rec.all())
}

func TestRunDefaultMessage(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec)
	err := r.Run(context.Background(), "k", Action{Commit: func(context.Context) error { return errors.New("x") }})
	require.Error(t, err)
	assert.Equal(t, []string{"action failed: x"}, rec.all())
}
