package store

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper periodically drops expired stories. ListStories already hides
// them; the sweep only keeps the collection from growing.
type Sweeper struct {
	Store    *Store
	Interval time.Duration

	mu      sync.Mutex
	running bool
}

func NewSweeper(s *Store, interval time.Duration) *Sweeper {
	return &Sweeper{Store: s, Interval: interval}
}

// Run sweeps on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		log.Println("Sweeper: disabled")
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	log.Printf("Sweeper: started with interval %v", w.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper: stopped")
			return nil
		case <-t.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce purges expired stories unless a sweep is already in progress.
func (w *Sweeper) SweepOnce(ctx context.Context) int {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Println("Sweeper: sweep already in progress, skipping...")
		return 0
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	n, err := w.Store.PurgeExpiredStories(ctx)
	if err != nil {
		log.Printf("Sweeper: purge failed: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("Sweeper: purged %d expired stories", n)
	}
	return n
}
