package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"local.dev/socialfeed/internal/models"
)

// DefaultViewer is the identity used when the context carries none.
const DefaultViewer = "current-user"

// ErrNotFound is the only store-level failure. Match it with errors.Is.
var ErrNotFound = errors.New("not found")

func notFound(entity string) error { return fmt.Errorf("%s %w", entity, ErrNotFound) }

type row[T any] struct {
	v   T
	seq uint64
}

type postRow struct {
	v        models.Post // Comments and User are rebuilt on every read
	comments []string
	seq      uint64
}

// Store is the in-memory stand-in for a backend. Build one with New and
// pass it to whatever needs it; it holds no package-level state.
type Store struct {
	mu  sync.RWMutex
	seq uint64

	users         map[string]*row[models.User]
	posts         map[string]*postRow
	comments      map[string]*row[models.Comment]
	stories       map[string]*row[models.Story]
	notifications map[string]*row[models.Notification]
	conversations map[string]*row[models.Conversation]
	messages      map[string]*row[models.Message]
	convMessages  map[string][]string // conversationId -> message ids, insertion order

	now     func() time.Time
	latency float64
	viewer  string
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLatency scales every simulated round-trip. 0 disables the wait.
func WithLatency(scale float64) Option {
	return func(s *Store) {
		if scale < 0 {
			scale = 0
		}
		s.latency = scale
	}
}

// WithDefaultViewer sets the viewer used for contexts without one.
func WithDefaultViewer(id string) Option {
	return func(s *Store) {
		if id != "" {
			s.viewer = id
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		users:         map[string]*row[models.User]{},
		posts:         map[string]*postRow{},
		comments:      map[string]*row[models.Comment]{},
		stories:       map[string]*row[models.Story]{},
		notifications: map[string]*row[models.Notification]{},
		conversations: map[string]*row[models.Conversation]{},
		messages:      map[string]*row[models.Message]{},
		convMessages:  map[string][]string{},
		now:           time.Now,
		latency:       1,
		viewer:        DefaultViewer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset empties every collection. Options are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipe()
}

// wipe empties every collection. Callers hold s.mu.
func (s *Store) wipe() {
	clear(s.users)
	clear(s.posts)
	clear(s.comments)
	clear(s.stories)
	clear(s.notifications)
	clear(s.conversations)
	clear(s.messages)
	clear(s.convMessages)
}

// ===== viewer =====

type ctxKey string

const viewerKey ctxKey = "viewer"

// WithViewer returns a context whose viewer-relative operations
// (follow, save, comment, send) act on behalf of id.
func WithViewer(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, viewerKey, id)
}

func ViewerFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(viewerKey).(string)
	return v, ok && v != ""
}

func (s *Store) viewerOf(ctx context.Context) string {
	if v, ok := ViewerFrom(ctx); ok {
		return v
	}
	return s.viewer
}

// Viewer returns the viewer used when a context carries none.
func (s *Store) Viewer() string { return s.viewer }

// ===== latency / ids / clock =====

// wait simulates the network round-trip of one call. A cancelled context
// aborts the call before anything is mutated.
func (s *Store) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d = time.Duration(float64(d) * s.latency)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// nextSeq must be called with mu held.
func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) nowUTC() time.Time { return s.now().UTC() }

// ===== helpers =====

func newestFirst(a, b time.Time, seqA, seqB uint64) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return seqA > seqB
}

func oldestFirst(a, b time.Time, seqA, seqB uint64) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return seqA < seqB
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func normalizeQuery(q string) string { return strings.ToLower(strings.TrimSpace(q)) }

// addToSet appends v if missing and reports whether it was added.
func addToSet(set []string, v string) ([]string, bool) {
	if slices.Contains(set, v) {
		return set, false
	}
	return append(set, v), true
}

func removeFromSet(set []string, v string) []string {
	return slices.DeleteFunc(set, func(x string) bool { return x == v })
}

func cloneSet(set []string) []string {
	out := make([]string, len(set))
	copy(out, set)
	return out
}

func dedupe(set []string) []string {
	out := make([]string, 0, len(set))
	for _, v := range set {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out, _ = addToSet(out, v)
	}
	return out
}

func sortedRows[T any](m map[string]*row[T], keep func(T) bool, less func(a, b *row[T]) bool) []*row[T] {
	out := make([]*row[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.v) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
