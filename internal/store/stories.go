package store

import (
	"context"
	"time"

	"local.dev/socialfeed/internal/models"
)

// StoryTTL is how long a story stays visible after it is created.
const StoryTTL = 24 * time.Hour

type StoryFilter struct {
	UserID string
}

type StoryInput struct {
	UserID   string // defaults to the viewer
	ImageURL string
}

type StoryPatch struct {
	ImageURL *string `json:"imageUrl,omitempty"`
}

func (s *Store) buildStory(r *row[models.Story], viewer string) models.Story {
	st := r.v
	st.Viewers = cloneSet(r.v.Viewers)
	st.User = s.userView(st.UserID, viewer)
	return st
}

// ListStories only returns stories that have not expired, newest first.
func (s *Store) ListStories(ctx context.Context, f StoryFilter) ([]models.Story, error) {
	if err := s.wait(ctx, 250*time.Millisecond); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)
	now := s.nowUTC()

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := sortedRows(s.stories, func(st models.Story) bool {
		return st.ActiveAt(now) && (f.UserID == "" || st.UserID == f.UserID)
	}, func(a, b *row[models.Story]) bool {
		return newestFirst(a.v.CreatedAt, b.v.CreatedAt, a.seq, b.seq)
	})
	out := make([]models.Story, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.buildStory(r, viewer))
	}
	return out, nil
}

// GetStory finds a story by id whether or not it has expired.
func (s *Store) GetStory(ctx context.Context, id string) (models.Story, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Story{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.stories[id]
	if !ok {
		return models.Story{}, notFound("story")
	}
	return s.buildStory(r, s.viewerOf(ctx)), nil
}

func (s *Store) CreateStory(ctx context.Context, in StoryInput) (models.Story, error) {
	if err := s.wait(ctx, 400*time.Millisecond); err != nil {
		return models.Story{}, err
	}
	viewer := s.viewerOf(ctx)
	if in.UserID == "" {
		in.UserID = viewer
	}
	id, err := newID()
	if err != nil {
		return models.Story{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowUTC()
	r := &row[models.Story]{
		v: models.Story{
			ID:        id,
			UserID:    in.UserID,
			ImageURL:  in.ImageURL,
			Viewers:   []string{},
			CreatedAt: now,
			ExpiresAt: now.Add(StoryTTL),
		},
		seq: s.nextSeq(),
	}
	s.stories[id] = r
	return s.buildStory(r, viewer), nil
}

func (s *Store) UpdateStory(ctx context.Context, id string, p StoryPatch) (models.Story, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Story{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.stories[id]
	if !ok {
		return models.Story{}, notFound("story")
	}
	if p.ImageURL != nil {
		r.v.ImageURL = *p.ImageURL
	}
	return s.buildStory(r, s.viewerOf(ctx)), nil
}

func (s *Store) DeleteStory(ctx context.Context, id string) error {
	if err := s.wait(ctx, 250*time.Millisecond); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[id]; !ok {
		return notFound("story")
	}
	delete(s.stories, id)
	return nil
}

// AddViewer records that viewerID has seen the story. Repeats are no-ops.
func (s *Store) AddViewer(ctx context.Context, id, viewerID string) (models.Story, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Story{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.stories[id]
	if !ok {
		return models.Story{}, notFound("story")
	}
	if viewerID != "" {
		r.v.Viewers, _ = addToSet(r.v.Viewers, viewerID)
	}
	return s.buildStory(r, s.viewerOf(ctx)), nil
}

// PurgeExpiredStories drops every story whose expiry has passed and
// returns how many were removed. It has no simulated latency.
func (s *Store) PurgeExpiredStories(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := s.nowUTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.stories {
		if !r.v.ActiveAt(now) {
			delete(s.stories, id)
			n++
		}
	}
	return n, nil
}
