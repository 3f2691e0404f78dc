package store

import (
	"context"
	"time"

	"local.dev/socialfeed/internal/models"
)

type CommentFilter struct {
	PostID string
}

type CommentInput struct {
	PostID string
	UserID string // defaults to the viewer
	Text   string
}

type CommentPatch struct {
	Text *string `json:"text,omitempty"`
}

func (s *Store) buildComment(r *row[models.Comment], viewer string) models.Comment {
	c := r.v
	c.User = s.userView(c.UserID, viewer)
	return c
}

// insertComment must be called with mu held.
func (s *Store) insertComment(p *postRow, c models.Comment) *row[models.Comment] {
	r := &row[models.Comment]{v: c, seq: s.nextSeq()}
	s.comments[c.ID] = r
	p.comments = append(p.comments, c.ID)
	return r
}

// ListComments is newest first, except for a single post's thread which
// reads oldest first.
func (s *Store) ListComments(ctx context.Context, f CommentFilter) ([]models.Comment, error) {
	wait := 300 * time.Millisecond
	if f.PostID != "" {
		wait = 250 * time.Millisecond
	}
	if err := s.wait(ctx, wait); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := sortedRows(s.comments, func(c models.Comment) bool {
		return f.PostID == "" || c.PostID == f.PostID
	}, func(a, b *row[models.Comment]) bool {
		if f.PostID != "" {
			return oldestFirst(a.v.CreatedAt, b.v.CreatedAt, a.seq, b.seq)
		}
		return newestFirst(a.v.CreatedAt, b.v.CreatedAt, a.seq, b.seq)
	})
	out := make([]models.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.buildComment(r, viewer))
	}
	return out, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (models.Comment, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Comment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.comments[id]
	if !ok {
		return models.Comment{}, notFound("comment")
	}
	return s.buildComment(r, s.viewerOf(ctx)), nil
}

// CreateComment appends to the owning post, which must exist.
func (s *Store) CreateComment(ctx context.Context, in CommentInput) (models.Comment, error) {
	if err := s.wait(ctx, 400*time.Millisecond); err != nil {
		return models.Comment{}, err
	}
	viewer := s.viewerOf(ctx)
	if in.UserID == "" {
		in.UserID = viewer
	}
	id, err := newID()
	if err != nil {
		return models.Comment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[in.PostID]
	if !ok {
		return models.Comment{}, notFound("post")
	}
	r := s.insertComment(p, models.Comment{
		ID:        id,
		PostID:    in.PostID,
		UserID:    in.UserID,
		Text:      in.Text,
		CreatedAt: s.nowUTC(),
	})
	return s.buildComment(r, viewer), nil
}

func (s *Store) UpdateComment(ctx context.Context, id string, p CommentPatch) (models.Comment, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Comment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.comments[id]
	if !ok {
		return models.Comment{}, notFound("comment")
	}
	if p.Text != nil {
		r.v.Text = *p.Text
	}
	return s.buildComment(r, s.viewerOf(ctx)), nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	if err := s.wait(ctx, 250*time.Millisecond); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.comments[id]
	if !ok {
		return notFound("comment")
	}
	delete(s.comments, id)
	if p, ok := s.posts[r.v.PostID]; ok {
		p.comments = removeFromSet(p.comments, id)
	}
	return nil
}

func (s *Store) LikeComment(ctx context.Context, id string) (models.Comment, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Comment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.comments[id]
	if !ok {
		return models.Comment{}, notFound("comment")
	}
	r.v.Likes++
	return s.buildComment(r, s.viewerOf(ctx)), nil
}
