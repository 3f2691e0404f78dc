package store

import (
	"context"
	"sort"
	"time"

	"local.dev/socialfeed/internal/models"
)

// TrendingLimit caps TrendingPosts.
const TrendingLimit = 20

type PostFilter struct {
	UserID string
	Query  string // caption, author username or display name
}

type PostInput struct {
	UserID   string // defaults to the viewer
	ImageURL string
	Caption  string
}

type PostPatch struct {
	Caption  *string `json:"caption,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// buildPost must be called with mu held.
func (s *Store) buildPost(r *postRow, viewer string) models.Post {
	p := r.v
	p.User = s.userView(p.UserID, viewer)
	p.Comments = make([]models.Comment, 0, len(r.comments))
	for _, cid := range r.comments {
		if c, ok := s.comments[cid]; ok {
			p.Comments = append(p.Comments, s.buildComment(c, viewer))
		}
	}
	return p
}

func (s *Store) postMatches(r *postRow, f PostFilter, q string) bool {
	if f.UserID != "" && r.v.UserID != f.UserID {
		return false
	}
	if q == "" {
		return true
	}
	if containsFold(r.v.Caption, q) {
		return true
	}
	if u, ok := s.users[r.v.UserID]; ok {
		return containsFold(u.v.Username, q) || containsFold(u.v.DisplayName, q)
	}
	return false
}

// ListPosts returns matching posts newest first.
func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]models.Post, error) {
	wait := 300 * time.Millisecond
	switch {
	case f.Query != "":
		wait = 400 * time.Millisecond
	case f.UserID != "":
		wait = 250 * time.Millisecond
	}
	if err := s.wait(ctx, wait); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)
	q := normalizeQuery(f.Query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]*postRow, 0, len(s.posts))
	for _, r := range s.posts {
		if s.postMatches(r, f, q) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return newestFirst(rows[i].v.CreatedAt, rows[j].v.CreatedAt, rows[i].seq, rows[j].seq)
	})
	out := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.buildPost(r, viewer))
	}
	return out, nil
}

// TrendingPosts ranks by likes + comment count, highest first, capped at TrendingLimit.
func (s *Store) TrendingPosts(ctx context.Context) ([]models.Post, error) {
	if err := s.wait(ctx, 350*time.Millisecond); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	type scored struct {
		r     *postRow
		score int
	}
	rows := make([]scored, 0, len(s.posts))
	for _, r := range s.posts {
		rows = append(rows, scored{r: r, score: r.v.Likes + len(r.comments)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return newestFirst(rows[i].r.v.CreatedAt, rows[j].r.v.CreatedAt, rows[i].r.seq, rows[j].r.seq)
	})
	if len(rows) > TrendingLimit {
		rows = rows[:TrendingLimit]
	}
	out := make([]models.Post, 0, len(rows))
	for _, sr := range rows {
		out = append(out, s.buildPost(sr.r, viewer))
	}
	return out, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (models.Post, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Post{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.posts[id]
	if !ok {
		return models.Post{}, notFound("post")
	}
	return s.buildPost(r, s.viewerOf(ctx)), nil
}

// CreatePost starts the post with zero likes and no comments.
func (s *Store) CreatePost(ctx context.Context, in PostInput) (models.Post, error) {
	if err := s.wait(ctx, 500*time.Millisecond); err != nil {
		return models.Post{}, err
	}
	viewer := s.viewerOf(ctx)
	if in.UserID == "" {
		in.UserID = viewer
	}
	id, err := newID()
	if err != nil {
		return models.Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := &postRow{
		v: models.Post{
			ID:        id,
			UserID:    in.UserID,
			ImageURL:  in.ImageURL,
			Caption:   in.Caption,
			CreatedAt: s.nowUTC(),
		},
		comments: []string{},
		seq:      s.nextSeq(),
	}
	s.posts[id] = r
	return s.buildPost(r, viewer), nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, p PostPatch) (models.Post, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts[id]
	if !ok {
		return models.Post{}, notFound("post")
	}
	if p.Caption != nil {
		r.v.Caption = *p.Caption
	}
	if p.ImageURL != nil {
		r.v.ImageURL = *p.ImageURL
	}
	return s.buildPost(r, s.viewerOf(ctx)), nil
}

// DeletePost also drops the post's comments and removes it from saved lists.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if err := s.wait(ctx, 250*time.Millisecond); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts[id]
	if !ok {
		return notFound("post")
	}
	for _, cid := range r.comments {
		delete(s.comments, cid)
	}
	delete(s.posts, id)
	for _, u := range s.users {
		u.v.SavedPosts = removeFromSet(u.v.SavedPosts, id)
	}
	return nil
}

// LikePost adds one like per call; it is deliberately not idempotent.
func (s *Store) LikePost(ctx context.Context, id string) (models.Post, error) {
	return s.adjustLikes(ctx, id, 1)
}

// UnlikePost removes one like, never going below zero.
func (s *Store) UnlikePost(ctx context.Context, id string) (models.Post, error) {
	return s.adjustLikes(ctx, id, -1)
}

func (s *Store) adjustLikes(ctx context.Context, id string, delta int) (models.Post, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts[id]
	if !ok {
		return models.Post{}, notFound("post")
	}
	r.v.Likes = max(r.v.Likes+delta, 0)
	return s.buildPost(r, s.viewerOf(ctx)), nil
}

// AddComment appends a comment by the viewer and returns the whole post.
func (s *Store) AddComment(ctx context.Context, postID, text string) (models.Post, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Post{}, err
	}
	viewer := s.viewerOf(ctx)
	id, err := newID()
	if err != nil {
		return models.Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts[postID]
	if !ok {
		return models.Post{}, notFound("post")
	}
	s.insertComment(r, models.Comment{
		ID:        id,
		PostID:    postID,
		UserID:    viewer,
		Text:      text,
		CreatedAt: s.nowUTC(),
	})
	return s.buildPost(r, viewer), nil
}

// SavePost adds the post to the viewer's saved set.
func (s *Store) SavePost(ctx context.Context, id string) (models.Post, error) {
	return s.setSaved(ctx, id, true)
}

func (s *Store) UnsavePost(ctx context.Context, id string) (models.Post, error) {
	return s.setSaved(ctx, id, false)
}

func (s *Store) setSaved(ctx context.Context, id string, saved bool) (models.Post, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Post{}, err
	}
	viewer := s.viewerOf(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.posts[id]
	if !ok {
		return models.Post{}, notFound("post")
	}
	if me, ok := s.users[viewer]; ok {
		if saved {
			me.v.SavedPosts, _ = addToSet(me.v.SavedPosts, id)
		} else {
			me.v.SavedPosts = removeFromSet(me.v.SavedPosts, id)
		}
	}
	return s.buildPost(r, viewer), nil
}
