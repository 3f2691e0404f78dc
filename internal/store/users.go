package store

import (
	"context"
	"slices"
	"time"

	"local.dev/socialfeed/internal/models"
)

const suggestedLimit = 10

type UserFilter struct {
	Query string // matches username or display name, case-insensitive
}

type UserInput struct {
	Username    string
	DisplayName string
	Avatar      string
	Bio         string
}

// UserPatch only overwrites the fields that are set.
type UserPatch struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	IsOnline    *bool   `json:"isOnline,omitempty"`
}

// userView must be called with mu held. It returns nil for unknown ids.
func (s *Store) userView(id, viewer string) *models.User {
	r, ok := s.users[id]
	if !ok {
		return nil
	}
	u := r.v
	u.Followers = cloneSet(r.v.Followers)
	u.Following = cloneSet(r.v.Following)
	u.SavedPosts = cloneSet(r.v.SavedPosts)
	u.IsFollowing = viewer != "" && viewer != id && slices.Contains(u.Followers, viewer)
	return &u
}

func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)
	q := normalizeQuery(f.Query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := sortedRows(s.users, func(u models.User) bool {
		return q == "" || containsFold(u.Username, q) || containsFold(u.DisplayName, q)
	}, func(a, b *row[models.User]) bool { return a.seq < b.seq })

	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, *s.userView(r.v.ID, viewer))
	}
	return out, nil
}

// SuggestedUsers lists people the viewer does not follow yet.
func (s *Store) SuggestedUsers(ctx context.Context) ([]models.User, error) {
	if err := s.wait(ctx, 350*time.Millisecond); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := sortedRows(s.users, func(u models.User) bool {
		return u.ID != viewer && !slices.Contains(u.Followers, viewer)
	}, func(a, b *row[models.User]) bool { return a.seq < b.seq })
	if len(rows) > suggestedLimit {
		rows = rows[:suggestedLimit]
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, *s.userView(r.v.ID, viewer))
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.userView(id, s.viewerOf(ctx))
	if u == nil {
		return models.User{}, notFound("user")
	}
	return *u, nil
}

func (s *Store) CreateUser(ctx context.Context, in UserInput) (models.User, error) {
	if err := s.wait(ctx, 500*time.Millisecond); err != nil {
		return models.User{}, err
	}
	id, err := newID()
	if err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &row[models.User]{
		v: models.User{
			ID:          id,
			Username:    in.Username,
			DisplayName: in.DisplayName,
			Avatar:      in.Avatar,
			Bio:         in.Bio,
			Followers:   []string{},
			Following:   []string{},
			SavedPosts:  []string{},
			CreatedAt:   s.nowUTC(),
		},
		seq: s.nextSeq(),
	}
	return *s.userView(id, s.viewerOf(ctx)), nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, p UserPatch) (models.User, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.users[id]
	if !ok {
		return models.User{}, notFound("user")
	}
	if p.Username != nil {
		r.v.Username = *p.Username
	}
	if p.DisplayName != nil {
		r.v.DisplayName = *p.DisplayName
	}
	if p.Avatar != nil {
		r.v.Avatar = *p.Avatar
	}
	if p.Bio != nil {
		r.v.Bio = *p.Bio
	}
	if p.IsOnline != nil {
		r.v.IsOnline = *p.IsOnline
	}
	return *s.userView(id, s.viewerOf(ctx)), nil
}

// DeleteUser removes the user and drops it from every follower/following set.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := s.wait(ctx, 250*time.Millisecond); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return notFound("user")
	}
	delete(s.users, id)
	for _, r := range s.users {
		r.v.Followers = removeFromSet(r.v.Followers, id)
		r.v.Following = removeFromSet(r.v.Following, id)
	}
	return nil
}

// Follow toggles the viewer's follow of id. The viewer is added to (or
// removed from) id's followers and id to (or from) the viewer's following,
// so both sides always agree with the returned IsFollowing.
func (s *Store) Follow(ctx context.Context, id string) (models.User, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.User{}, err
	}
	viewer := s.viewerOf(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.users[id]
	if !ok {
		return models.User{}, notFound("user")
	}
	if id == viewer {
		return *s.userView(id, viewer), nil
	}
	me := s.users[viewer]

	if slices.Contains(target.v.Followers, viewer) {
		target.v.Followers = removeFromSet(target.v.Followers, viewer)
		if me != nil {
			me.v.Following = removeFromSet(me.v.Following, id)
		}
	} else {
		target.v.Followers, _ = addToSet(target.v.Followers, viewer)
		if me != nil {
			me.v.Following, _ = addToSet(me.v.Following, id)
		}
	}
	return *s.userView(id, viewer), nil
}
