package store

import (
	"context"
	"time"

	"local.dev/socialfeed/internal/models"
)

type NotificationFilter struct {
	UnreadOnly bool
}

type NotificationInput struct {
	UserID string
	Type   models.NotificationType
	PostID string
}

func (s *Store) buildNotification(r *row[models.Notification], viewer string) models.Notification {
	n := r.v
	n.User = s.userView(n.UserID, viewer)
	n.Post = nil
	if n.PostID != "" {
		if p, ok := s.posts[n.PostID]; ok {
			post := s.buildPost(p, viewer)
			n.Post = &post
		}
	}
	return n
}

func (s *Store) ListNotifications(ctx context.Context, f NotificationFilter) ([]models.Notification, error) {
	wait := 300 * time.Millisecond
	if f.UnreadOnly {
		wait = 250 * time.Millisecond
	}
	if err := s.wait(ctx, wait); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationList(viewer, func(n models.Notification) bool {
		return !f.UnreadOnly || !n.IsRead
	}), nil
}

func (s *Store) notificationList(viewer string, keep func(models.Notification) bool) []models.Notification {
	rows := sortedRows(s.notifications, keep, func(a, b *row[models.Notification]) bool {
		return newestFirst(a.v.CreatedAt, b.v.CreatedAt, a.seq, b.seq)
	})
	out := make([]models.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.buildNotification(r, viewer))
	}
	return out
}

func (s *Store) GetNotification(ctx context.Context, id string) (models.Notification, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Notification{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.notifications[id]
	if !ok {
		return models.Notification{}, notFound("notification")
	}
	return s.buildNotification(r, s.viewerOf(ctx)), nil
}

func (s *Store) CreateNotification(ctx context.Context, in NotificationInput) (models.Notification, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Notification{}, err
	}
	id, err := newID()
	if err != nil {
		return models.Notification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &row[models.Notification]{
		v: models.Notification{
			ID:        id,
			UserID:    in.UserID,
			Type:      in.Type,
			PostID:    in.PostID,
			CreatedAt: s.nowUTC(),
		},
		seq: s.nextSeq(),
	}
	s.notifications[id] = r
	return s.buildNotification(r, s.viewerOf(ctx)), nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (models.Notification, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Notification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.notifications[id]
	if !ok {
		return models.Notification{}, notFound("notification")
	}
	r.v.IsRead = true
	return s.buildNotification(r, s.viewerOf(ctx)), nil
}

// MarkAllNotificationsRead returns every notification, all read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context) ([]models.Notification, error) {
	if err := s.wait(ctx, 400*time.Millisecond); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.notifications {
		r.v.IsRead = true
	}
	return s.notificationList(s.viewerOf(ctx), nil), nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	if err := s.wait(ctx, 250*time.Millisecond); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return notFound("notification")
	}
	delete(s.notifications, id)
	return nil
}
