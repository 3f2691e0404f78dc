package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local.dev/socialfeed/internal/models"
)

func TestMarkAllNotificationsRead(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	unread, err := s.ListNotifications(ctx, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 3)

	all, err := s.MarkAllNotificationsRead(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	for _, n := range all {
		assert.True(t, n.IsRead, n.ID)
	}

	unread, err = s.ListNotifications(ctx, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestNotificationDenormalized(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.GetNotification(ctx, "n_1")
	require.NoError(t, err)
	require.NotNil(t, n.User)
	assert.Equal(t, "maya.wanders", n.User.Username)
	require.NotNil(t, n.Post)
	assert.Equal(t, "p_4", n.Post.ID)

	n, err = s.GetNotification(ctx, "n_2")
	require.NoError(t, err)
	assert.Nil(t, n.Post)
}

func TestCreateAndReadNotification(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNotification(ctx, NotificationInput{UserID: "u_sam", Type: models.NotificationFollow})
	require.NoError(t, err)
	assert.False(t, n.IsRead)

	list, err := s.ListNotifications(ctx, NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 6)
	assert.Equal(t, n.ID, list[0].ID)

	n, err = s.MarkNotificationRead(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	require.NoError(t, s.DeleteNotification(ctx, n.ID))
	_, err = s.GetNotification(ctx, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
