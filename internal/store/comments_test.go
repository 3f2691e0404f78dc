package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommentJoinsPost(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateComment(ctx, CommentInput{PostID: "p_6", Text: "Love it"})
	require.NoError(t, err)
	assert.Equal(t, DefaultViewer, c.UserID)

	got, err := s.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	p, err := s.GetPost(ctx, "p_6")
	require.NoError(t, err)
	require.Len(t, p.Comments, 2)
	assert.Equal(t, c.ID, p.Comments[1].ID)
}

func TestListCommentsOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	thread, err := s.ListComments(ctx, CommentFilter{PostID: "p_3"})
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "c_4", thread[0].ID)
	assert.Equal(t, "c_5", thread[1].ID)

	all, err := s.ListComments(ctx, CommentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "c_6", all[0].ID)
	assert.Equal(t, "c_1", all[5].ID)
}

func TestUpdateLikeDeleteComment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	text := "Recipe please!!"
	c, err := s.UpdateComment(ctx, "c_3", CommentPatch{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, text, c.Text)

	c, err = s.LikeComment(ctx, "c_3")
	require.NoError(t, err)
	assert.Equal(t, 7, c.Likes)

	require.NoError(t, s.DeleteComment(ctx, "c_3"))
	p, err := s.GetPost(ctx, "p_2")
	require.NoError(t, err)
	assert.Empty(t, p.Comments)
}
