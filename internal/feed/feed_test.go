package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local.dev/socialfeed/internal/models"
	"local.dev/socialfeed/internal/optimistic"
	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Error(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

// backend wraps the real store; set a hook to make one call misbehave.
type backend struct {
	*store.Store
	like    func(ctx context.Context, id string) (models.Post, error)
	save    func(ctx context.Context, id string) (models.Post, error)
	comment func(ctx context.Context, postID, text string) (models.Post, error)
	follow  func(ctx context.Context, id string) (models.User, error)
	send    func(ctx context.Context, convID string, in store.MessageInput) (models.Message, error)
}

func (b *backend) LikePost(ctx context.Context, id string) (models.Post, error) {
	if b.like != nil {
		return b.like(ctx, id)
	}
	return b.Store.LikePost(ctx, id)
}

func (b *backend) SavePost(ctx context.Context, id string) (models.Post, error) {
	if b.save != nil {
		return b.save(ctx, id)
	}
	return b.Store.SavePost(ctx, id)
}

func (b *backend) AddComment(ctx context.Context, postID, text string) (models.Post, error) {
	if b.comment != nil {
		return b.comment(ctx, postID, text)
	}
	return b.Store.AddComment(ctx, postID, text)
}

func (b *backend) Follow(ctx context.Context, id string) (models.User, error) {
	if b.follow != nil {
		return b.follow(ctx, id)
	}
	return b.Store.Follow(ctx, id)
}

func (b *backend) SendMessage(ctx context.Context, convID string, in store.MessageInput) (models.Message, error) {
	if b.send != nil {
		return b.send(ctx, convID, in)
	}
	return b.Store.SendMessage(ctx, convID, in)
}

var errOffline = errors.New("offline")

func setup(t *testing.T) (*Controller, *backend, *notes) {
	t.Helper()
	now := time.Date(2024, 6, 3, 12, 15, 0, 0, time.UTC)
	s := store.New(store.WithLatency(0), store.WithClock(func() time.Time { return now }))
	require.NoError(t, s.LoadFixtures(store.Fixtures(), false))
	b := &backend{Store: s}
	n := &notes{}
	return NewController(b, store.DefaultViewer, n), b, n
}

func postCard(t *testing.T, b *backend, id string) *PostCard {
	t.Helper()
	p, err := b.Store.GetPost(context.Background(), id)
	require.NoError(t, err)
	return NewPostCard(p, false)
}

func TestLoadFeedMarksSaved(t *testing.T) {
	c, _, _ := setup(t)

	cards, err := c.LoadFeed(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 6)
	for _, pc := range cards {
		st := pc.State()
		assert.Equal(t, st.Post.ID == "p_3", st.Saved, st.Post.ID)
		assert.False(t, st.Liked)
	}
}

func TestToggleLikeReconciles(t *testing.T) {
	c, b, n := setup(t)
	ctx := context.Background()
	pc := postCard(t, b, "p_1")

	require.NoError(t, c.ToggleLike(ctx, pc))
	st := pc.State()
	assert.True(t, st.Liked)
	assert.Equal(t, 129, st.Post.Likes)

	require.NoError(t, c.ToggleLike(ctx, pc))
	st = pc.State()
	assert.False(t, st.Liked)
	assert.Equal(t, 128, st.Post.Likes)

	stored, err := b.Store.GetPost(ctx, "p_1")
	require.NoError(t, err)
	assert.Equal(t, 128, stored.Likes)
	assert.Empty(t, n.all())
}

func TestToggleLikeFailureRevertsFully(t *testing.T) {
	c, b, n := setup(t)
	ctx := context.Background()
	pc := postCard(t, b, "p_1")
	before := pc.State()

	b.like = func(ctx context.Context, id string) (models.Post, error) {
		st := pc.State()
		assert.True(t, st.Liked, "flipped before the store answers")
		assert.Equal(t, 129, st.Post.Likes)
		return models.Post{}, errOffline
	}
	err := c.ToggleLike(ctx, pc)

	assert.ErrorIs(t, err, errOffline)
	assert.Equal(t, before, pc.State())
	require.Len(t, n.all(), 1)
	assert.Equal(t, "Failed to like post: offline", n.all()[0])

	stored, err := b.Store.GetPost(ctx, "p_1")
	require.NoError(t, err)
	assert.Equal(t, 128, stored.Likes)
}

func TestToggleLikeDropsRapidRepeat(t *testing.T) {
	c, b, _ := setup(t)
	pc := postCard(t, b, "p_2")

	entered := make(chan struct{})
	release := make(chan struct{})
	b.like = func(ctx context.Context, id string) (models.Post, error) {
		close(entered)
		<-release
		return b.Store.LikePost(ctx, id)
	}

	done := make(chan error, 1)
	go func() { done <- c.ToggleLike(context.Background(), pc) }()
	<-entered

	assert.True(t, c.Busy("like", "p_2"))
	assert.ErrorIs(t, c.ToggleLike(context.Background(), pc), optimistic.ErrInFlight)
	assert.True(t, pc.State().Liked)

	close(release)
	require.NoError(t, <-done)
	st := pc.State()
	assert.True(t, st.Liked)
	assert.Equal(t, 55, st.Post.Likes)
	assert.False(t, c.Busy("like", "p_2"))
}

func TestToggleLikeIgnoresStaleResponse(t *testing.T) {
	c, b, n := setup(t)
	pc := postCard(t, b, "p_1")

	ctx, cancel := context.WithCancel(context.Background())
	b.like = func(context.Context, string) (models.Post, error) {
		cancel()
		return models.Post{ID: "p_1", Likes: 500}, nil
	}
	require.NoError(t, c.ToggleLike(ctx, pc))

	st := pc.State()
	assert.True(t, st.Liked)
	assert.Equal(t, 129, st.Post.Likes)
	assert.Empty(t, n.all())
}

func TestToggleSave(t *testing.T) {
	c, b, n := setup(t)
	ctx := context.Background()
	pc := postCard(t, b, "p_1")

	require.NoError(t, c.ToggleSave(ctx, pc))
	assert.True(t, pc.State().Saved)
	me, err := b.Store.GetUser(ctx, store.DefaultViewer)
	require.NoError(t, err)
	assert.Contains(t, me.SavedPosts, "p_1")

	require.NoError(t, c.ToggleSave(ctx, pc))
	assert.False(t, pc.State().Saved)

	b.save = func(context.Context, string) (models.Post, error) { return models.Post{}, errOffline }
	assert.ErrorIs(t, c.ToggleSave(ctx, pc), errOffline)
	assert.False(t, pc.State().Saved)
	assert.Equal(t, []string{"Failed to save post: offline"}, n.all())
}

func TestSubmitComment(t *testing.T) {
	c, b, _ := setup(t)
	ctx := context.Background()
	pc := postCard(t, b, "p_1")

	require.NoError(t, c.SubmitComment(ctx, pc, "  Nice!  "))
	cs := pc.State().Post.Comments
	require.Len(t, cs, 3)
	assert.Equal(t, "Nice!", cs[2].Text)
	assert.False(t, strings.HasPrefix(cs[2].ID, "pending-"))
	assert.Equal(t, store.DefaultViewer, cs[2].UserID)
}

func TestSubmitCommentValidation(t *testing.T) {
	c, b, n := setup(t)
	pc := postCard(t, b, "p_1")
	called := false
	b.comment = func(context.Context, string, string) (models.Post, error) {
		called = true
		return models.Post{}, nil
	}

	err := c.SubmitComment(context.Background(), pc, "   ")
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "comment", ve.Field)
	assert.False(t, called)
	assert.Len(t, pc.State().Post.Comments, 2)
	assert.Len(t, n.all(), 1)

	err = c.SubmitComment(context.Background(), pc, strings.Repeat("x", validate.MaxTextLength+1))
	require.ErrorAs(t, err, &ve)
	assert.False(t, called)
}

func TestSubmitCommentFailureDropsPending(t *testing.T) {
	c, b, _ := setup(t)
	pc := postCard(t, b, "p_1")
	b.comment = func(context.Context, string, string) (models.Post, error) {
		cs := pc.State().Post.Comments
		assert.Len(t, cs, 3)
		assert.True(t, strings.HasPrefix(cs[2].ID, "pending-"))
		return models.Post{}, errOffline
	}

	assert.ErrorIs(t, c.SubmitComment(context.Background(), pc, "hello"), errOffline)
	assert.Len(t, pc.State().Post.Comments, 2)
}

func TestCreatePost(t *testing.T) {
	c, b, _ := setup(t)
	ctx := context.Background()

	_, err := c.CreatePost(ctx, "caption", nil)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "image", ve.Field)

	png := []byte("\x89PNG\r\n\x1a\n0000")
	p, err := c.CreatePost(ctx, " Hello ", &validate.Upload{Name: "a.png", Data: png})
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Caption)
	assert.Equal(t, 0, p.Likes)
	assert.Empty(t, p.Comments)
	assert.True(t, strings.HasPrefix(p.ImageURL, "data:image/png;base64,"))

	posts, err := b.Store.ListPosts(ctx, store.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, p.ID, posts[0].ID)
}

func TestToggleFollow(t *testing.T) {
	c, b, _ := setup(t)
	ctx := context.Background()
	u, err := b.Store.GetUser(ctx, "u_ines")
	require.NoError(t, err)
	uc := NewUserCard(u)

	require.NoError(t, c.ToggleFollow(ctx, uc))
	st := uc.State()
	assert.True(t, st.Following)
	assert.Contains(t, st.User.Followers, store.DefaultViewer)

	b.follow = func(context.Context, string) (models.User, error) { return models.User{}, errOffline }
	assert.ErrorIs(t, c.ToggleFollow(ctx, uc), errOffline)
	assert.True(t, uc.State().Following)
}

func TestOpenStory(t *testing.T) {
	c, _, _ := setup(t)

	st, err := c.OpenStory(context.Background(), "s_2")
	require.NoError(t, err)
	assert.Equal(t, []string{store.DefaultViewer}, st.Viewers)

	_, err = c.OpenStory(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestThreadSend(t *testing.T) {
	c, b, n := setup(t)
	ctx := context.Background()

	th, err := c.OpenThread(ctx, "conv_2")
	require.NoError(t, err)
	require.Len(t, th.Messages(), 2)
	unread, err := b.Store.UnreadCount(ctx, "conv_2")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	require.NoError(t, c.Send(ctx, th, "thanks!", nil))
	msgs := th.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "thanks!", msgs[2].Content)
	assert.False(t, strings.HasPrefix(msgs[2].ID, "pending-"))

	err = c.Send(ctx, th, "  ", nil)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)

	require.NoError(t, c.Send(ctx, th, "", &validate.Upload{Name: "n.txt", Data: []byte("notes")}))
	msgs = th.Messages()
	require.Len(t, msgs, 4)
	require.NotNil(t, msgs[3].Attachment)
	assert.Equal(t, models.AttachmentFile, msgs[3].Attachment.Type)

	b.send = func(context.Context, string, store.MessageInput) (models.Message, error) {
		return models.Message{}, errOffline
	}
	assert.ErrorIs(t, c.Send(ctx, th, "lost", nil), errOffline)
	assert.Len(t, th.Messages(), 4)
	assert.Contains(t, n.all(), "Failed to send message: offline")
}

func TestSnapshotsAreDeepCopies(t *testing.T) {
	c, b, _ := setup(t)
	ctx := context.Background()

	pc := postCard(t, b, "p_1")
	st := pc.State()
	require.NotNil(t, st.Post.User)
	require.NotEmpty(t, st.Post.Comments)
	require.NotNil(t, st.Post.Comments[0].User)
	author, commenter := st.Post.User.Username, st.Post.Comments[0].User.Username
	st.Post.User.Username = "changed"
	st.Post.Comments[0].User.Username = "changed"
	st.Post.Comments[0].Text = "changed"
	again := pc.State()
	assert.Equal(t, author, again.Post.User.Username)
	assert.Equal(t, commenter, again.Post.Comments[0].User.Username)
	assert.NotEqual(t, "changed", again.Post.Comments[0].Text)

	u, err := b.Store.GetUser(ctx, "u_maya")
	require.NoError(t, err)
	require.NotEmpty(t, u.Followers)
	uc := NewUserCard(u)
	us := uc.State()
	us.User.Followers[0] = "changed"
	assert.NotEqual(t, "changed", uc.State().User.Followers[0])

	th, err := c.OpenThread(ctx, "conv_2")
	require.NoError(t, err)
	msgs := th.Messages()
	require.NotNil(t, msgs[0].Attachment)
	msgs[0].Attachment.Name = "changed"
	assert.Equal(t, "starter.txt", th.Messages()[0].Attachment.Name)
}
