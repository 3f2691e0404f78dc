// Package feed holds what a client shows for posts, people and threads and
// drives the like/save/follow/comment/send actions optimistically.
package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"local.dev/socialfeed/internal/models"
	"local.dev/socialfeed/internal/optimistic"
	"local.dev/socialfeed/internal/store"
	"local.dev/socialfeed/internal/validate"
)

// Backend is the slice of the store the controller talks to.
type Backend interface {
	ListPosts(ctx context.Context, f store.PostFilter) ([]models.Post, error)
	CreatePost(ctx context.Context, in store.PostInput) (models.Post, error)
	LikePost(ctx context.Context, id string) (models.Post, error)
	UnlikePost(ctx context.Context, id string) (models.Post, error)
	SavePost(ctx context.Context, id string) (models.Post, error)
	UnsavePost(ctx context.Context, id string) (models.Post, error)
	AddComment(ctx context.Context, postID, text string) (models.Post, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	Follow(ctx context.Context, id string) (models.User, error)
	AddViewer(ctx context.Context, id, viewerID string) (models.Story, error)
	Messages(ctx context.Context, convID string) ([]models.Message, error)
	SendMessage(ctx context.Context, convID string, in store.MessageInput) (models.Message, error)
	MarkConversationRead(ctx context.Context, convID string) error
}

var _ Backend = (*store.Store)(nil)

// Controller acts for a single viewer.
type Controller struct {
	backend Backend
	runner  *optimistic.Runner
	notify  optimistic.Notifier
	viewer  string
	now     func() time.Time
	pending atomic.Uint64
}

func NewController(b Backend, viewer string, n optimistic.Notifier) *Controller {
	if n == nil {
		n = optimistic.LogNotifier{}
	}
	return &Controller{
		backend: b,
		runner:  optimistic.NewRunner(n),
		notify:  n,
		viewer:  viewer,
		now:     time.Now,
	}
}

func (c *Controller) Viewer() string { return c.viewer }

// Busy reports whether an action is pending, e.g. to disable a button.
func (c *Controller) Busy(action, id string) bool { return c.runner.InFlight(action + ":" + id) }

func (c *Controller) ctx(ctx context.Context) context.Context { return store.WithViewer(ctx, c.viewer) }

func (c *Controller) pendingID() string {
	return fmt.Sprintf("pending-%d", c.pending.Add(1))
}

// stale reports whether the caller stopped caring about the response.
func stale(ctx context.Context) bool { return ctx.Err() != nil }

// ===== posts =====

type PostState struct {
	Post  models.Post
	Liked bool
	Saved bool
}

type PostCard struct {
	mu sync.Mutex
	st PostState
}

func NewPostCard(p models.Post, saved bool) *PostCard {
	return &PostCard{st: PostState{Post: p, Saved: saved}}
}

// State returns a deep copy; callers may mutate it freely.
func (pc *PostCard) State() PostState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	st := pc.st
	st.Post = copyPost(pc.st.Post)
	return st
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	c.SavedPosts = slices.Clone(u.SavedPosts)
	return &c
}

func copyPost(p models.Post) models.Post {
	p.User = copyUser(p.User)
	p.Comments = slices.Clone(p.Comments)
	for i := range p.Comments {
		p.Comments[i].User = copyUser(p.Comments[i].User)
	}
	return p
}

func copyMessages(msgs []models.Message) []models.Message {
	out := slices.Clone(msgs)
	for i := range out {
		if a := out[i].Attachment; a != nil {
			cp := *a
			out[i].Attachment = &cp
		}
	}
	return out
}

func (pc *PostCard) update(fn func(*PostState)) {
	pc.mu.Lock()
	fn(&pc.st)
	pc.mu.Unlock()
}

// LoadFeed builds cards for the newest posts, marking the viewer's saved ones.
func (c *Controller) LoadFeed(ctx context.Context) ([]*PostCard, error) {
	ctx = c.ctx(ctx)
	me, err := c.backend.GetUser(ctx, c.viewer)
	if err != nil {
		c.notify.Error("Failed to load profile: " + err.Error())
		return nil, err
	}
	posts, err := c.backend.ListPosts(ctx, store.PostFilter{})
	if err != nil {
		c.notify.Error("Failed to load feed: " + err.Error())
		return nil, err
	}
	cards := make([]*PostCard, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, NewPostCard(p, slices.Contains(me.SavedPosts, p.ID)))
	}
	return cards, nil
}

// ToggleLike likes or unlikes the card's post. The counter is taken from
// the store once it answers.
func (c *Controller) ToggleLike(ctx context.Context, pc *PostCard) error {
	ctx = c.ctx(ctx)
	var prev PostState
	id := pc.State().Post.ID
	return c.runner.Run(ctx, "like:"+id, optimistic.Action{
		Message: "Failed to like post",
		Apply: func() {
			pc.update(func(st *PostState) {
				prev = *st
				st.Liked = !st.Liked
				if st.Liked {
					st.Post.Likes++
				} else {
					st.Post.Likes = max(st.Post.Likes-1, 0)
				}
			})
		},
		Revert: func() {
			pc.update(func(st *PostState) {
				st.Liked = prev.Liked
				st.Post.Likes = prev.Post.Likes
			})
		},
		Commit: func(ctx context.Context) error {
			call := c.backend.LikePost
			if prev.Liked {
				call = c.backend.UnlikePost
			}
			p, err := call(ctx, id)
			if err != nil {
				return err
			}
			if !stale(ctx) {
				pc.update(func(st *PostState) { st.Post = p })
			}
			return nil
		},
	})
}

// ToggleSave saves or unsaves. On success the local flip stands.
func (c *Controller) ToggleSave(ctx context.Context, pc *PostCard) error {
	ctx = c.ctx(ctx)
	var wasSaved bool
	id := pc.State().Post.ID
	return c.runner.Run(ctx, "save:"+id, optimistic.Action{
		Message: "Failed to save post",
		Apply: func() {
			pc.update(func(st *PostState) {
				wasSaved = st.Saved
				st.Saved = !st.Saved
			})
		},
		Revert: func() { pc.update(func(st *PostState) { st.Saved = wasSaved }) },
		Commit: func(ctx context.Context) error {
			var err error
			if wasSaved {
				_, err = c.backend.UnsavePost(ctx, id)
			} else {
				_, err = c.backend.SavePost(ctx, id)
			}
			return err
		},
	})
}

// SubmitComment shows the comment immediately and swaps in the stored
// thread once the store accepts it.
func (c *Controller) SubmitComment(ctx context.Context, pc *PostCard, text string) error {
	text, err := validate.CommentText(text)
	if err != nil {
		c.notify.Error(err.Error())
		return err
	}
	ctx = c.ctx(ctx)
	id := pc.State().Post.ID
	tmp := models.Comment{
		ID:        c.pendingID(),
		PostID:    id,
		UserID:    c.viewer,
		Text:      text,
		CreatedAt: c.now().UTC(),
	}
	return c.runner.Run(ctx, "comment:"+id, optimistic.Action{
		Message: "Failed to add comment",
		Apply: func() {
			pc.update(func(st *PostState) { st.Post.Comments = append(st.Post.Comments, tmp) })
		},
		Revert: func() {
			pc.update(func(st *PostState) {
				st.Post.Comments = slices.DeleteFunc(st.Post.Comments, func(cm models.Comment) bool { return cm.ID == tmp.ID })
			})
		},
		Commit: func(ctx context.Context) error {
			p, err := c.backend.AddComment(ctx, id, text)
			if err != nil {
				return err
			}
			if !stale(ctx) {
				pc.update(func(st *PostState) { st.Post = p })
			}
			return nil
		},
	})
}

// CreatePost validates and publishes a post. It is not optimistic: the
// post has no id until the store assigns one.
func (c *Controller) CreatePost(ctx context.Context, caption string, image *validate.Upload) (models.Post, error) {
	caption, url, err := validate.PostInput(caption, image)
	if err != nil {
		c.notify.Error(err.Error())
		return models.Post{}, err
	}
	var created models.Post
	err = c.runner.Run(c.ctx(ctx), "create:post", optimistic.Action{
		Message: "Failed to create post",
		Commit: func(ctx context.Context) error {
			p, err := c.backend.CreatePost(ctx, store.PostInput{UserID: c.viewer, ImageURL: url, Caption: caption})
			created = p
			return err
		},
	})
	return created, err
}

// ===== people =====

type UserState struct {
	User      models.User
	Following bool
}

type UserCard struct {
	mu sync.Mutex
	st UserState
}

func NewUserCard(u models.User) *UserCard {
	return &UserCard{st: UserState{User: u, Following: u.IsFollowing}}
}

func (uc *UserCard) State() UserState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	st := uc.st
	st.User = *copyUser(&uc.st.User)
	return st
}

// ToggleFollow flips the follow state and settles on what the store reports.
func (c *Controller) ToggleFollow(ctx context.Context, uc *UserCard) error {
	ctx = c.ctx(ctx)
	var was bool
	id := uc.State().User.ID
	return c.runner.Run(ctx, "follow:"+id, optimistic.Action{
		Message: "Failed to update follow",
		Apply: func() {
			uc.mu.Lock()
			was = uc.st.Following
			uc.st.Following = !was
			uc.mu.Unlock()
		},
		Revert: func() {
			uc.mu.Lock()
			uc.st.Following = was
			uc.mu.Unlock()
		},
		Commit: func(ctx context.Context) error {
			u, err := c.backend.Follow(ctx, id)
			if err != nil {
				return err
			}
			if !stale(ctx) {
				uc.mu.Lock()
				uc.st = UserState{User: u, Following: u.IsFollowing}
				uc.mu.Unlock()
			}
			return nil
		},
	})
}

// OpenStory records the viewer as having seen the story.
func (c *Controller) OpenStory(ctx context.Context, storyID string) (models.Story, error) {
	st, err := c.backend.AddViewer(c.ctx(ctx), storyID, c.viewer)
	if err != nil && !stale(ctx) {
		c.notify.Error("Failed to open story: " + err.Error())
	}
	return st, err
}

// ===== messages =====

type Thread struct {
	mu       sync.Mutex
	convID   string
	messages []models.Message
}

func (t *Thread) ConversationID() string { return t.convID }

func (t *Thread) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyMessages(t.messages)
}

// OpenThread loads a conversation and marks it read.
func (c *Controller) OpenThread(ctx context.Context, convID string) (*Thread, error) {
	ctx = c.ctx(ctx)
	msgs, err := c.backend.Messages(ctx, convID)
	if err != nil {
		c.notify.Error("Failed to load messages: " + err.Error())
		return nil, err
	}
	if err := c.backend.MarkConversationRead(ctx, convID); err != nil {
		c.notify.Error("Failed to mark conversation read: " + err.Error())
	}
	return &Thread{convID: convID, messages: msgs}, nil
}

// Send shows the message at once and replaces it with the stored copy.
func (c *Controller) Send(ctx context.Context, t *Thread, content string, attachment *validate.Upload) error {
	content, att, err := validate.Message(content, attachment)
	if err != nil {
		c.notify.Error(err.Error())
		return err
	}
	ctx = c.ctx(ctx)
	tmp := models.Message{
		ID:             c.pendingID(),
		ConversationID: t.convID,
		SenderID:       c.viewer,
		Content:        content,
		Attachment:     att,
		CreatedAt:      c.now().UTC(),
		IsRead:         true,
	}
	isTmp := func(m models.Message) bool { return m.ID == tmp.ID }
	return c.runner.Run(ctx, "send:"+t.convID, optimistic.Action{
		Message: "Failed to send message",
		Apply: func() {
			t.mu.Lock()
			t.messages = append(t.messages, tmp)
			t.mu.Unlock()
		},
		Revert: func() {
			t.mu.Lock()
			t.messages = slices.DeleteFunc(t.messages, isTmp)
			t.mu.Unlock()
		},
		Commit: func(ctx context.Context) error {
			m, err := c.backend.SendMessage(ctx, t.convID, store.MessageInput{Content: content, Attachment: att})
			if err != nil {
				return err
			}
			if !stale(ctx) {
				t.mu.Lock()
				if i := slices.IndexFunc(t.messages, isTmp); i >= 0 {
					t.messages[i] = m
				}
				t.mu.Unlock()
			}
			return nil
		},
	})
}
