package store

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"time"

	"local.dev/socialfeed/internal/models"
)

//go:embed fixtures/*.json
var fixtureFiles embed.FS

// Fixtures returns the seed data compiled into the binary.
func Fixtures() fs.FS {
	sub, err := fs.Sub(fixtureFiles, "fixtures")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	usersFile         = "users.json"
	postsFile         = "posts.json"
	commentsFile      = "comments.json"
	storiesFile       = "stories.json"
	notificationsFile = "notifications.json"
	conversationsFile = "conversations.json"
	messagesFile      = "messages.json"
)

// readFixture decodes name into out. A missing file is not an error.
func readFixture[T any](fsys fs.FS, name string, out *T) error {
	b, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

type fixtureSet struct {
	users         []models.User
	posts         []models.Post
	comments      []models.Comment
	stories       []models.Story
	notifications []models.Notification
	conversations []models.Conversation
	messages      []models.Message
}

func (f *fixtureSet) read(fsys fs.FS) error {
	if err := readFixture(fsys, usersFile, &f.users); err != nil {
		return err
	}
	if err := readFixture(fsys, postsFile, &f.posts); err != nil {
		return err
	}
	if err := readFixture(fsys, commentsFile, &f.comments); err != nil {
		return err
	}
	if err := readFixture(fsys, storiesFile, &f.stories); err != nil {
		return err
	}
	if err := readFixture(fsys, notificationsFile, &f.notifications); err != nil {
		return err
	}
	if err := readFixture(fsys, conversationsFile, &f.conversations); err != nil {
		return err
	}
	return readFixture(fsys, messagesFile, &f.messages)
}

// times lists every timestamp in the set so rebase can shift them
// together. Story expiries come back separately: they sit in the future
// and must not decide the shift.
func (f *fixtureSet) times() (created, expiries []*time.Time) {
	for i := range f.users {
		created = append(created, &f.users[i].CreatedAt)
	}
	for i := range f.posts {
		created = append(created, &f.posts[i].CreatedAt)
		for j := range f.posts[i].Comments {
			created = append(created, &f.posts[i].Comments[j].CreatedAt)
		}
	}
	for i := range f.comments {
		created = append(created, &f.comments[i].CreatedAt)
	}
	for i := range f.stories {
		created = append(created, &f.stories[i].CreatedAt)
		expiries = append(expiries, &f.stories[i].ExpiresAt)
	}
	for i := range f.notifications {
		created = append(created, &f.notifications[i].CreatedAt)
	}
	for i := range f.conversations {
		created = append(created, &f.conversations[i].CreatedAt, &f.conversations[i].UpdatedAt)
	}
	for i := range f.messages {
		created = append(created, &f.messages[i].CreatedAt)
	}
	return created, expiries
}

// rebase shifts every timestamp so the newest one lands on now.
func (f *fixtureSet) rebase(now time.Time) {
	created, expiries := f.times()
	var newest time.Time
	for _, t := range created {
		if t.After(newest) {
			newest = *t
		}
	}
	if newest.IsZero() {
		return
	}
	shift := now.Sub(newest)
	for _, t := range append(created, expiries...) {
		if !t.IsZero() {
			*t = t.Add(shift)
		}
	}
}

// LoadFixtures seeds the store from fsys. Foreign keys (userId, postId,
// conversationId) are resolved against what is loaded; dangling children
// are skipped with a log line. When rebase is set, the timestamps are
// shifted so the newest record is "now", which keeps seeded stories live.
func (s *Store) LoadFixtures(fsys fs.FS, rebase bool) error {
	f, err := s.readFixtures(fsys, rebase)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed(f)
	return nil
}

// ReloadFixtures replaces everything in the store with the fixtures in
// fsys. Readers see either the old state or the new one, never an empty
// store. On a read error the store is left as it was.
func (s *Store) ReloadFixtures(fsys fs.FS, rebase bool) error {
	f, err := s.readFixtures(fsys, rebase)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipe()
	s.seed(f)
	return nil
}

func (s *Store) readFixtures(fsys fs.FS, rebase bool) (*fixtureSet, error) {
	f := &fixtureSet{}
	if err := f.read(fsys); err != nil {
		return nil, err
	}
	if rebase {
		f.rebase(s.nowUTC())
	}
	return f, nil
}

func skipDup(kind, id string) {
	log.Printf("fixtures: skipping duplicate %s %q", kind, id)
}

// seed inserts f. Callers hold s.mu. Records without an id, or with an id
// already in the store, are skipped.
func (s *Store) seed(f *fixtureSet) {
	for _, u := range f.users {
		if u.ID == "" {
			continue
		}
		if _, dup := s.users[u.ID]; dup {
			skipDup("user", u.ID)
			continue
		}
		u.Followers = dedupe(u.Followers)
		u.Following = dedupe(u.Following)
		u.SavedPosts = dedupe(u.SavedPosts)
		u.IsFollowing = false
		s.users[u.ID] = &row[models.User]{v: u, seq: s.nextSeq()}
	}

	var comments []models.Comment
	for _, p := range f.posts {
		if p.ID == "" {
			continue
		}
		if _, dup := s.posts[p.ID]; dup {
			skipDup("post", p.ID)
			continue
		}
		for _, c := range p.Comments {
			c.PostID = p.ID
			comments = append(comments, c)
		}
		p.Comments, p.User = nil, nil
		p.Likes = max(p.Likes, 0)
		s.posts[p.ID] = &postRow{v: p, comments: []string{}, seq: s.nextSeq()}
	}
	comments = append(comments, f.comments...)
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	for _, c := range comments {
		p, ok := s.posts[c.PostID]
		if !ok || c.ID == "" {
			log.Printf("fixtures: skipping comment %q for unknown post %q", c.ID, c.PostID)
			continue
		}
		if _, dup := s.comments[c.ID]; dup {
			skipDup("comment", c.ID)
			continue
		}
		c.User = nil
		s.insertComment(p, c)
	}

	for _, st := range f.stories {
		if st.ID == "" {
			continue
		}
		if _, dup := s.stories[st.ID]; dup {
			skipDup("story", st.ID)
			continue
		}
		if st.ExpiresAt.IsZero() {
			st.ExpiresAt = st.CreatedAt.Add(StoryTTL)
		}
		st.Viewers = dedupe(st.Viewers)
		st.User = nil
		s.stories[st.ID] = &row[models.Story]{v: st, seq: s.nextSeq()}
	}

	for _, n := range f.notifications {
		if n.ID == "" {
			continue
		}
		if _, dup := s.notifications[n.ID]; dup {
			skipDup("notification", n.ID)
			continue
		}
		n.User, n.Post = nil, nil
		s.notifications[n.ID] = &row[models.Notification]{v: n, seq: s.nextSeq()}
	}

	for _, c := range f.conversations {
		if c.ID == "" {
			continue
		}
		if _, dup := s.conversations[c.ID]; dup {
			skipDup("conversation", c.ID)
			continue
		}
		c.User, c.LastMessage = nil, nil
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.CreatedAt
		}
		s.conversations[c.ID] = &row[models.Conversation]{v: c, seq: s.nextSeq()}
	}
	for _, m := range f.messages {
		if _, ok := s.conversations[m.ConversationID]; !ok || m.ID == "" {
			log.Printf("fixtures: skipping message %q for unknown conversation %q", m.ID, m.ConversationID)
			continue
		}
		if _, dup := s.messages[m.ID]; dup {
			skipDup("message", m.ID)
			continue
		}
		s.messages[m.ID] = &row[models.Message]{v: copyMessage(m), seq: s.nextSeq()}
		s.convMessages[m.ConversationID] = append(s.convMessages[m.ConversationID], m.ID)
	}

	log.Printf("fixtures: %d users, %d posts, %d comments, %d stories, %d notifications, %d conversations, %d messages",
		len(s.users), len(s.posts), len(s.comments), len(s.stories), len(s.notifications), len(s.conversations), len(s.messages))
}
