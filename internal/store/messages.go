package store

import (
	"context"
	"sort"
	"time"

	"local.dev/socialfeed/internal/models"
)

type MessageInput struct {
	Content    string
	Attachment *models.Attachment
}

func copyMessage(m models.Message) models.Message {
	if m.Attachment != nil {
		a := *m.Attachment
		m.Attachment = &a
	}
	return m
}

// threadRows returns a conversation's messages oldest first. mu must be held.
func (s *Store) threadRows(convID string) []*row[models.Message] {
	ids := s.convMessages[convID]
	rows := make([]*row[models.Message], 0, len(ids))
	for _, id := range ids {
		if r, ok := s.messages[id]; ok {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return oldestFirst(rows[i].v.CreatedAt, rows[j].v.CreatedAt, rows[i].seq, rows[j].seq)
	})
	return rows
}

// buildConversation derives LastMessage and UnreadCount from the thread so
// they can never drift from the messages themselves.
func (s *Store) buildConversation(r *row[models.Conversation], viewer string) models.Conversation {
	c := r.v
	c.User = s.userView(c.UserID, viewer)
	c.LastMessage = nil
	c.UnreadCount = 0
	rows := s.threadRows(c.ID)
	for _, m := range rows {
		if m.v.SenderID != viewer && !m.v.IsRead {
			c.UnreadCount++
		}
	}
	if len(rows) > 0 {
		last := copyMessage(rows[len(rows)-1].v)
		c.LastMessage = &last
	}
	return c
}

// ListConversations orders by most recent activity.
func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return nil, err
	}
	viewer := s.viewerOf(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := sortedRows(s.conversations, nil, func(a, b *row[models.Conversation]) bool {
		return newestFirst(a.v.UpdatedAt, b.v.UpdatedAt, a.seq, b.seq)
	})
	out := make([]models.Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.buildConversation(r, viewer))
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return models.Conversation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, notFound("conversation")
	}
	return s.buildConversation(r, s.viewerOf(ctx)), nil
}

// StartConversation returns the existing conversation with userID, or
// opens a new one.
func (s *Store) StartConversation(ctx context.Context, userID string) (models.Conversation, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Conversation{}, err
	}
	viewer := s.viewerOf(ctx)
	id, err := newID()
	if err != nil {
		return models.Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return models.Conversation{}, notFound("user")
	}
	for _, r := range s.conversations {
		if r.v.UserID == userID {
			return s.buildConversation(r, viewer), nil
		}
	}
	now := s.nowUTC()
	r := &row[models.Conversation]{
		v: models.Conversation{
			ID:        id,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		seq: s.nextSeq(),
	}
	s.conversations[id] = r
	return s.buildConversation(r, viewer), nil
}

// Messages returns a conversation's thread oldest first.
func (s *Store) Messages(ctx context.Context, convID string) ([]models.Message, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[convID]; !ok {
		return nil, notFound("conversation")
	}
	rows := s.threadRows(convID)
	out := make([]models.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyMessage(r.v))
	}
	return out, nil
}

// SendMessage appends a message from the viewer and bumps the conversation.
func (s *Store) SendMessage(ctx context.Context, convID string, in MessageInput) (models.Message, error) {
	if err := s.wait(ctx, 300*time.Millisecond); err != nil {
		return models.Message{}, err
	}
	viewer := s.viewerOf(ctx)
	id, err := newID()
	if err != nil {
		return models.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return models.Message{}, notFound("conversation")
	}
	m := copyMessage(models.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       viewer,
		Content:        in.Content,
		Attachment:     in.Attachment,
		CreatedAt:      s.nowUTC(),
	})
	s.messages[id] = &row[models.Message]{v: m, seq: s.nextSeq()}
	s.convMessages[convID] = append(s.convMessages[convID], id)
	conv.v.UpdatedAt = m.CreatedAt
	conv.seq = s.nextSeq()
	return copyMessage(m), nil
}

// MarkConversationRead marks every message the viewer received as read.
func (s *Store) MarkConversationRead(ctx context.Context, convID string) error {
	if err := s.wait(ctx, 100*time.Millisecond); err != nil {
		return err
	}
	viewer := s.viewerOf(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[convID]; !ok {
		return notFound("conversation")
	}
	for _, r := range s.threadRows(convID) {
		if r.v.SenderID != viewer {
			r.v.IsRead = true
		}
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, convID string) (int, error) {
	if err := s.wait(ctx, 100*time.Millisecond); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.conversations[convID]
	if !ok {
		return 0, notFound("conversation")
	}
	return s.buildConversation(r, s.viewerOf(ctx)).UnreadCount, nil
}

// SearchMessages matches content case-insensitively across all threads.
func (s *Store) SearchMessages(ctx context.Context, query string) ([]models.Message, error) {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return nil, err
	}
	q := normalizeQuery(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := sortedRows(s.messages, func(m models.Message) bool {
		return q == "" || containsFold(m.Content, q)
	}, func(a, b *row[models.Message]) bool {
		return oldestFirst(a.v.CreatedAt, b.v.CreatedAt, a.seq, b.seq)
	})
	out := make([]models.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyMessage(r.v))
	}
	return out, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	if err := s.wait(ctx, 200*time.Millisecond); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.messages[id]
	if !ok {
		return notFound("message")
	}
	delete(s.messages, id)
	convID := r.v.ConversationID
	s.convMessages[convID] = removeFromSet(s.convMessages[convID], id)
	return nil
}
