package models

import "time"

type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	IsOnline    bool      `json:"isOnline"`
	Followers   []string  `json:"followers"`
	Following   []string  `json:"following"`
	IsFollowing bool      `json:"isFollowing"` // relative to the viewer, filled on read
	SavedPosts  []string  `json:"savedPosts"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
}

type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ImageURL  string    `json:"imageUrl"`
	Caption   string    `json:"caption"`
	Likes     int       `json:"likes"`
	Comments  []Comment `json:"comments"` // insertion order
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
}

type Story struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ImageURL  string    `json:"imageUrl"`
	Viewers   []string  `json:"viewers"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user,omitempty"`
}

// ActiveAt reports whether the story is still visible at t.
func (s Story) ActiveAt(t time.Time) bool { return t.Before(s.ExpiresAt) }

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"` // actor
	Type      NotificationType `json:"type"`
	PostID    string           `json:"postId,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
	User      *User            `json:"user,omitempty"`
	Post      *Post            `json:"post,omitempty"`
}

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
)

type Attachment struct {
	Name string         `json:"name"`
	Type AttachmentType `json:"type"`
	Size int64          `json:"size"`
	URL  string         `json:"url"` // data URL
}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Content        string      `json:"content"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	IsRead         bool        `json:"isRead"`
}

type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"` // participant
	User        *User     `json:"user,omitempty"`
	LastMessage *Message  `json:"lastMessage"`
	UnreadCount int       `json:"unreadCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
