package models

import (
	"time"
)

// Role decides what a user can see and send.
//
// Admins author broadcasts and financial notices and are a contact of every
// host. Hosts talk to the admins and to each other.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleHost  Role = "host"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleHost
}

// ContentType is the kind of payload a message carries.
type ContentType string

const (
	ContentText      ContentType = "text"
	ContentImage     ContentType = "image"
	ContentAudio     ContentType = "audio"
	ContentVideo     ContentType = "video"
	ContentSticker   ContentType = "sticker"
	ContentFinancial ContentType = "financial"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentImage, ContentAudio, ContentVideo, ContentSticker, ContentFinancial:
		return true
	}
	return false
}

// NeedsMedia reports whether a message of this type must carry a media URL.
// Financial messages may carry an attachment but do not have to.
func (t ContentType) NeedsMedia() bool {
	switch t {
	case ContentImage, ContentAudio, ContentVideo, ContentSticker:
		return true
	}
	return false
}

// NotificationType groups notifications on the host dashboard.
type NotificationType string

const (
	NotificationGeneral   NotificationType = "general"
	NotificationFinancial NotificationType = "financial"
	NotificationBroadcast NotificationType = "broadcast"
)

func (t NotificationType) Valid() bool {
	return t == NotificationGeneral || t == NotificationFinancial || t == NotificationBroadcast
}

// User is a participant of the chat.
//
// PasswordHash never leaves the server: the json:"-" tag keeps it out of
// every API payload.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Role           Role      `json:"role"`
	IsOnline       bool      `json:"is_online"`
	LastSeen       time.Time `json:"last_seen"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// MessageStatus is the derived delivery state of a message.
//
// Transitions only move forward: sent -> delivered -> read. A read message
// is always delivered as well.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is a single 1:1 chat message.
//
// ID and Timestamp are assigned by the store and never change. Only the two
// flags and Metadata may be updated after creation.
type Message struct {
	ID          int64          `json:"id"`
	SenderID    int64          `json:"sender_id"`
	ReceiverID  int64          `json:"receiver_id"`
	Content     string         `json:"content,omitempty"`
	ContentType ContentType    `json:"content_type"`
	MediaURL    string         `json:"media_url,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	IsRead      bool           `json:"is_read"`
	IsDelivered bool           `json:"is_delivered"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (m *Message) Status() MessageStatus {
	switch {
	case m.IsRead:
		return StatusRead
	case m.IsDelivered:
		return StatusDelivered
	default:
		return StatusSent
	}
}

// Between reports whether the message belongs to the conversation of a and b.
func (m *Message) Between(a, b int64) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Before orders messages by (timestamp, id).
func (m *Message) Before(other *Message) bool {
	if m.Timestamp.Equal(other.Timestamp) {
		return m.ID < other.ID
	}
	return m.Timestamp.Before(other.Timestamp)
}

// NewMessage is the input of MessageRepository.Create. The store fills in
// ID, Timestamp and the status flags.
type NewMessage struct {
	SenderID    int64
	ReceiverID  int64
	Content     string
	ContentType ContentType
	MediaURL    string
	Metadata    map[string]any
}

// Notification is a dashboard entry for a single user.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

type NewNotification struct {
	UserID   int64
	Title    string
	Content  string
	Type     NotificationType
	Metadata map[string]any
}

// ChatContact is a projection computed for one viewer. It is never stored.
type ChatContact struct {
	User        User     `json:"user"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

// MessageStats backs the admin dashboard counters.
type MessageStats struct {
	Total     int64 `json:"total"`
	Today     int64 `json:"today"`
	Financial int64 `json:"financial"`
}

// DashboardStats is what the admin overview shows.
type DashboardStats struct {
	Hosts          int          `json:"hosts"`
	ActiveHosts    int          `json:"active_hosts"`
	UnreadForAdmin int          `json:"unread_for_admin"`
	Messages       MessageStats `json:"messages"`
}
