package models

import "time"

// MaxMessageTextLength is the upper bound on message text, in characters.
const MaxMessageTextLength = 1020

type Message struct {
	ID                  int64     `json:"id"`
	SenderID            int64     `json:"sender_id"`
	ReceiverID          int64     `json:"receiver_id"`
	Text                string    `json:"text"`
	IsNew               bool      `json:"is_new"`
	IsDeletedBySender   bool      `json:"-"`
	IsDeletedByReceiver bool      `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
}

// ConversationSummary is a derived row: one per contact the viewing user has
// at least one visible message with. It is never stored; the aggregator
// recomputes it from the message log on every read.
type ConversationSummary struct {
	ContactID   int64    `json:"contact_id"`
	Contact     Identity `json:"contact"`
	LastMessage *Message `json:"last_message"`
	UnreadCount int      `json:"unread_count"`
}

// Identity is the display data attached to a user id. Exists is false when
// the id no longer resolves to an account; the remaining fields then carry
// placeholder values.
type Identity struct {
	UserID      int64   `json:"user_id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Exists      bool    `json:"exists"`
}
