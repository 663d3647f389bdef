package models

import "time"

// Chat is a one-to-one or group conversation.
type Chat struct {
	ID        int        `db:"id" json:"id"`
	Name      *string    `db:"name" json:"name"`
	IsGroup   bool       `db:"is_group" json:"is_group"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at"`
}

// Membership links a user to a chat.
type Membership struct {
	ID       int       `db:"id" json:"id"`
	UserID   int       `db:"user_id" json:"user_id"`
	ChatID   int       `db:"chat_id" json:"chat_id"`
	IsAdmin  bool      `db:"is_admin" json:"is_admin"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// ChatDetail is a chat resolved with its current members and latest message.
type ChatDetail struct {
	Chat
	Users       []User   `json:"users"`
	LastMessage *Message `json:"last_message"`
}

// RemovalOutcome reports what a member removal did to the chat.
type RemovalOutcome int

const (
	MembershipRemoved RemovalOutcome = iota + 1
	ChatDeleted
)

func (o RemovalOutcome) String() string {
	switch o {
	case MembershipRemoved:
		return "membership_removed"
	case ChatDeleted:
		return "chat_deleted"
	default:
		return "unknown"
	}
}

// ChatEvent is broadcasted through websockets.
type ChatEvent struct {
	Type      string   `json:"type"`
	ChatID    int      `json:"chat_id"`
	Message   *Message `json:"message,omitempty"`
	MessageID int      `json:"message_id,omitempty"`
	UserID    int      `json:"user_id,omitempty"`
}

const (
	EventMessage        = "message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
	EventMessageRead    = "message_read"
	EventChatDeleted    = "chat_deleted"
)
