package models

import "time"

// Message represents a chat message.
type Message struct {
	ID        int        `db:"id" json:"id"`
	ChatID    int        `db:"chat_id" json:"chat_id"`
	SenderID  int        `db:"sender_id" json:"sender_id"`
	Content   string     `db:"content" json:"content"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at"`
}

// MessageDetail adds the sender's username for listings.
type MessageDetail struct {
	Message
	SenderUsername string `db:"sender_username" json:"sender_username"`
}
