package model

import (
	"time"
)

// Role represents the role of a message in the thread.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SenderClass classifies who authored a message. Exactly one class applies
// to a message; the class is fixed at creation.
type SenderClass string

const (
	SenderSubject   SenderClass = "subject"
	SenderTherapist SenderClass = "therapist"
	SenderAI        SenderClass = "ai"
	SenderSystem    SenderClass = "system"
)

// RoleFor maps a sender classification to its message role.
func RoleFor(class SenderClass) Role {
	switch class {
	case SenderAI:
		return RoleAssistant
	case SenderSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

// Message is a single entry in a conversation's append-only log.
//
// IDs are server-assigned log sequences (always positive). Before a send is
// acknowledged the client tags the message with a locally-generated negative
// id; the temporary id is replaced wholesale once the server id is known.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           Role        `json:"role"`
	Sender         SenderClass `json:"sender"`
	SenderID       string      `json:"sender_id,omitempty"`
	SenderName     string      `json:"sender_name,omitempty"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
	EditedAt       *time.Time  `json:"edited_at,omitempty"`
	Deleted        bool        `json:"deleted,omitempty"`
}

// Pending reports whether the message still carries a temporary local id.
func (m Message) Pending() bool {
	return m.ID < 0
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendResult is the server's answer to a send. A blocked send is a success
// at the transport level: the message was screened out, not lost.
type SendResult struct {
	MessageID    int64    `json:"message_id,omitempty"`
	Blocked      bool     `json:"blocked,omitempty"`
	BlockMessage string   `json:"block_message,omitempty"`
	AIMessage    *Message `json:"ai_message,omitempty"`
}

// PollResult carries messages newer than a requested watermark.
type PollResult struct {
	Messages []Message `json:"messages"`
}

// CheckResult is the lightweight update probe: just enough to decide
// whether a full poll is worth issuing.
type CheckResult struct {
	LatestMessageID int64 `json:"latest_message_id"`
	UnreadCount     int   `json:"unread_count"`
}

// LoadResult is a conversation plus its full message sequence.
type LoadResult struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []Message     `json:"messages"`
}
