package model

import (
	"time"
)

// DraftStatus is the lifecycle status of an AI-generated draft.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusSent      DraftStatus = "sent"
	DraftStatusDiscarded DraftStatus = "discarded"
)

// Draft is an AI-generated, therapist-editable message awaiting explicit
// approval. Edited stays nil until the first therapist edit.
type Draft struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	AuthorID       string      `json:"author_id"`
	Generated      string      `json:"generated"`
	Edited         *string     `json:"edited,omitempty"`
	Status         DraftStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// DraftResult is returned when a draft is generated.
type DraftResult struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// SummaryResult is a generated conversation summary.
type SummaryResult struct {
	Content string `json:"content"`
}

// NoteResult identifies a persisted clinical note.
type NoteResult struct {
	ID string `json:"id"`
}

// Note is a clinician-authored record attached to a conversation. Notes
// never appear in the subject-facing thread.
type Note struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AuthorID       string    `json:"author_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
