// Package model defines data structures shared by the sync engine and the
// gateway it talks to.
package model

import (
	"time"
)

// RiskLevel is the clinician-assigned risk rating of a conversation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels from low (0) to critical (3). Unknown levels
// rank below low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// Valid reports whether r is a recognized risk level.
func (r RiskLevel) Valid() bool {
	return r.Rank() >= 0
}

// Status is the lifecycle status of a conversation.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusClosed Status = "closed"
)

// Valid reports whether s is a recognized lifecycle status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusPaused || s == StatusClosed
}

// Conversation is a shared thread between one subject, their care group,
// and the assistant. AIEnabled is the single source of truth for whether
// the assistant may respond; disabling it keeps history intact.
type Conversation struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name,omitempty"`
	GroupID     string    `json:"group_id,omitempty"`
	AIEnabled   bool      `json:"ai_enabled"`
	Risk        RiskLevel `json:"risk"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// LastSeen maps a recipient identity to the highest message id that
	// recipient has confirmed reading.
	LastSeen map[string]int64 `json:"last_seen,omitempty"`

	// List-view projections, populated on list reads.
	UnreadCount int      `json:"unread_count,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// CreateConversationRequest is the request to open a new conversation.
type CreateConversationRequest struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
}

// GroupStats aggregates a care group's conversation list for dashboards.
type GroupStats struct {
	Total     int `json:"total"`
	Unread    int `json:"unread"`
	HighRisk  int `json:"high_risk"`
	AIEnabled int `json:"ai_enabled"`
}

// ListResult is the response for listing a scope's conversations.
type ListResult struct {
	Conversations []Conversation `json:"conversations"`
	Stats         GroupStats     `json:"stats"`
}

// DirectoryEntry is one addressable member of the care directory.
type DirectoryEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// Topic is one taggable subject heading.
type Topic struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}
