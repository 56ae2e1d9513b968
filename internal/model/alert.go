package model

import (
	"time"
)

// Urgency grades how quickly an alert needs clinician attention.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// AlertReason identifies why an alert was raised.
type AlertReason string

const (
	ReasonMention AlertReason = "mention"
	ReasonTopic   AlertReason = "topic"
)

// Alert records that a subject's message matched a recognized trigger.
// Alerts are written once by the message path and only mutated by
// acknowledgment.
type Alert struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	MessageID      int64       `json:"message_id"`
	Reason         AlertReason `json:"reason"`
	Target         string      `json:"target,omitempty"`
	Urgency        Urgency     `json:"urgency"`
	CreatedAt      time.Time   `json:"created_at"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string      `json:"acknowledged_by,omitempty"`
}
