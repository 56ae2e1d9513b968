package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
	"github.com/carebridge/shared-care-platform/pkg/metrics"
)

var triggerTokenPattern = regexp.MustCompile(`(?:^|\s)([@#])([\p{L}\p{N}_-]+)`)

// AlertService records mention-derived alerts. Alerts are written once by
// the message path; the only later mutation is acknowledgment.
type AlertService struct {
	logger *logger.Logger

	mu     sync.RWMutex
	alerts map[string][]*model.Alert
}

// NewAlertService creates a new alert service.
func NewAlertService(log *logger.Logger) *AlertService {
	return &AlertService{
		logger: log,
		alerts: make(map[string][]*model.Alert),
	}
}

// ScanMessage inspects a subject message for recognized triggers and
// records one alert per hit. `#emergency` and `#urgent` escalate the
// urgency; everything else is normal.
func (s *AlertService) ScanMessage(ctx context.Context, msg *model.Message) []model.Alert {
	matches := triggerTokenPattern.FindAllStringSubmatch(msg.Content, -1)
	if len(matches) == 0 {
		return nil
	}

	now := time.Now()
	var created []model.Alert
	for _, m := range matches {
		kind, token := m[1], m[2]

		alert := model.Alert{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			Target:         token,
			Urgency:        model.UrgencyNormal,
			CreatedAt:      now,
		}
		switch kind {
		case "@":
			alert.Reason = model.ReasonMention
		case "#":
			alert.Reason = model.ReasonTopic
			switch strings.ToLower(token) {
			case "emergency":
				alert.Urgency = model.UrgencyEmergency
			case "urgent":
				alert.Urgency = model.UrgencyUrgent
			}
		}

		s.mu.Lock()
		a := alert
		s.alerts[msg.ConversationID] = append(s.alerts[msg.ConversationID], &a)
		s.mu.Unlock()

		metrics.AlertsTotal.WithLabelValues(string(alert.Urgency)).Inc()
		created = append(created, alert)
	}

	if len(created) > 0 {
		s.logger.Info("alerts raised",
			zap.String("conversation_id", msg.ConversationID),
			zap.Int("count", len(created)))
	}
	return created
}

// List returns a conversation's alerts, newest first. With unackedOnly,
// acknowledged alerts are filtered out.
func (s *AlertService) List(ctx context.Context, conversationID string, unackedOnly bool) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Alert
	for _, a := range s.alerts[conversationID] {
		if unackedOnly && a.AcknowledgedAt != nil {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Acknowledge marks an alert as handled. Idempotent; the first
// acknowledger wins.
func (s *AlertService) Acknowledge(ctx context.Context, conversationID, alertID, byID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.alerts[conversationID] {
		if a.ID != alertID {
			continue
		}
		if a.AcknowledgedAt == nil {
			now := time.Now()
			a.AcknowledgedAt = &now
			a.AcknowledgedBy = byID
		}
		return true
	}
	return false
}
