// Package service provides the gateway's business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/internal/natslog"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// ErrNotFound is returned for unknown or out-of-scope conversations.
var ErrNotFound = errors.New("conversation not found")

// ConversationService handles conversation state: the registry, the
// per-recipient read watermarks, and the scoped list/stats projections.
// All writes to a conversation funnel through this service.
type ConversationService struct {
	msgLog natslog.Log
	logger *logger.Logger

	// In-memory registry (would be replaced with a database in production).
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	bySubject     map[string]string
}

// NewConversationService creates a new conversation service.
func NewConversationService(msgLog natslog.Log, log *logger.Logger) *ConversationService {
	return &ConversationService{
		msgLog:        msgLog,
		logger:        log,
		conversations: make(map[string]*model.Conversation),
		bySubject:     make(map[string]string),
	}
}

// Create opens a conversation for a subject. The assistant starts enabled,
// risk starts low, status starts active.
func (s *ConversationService) Create(ctx context.Context, req *model.CreateConversationRequest) (*model.Conversation, error) {
	if req.SubjectID == "" {
		return nil, errors.New("subject id is required")
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:          uuid.Must(uuid.NewV7()).String(),
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		GroupID:     req.GroupID,
		AIEnabled:   true,
		Risk:        model.RiskLow,
		Status:      model.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeen:    make(map[string]int64),
	}

	s.mu.Lock()
	if _, exists := s.bySubject[req.SubjectID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("subject %s already has a conversation", req.SubjectID)
	}
	s.conversations[conv.ID] = conv
	s.bySubject[req.SubjectID] = conv.ID
	s.mu.Unlock()

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("group_id", req.GroupID))

	return conv, nil
}

// Get retrieves a conversation by id.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, exists := s.conversations[conversationID]
	if !exists {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

// GetBySubject resolves a subject's own conversation.
func (s *ConversationService) GetBySubject(ctx context.Context, subjectID string) (*model.Conversation, error) {
	s.mu.RLock()
	id, exists := s.bySubject[subjectID]
	s.mu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// List returns the conversations in scope, newest-updated first, with the
// recipient's unread counts and aggregate stats attached.
func (s *ConversationService) List(ctx context.Context, groupID, recipientID string) (*model.ListResult, error) {
	s.mu.RLock()
	var convs []model.Conversation
	for _, conv := range s.conversations {
		if groupID != "" && conv.GroupID != groupID {
			continue
		}
		convs = append(convs, *conv)
	}
	s.mu.RUnlock()

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})

	var stats model.GroupStats
	for i := range convs {
		unread, err := s.unreadFor(ctx, &convs[i], recipientID)
		if err != nil {
			s.logger.Warn("unread count failed",
				zap.String("conversation_id", convs[i].ID),
				zap.Error(err))
			unread = 0
		}
		convs[i].UnreadCount = unread

		stats.Total++
		stats.Unread += unread
		if convs[i].Risk.Rank() >= model.RiskHigh.Rank() {
			stats.HighRisk++
		}
		if convs[i].AIEnabled {
			stats.AIEnabled++
		}
	}

	return &model.ListResult{Conversations: convs, Stats: stats}, nil
}

// ToggleAI flips the assistant flag and returns the new value. History is
// untouched.
func (s *ConversationService) ToggleAI(ctx context.Context, conversationID string, enabled bool) (bool, error) {
	conv, err := s.mutate(conversationID, func(c *model.Conversation) {
		c.AIEnabled = enabled
	})
	if err != nil {
		return false, err
	}
	return conv.AIEnabled, nil
}

// SetRisk changes the risk level and returns the new value.
func (s *ConversationService) SetRisk(ctx context.Context, conversationID string, level model.RiskLevel) (model.RiskLevel, error) {
	if !level.Valid() {
		return "", fmt.Errorf("invalid risk level %q", level)
	}
	conv, err := s.mutate(conversationID, func(c *model.Conversation) {
		c.Risk = level
	})
	if err != nil {
		return "", err
	}
	return conv.Risk, nil
}

// SetStatus changes the lifecycle status and returns the new value.
func (s *ConversationService) SetStatus(ctx context.Context, conversationID string, status model.Status) (model.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q", status)
	}
	conv, err := s.mutate(conversationID, func(c *model.Conversation) {
		c.Status = status
	})
	if err != nil {
		return "", err
	}
	return conv.Status, nil
}

// UpdateLastMessage records the newest message on the list projection.
func (s *ConversationService) UpdateLastMessage(ctx context.Context, conversationID string, msg *model.Message) error {
	_, err := s.mutate(conversationID, func(c *model.Conversation) {
		m := *msg
		c.LastMessage = &m
	})
	return err
}

// MarkRead advances the recipient's read watermark to the newest message.
// Idempotent; the watermark never regresses.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, recipientID string) error {
	latest, err := s.msgLog.Latest(ctx, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, exists := s.conversations[conversationID]
	if !exists {
		return ErrNotFound
	}
	if conv.LastSeen == nil {
		conv.LastSeen = make(map[string]int64)
	}
	if latest > conv.LastSeen[recipientID] {
		conv.LastSeen[recipientID] = latest
	}
	return nil
}

// Check returns the lightweight update probe for one recipient.
func (s *ConversationService) Check(ctx context.Context, conversationID, recipientID string) (*model.CheckResult, error) {
	s.mu.RLock()
	conv, exists := s.conversations[conversationID]
	if !exists {
		s.mu.RUnlock()
		return nil, ErrNotFound
	}
	c := *conv
	s.mu.RUnlock()

	latest, err := s.msgLog.Latest(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	unread, err := s.unreadFor(ctx, &c, recipientID)
	if err != nil {
		return nil, err
	}

	return &model.CheckResult{
		LatestMessageID: latest,
		UnreadCount:     unread,
	}, nil
}

func (s *ConversationService) unreadFor(ctx context.Context, conv *model.Conversation, recipientID string) (int, error) {
	var seen int64
	if conv.LastSeen != nil {
		seen = conv.LastSeen[recipientID]
	}
	msgs, err := s.msgLog.After(ctx, conv.ID, seen, 0)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, m := range msgs {
		if m.SenderID != recipientID {
			unread++
		}
	}
	return unread, nil
}

func (s *ConversationService) mutate(conversationID string, fn func(*model.Conversation)) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, exists := s.conversations[conversationID]
	if !exists {
		return nil, ErrNotFound
	}
	fn(conv)
	conv.UpdatedAt = time.Now()
	c := *conv
	return &c, nil
}
