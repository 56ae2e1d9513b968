package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/llm"
	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/internal/natslog"
	"github.com/carebridge/shared-care-platform/pkg/logger"
	"github.com/carebridge/shared-care-platform/pkg/metrics"
)

const assistantSystemPrompt = `You are a supportive assistant in a shared conversation between a patient and their care team. Respond with warmth and care. Never give medical advice, diagnoses, or crisis counseling; encourage the patient to raise anything serious with their care team. Keep responses short and plain.`

// Sender identifies who is issuing a message operation.
type Sender struct {
	ID    string
	Name  string
	Class model.SenderClass
}

// MessageService handles the send pipeline: screening, log append, alert
// scanning, and the optional assistant reply.
type MessageService struct {
	msgLog       natslog.Log
	conversation *ConversationService
	alerts       *AlertService
	screener     *Screener
	llmClient    llm.Client
	logger       *logger.Logger
}

// NewMessageService creates a new message service. llmClient may be nil,
// which disables assistant replies regardless of the conversation flag.
func NewMessageService(
	msgLog natslog.Log,
	conversation *ConversationService,
	alerts *AlertService,
	screener *Screener,
	llmClient llm.Client,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		msgLog:       msgLog,
		conversation: conversation,
		alerts:       alerts,
		screener:     screener,
		llmClient:    llmClient,
		logger:       log,
	}
}

// Send runs the full send pipeline. A screened-out message is a successful
// send with the blocked flag set: nothing is appended to the log. An
// assistant reply, when generated, rides along in the same result so the
// client can merge both in one step.
func (s *MessageService) Send(ctx context.Context, conversationID string, sender Sender, content string) (*model.SendResult, error) {
	conv, err := s.conversation.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.StatusClosed {
		return nil, fmt.Errorf("conversation %s is closed", conversationID)
	}

	if blocked, notice := s.screener.Screen(content); blocked {
		metrics.SendsBlockedTotal.Inc()
		s.logger.Info("message blocked by content screen",
			zap.String("conversation_id", conversationID),
			zap.String("sender", string(sender.Class)))
		return &model.SendResult{Blocked: true, BlockMessage: notice}, nil
	}

	msg := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleFor(sender.Class),
		Sender:         sender.Class,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if _, err := s.msgLog.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	s.conversation.UpdateLastMessage(ctx, conversationID, msg)
	metrics.MessagesTotal.WithLabelValues(string(sender.Class)).Inc()

	// The sender has trivially seen their own message.
	if err := s.conversation.MarkRead(ctx, conversationID, sender.ID); err != nil {
		s.logger.Warn("failed to advance sender watermark", zap.Error(err))
	}

	result := &model.SendResult{MessageID: msg.ID}

	if sender.Class == model.SenderSubject {
		s.alerts.ScanMessage(ctx, msg)

		if conv.AIEnabled && conv.Status == model.StatusActive {
			if reply := s.assistantReply(ctx, conversationID); reply != nil {
				result.AIMessage = reply
			}
		}
	}

	return result, nil
}

// Poll returns messages past the given watermark.
func (s *MessageService) Poll(ctx context.Context, conversationID string, afterID int64, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	msgs, err := s.msgLog.After(ctx, conversationID, afterID, limit)
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(msgs) == 0 {
		metrics.PollsTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.PollsTotal.WithLabelValues("messages").Inc()
	}
	return msgs, nil
}

// Load returns the conversation and its full message sequence.
func (s *MessageService) Load(ctx context.Context, conversationID string) (*model.LoadResult, error) {
	conv, err := s.conversation.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.msgLog.After(ctx, conversationID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return &model.LoadResult{Conversation: conv, Messages: msgs}, nil
}

// assistantReply generates and appends the assistant's response. Failures
// are logged and swallowed: the subject's message is already delivered and
// the assistant can catch up on a later turn.
func (s *MessageService) assistantReply(ctx context.Context, conversationID string) *model.Message {
	if s.llmClient == nil {
		return nil
	}

	history, err := s.msgLog.After(ctx, conversationID, 0, 50)
	if err != nil {
		s.logger.Warn("failed to read history for assistant reply", zap.Error(err))
		return nil
	}

	chat := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role == model.RoleSystem {
			continue
		}
		chat = append(chat, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	start := time.Now()
	resp, err := s.llmClient.Complete(ctx, &llm.CompletionRequest{
		System:   assistantSystemPrompt,
		Messages: chat,
	})
	if err != nil {
		metrics.RecordLLMRequest("", "reply", "error", time.Since(start).Seconds(), 0, 0)
		s.logger.Warn("assistant reply failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return nil
	}
	metrics.RecordLLMRequest(resp.Model, "reply", "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	reply := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Sender:         model.SenderAI,
		SenderName:     "Assistant",
		Content:        resp.Content,
		CreatedAt:      time.Now(),
	}
	if _, err := s.msgLog.Append(ctx, reply); err != nil {
		s.logger.Warn("failed to append assistant reply", zap.Error(err))
		return nil
	}
	s.conversation.UpdateLastMessage(ctx, conversationID, reply)
	metrics.MessagesTotal.WithLabelValues(string(model.SenderAI)).Inc()
	return reply
}
