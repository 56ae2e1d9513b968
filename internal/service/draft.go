package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/llm"
	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/internal/natslog"
	"github.com/carebridge/shared-care-platform/pkg/logger"
	"github.com/carebridge/shared-care-platform/pkg/metrics"
)

const draftSystemPrompt = `You are drafting a reply on behalf of a therapist in a shared conversation with their patient. Write in a warm, professional clinical voice. The therapist will review and edit before anything is sent; do not address the therapist, write the reply itself.`

const summarySystemPrompt = `Summarize this patient conversation for the care team: key themes, mood, any risk signals, and open follow-ups. Be factual and concise; do not speculate beyond what was said.`

// ErrDraftNotFound is returned for unknown or already-terminal drafts.
var ErrDraftNotFound = errors.New("draft not found")

// DraftService manages AI reply drafts, summaries, and clinical notes.
// Drafts are created on generate, mutated on send, and never delivered
// without an explicit therapist approval.
type DraftService struct {
	msgLog    natslog.Log
	messages  *MessageService
	llmClient llm.Client
	logger    *logger.Logger

	mu     sync.RWMutex
	drafts map[string]*model.Draft
	notes  map[string][]*model.Note
}

// NewDraftService creates a new draft service.
func NewDraftService(msgLog natslog.Log, messages *MessageService, llmClient llm.Client, log *logger.Logger) *DraftService {
	return &DraftService{
		msgLog:    msgLog,
		messages:  messages,
		llmClient: llmClient,
		logger:    log,
		drafts:    make(map[string]*model.Draft),
		notes:     make(map[string][]*model.Note),
	}
}

// Generate produces a reply draft from the conversation history.
func (s *DraftService) Generate(ctx context.Context, conversationID, authorID string) (*model.DraftResult, error) {
	content, err := s.complete(ctx, conversationID, "draft", draftSystemPrompt)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	draft := &model.Draft{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		AuthorID:       authorID,
		Generated:      content,
		Status:         model.DraftStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	s.drafts[draft.ID] = draft
	s.mu.Unlock()

	return &model.DraftResult{ID: draft.ID, Content: content}, nil
}

// Send delivers an approved draft to the thread as the therapist. The
// content may differ from the generated text; the edit is recorded on the
// draft before it goes terminal.
func (s *DraftService) Send(ctx context.Context, conversationID, draftID string, sender Sender, content string) (*model.SendResult, error) {
	s.mu.Lock()
	draft, exists := s.drafts[draftID]
	if !exists || draft.ConversationID != conversationID || draft.Status != model.DraftStatusDraft {
		s.mu.Unlock()
		return nil, ErrDraftNotFound
	}
	if content != draft.Generated {
		edited := content
		draft.Edited = &edited
	}
	s.mu.Unlock()

	result, err := s.messages.Send(ctx, conversationID, sender, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	draft.Status = model.DraftStatusSent
	draft.UpdatedAt = time.Now()
	s.mu.Unlock()

	metrics.DraftsTotal.WithLabelValues("sent").Inc()
	return result, nil
}

// Discard marks a draft terminal without delivering it.
func (s *DraftService) Discard(ctx context.Context, conversationID, draftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, exists := s.drafts[draftID]
	if !exists || draft.ConversationID != conversationID || draft.Status != model.DraftStatusDraft {
		return ErrDraftNotFound
	}
	draft.Status = model.DraftStatusDiscarded
	draft.UpdatedAt = time.Now()
	metrics.DraftsTotal.WithLabelValues("discarded").Inc()
	return nil
}

// Summarize produces a care-team summary of the conversation.
func (s *DraftService) Summarize(ctx context.Context, conversationID string) (*model.SummaryResult, error) {
	content, err := s.complete(ctx, conversationID, "summary", summarySystemPrompt)
	if err != nil {
		return nil, err
	}
	return &model.SummaryResult{Content: content}, nil
}

// SaveNote persists a clinical note. Notes never reach the subject thread.
func (s *DraftService) SaveNote(ctx context.Context, conversationID, authorID, content string) (*model.NoteResult, error) {
	if content == "" {
		return nil, errors.New("note content is required")
	}
	note := &model.Note{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		AuthorID:       authorID,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	s.mu.Lock()
	s.notes[conversationID] = append(s.notes[conversationID], note)
	s.mu.Unlock()

	s.logger.Info("note saved",
		zap.String("conversation_id", conversationID),
		zap.String("note_id", note.ID))
	return &model.NoteResult{ID: note.ID}, nil
}

// Notes returns a conversation's notes in creation order.
func (s *DraftService) Notes(ctx context.Context, conversationID string) []model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Note, 0, len(s.notes[conversationID]))
	for _, n := range s.notes[conversationID] {
		out = append(out, *n)
	}
	return out
}

func (s *DraftService) complete(ctx context.Context, conversationID, kind, system string) (string, error) {
	if s.llmClient == nil {
		return "", errors.New("LLM features are disabled")
	}

	history, err := s.msgLog.After(ctx, conversationID, 0, 100)
	if err != nil {
		return "", fmt.Errorf("failed to read history: %w", err)
	}

	chat := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role == model.RoleSystem {
			continue
		}
		chat = append(chat, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	if len(chat) == 0 {
		return "", errors.New("conversation has no messages")
	}

	start := time.Now()
	resp, err := s.llmClient.Complete(ctx, &llm.CompletionRequest{
		System:   system,
		Messages: chat,
	})
	if err != nil {
		metrics.RecordLLMRequest("", kind, "error", time.Since(start).Seconds(), 0, 0)
		return "", fmt.Errorf("generation failed: %w", err)
	}
	metrics.RecordLLMRequest(resp.Model, kind, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	return resp.Content, nil
}
