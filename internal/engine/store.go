package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// MessageTransport is the subset of the gateway contract the store needs.
type MessageTransport interface {
	Load(ctx context.Context, conversationID string) (*model.LoadResult, error)
	Send(ctx context.Context, conversationID, content string) (*model.SendResult, error)
	PollMessages(ctx context.Context, conversationID string, afterID int64) ([]model.Message, error)
}

// Store owns one conversation's local state: the conversation record, the
// ordered message sequence, and the poll watermark. Sequence order is
// authoritative; merges are keyed by message id and duplicates are dropped,
// never replaced.
//
// The busy flag suppresses polling while a load or send is in flight, so a
// poll can never race a load and duplicate messages, and a user's own
// optimistic message can never be clobbered by a concurrent merge.
type Store struct {
	transport MessageTransport
	log       *logger.Logger

	// Identity the store sends as.
	sender     model.SenderClass
	senderID   string
	senderName string

	mu         sync.Mutex
	conv       *model.Conversation
	messages   []model.Message
	seen       map[int64]struct{}
	watermark  int64
	nextTempID int64
	loading    bool
	sending    bool
	busy       bool
	lastErr    error
}

// NewStore creates a store sending as the given identity.
func NewStore(t MessageTransport, sender model.SenderClass, senderID, senderName string, log *logger.Logger) *Store {
	return &Store{
		transport:  t,
		log:        log,
		sender:     sender,
		senderID:   senderID,
		senderName: senderName,
		seen:       make(map[int64]struct{}),
		nextTempID: -1,
	}
}

// Load fetches the conversation and its full message sequence, replacing
// local state wholesale. An empty id reloads the current conversation (or
// asks the gateway to resolve the caller's own). On failure the error field
// is set and existing state is left untouched.
func (s *Store) Load(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if conversationID == "" && s.conv != nil {
		conversationID = s.conv.ID
	}
	s.busy = true
	s.loading = true
	s.mu.Unlock()

	res, err := s.transport.Load(ctx, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.loading = false

	if err != nil {
		s.lastErr = err
		return err
	}

	s.conv = res.Conversation
	s.messages = append([]model.Message(nil), res.Messages...)
	s.seen = make(map[int64]struct{}, len(res.Messages))
	s.watermark = 0
	for _, m := range res.Messages {
		if m.ID > 0 {
			s.seen[m.ID] = struct{}{}
			if m.ID > s.watermark {
				s.watermark = m.ID
			}
		}
	}
	s.lastErr = nil
	return nil
}

// Send issues an optimistic send. Empty content or a missing conversation
// is a local no-op, not an error. A blocked response removes the optimistic
// message and substitutes a system notice with the server's explanation; a
// transport failure removes the optimistic message and sets the error
// field. No automatic retry either way.
func (s *Store) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	s.mu.Lock()
	if s.conv == nil {
		s.mu.Unlock()
		return nil
	}
	conversationID := s.conv.ID
	temp := model.Message{
		ID:             s.nextTempID,
		ConversationID: conversationID,
		Role:           model.RoleFor(s.sender),
		Sender:         s.sender,
		SenderID:       s.senderID,
		SenderName:     s.senderName,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	s.nextTempID--
	s.messages = append(s.messages, temp)
	s.busy = true
	s.sending = true
	s.mu.Unlock()

	res, err := s.transport.Send(ctx, conversationID, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.sending = false

	if err != nil {
		s.removeLocked(temp.ID)
		s.lastErr = err
		return err
	}

	if res.Blocked {
		s.removeLocked(temp.ID)
		notice := model.Message{
			ID:             s.nextTempID,
			ConversationID: conversationID,
			Role:           model.RoleSystem,
			Sender:         model.SenderSystem,
			Content:        res.BlockMessage,
			CreatedAt:      time.Now(),
		}
		s.nextTempID--
		s.messages = append(s.messages, notice)
		return nil
	}

	// Acknowledged: swap the temporary id for the server id in place.
	for i := range s.messages {
		if s.messages[i].ID == temp.ID {
			s.messages[i].ID = res.MessageID
			break
		}
	}
	s.seen[res.MessageID] = struct{}{}
	if res.MessageID > s.watermark {
		s.watermark = res.MessageID
	}

	if ai := res.AIMessage; ai != nil {
		if _, dup := s.seen[ai.ID]; !dup {
			s.messages = append(s.messages, *ai)
			s.seen[ai.ID] = struct{}{}
			if ai.ID > s.watermark {
				s.watermark = ai.ID
			}
		}
	}
	s.lastErr = nil
	return nil
}

// Poll fetches messages past the watermark and merges any ids not already
// present. A poll with no conversation, or while a load or send is in
// flight, is a no-op. Poll failures are logged, never surfaced to the
// error field.
func (s *Store) Poll(ctx context.Context) {
	s.mu.Lock()
	if s.conv == nil || s.busy {
		s.mu.Unlock()
		return
	}
	conversationID := s.conv.ID
	after := s.watermark
	s.busy = true
	s.mu.Unlock()

	msgs, err := s.transport.PollMessages(ctx, conversationID, after)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false

	if err != nil {
		s.log.Warn("message poll failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}

	s.mergeLocked(msgs)
}

func (s *Store) mergeLocked(msgs []model.Message) {
	for _, m := range msgs {
		if m.ID <= 0 {
			continue
		}
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		s.messages = append(s.messages, m)
		s.seen[m.ID] = struct{}{}
		if m.ID > s.watermark {
			s.watermark = m.ID
		}
	}
}

func (s *Store) removeLocked(id int64) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// SetConversation primes the store with a conversation record without
// loading messages, so Send has a target before the first Load completes.
func (s *Store) SetConversation(conv *model.Conversation) {
	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()
}

// PatchConversation applies fn to the current conversation, if any.
func (s *Store) PatchConversation(fn func(*model.Conversation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv != nil {
		fn(s.conv)
	}
}

// Conversation returns a copy of the current conversation, or nil.
func (s *Store) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	c := *s.conv
	return &c
}

// Messages returns a copy of the message sequence in local order.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

// Watermark returns the highest confirmed message id.
func (s *Store) Watermark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// Busy reports whether a load or send is in flight.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Sending reports whether a send is in flight.
func (s *Store) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// LastError returns the last user-visible failure, if any.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError resets the user-visible error state.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}
