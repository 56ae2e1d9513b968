// Package natslog provides the append-only conversation log: an interface
// plus a NATS JetStream implementation and an in-memory implementation.
package natslog

import (
	"context"
	"sort"
	"sync"

	"github.com/carebridge/shared-care-platform/internal/model"
)

// Log is the append-only message store for conversations. Append assigns
// the message's id (a positive, per-log monotonically increasing sequence);
// ordering of reads follows append order.
type Log interface {
	// Append stores the message and returns its assigned id.
	Append(ctx context.Context, msg *model.Message) (int64, error)

	// After returns up to limit messages with ids greater than afterID,
	// in append order. afterID 0 reads from the start.
	After(ctx context.Context, conversationID string, afterID int64, limit int) ([]model.Message, error)

	// Latest returns the id of the newest message, or 0 when empty.
	Latest(ctx context.Context, conversationID string) (int64, error)

	// CountAfter returns how many messages have ids greater than afterID.
	CountAfter(ctx context.Context, conversationID string, afterID int64) (int, error)
}

// MemoryLog is an in-memory Log used by tests and single-node deployments.
type MemoryLog struct {
	mu   sync.RWMutex
	seq  int64
	msgs map[string][]model.Message
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{msgs: make(map[string][]model.Message)}
}

// Append stores the message and assigns the next sequence id.
func (l *MemoryLog) Append(ctx context.Context, msg *model.Message) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	msg.ID = l.seq
	l.msgs[msg.ConversationID] = append(l.msgs[msg.ConversationID], *msg)
	return msg.ID, nil
}

// After returns messages past afterID in append order.
func (l *MemoryLog) After(ctx context.Context, conversationID string, afterID int64, limit int) ([]model.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	msgs := l.msgs[conversationID]
	// Append order and id order coincide here; find the first id past the
	// watermark.
	start := sort.Search(len(msgs), func(i int) bool { return msgs[i].ID > afterID })

	out := msgs[start:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]model.Message(nil), out...), nil
}

// Latest returns the newest message id for a conversation.
func (l *MemoryLog) Latest(ctx context.Context, conversationID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs := l.msgs[conversationID]
	if len(msgs) == 0 {
		return 0, nil
	}
	return msgs[len(msgs)-1].ID, nil
}

// CountAfter counts messages past afterID.
func (l *MemoryLog) CountAfter(ctx context.Context, conversationID string, afterID int64) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs := l.msgs[conversationID]
	start := sort.Search(len(msgs), func(i int) bool { return msgs[i].ID > afterID })
	return len(msgs) - start, nil
}
