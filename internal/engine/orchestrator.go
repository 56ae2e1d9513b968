package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// ActionTransport is the subset of the gateway contract the orchestrator
// needs.
type ActionTransport interface {
	ToggleAI(ctx context.Context, conversationID string, enabled bool) (bool, error)
	SetRisk(ctx context.Context, conversationID string, level model.RiskLevel) (model.RiskLevel, error)
	SetStatus(ctx context.Context, conversationID string, status model.Status) (model.Status, error)
	ListConversations(ctx context.Context, groupID string) (*model.ListResult, error)
}

// Orchestrator composes conversation actions across every view that shows
// them: it patches the in-memory conversation and list entry optimistically,
// persists the change, reloads the active conversation view, and refreshes
// the list and aggregate stats for the active scope. All steps run even
// when the mutated conversation is not the active one, because list and
// stats views must reflect changes to any conversation in scope.
//
// Failed persists are logged and leave the optimistic patch in place; the
// next scheduled poll or refresh corrects any drift.
type Orchestrator struct {
	transport ActionTransport
	store     *Store
	log       *logger.Logger

	mu            sync.Mutex
	group         string
	conversations []model.Conversation
	stats         model.GroupStats
}

// NewOrchestrator creates an orchestrator over the active store. The store
// may be nil when no conversation view is mounted (e.g. list-only screens).
func NewOrchestrator(t ActionTransport, store *Store, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		transport: t,
		store:     store,
		log:       log,
	}
}

// SetScope sets the active group/filter scope for list refreshes.
func (o *Orchestrator) SetScope(groupID string) {
	o.mu.Lock()
	o.group = groupID
	o.mu.Unlock()
}

// RefreshList re-fetches the conversation list and aggregate stats for the
// active scope.
func (o *Orchestrator) RefreshList(ctx context.Context) error {
	o.mu.Lock()
	group := o.group
	o.mu.Unlock()

	res, err := o.transport.ListConversations(ctx, group)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.conversations = res.Conversations
	o.stats = res.Stats
	o.mu.Unlock()
	return nil
}

// ToggleAI flips the assistant on or off for a conversation.
func (o *Orchestrator) ToggleAI(ctx context.Context, conversationID string, enabled bool) {
	o.apply(ctx, conversationID,
		func(c *model.Conversation) { c.AIEnabled = enabled },
		func(ctx context.Context) error {
			_, err := o.transport.ToggleAI(ctx, conversationID, enabled)
			return err
		})
}

// SetRisk changes a conversation's risk level.
func (o *Orchestrator) SetRisk(ctx context.Context, conversationID string, level model.RiskLevel) {
	if !level.Valid() {
		return
	}
	o.apply(ctx, conversationID,
		func(c *model.Conversation) { c.Risk = level },
		func(ctx context.Context) error {
			_, err := o.transport.SetRisk(ctx, conversationID, level)
			return err
		})
}

// SetStatus changes a conversation's lifecycle status.
func (o *Orchestrator) SetStatus(ctx context.Context, conversationID string, status model.Status) {
	if !status.Valid() {
		return
	}
	o.apply(ctx, conversationID,
		func(c *model.Conversation) { c.Status = status },
		func(ctx context.Context) error {
			_, err := o.transport.SetStatus(ctx, conversationID, status)
			return err
		})
}

// apply runs the action pipeline: optimistic patch, persist, reload the
// active view, refresh the list. Later steps run regardless of earlier
// failures.
func (o *Orchestrator) apply(ctx context.Context, conversationID string, patch func(*model.Conversation), persist func(context.Context) error) {
	// Patch in-memory state first so every view reflects the change
	// before the persistence call resolves.
	o.mu.Lock()
	for i := range o.conversations {
		if o.conversations[i].ID == conversationID {
			patch(&o.conversations[i])
			break
		}
	}
	o.mu.Unlock()

	if o.store != nil {
		o.store.PatchConversation(func(c *model.Conversation) {
			if c.ID == conversationID {
				patch(c)
			}
		})
	}

	if err := persist(ctx); err != nil {
		// Keep the optimistic patch; the next refresh reconciles.
		o.log.Warn("conversation action persist failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}

	if o.store != nil && o.store.Conversation() != nil {
		if err := o.store.Load(ctx, ""); err != nil {
			o.log.Warn("conversation reload failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		}
	}

	if err := o.RefreshList(ctx); err != nil {
		o.log.Warn("conversation list refresh failed", zap.Error(err))
	}
}

// Conversations returns a copy of the scoped conversation list.
func (o *Orchestrator) Conversations() []model.Conversation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.Conversation(nil), o.conversations...)
}

// Stats returns the aggregate stats for the active scope.
func (o *Orchestrator) Stats() model.GroupStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
