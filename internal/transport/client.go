// Package transport defines the gateway contract the sync engine consumes
// and its JSON-over-HTTP implementation.
package transport

import (
	"context"

	"github.com/carebridge/shared-care-platform/internal/model"
)

// Client is the complete gateway contract: the four conversation-bearing
// operations (load, send, poll, check), the action endpoints, and the
// draft/summary/note endpoints. The engine's components each depend on a
// narrow subset; this interface is what a concrete transport satisfies.
type Client interface {
	Load(ctx context.Context, conversationID string) (*model.LoadResult, error)
	Send(ctx context.Context, conversationID, content string) (*model.SendResult, error)
	PollMessages(ctx context.Context, conversationID string, afterID int64) ([]model.Message, error)
	CheckUpdates(ctx context.Context, conversationID string) (*model.CheckResult, error)
	MarkRead(ctx context.Context, conversationID string) error

	ListConversations(ctx context.Context, groupID string) (*model.ListResult, error)
	ToggleAI(ctx context.Context, conversationID string, enabled bool) (bool, error)
	SetRisk(ctx context.Context, conversationID string, level model.RiskLevel) (model.RiskLevel, error)
	SetStatus(ctx context.Context, conversationID string, status model.Status) (model.Status, error)

	GenerateDraft(ctx context.Context, conversationID string) (*model.DraftResult, error)
	SendDraft(ctx context.Context, conversationID, draftID, content string) (*model.SendResult, error)
	GenerateSummary(ctx context.Context, conversationID string) (*model.SummaryResult, error)
	SaveNote(ctx context.Context, conversationID, content string) (*model.NoteResult, error)

	Directory(ctx context.Context, query string) ([]model.DirectoryEntry, error)
}
