package engine

import (
	"context"
	"sync"

	"github.com/carebridge/shared-care-platform/internal/model"
)

// fakeGateway is a configurable in-test stand-in for the gateway transport.
// Each method delegates to the matching func field and counts calls.
type fakeGateway struct {
	mu sync.Mutex

	loadFunc  func(ctx context.Context, conversationID string) (*model.LoadResult, error)
	sendFunc  func(ctx context.Context, conversationID, content string) (*model.SendResult, error)
	pollFunc  func(ctx context.Context, conversationID string, afterID int64) ([]model.Message, error)
	checkFunc func(ctx context.Context, conversationID string) (*model.CheckResult, error)
	readFunc  func(ctx context.Context, conversationID string) error
	listFunc  func(ctx context.Context, groupID string) (*model.ListResult, error)

	toggleFunc func(ctx context.Context, conversationID string, enabled bool) (bool, error)
	riskFunc   func(ctx context.Context, conversationID string, level model.RiskLevel) (model.RiskLevel, error)
	statusFunc func(ctx context.Context, conversationID string, status model.Status) (model.Status, error)

	draftFunc     func(ctx context.Context, conversationID string) (*model.DraftResult, error)
	sendDraftFunc func(ctx context.Context, conversationID, draftID, content string) (*model.SendResult, error)
	summaryFunc   func(ctx context.Context, conversationID string) (*model.SummaryResult, error)
	noteFunc      func(ctx context.Context, conversationID, content string) (*model.NoteResult, error)

	directoryFunc func(ctx context.Context, query string) ([]model.DirectoryEntry, error)

	loadCalls      int
	sendCalls      int
	pollCalls      int
	checkCalls     int
	readCalls      int
	listCalls      int
	directoryCalls int
}

func (f *fakeGateway) count(n *int) {
	f.mu.Lock()
	*n++
	f.mu.Unlock()
}

func (f *fakeGateway) calls(n *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *n
}

func (f *fakeGateway) Load(ctx context.Context, conversationID string) (*model.LoadResult, error) {
	f.count(&f.loadCalls)
	return f.loadFunc(ctx, conversationID)
}

func (f *fakeGateway) Send(ctx context.Context, conversationID, content string) (*model.SendResult, error) {
	f.count(&f.sendCalls)
	return f.sendFunc(ctx, conversationID, content)
}

func (f *fakeGateway) PollMessages(ctx context.Context, conversationID string, afterID int64) ([]model.Message, error) {
	f.count(&f.pollCalls)
	return f.pollFunc(ctx, conversationID, afterID)
}

func (f *fakeGateway) CheckUpdates(ctx context.Context, conversationID string) (*model.CheckResult, error) {
	f.count(&f.checkCalls)
	return f.checkFunc(ctx, conversationID)
}

func (f *fakeGateway) MarkRead(ctx context.Context, conversationID string) error {
	f.count(&f.readCalls)
	if f.readFunc == nil {
		return nil
	}
	return f.readFunc(ctx, conversationID)
}

func (f *fakeGateway) ListConversations(ctx context.Context, groupID string) (*model.ListResult, error) {
	f.count(&f.listCalls)
	return f.listFunc(ctx, groupID)
}

func (f *fakeGateway) ToggleAI(ctx context.Context, conversationID string, enabled bool) (bool, error) {
	return f.toggleFunc(ctx, conversationID, enabled)
}

func (f *fakeGateway) SetRisk(ctx context.Context, conversationID string, level model.RiskLevel) (model.RiskLevel, error) {
	return f.riskFunc(ctx, conversationID, level)
}

func (f *fakeGateway) SetStatus(ctx context.Context, conversationID string, status model.Status) (model.Status, error) {
	return f.statusFunc(ctx, conversationID, status)
}

func (f *fakeGateway) GenerateDraft(ctx context.Context, conversationID string) (*model.DraftResult, error) {
	return f.draftFunc(ctx, conversationID)
}

func (f *fakeGateway) SendDraft(ctx context.Context, conversationID, draftID, content string) (*model.SendResult, error) {
	return f.sendDraftFunc(ctx, conversationID, draftID, content)
}

func (f *fakeGateway) GenerateSummary(ctx context.Context, conversationID string) (*model.SummaryResult, error) {
	return f.summaryFunc(ctx, conversationID)
}

func (f *fakeGateway) SaveNote(ctx context.Context, conversationID, content string) (*model.NoteResult, error) {
	return f.noteFunc(ctx, conversationID, content)
}

func (f *fakeGateway) Directory(ctx context.Context, query string) ([]model.DirectoryEntry, error) {
	f.count(&f.directoryCalls)
	return f.directoryFunc(ctx, query)
}

// fakeIndicator records the badge updates it receives.
type fakeIndicator struct {
	mu     sync.Mutex
	shown  []int
	hidden int
}

func (i *fakeIndicator) Show(count int) {
	i.mu.Lock()
	i.shown = append(i.shown, count)
	i.mu.Unlock()
}

func (i *fakeIndicator) Hide() {
	i.mu.Lock()
	i.hidden++
	i.mu.Unlock()
}

func (i *fakeIndicator) lastShown() (int, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.shown) == 0 {
		return 0, false
	}
	return i.shown[len(i.shown)-1], true
}

func (i *fakeIndicator) hideCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hidden
}
