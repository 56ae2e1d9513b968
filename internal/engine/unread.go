package engine

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// UpdateTransport is the subset of the gateway contract the reconciler
// needs.
type UpdateTransport interface {
	CheckUpdates(ctx context.Context, conversationID string) (*model.CheckResult, error)
	MarkRead(ctx context.Context, conversationID string) error
}

// Indicator is a badge-style counter surface. Implementations must make
// Show and Hide idempotent; a zero count hides the indicator rather than
// rendering "0".
type Indicator interface {
	Show(count int)
	Hide()
}

// IndicatorCap is the largest count rendered verbatim; anything above is
// displayed as "99+".
const IndicatorCap = 99

// FormatCount renders a badge count, capping large values.
func FormatCount(n int) string {
	if n > IndicatorCap {
		return strconv.Itoa(IndicatorCap) + "+"
	}
	return strconv.Itoa(n)
}

type ledgerEntry struct {
	subjectID string
	groupID   string
	unread    int
	latest    int64
}

// Ledger tracks per-conversation unread counts and latest-message-id
// watermarks for one recipient, with per-subject and per-group rollups.
// Watermarks are monotonically non-decreasing; marking read is idempotent.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*ledgerEntry)}
}

// Track registers a conversation's rollup keys.
func (l *Ledger) Track(conversationID, subjectID, groupID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[conversationID]; ok {
		e.subjectID = subjectID
		e.groupID = groupID
		return
	}
	l.entries[conversationID] = &ledgerEntry{subjectID: subjectID, groupID: groupID}
}

// Apply records a check result. It returns true when the latest message id
// advanced past the stored watermark; a stale or repeated id returns false
// and leaves the watermark untouched.
func (l *Ledger) Apply(conversationID string, latest int64, unread int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[conversationID]
	if !ok {
		e = &ledgerEntry{}
		l.entries[conversationID] = e
	}
	if latest <= e.latest {
		return false
	}
	e.latest = latest
	e.unread = unread
	return true
}

// MarkRead zeroes a conversation's unread count. Idempotent; the watermark
// is unaffected.
func (l *Ledger) MarkRead(conversationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[conversationID]; ok {
		e.unread = 0
	}
}

// Latest returns the stored watermark for a conversation.
func (l *Ledger) Latest(conversationID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[conversationID]; ok {
		return e.latest
	}
	return 0
}

// Unread returns a conversation's unread count.
func (l *Ledger) Unread(conversationID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[conversationID]; ok {
		return e.unread
	}
	return 0
}

// Total returns the recipient's total unread count.
func (l *Ledger) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, e := range l.entries {
		total += e.unread
	}
	return total
}

// BySubject returns unread counts rolled up per subject.
func (l *Ledger) BySubject() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for _, e := range l.entries {
		if e.unread > 0 {
			out[e.subjectID] += e.unread
		}
	}
	return out
}

// ByGroup returns unread counts rolled up per care group.
func (l *Ledger) ByGroup() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for _, e := range l.entries {
		if e.unread > 0 {
			out[e.groupID] += e.unread
		}
	}
	return out
}

// Reconciler drives the cheap check → full poll → mark read cycle for one
// recipient's view of a conversation, and fans the resulting counts out to
// every registered indicator.
//
// Mark-read is gated by visibility: while the view is hidden the read call
// is deferred, then issued on the hidden→visible transition.
type Reconciler struct {
	transport UpdateTransport
	store     *Store
	ledger    *Ledger
	log       *logger.Logger

	mu          sync.Mutex
	visible     bool
	pendingRead map[string]bool
	indicators  []Indicator
}

// NewReconciler creates a reconciler over the given store and ledger. The
// view starts visible.
func NewReconciler(t UpdateTransport, store *Store, ledger *Ledger, log *logger.Logger) *Reconciler {
	return &Reconciler{
		transport:   t,
		store:       store,
		ledger:      ledger,
		log:         log,
		visible:     true,
		pendingRead: make(map[string]bool),
	}
}

// AddIndicator registers a badge surface. A conversation may have more
// than one visual counter; all of them are updated together.
func (r *Reconciler) AddIndicator(ind Indicator) {
	r.mu.Lock()
	r.indicators = append(r.indicators, ind)
	r.mu.Unlock()
	r.publish()
}

// Check performs the lightweight update probe. Only when the latest message
// id changed does it trigger the store's full poll and a mark-read; a
// repeat of the known id is a no-op. Errors are logged, never surfaced.
func (r *Reconciler) Check(ctx context.Context, conversationID string) {
	res, err := r.transport.CheckUpdates(ctx, conversationID)
	if err != nil {
		r.log.Warn("update check failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}

	if !r.ledger.Apply(conversationID, res.LatestMessageID, res.UnreadCount) {
		return
	}

	if r.store != nil {
		r.store.Poll(ctx)
	}
	r.markRead(ctx, conversationID)
	r.publish()
}

// SetVisible feeds the host view's visibility signal. Transitioning from
// hidden to visible flushes any deferred mark-reads.
func (r *Reconciler) SetVisible(ctx context.Context, visible bool) {
	r.mu.Lock()
	wasVisible := r.visible
	r.visible = visible
	var flush []string
	if visible && !wasVisible {
		for id := range r.pendingRead {
			flush = append(flush, id)
		}
		r.pendingRead = make(map[string]bool)
	}
	r.mu.Unlock()

	for _, id := range flush {
		r.read(ctx, id)
	}
	if len(flush) > 0 {
		r.publish()
	}
}

// Visible reports the current visibility state.
func (r *Reconciler) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

func (r *Reconciler) markRead(ctx context.Context, conversationID string) {
	r.mu.Lock()
	visible := r.visible
	if !visible {
		r.pendingRead[conversationID] = true
	}
	r.mu.Unlock()

	if visible {
		r.read(ctx, conversationID)
	}
}

func (r *Reconciler) read(ctx context.Context, conversationID string) {
	if err := r.transport.MarkRead(ctx, conversationID); err != nil {
		r.log.Warn("mark read failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	r.ledger.MarkRead(conversationID)
}

func (r *Reconciler) publish() {
	total := r.ledger.Total()
	r.mu.Lock()
	indicators := append([]Indicator(nil), r.indicators...)
	r.mu.Unlock()

	for _, ind := range indicators {
		if total == 0 {
			ind.Hide()
		} else {
			ind.Show(total)
		}
	}
}
