package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// WorkflowState is the lifecycle state of a generation workflow.
type WorkflowState string

const (
	WorkflowIdle       WorkflowState = "idle"
	WorkflowGenerating WorkflowState = "generating"
	WorkflowReady      WorkflowState = "ready"
	WorkflowError      WorkflowState = "error"
)

// ErrWorkflowState is returned when an operation is invalid in the current
// state.
var ErrWorkflowState = errors.New("operation not valid in current workflow state")

// GenerateFunc produces content for a workflow. The returned id, when
// non-empty, identifies the persisted server-side record (e.g. a draft).
type GenerateFunc func(ctx context.Context) (id, content string, err error)

// Workflow is the finite-state controller shared by the draft and summary
// flows: idle → generating → {ready | error}. Regenerating snapshots the
// current edited content onto an undo stack; terminal transitions (send,
// save, discard) reset to idle and clear the stack. The editor-open hook
// fires at the start of generation so the host shows progress immediately.
//
// Content is always plain text, decoupled from any rich-text preview.
type Workflow struct {
	generate GenerateFunc
	onOpen   func()
	log      *logger.Logger

	mu       sync.Mutex
	state    WorkflowState
	recordID string
	content  string
	undo     []string
	lastErr  error
}

// NewWorkflow creates an idle workflow. onOpen may be nil.
func NewWorkflow(generate GenerateFunc, onOpen func(), log *logger.Logger) *Workflow {
	return &Workflow{
		generate: generate,
		onOpen:   onOpen,
		log:      log,
		state:    WorkflowIdle,
	}
}

// Generate starts the workflow from idle.
func (w *Workflow) Generate(ctx context.Context) error {
	w.mu.Lock()
	if w.state != WorkflowIdle {
		w.mu.Unlock()
		return ErrWorkflowState
	}
	w.mu.Unlock()
	return w.run(ctx)
}

// Regenerate pushes the current edited content onto the undo stack and
// generates again. Only valid from ready.
func (w *Workflow) Regenerate(ctx context.Context) error {
	w.mu.Lock()
	if w.state != WorkflowReady {
		w.mu.Unlock()
		return ErrWorkflowState
	}
	w.undo = append(w.undo, w.content)
	w.mu.Unlock()
	return w.run(ctx)
}

// Retry re-issues generation after a failure. Only valid from error.
func (w *Workflow) Retry(ctx context.Context) error {
	w.mu.Lock()
	if w.state != WorkflowError {
		w.mu.Unlock()
		return ErrWorkflowState
	}
	w.mu.Unlock()
	return w.run(ctx)
}

func (w *Workflow) run(ctx context.Context) error {
	w.mu.Lock()
	w.state = WorkflowGenerating
	w.lastErr = nil
	open := w.onOpen
	w.mu.Unlock()

	// Open the editor before the first response arrives.
	if open != nil {
		open()
	}

	id, content, err := w.generate(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = WorkflowError
		w.lastErr = err
		return err
	}
	w.state = WorkflowReady
	if id != "" {
		w.recordID = id
	}
	w.content = content
	return nil
}

// Undo pops the most recent pre-regeneration snapshot back into the
// editable content. A no-op when the stack is empty; the state is
// unchanged either way.
func (w *Workflow) Undo() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.undo) == 0 {
		return
	}
	w.content = w.undo[len(w.undo)-1]
	w.undo = w.undo[:len(w.undo)-1]
}

// SetContent records a manual edit.
func (w *Workflow) SetContent(content string) {
	w.mu.Lock()
	w.content = content
	w.mu.Unlock()
}

// Complete runs the terminal persist action (send, save-as-note) with the
// current content. On success the workflow resets to idle and the undo
// stack is cleared; on failure it stays ready so the user can retry or
// discard.
func (w *Workflow) Complete(ctx context.Context, persist func(ctx context.Context, recordID, content string) error) error {
	w.mu.Lock()
	if w.state != WorkflowReady {
		w.mu.Unlock()
		return ErrWorkflowState
	}
	recordID := w.recordID
	content := w.content
	w.mu.Unlock()

	if err := persist(ctx, recordID, content); err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return err
	}

	w.reset()
	return nil
}

// Discard abandons the workflow without persistence and resets to idle.
func (w *Workflow) Discard() {
	w.reset()
}

func (w *Workflow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = WorkflowIdle
	w.recordID = ""
	w.content = ""
	w.undo = nil
	w.lastErr = nil
}

// State returns the current workflow state.
func (w *Workflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Content returns the current editable content.
func (w *Workflow) Content() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.content
}

// CanUndo reports whether an undo snapshot is available.
func (w *Workflow) CanUndo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.undo) > 0
}

// Err returns the last generation or persist failure.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// DraftTransport is the subset of the gateway contract the draft and
// summary workflows need.
type DraftTransport interface {
	GenerateDraft(ctx context.Context, conversationID string) (*model.DraftResult, error)
	SendDraft(ctx context.Context, conversationID, draftID, content string) (*model.SendResult, error)
	GenerateSummary(ctx context.Context, conversationID string) (*model.SummaryResult, error)
	SaveNote(ctx context.Context, conversationID, content string) (*model.NoteResult, error)
}

// DraftController is the AI reply-drafting workflow for one conversation.
type DraftController struct {
	*Workflow
	transport DraftTransport
	convID    string
}

// NewDraftController creates the draft workflow.
func NewDraftController(t DraftTransport, conversationID string, onOpen func(), log *logger.Logger) *DraftController {
	c := &DraftController{transport: t, convID: conversationID}
	c.Workflow = NewWorkflow(func(ctx context.Context) (string, string, error) {
		res, err := t.GenerateDraft(ctx, conversationID)
		if err != nil {
			return "", "", err
		}
		return res.ID, res.Content, nil
	}, onOpen, log)
	return c
}

// Send delivers the approved draft to the thread and resets the workflow.
func (c *DraftController) Send(ctx context.Context) error {
	return c.Complete(ctx, func(ctx context.Context, draftID, content string) error {
		_, err := c.transport.SendDraft(ctx, c.convID, draftID, content)
		return err
	})
}

// SaveAsNote persists the draft content as a clinical note instead of
// sending it, and resets the workflow.
func (c *DraftController) SaveAsNote(ctx context.Context) error {
	return c.Complete(ctx, func(ctx context.Context, _, content string) error {
		_, err := c.transport.SaveNote(ctx, c.convID, content)
		return err
	})
}

// SummaryController is the conversation-summary workflow.
type SummaryController struct {
	*Workflow
	transport DraftTransport
	convID    string
}

// NewSummaryController creates the summary workflow.
func NewSummaryController(t DraftTransport, conversationID string, onOpen func(), log *logger.Logger) *SummaryController {
	c := &SummaryController{transport: t, convID: conversationID}
	c.Workflow = NewWorkflow(func(ctx context.Context) (string, string, error) {
		res, err := t.GenerateSummary(ctx, conversationID)
		if err != nil {
			return "", "", err
		}
		return "", res.Content, nil
	}, onOpen, log)
	return c
}

// SaveAsNote persists the summary as a clinical note and resets.
func (c *SummaryController) SaveAsNote(ctx context.Context) error {
	return c.Complete(ctx, func(ctx context.Context, _, content string) error {
		_, err := c.transport.SaveNote(ctx, c.convID, content)
		return err
	})
}
