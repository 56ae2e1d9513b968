package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

func countingGenerate() (GenerateFunc, *int) {
	n := 0
	return func(ctx context.Context) (string, string, error) {
		n++
		return fmt.Sprintf("rec-%d", n), fmt.Sprintf("generation %d", n), nil
	}, &n
}

func TestWorkflowGenerate(t *testing.T) {
	gen, _ := countingGenerate()
	w := NewWorkflow(gen, nil, logger.NewNop())

	assert.Equal(t, WorkflowIdle, w.State())
	require.NoError(t, w.Generate(context.Background()))

	assert.Equal(t, WorkflowReady, w.State())
	assert.Equal(t, "generation 1", w.Content())
	assert.False(t, w.CanUndo())

	// Generate is only valid from idle.
	assert.ErrorIs(t, w.Generate(context.Background()), ErrWorkflowState)
}

func TestWorkflowOpensEditorBeforeGeneration(t *testing.T) {
	var w *Workflow
	var stateAtOpen WorkflowState
	gen, _ := countingGenerate()
	w = NewWorkflow(gen, func() { stateAtOpen = w.State() }, logger.NewNop())

	require.NoError(t, w.Generate(context.Background()))

	assert.Equal(t, WorkflowGenerating, stateAtOpen, "the editor opens while generation is still running")
}

func TestWorkflowUndoStack(t *testing.T) {
	gen, _ := countingGenerate()
	w := NewWorkflow(gen, nil, logger.NewNop())
	require.NoError(t, w.Generate(context.Background()))

	// Edit, regenerate twice, then unwind.
	w.SetContent("first draft, edited")
	require.NoError(t, w.Regenerate(context.Background()))
	assert.Equal(t, "generation 2", w.Content())

	require.NoError(t, w.Regenerate(context.Background()))
	assert.Equal(t, "generation 3", w.Content())
	assert.True(t, w.CanUndo())

	w.Undo()
	assert.Equal(t, "generation 2", w.Content())
	w.Undo()
	assert.Equal(t, "first draft, edited", w.Content(), "undo restores the edited text, not the raw generation")
	assert.False(t, w.CanUndo())

	// Undo on an empty stack is a no-op.
	w.Undo()
	assert.Equal(t, "first draft, edited", w.Content())
	assert.Equal(t, WorkflowReady, w.State())
}

func TestWorkflowGenerationFailureAndRetry(t *testing.T) {
	calls := 0
	w := NewWorkflow(func(ctx context.Context) (string, string, error) {
		calls++
		if calls == 1 {
			return "", "", errors.New("model overloaded")
		}
		return "rec-1", "it worked", nil
	}, nil, logger.NewNop())

	require.Error(t, w.Generate(context.Background()))
	assert.Equal(t, WorkflowError, w.State())
	assert.Error(t, w.Err())

	// Regenerate is not valid from error; Retry is.
	assert.ErrorIs(t, w.Regenerate(context.Background()), ErrWorkflowState)
	require.NoError(t, w.Retry(context.Background()))
	assert.Equal(t, WorkflowReady, w.State())
	assert.Equal(t, "it worked", w.Content())
	assert.NoError(t, w.Err())
}

func TestWorkflowCompleteResets(t *testing.T) {
	gen, _ := countingGenerate()
	w := NewWorkflow(gen, nil, logger.NewNop())
	require.NoError(t, w.Generate(context.Background()))
	require.NoError(t, w.Regenerate(context.Background()))

	var gotID, gotContent string
	err := w.Complete(context.Background(), func(ctx context.Context, recordID, content string) error {
		gotID, gotContent = recordID, content
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "rec-2", gotID)
	assert.Equal(t, "generation 2", gotContent)
	assert.Equal(t, WorkflowIdle, w.State())
	assert.Empty(t, w.Content())
	assert.False(t, w.CanUndo(), "terminal transitions clear the undo stack")
}

func TestWorkflowCompleteFailureStaysReady(t *testing.T) {
	gen, _ := countingGenerate()
	w := NewWorkflow(gen, nil, logger.NewNop())
	require.NoError(t, w.Generate(context.Background()))
	w.SetContent("carefully edited")

	err := w.Complete(context.Background(), func(ctx context.Context, recordID, content string) error {
		return errors.New("gateway down")
	})

	require.Error(t, err)
	assert.Equal(t, WorkflowReady, w.State())
	assert.Equal(t, "carefully edited", w.Content(), "content survives a failed persist")
	assert.Error(t, w.Err())

	// Complete from idle or error is rejected.
	w.Discard()
	assert.ErrorIs(t, w.Complete(context.Background(), func(ctx context.Context, _, _ string) error { return nil }), ErrWorkflowState)
}

func TestWorkflowDiscard(t *testing.T) {
	gen, _ := countingGenerate()
	w := NewWorkflow(gen, nil, logger.NewNop())
	require.NoError(t, w.Generate(context.Background()))
	require.NoError(t, w.Regenerate(context.Background()))

	w.Discard()

	assert.Equal(t, WorkflowIdle, w.State())
	assert.Empty(t, w.Content())
	assert.False(t, w.CanUndo())

	// A fresh generation starts cleanly.
	require.NoError(t, w.Generate(context.Background()))
	assert.Equal(t, WorkflowReady, w.State())
}

func TestDraftControllerSend(t *testing.T) {
	var sentDraftID, sentContent string
	gw := &fakeGateway{
		draftFunc: func(ctx context.Context, conversationID string) (*model.DraftResult, error) {
			return &model.DraftResult{ID: "draft-7", Content: "suggested reply"}, nil
		},
		sendDraftFunc: func(ctx context.Context, conversationID, draftID, content string) (*model.SendResult, error) {
			sentDraftID, sentContent = draftID, content
			return &model.SendResult{MessageID: 42}, nil
		},
	}
	c := NewDraftController(gw, "conv-1", nil, logger.NewNop())

	require.NoError(t, c.Generate(context.Background()))
	c.SetContent("suggested reply, softened")
	require.NoError(t, c.Send(context.Background()))

	assert.Equal(t, "draft-7", sentDraftID)
	assert.Equal(t, "suggested reply, softened", sentContent)
	assert.Equal(t, WorkflowIdle, c.State())
}

func TestDraftControllerSaveAsNote(t *testing.T) {
	var noted string
	gw := &fakeGateway{
		draftFunc: func(ctx context.Context, conversationID string) (*model.DraftResult, error) {
			return &model.DraftResult{ID: "draft-1", Content: "observation"}, nil
		},
		noteFunc: func(ctx context.Context, conversationID, content string) (*model.NoteResult, error) {
			noted = content
			return &model.NoteResult{ID: "note-1"}, nil
		},
	}
	c := NewDraftController(gw, "conv-1", nil, logger.NewNop())

	require.NoError(t, c.Generate(context.Background()))
	require.NoError(t, c.SaveAsNote(context.Background()))

	assert.Equal(t, "observation", noted)
	assert.Equal(t, WorkflowIdle, c.State())
}

func TestSummaryControllerSaveAsNote(t *testing.T) {
	var noted string
	gw := &fakeGateway{
		summaryFunc: func(ctx context.Context, conversationID string) (*model.SummaryResult, error) {
			return &model.SummaryResult{Content: "session summary"}, nil
		},
		noteFunc: func(ctx context.Context, conversationID, content string) (*model.NoteResult, error) {
			noted = content
			return &model.NoteResult{ID: "note-2"}, nil
		},
	}
	c := NewSummaryController(gw, "conv-1", nil, logger.NewNop())

	require.NoError(t, c.Generate(context.Background()))
	require.NoError(t, c.SaveAsNote(context.Background()))

	assert.Equal(t, "session summary", noted)
	assert.Equal(t, WorkflowIdle, c.State())
}
