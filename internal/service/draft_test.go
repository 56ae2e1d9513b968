package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

func newDraftFixture(t *testing.T) (*DraftService, *fixture) {
	t.Helper()
	f := newFixture(t, nil)
	drafts := NewDraftService(f.log, f.messages, f.llm, logger.NewNop())

	// Seed the thread so generation has history to work from.
	_, err := f.convs.ToggleAI(context.Background(), f.conv.ID, false)
	require.NoError(t, err)
	_, err = f.messages.Send(context.Background(), f.conv.ID, subjectSender(), "I have not been sleeping")
	require.NoError(t, err)

	return drafts, f
}

func TestDraftGenerateAndSend(t *testing.T) {
	drafts, f := newDraftFixture(t)

	res, err := drafts.Generate(context.Background(), f.conv.ID, "ther-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "I hear you. Tell me more.", res.Content)

	sendRes, err := drafts.Send(context.Background(), f.conv.ID, res.ID, therapistSender(), res.Content)
	require.NoError(t, err)
	assert.Positive(t, sendRes.MessageID)

	// The delivered message reads as the therapist, not the assistant.
	msgs, err := f.log.After(context.Background(), f.conv.ID, 0, 0)
	require.NoError(t, err)
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.SenderTherapist, last.Sender)
	assert.Equal(t, res.Content, last.Content)

	// A sent draft is terminal.
	_, err = drafts.Send(context.Background(), f.conv.ID, res.ID, therapistSender(), res.Content)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraftSendRecordsEdit(t *testing.T) {
	drafts, f := newDraftFixture(t)

	res, err := drafts.Generate(context.Background(), f.conv.ID, "ther-1")
	require.NoError(t, err)

	edited := "Thanks for telling me. Can you say more about your nights?"
	_, err = drafts.Send(context.Background(), f.conv.ID, res.ID, therapistSender(), edited)
	require.NoError(t, err)

	msgs, _ := f.log.After(context.Background(), f.conv.ID, 0, 0)
	assert.Equal(t, edited, msgs[len(msgs)-1].Content)
}

func TestDraftDiscard(t *testing.T) {
	drafts, f := newDraftFixture(t)

	res, err := drafts.Generate(context.Background(), f.conv.ID, "ther-1")
	require.NoError(t, err)

	require.NoError(t, drafts.Discard(context.Background(), f.conv.ID, res.ID))

	// Discarded drafts cannot be sent or re-discarded.
	_, err = drafts.Send(context.Background(), f.conv.ID, res.ID, therapistSender(), "x")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.ErrorIs(t, drafts.Discard(context.Background(), f.conv.ID, res.ID), ErrDraftNotFound)
}

func TestDraftWrongConversationRejected(t *testing.T) {
	drafts, f := newDraftFixture(t)

	res, err := drafts.Generate(context.Background(), f.conv.ID, "ther-1")
	require.NoError(t, err)

	_, err = drafts.Send(context.Background(), "other-conv", res.ID, therapistSender(), res.Content)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraftGenerateFailures(t *testing.T) {
	drafts, f := newDraftFixture(t)

	f.llm.err = errors.New("model overloaded")
	_, err := drafts.Generate(context.Background(), f.conv.ID, "ther-1")
	require.Error(t, err)

	// No LLM client at all.
	noLLM := NewDraftService(f.log, f.messages, nil, logger.NewNop())
	_, err = noLLM.Generate(context.Background(), f.conv.ID, "ther-1")
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	drafts, f := newDraftFixture(t)
	f.llm.reply = "Subject reports poor sleep; mood flat; no acute risk."

	res, err := drafts.Summarize(context.Background(), f.conv.ID)

	require.NoError(t, err)
	assert.Equal(t, f.llm.reply, res.Content)
}

func TestNotesNeverReachThread(t *testing.T) {
	drafts, f := newDraftFixture(t)

	before, _ := f.log.After(context.Background(), f.conv.ID, 0, 0)

	res, err := drafts.SaveNote(context.Background(), f.conv.ID, "ther-1", "Discussed sleep hygiene.")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)

	after, _ := f.log.After(context.Background(), f.conv.ID, 0, 0)
	assert.Equal(t, len(before), len(after), "notes stay out of the subject-facing thread")

	notes := drafts.Notes(context.Background(), f.conv.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Discussed sleep hygiene.", notes[0].Content)
	assert.Equal(t, "ther-1", notes[0].AuthorID)

	// Empty notes are rejected.
	_, err = drafts.SaveNote(context.Background(), f.conv.ID, "ther-1", "")
	require.Error(t, err)
}
