package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/shared-care-platform/internal/model"
	"github.com/carebridge/shared-care-platform/internal/natslog"
	"github.com/carebridge/shared-care-platform/pkg/logger"
)

func newConversationService(t *testing.T) (*ConversationService, *natslog.MemoryLog) {
	t.Helper()
	msgLog := natslog.NewMemoryLog()
	return NewConversationService(msgLog, logger.NewNop()), msgLog
}

func TestCreateDefaults(t *testing.T) {
	s, _ := newConversationService(t)

	conv, err := s.Create(context.Background(), &model.CreateConversationRequest{
		SubjectID: "subj-1",
		GroupID:   "group-a",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.True(t, conv.AIEnabled)
	assert.Equal(t, model.RiskLow, conv.Risk)
	assert.Equal(t, model.StatusActive, conv.Status)
}

func TestCreateOnePerSubject(t *testing.T) {
	s, _ := newConversationService(t)

	first, err := s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-1"})
	require.NoError(t, err)

	_, err = s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-1"})
	require.Error(t, err)

	got, err := s.GetBySubject(context.Background(), "subj-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestSetRiskValidation(t *testing.T) {
	s, _ := newConversationService(t)
	conv, err := s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-1"})
	require.NoError(t, err)

	got, err := s.SetRisk(context.Background(), conv.ID, model.RiskHigh)
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, got)

	_, err = s.SetRisk(context.Background(), conv.ID, model.RiskLevel("apocalyptic"))
	require.Error(t, err)

	// The stored value is untouched by the rejected write.
	fresh, err := s.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, fresh.Risk)
}

func TestMarkReadMonotonic(t *testing.T) {
	s, msgLog := newConversationService(t)
	conv, err := s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-1"})
	require.NoError(t, err)

	for range [3]struct{}{} {
		_, err := msgLog.Append(context.Background(), &model.Message{
			ConversationID: conv.ID,
			SenderID:       "ther-1",
			Content:        "note",
		})
		require.NoError(t, err)
	}

	require.NoError(t, s.MarkRead(context.Background(), conv.ID, "subj-1"))

	check, err := s.Check(context.Background(), conv.ID, "subj-1")
	require.NoError(t, err)
	assert.Zero(t, check.UnreadCount)
	assert.Equal(t, int64(3), check.LatestMessageID)

	// Repeating is harmless.
	require.NoError(t, s.MarkRead(context.Background(), conv.ID, "subj-1"))
	check, err = s.Check(context.Background(), conv.ID, "subj-1")
	require.NoError(t, err)
	assert.Zero(t, check.UnreadCount)
}

func TestCheckExcludesOwnMessages(t *testing.T) {
	s, msgLog := newConversationService(t)
	conv, err := s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-1"})
	require.NoError(t, err)

	for _, senderID := range []string{"subj-1", "ther-1", "ther-1"} {
		_, err := msgLog.Append(context.Background(), &model.Message{
			ConversationID: conv.ID,
			SenderID:       senderID,
			Content:        "hi",
		})
		require.NoError(t, err)
	}

	check, err := s.Check(context.Background(), conv.ID, "subj-1")
	require.NoError(t, err)
	assert.Equal(t, 2, check.UnreadCount, "a recipient's own messages are never unread")
}

func TestListScopesAndAggregates(t *testing.T) {
	s, msgLog := newConversationService(t)

	a, err := s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-1", GroupID: "group-a"})
	require.NoError(t, err)
	b, err := s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-2", GroupID: "group-a"})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), &model.CreateConversationRequest{SubjectID: "subj-3", GroupID: "group-b"})
	require.NoError(t, err)

	_, err = s.SetRisk(context.Background(), a.ID, model.RiskCritical)
	require.NoError(t, err)
	_, err = s.ToggleAI(context.Background(), b.ID, false)
	require.NoError(t, err)

	_, err = msgLog.Append(context.Background(), &model.Message{ConversationID: a.ID, SenderID: "subj-1", Content: "hi"})
	require.NoError(t, err)

	res, err := s.List(context.Background(), "group-a", "ther-1")
	require.NoError(t, err)

	assert.Len(t, res.Conversations, 2)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Unread)
	assert.Equal(t, 1, res.Stats.HighRisk)
	assert.Equal(t, 1, res.Stats.AIEnabled)

	// Unscoped list sees every group.
	res, err = s.List(context.Background(), "", "ther-1")
	require.NoError(t, err)
	assert.Len(t, res.Conversations, 3)
}

func TestGetUnknown(t *testing.T) {
	s, _ := newConversationService(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetBySubject(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
