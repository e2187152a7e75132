package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-orchestrator/internal/types"
)

func newSessionRecord(id string) types.SessionRecord {
	now := time.Now().UTC()
	return types.SessionRecord{
		Session: types.Session{
			SessionID:        id,
			RoleID:           "swe",
			Status:           types.StatusActive,
			CurrentIndex:     -1,
			ActiveQuestionID: "q1",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		Pinned: types.PinnedContext{JDDigest: "jd"},
		Rubric: "be specific",
	}
}

func TestMemoryStore_QuestionsReplace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.ReplaceQuestions(ctx, "swe", []types.Question{
		{RoleID: "swe", QuestionID: "a", OrderIndex: 0, Text: "A"},
		{RoleID: "swe", QuestionID: "b", OrderIndex: 1, Text: "B"},
	}))
	require.NoError(t, s.ReplaceQuestions(ctx, "swe", []types.Question{
		{RoleID: "swe", QuestionID: "c", OrderIndex: 0, Text: "C"},
	}))

	qs, err := s.ListQuestions(ctx, "swe")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "c", qs[0].QuestionID)

	empty, err := s.ListQuestions(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, newSessionRecord("s1")))
	assert.Error(t, s.CreateSession(ctx, newSessionRecord("s1")))

	rec, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "jd", rec.Pinned.JDDigest)
	assert.Equal(t, -1, rec.Session.CurrentIndex)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec.Session.ActiveQuestionID = "q2"
	require.NoError(t, s.SaveSession(ctx, rec.Session))
	rec, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "q2", rec.Session.ActiveQuestionID)

	assert.ErrorIs(t, s.SaveSession(ctx, types.Session{SessionID: "missing"}), ErrNotFound)
}

func TestMemoryStore_ResolveMovesTurns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, newSessionRecord("s1")))

	turns := []types.Turn{
		{Sender: types.SenderCandidate, Text: "first"},
		{Sender: types.SenderInterviewer, Text: "follow-up"},
		{Sender: types.SenderCandidate, Text: "second"},
	}
	for _, turn := range turns {
		require.NoError(t, s.AppendTurn(ctx, "s1", "q1", turn))
	}

	advanced := newSessionRecord("s1").Session
	advanced.CurrentIndex = 0
	advanced.ActiveQuestionID = "q2"

	n, err := s.Resolve(ctx, Resolution{
		Session:    advanced,
		QuestionID: "q1",
		Summary:    types.QuestionSummary{QuestionID: "q1", Outcome: types.OutcomeAnswered},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	live, err := s.LiveTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assert.Empty(t, live)

	archived, err := s.ArchivedTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assert.Equal(t, turns, archived)

	summaries, err := s.ListSummaries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	rec, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Session.CurrentIndex)
	assert.Equal(t, "q2", rec.Session.ActiveQuestionID)

	// write-once archive
	_, err = s.Resolve(ctx, Resolution{Session: advanced, QuestionID: "q1"})
	assert.ErrorIs(t, err, ErrAlreadyArchived)
	assert.ErrorIs(t, s.AppendTurn(ctx, "s1", "q1", turns[0]), ErrAlreadyArchived)

	summaries, err = s.ListSummaries(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestMemoryStore_ArchivedTurnsMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.ArchivedTurns(context.Background(), "s1", "q1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendTurn(ctx, "s1", "q1", types.Turn{Sender: types.SenderCandidate, Text: "x"}))

	live, err := s.LiveTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	live[0].Text = "mutated"

	again, err := s.LiveTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assert.Equal(t, "x", again[0].Text)
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	_, err := s.ListQuestions(context.Background(), "swe")
	assert.Error(t, err)
}

func TestValidateKey(t *testing.T) {
	assert.Error(t, ValidateKey("", "q"))
	assert.Error(t, ValidateKey("s", " "))
	assert.NoError(t, ValidateKey("s", "q"))
}
