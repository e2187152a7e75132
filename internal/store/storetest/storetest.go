// Package storetest runs the behavioural checks every store.Store implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// NewSessionRecord returns an active session record positioned on question q1.
func NewSessionRecord(id string) types.SessionRecord {
	return types.SessionRecord{
		Session: types.Session{
			SessionID:        id,
			RoleID:           "swe",
			Status:           types.StatusActive,
			CurrentIndex:     -1,
			ActiveQuestionID: "q1",
			CreatedAt:        base,
			UpdatedAt:        base,
		},
		Pinned: types.PinnedContext{JDDigest: "jd", CandidateDigest: "cv", LinkedInDigest: "li", ExtraNotes: "notes"},
		Rubric: "be specific",
	}
}

func turn(sender types.Sender, text string, offset int) types.Turn {
	return types.Turn{Sender: sender, Text: text, Timestamp: base.Add(time.Duration(offset) * time.Second)}
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("QuestionsReplace", func(t *testing.T) { testQuestionsReplace(t, newStore(t)) })
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newStore(t)) })
	t.Run("ResolveMovesTurns", func(t *testing.T) { testResolveMovesTurns(t, newStore(t)) })
	t.Run("ResolveArchivesFinalTurns", func(t *testing.T) { testResolveArchivesFinalTurns(t, newStore(t)) })
	t.Run("ResolveWithoutTurns", func(t *testing.T) { testResolveWithoutTurns(t, newStore(t)) })
	t.Run("ResolveUnknownSession", func(t *testing.T) { testResolveUnknownSession(t, newStore(t)) })
	t.Run("ConcurrentSessions", func(t *testing.T) { testConcurrentSessions(t, newStore(t)) })
}

func testQuestionsReplace(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.ReplaceQuestions(ctx, "swe", []types.Question{
		{RoleID: "swe", QuestionID: "a", OrderIndex: 0, Text: "A"},
		{RoleID: "swe", QuestionID: "b", OrderIndex: 1, Text: "B"},
	}))
	require.NoError(t, s.ReplaceQuestions(ctx, "pm", []types.Question{
		{RoleID: "pm", QuestionID: "p", OrderIndex: 0, Text: "P"},
	}))
	require.NoError(t, s.ReplaceQuestions(ctx, "swe", []types.Question{
		{RoleID: "swe", QuestionID: "d", OrderIndex: 1, Text: "D"},
		{RoleID: "swe", QuestionID: "c", OrderIndex: 0, Text: "C"},
	}))

	qs, err := s.ListQuestions(ctx, "swe")
	require.NoError(t, err)
	require.Len(t, qs, 2)
	ids := map[string]int{}
	for _, q := range qs {
		ids[q.QuestionID] = q.OrderIndex
	}
	assert.Equal(t, map[string]int{"c": 0, "d": 1}, ids)

	pm, err := s.ListQuestions(ctx, "pm")
	require.NoError(t, err)
	assert.Len(t, pm, 1)

	empty, err := s.ListQuestions(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testSessionLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, NewSessionRecord("s1")))
	assert.ErrorIs(t, s.CreateSession(ctx, NewSessionRecord("s1")), store.ErrSessionExists)

	rec, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "swe", rec.Session.RoleID)
	assert.Equal(t, types.StatusActive, rec.Session.Status)
	assert.Equal(t, -1, rec.Session.CurrentIndex)
	assert.Equal(t, "q1", rec.Session.ActiveQuestionID)
	assert.Equal(t, NewSessionRecord("s1").Pinned, rec.Pinned)
	assert.Equal(t, "be specific", rec.Rubric)
	assert.Nil(t, rec.Session.CompletedAt)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec.Session.ActiveQuestionID = ""
	rec.Session.CurrentIndex = 0
	require.NoError(t, s.SaveSession(ctx, rec.Session))
	rec, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "", rec.Session.ActiveQuestionID)
	assert.Equal(t, 0, rec.Session.CurrentIndex)

	assert.ErrorIs(t, s.SaveSession(ctx, types.Session{SessionID: "missing", Status: types.StatusActive}), store.ErrNotFound)
}

func testResolveMovesTurns(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, NewSessionRecord("s1")))

	recorded := []types.Turn{
		turn(types.SenderCandidate, "first answer", 1),
		turn(types.SenderInterviewer, "which metric?", 2),
		turn(types.SenderCandidate, "p99 down 40%", 3),
	}
	for _, tr := range recorded {
		require.NoError(t, s.AppendTurn(ctx, "s1", "q1", tr))
	}
	require.NoError(t, s.AppendTurn(ctx, "s1", "q2", turn(types.SenderCandidate, "other question", 4)))

	live, err := s.LiveTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assertTurns(t, recorded, live)

	_, err = s.ArchivedTurns(ctx, "s1", "q1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	completed := base.Add(time.Minute)
	advanced := NewSessionRecord("s1").Session
	advanced.CurrentIndex = 0
	advanced.ActiveQuestionID = ""
	advanced.Status = types.StatusCompleted
	advanced.CompletedAt = &completed
	summary := types.QuestionSummary{
		QuestionID:       "q1",
		Outcome:          types.OutcomeAnswered,
		Bullets:          []string{"a", "b", "c"},
		EvidenceSnippets: []string{"p99 down 40%"},
		Confidence:       0.7,
		Timestamp:        completed,
	}

	n, err := s.Resolve(ctx, store.Resolution{Session: advanced, QuestionID: "q1", Summary: summary})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	live, err = s.LiveTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assert.Empty(t, live)

	archived, err := s.ArchivedTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assertTurns(t, recorded, archived)

	other, err := s.LiveTurns(ctx, "s1", "q2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other questions are untouched")

	summaries, err := s.ListSummaries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "q1", summaries[0].QuestionID)
	assert.Equal(t, types.OutcomeAnswered, summaries[0].Outcome)
	assert.Equal(t, summary.Bullets, summaries[0].Bullets)
	assert.Equal(t, summary.EvidenceSnippets, summaries[0].EvidenceSnippets)
	assert.InDelta(t, 0.7, summaries[0].Confidence, 1e-9)

	rec, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Session.CurrentIndex)
	assert.Equal(t, types.StatusCompleted, rec.Session.Status)
	require.NotNil(t, rec.Session.CompletedAt)
	assert.True(t, completed.Equal(*rec.Session.CompletedAt))

	// write-once archive
	_, err = s.Resolve(ctx, store.Resolution{Session: advanced, QuestionID: "q1", Summary: summary})
	assert.ErrorIs(t, err, store.ErrAlreadyArchived)
	assert.ErrorIs(t, s.AppendTurn(ctx, "s1", "q1", turn(types.SenderCandidate, "late", 9)), store.ErrAlreadyArchived)

	summaries, err = s.ListSummaries(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, summaries, 1, "failed resolve changes nothing")
}

func testResolveArchivesFinalTurns(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, NewSessionRecord("s1")))

	live := []types.Turn{
		turn(types.SenderCandidate, "I led the migration.", 1),
		turn(types.SenderInterviewer, "What changed afterwards?", 2),
		turn(types.SenderCandidate, "Deploys went from weekly to daily.", 3),
	}
	for _, tr := range live {
		require.NoError(t, s.AppendTurn(ctx, "s1", "q1", tr))
	}
	closing := turn(types.SenderInterviewer, "Thanks, let's move on.", 4)

	advanced := NewSessionRecord("s1").Session
	advanced.CurrentIndex = 0
	advanced.ActiveQuestionID = "q2"
	n, err := s.Resolve(ctx, store.Resolution{
		Session:    advanced,
		QuestionID: "q1",
		Summary:    types.QuestionSummary{QuestionID: "q1", Outcome: types.OutcomeAnswered, Bullets: []string{"a", "b", "c"}, Confidence: 0.7, Timestamp: base},
		FinalTurns: []types.Turn{closing},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	archived, err := s.ArchivedTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assertTurns(t, append(live, closing), archived)

	remaining, err := s.LiveTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func testResolveWithoutTurns(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, NewSessionRecord("s1")))

	advanced := NewSessionRecord("s1").Session
	advanced.CurrentIndex = 0
	advanced.ActiveQuestionID = "q2"
	n, err := s.Resolve(ctx, store.Resolution{
		Session:    advanced,
		QuestionID: "q1",
		Summary:    types.QuestionSummary{QuestionID: "q1", Outcome: types.OutcomeSkipped, Bullets: []string{"a", "b", "c"}, Confidence: 0.2, Timestamp: base},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	archived, err := s.ArchivedTurns(ctx, "s1", "q1")
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func testResolveUnknownSession(t *testing.T, s store.Store) {
	ctx := context.Background()
	res := store.Resolution{
		Session:    types.Session{SessionID: "missing", Status: types.StatusActive},
		QuestionID: "q1",
		Summary:    types.QuestionSummary{QuestionID: "q1", Outcome: types.OutcomeSkipped},
	}
	_, err := s.Resolve(ctx, res)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Resolve(ctx, store.Resolution{Session: types.Session{SessionID: "s"}})
	assert.Error(t, err, "question id is required")
}

func testConcurrentSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	const sessions = 8

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			if !assert.NoError(t, s.CreateSession(ctx, NewSessionRecord(id))) {
				return
			}
			for j := 0; j < 3; j++ {
				assert.NoError(t, s.AppendTurn(ctx, id, "q1", turn(types.SenderCandidate, fmt.Sprintf("%s-%d", id, j), j)))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		live, err := s.LiveTurns(ctx, fmt.Sprintf("s%d", i), "q1")
		require.NoError(t, err)
		require.Len(t, live, 3)
		for j, tr := range live {
			assert.Equal(t, fmt.Sprintf("s%d-%d", i, j), tr.Text)
		}
	}
}

func assertTurns(t *testing.T, want, got []types.Turn) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Sender, got[i].Sender)
		assert.Equal(t, want[i].Text, got[i].Text)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "turn %d timestamp", i)
	}
}
