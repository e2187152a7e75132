package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

func TestService_ThreeQuestionScenario(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	svc, st := newTestService(t, gen, Options{})
	qs := importSWE(t, svc)
	require.Len(t, qs, 3)

	start, err := svc.StartSession(ctx, StartRequest{
		RoleID: "swe",
		Pinned: types.PinnedContext{JDDigest: "Backend role", CandidateDigest: "8 years Go"},
		Rubric: "Depth over breadth",
	})
	require.NoError(t, err)
	require.NotNil(t, start.FirstQuestion)
	assert.Equal(t, qs[0].Text, *start.FirstQuestion)

	lastIndex := -1
	assertInvariants(t, st, start.SessionID, &lastIndex)

	// first reply stays on question 1
	res, err := svc.CandidateMessage(ctx, start.SessionID, "We had a slow checkout service.")
	require.NoError(t, err)
	assert.Equal(t, "Follow-up 1?", res.AssistantText)
	assert.Nil(t, res.Summary)
	assert.Equal(t, -1, res.Status.CurrentIndex)
	require.NotNil(t, res.Status.ActiveQuestionID)
	assert.Equal(t, qs[0].QuestionID, *res.Status.ActiveQuestionID)
	assertInvariants(t, st, start.SessionID, &lastIndex)

	// second reply reaches the threshold
	res, err = svc.CandidateMessage(ctx, start.SessionID, "I led a team of 4 and we cut p99 latency by 40% using Go and Redis.")
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Equal(t, types.OutcomeAnswered, res.Summary.Outcome)
	assert.Equal(t, 0, res.Status.CurrentIndex)
	assert.Equal(t, qs[1].QuestionID, *res.Status.ActiveQuestionID)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, qs[1].Text, *res.NextQuestion)
	assertInvariants(t, st, start.SessionID, &lastIndex)

	res, err = svc.CandidateMessage(ctx, start.SessionID, "skip")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSkipped, res.Summary.Outcome)
	assert.Equal(t, 1, res.Status.CurrentIndex)
	assertInvariants(t, st, start.SessionID, &lastIndex)

	_, err = svc.Score(ctx, start.SessionID)
	var notCompleted *SessionNotCompletedError
	require.ErrorAs(t, err, &notCompleted)

	res, err = svc.CandidateMessage(ctx, start.SessionID, "skip")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Status.CurrentIndex)
	assert.Equal(t, types.StatusCompleted, res.Status.Status)
	assert.Nil(t, res.Status.ActiveQuestionID)
	assert.Nil(t, res.NextQuestion)
	assert.Equal(t, 3, res.Status.SummariesCount)
	assertInvariants(t, st, start.SessionID, &lastIndex)

	payload, err := svc.Score(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "swe", payload.RoleID)
	assert.Equal(t, "Depth over breadth", payload.Rubric)
	assert.Equal(t, "Backend role", payload.PinnedContext.JDDigest)
	assert.Len(t, payload.CanonicalQuestions, 3)
	assert.Len(t, payload.QuestionSummaries, 3)
	require.Len(t, payload.FullTranscripts, 3)
	for i, tr := range payload.FullTranscripts {
		assert.Equal(t, qs[i].QuestionID, tr.QuestionID)
		assert.Equal(t, i, tr.OrderIndex)
	}
	// question 1 archived both exchanges in order
	first := payload.FullTranscripts[0].Turns
	require.Len(t, first, 4)
	assert.Equal(t, types.SenderCandidate, first[0].Sender)
	assert.Equal(t, "We had a slow checkout service.", first[0].Text)
	assert.Equal(t, types.SenderInterviewer, first[1].Sender)
	assert.Equal(t, "Follow-up 1?", first[1].Text)
	assert.Equal(t, types.SenderCandidate, first[2].Sender)
	assert.Equal(t, types.SenderInterviewer, first[3].Sender)
}

func TestService_AllSkipsCompleteAfterNMessages(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, newFakeGenerator(), Options{})
	texts := []string{"Q1", "Q2", "Q3", "Q4", "Q5"}
	importSWE(t, svc, texts...)

	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	lastIndex := -1
	phrases := []string{"skip", "PASS", "  Next, please  ", "Skip", "pass"}
	for i, phrase := range phrases {
		res, err := svc.CandidateMessage(ctx, start.SessionID, phrase)
		require.NoError(t, err)
		assert.Equal(t, i, res.Status.CurrentIndex)
		assertInvariants(t, st, start.SessionID, &lastIndex)
		if i < len(phrases)-1 {
			assert.Equal(t, types.StatusActive, res.Status.Status)
		} else {
			assert.Equal(t, types.StatusCompleted, res.Status.Status)
		}
	}

	summaries, err := st.ListSummaries(ctx, start.SessionID)
	require.NoError(t, err)
	require.Len(t, summaries, len(texts))
	for _, s := range summaries {
		assert.Equal(t, types.OutcomeSkipped, s.Outcome)
	}

	_, err = svc.CandidateMessage(ctx, start.SessionID, "hello?")
	var notActive *SessionNotActiveError
	require.ErrorAs(t, err, &notActive)
	assert.Equal(t, KindSessionNotActive, Kind(err))
}

func TestService_SkipPhraseMustMatchExactly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeGenerator(), Options{})
	importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	res, err := svc.CandidateMessage(ctx, start.SessionID, "I'd rather not skip this one")
	require.NoError(t, err)
	assert.Nil(t, res.Summary)
	assert.Equal(t, -1, res.Status.CurrentIndex)
}

func TestService_WindowHoldsOnlyCurrentQuestion(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	svc, _ := newTestService(t, gen, Options{})
	qs := importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	// question index -> candidate texts sent while it was active
	sent := map[int][]string{
		0: {"q0-alpha", "q0-beta"},
		1: {"q1-gamma", "q1-delta"},
		2: {"q2-epsilon", "q2-zeta"},
	}
	for k := 0; k < len(qs); k++ {
		for _, text := range sent[k] {
			_, err := svc.CandidateMessage(ctx, start.SessionID, text)
			require.NoError(t, err)

			window := gen.lastCall()
			var dialog strings.Builder
			for _, m := range window {
				if m.Role != llm.RoleSystem {
					dialog.WriteString(m.Content + "\n")
				}
			}
			for other, texts := range sent {
				if other == k {
					continue
				}
				for _, foreign := range texts {
					assert.NotContains(t, dialog.String(), foreign, "question %d window leaked a turn from question %d", k, other)
				}
			}
			assert.Contains(t, dialog.String(), text)
			assert.Contains(t, window[1].Content, qs[k].QuestionID)
			for later := k + 1; later < len(qs); later++ {
				assert.NotContains(t, window[1].Content, qs[later].Text, "future questions are never revealed")
			}
		}
	}
}

func TestService_StartSessionErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeGenerator(), Options{})

	_, err := svc.StartSession(ctx, StartRequest{RoleID: "unknown"})
	var noQuestions *NoQuestionsForRoleError
	require.ErrorAs(t, err, &noQuestions)
	assert.Equal(t, "unknown", noQuestions.RoleID)
	assert.Equal(t, KindNoQuestionsForRole, Kind(err))

	_, err = svc.StartSession(ctx, StartRequest{RoleID: "  "})
	assert.Equal(t, KindValidation, Kind(err))
}

func TestService_UnknownSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeGenerator(), Options{})

	_, err := svc.CandidateMessage(ctx, "missing", "hello")
	assert.Equal(t, KindSessionNotFound, Kind(err))

	_, err = svc.GetStatus(ctx, "missing")
	assert.Equal(t, KindSessionNotFound, Kind(err))

	_, err = svc.Score(ctx, "missing")
	assert.Equal(t, KindSessionNotFound, Kind(err))
}

func TestService_EmptyMessage(t *testing.T) {
	svc, _ := newTestService(t, newFakeGenerator(), Options{})
	_, err := svc.CandidateMessage(context.Background(), "any", "   ")
	assert.Equal(t, KindValidation, Kind(err))
}

func TestService_GetStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeGenerator(), Options{NewID: func() string { return "sess-1" }})
	qs := importSWE(t, svc)

	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", start.SessionID)

	status, err := svc.GetStatus(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.SessionStatus{
		SessionID:        "sess-1",
		RoleID:           "swe",
		Status:           types.StatusActive,
		ActiveQuestionID: &qs[0].QuestionID,
		CurrentIndex:     -1,
		SummariesCount:   0,
	}, status)
}

func TestService_GenerationFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	var fail atomic.Bool
	fail.Store(true)
	ok := gen.respond
	gen.respond = func(ctx context.Context, m []llm.Message, tools []llm.Tool) (*llm.Result, error) {
		if fail.Load() {
			return nil, errors.New("upstream unavailable")
		}
		return ok(ctx, m, tools)
	}

	svc, st := newTestService(t, gen, Options{})
	qs := importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	_, err = svc.CandidateMessage(ctx, start.SessionID, "First answer.")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.True(t, genErr.Retryable())
	assert.Equal(t, KindGenerationFailure, Kind(err))

	live, err := st.LiveTurns(ctx, start.SessionID, qs[0].QuestionID)
	require.NoError(t, err)
	require.Len(t, live, 1, "candidate turn is retained")
	status, err := svc.GetStatus(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, -1, status.CurrentIndex)
	assert.Equal(t, 0, status.SummariesCount)

	// a second failed attempt with the same text does not duplicate the turn
	_, err = svc.CandidateMessage(ctx, start.SessionID, "First answer.")
	require.Error(t, err)

	fail.Store(false)
	res, err := svc.CandidateMessage(ctx, start.SessionID, "First answer.")
	require.NoError(t, err)
	assert.Nil(t, res.Summary, "a retried message counts once toward the threshold")

	live, err = st.LiveTurns(ctx, start.SessionID, qs[0].QuestionID)
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, types.SenderCandidate, live[0].Sender)
	assert.Equal(t, types.SenderInterviewer, live[1].Sender)
}

func TestService_GenerationTimeout(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	gen.respond = func(ctx context.Context, _ []llm.Message, _ []llm.Tool) (*llm.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	svc, st := newTestService(t, gen, Options{GenerationTimeout: 20 * time.Millisecond})
	importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)
	before, err := st.GetSession(ctx, start.SessionID)
	require.NoError(t, err)

	_, err = svc.CandidateMessage(ctx, start.SessionID, "skip")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindGenerationFailure, Kind(err))

	after, err := st.GetSession(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, before.Session, after.Session, "no resolution applied")
}

func TestService_EmptyReplyWithoutResolutionFails(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	gen.respond = func(context.Context, []llm.Message, []llm.Tool) (*llm.Result, error) {
		return &llm.Result{}, nil
	}
	svc, _ := newTestService(t, gen, Options{})
	importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	_, err = svc.CandidateMessage(ctx, start.SessionID, "An answer")
	assert.Equal(t, KindGenerationFailure, Kind(err))
}

func TestService_ToolCallResolution(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	svc, st := newTestService(t, gen, Options{Policy: NewToolCallPolicy(NewHeuristicPolicy(5, nil))})
	qs := importSWE(t, svc, "Only question")
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	// a call for another question is ignored
	gen.respond = func(context.Context, []llm.Message, []llm.Tool) (*llm.Result, error) {
		return &llm.Result{
			Text:      "Tell me more.",
			ToolCalls: []llm.ToolCall{{Name: ToolMarkAnswered, Args: map[string]any{"question_id": "other"}}},
		}, nil
	}
	res, err := svc.CandidateMessage(ctx, start.SessionID, "A short answer.")
	require.NoError(t, err)
	assert.Nil(t, res.Summary)

	gen.respond = func(context.Context, []llm.Message, []llm.Tool) (*llm.Result, error) {
		return &llm.Result{
			ToolCalls: []llm.ToolCall{{Name: ToolMarkAnswered, Args: map[string]any{"question_id": qs[0].QuestionID}}},
		}, nil
	}
	res, err = svc.CandidateMessage(ctx, start.SessionID, "We shipped it in 3 weeks.")
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Equal(t, types.OutcomeAnswered, res.Summary.Outcome)
	assert.Equal(t, types.StatusCompleted, res.Status.Status)
	assert.Equal(t, ClosingLine, res.AssistantText)

	require.Len(t, gen.tools[0], 2, "resolution tools are offered")
	assert.Contains(t, gen.calls[0][0].Content, "mark_answered")

	archived, err := st.ArchivedTurns(ctx, start.SessionID, qs[0].QuestionID)
	require.NoError(t, err)
	assert.Len(t, archived, 3, "no interviewer turn for an empty reply")
}

func TestService_SerializesOneSession(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	var inFlight, maxInFlight atomic.Int32
	gen.respond = func(context.Context, []llm.Message, []llm.Tool) (*llm.Result, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return &llm.Result{Text: "ok?"}, nil
	}

	svc, st := newTestService(t, gen, Options{})
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "Question " + string(rune('A'+i))
	}
	importSWE(t, svc, texts...)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CandidateMessage(ctx, start.SessionID, "answer "+string(rune('a'+i)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	lastIndex := -1
	assertInvariants(t, st, start.SessionID, &lastIndex)
	assert.Equal(t, 5, lastIndex, "12 messages at threshold 2 resolve 6 questions")
	assert.Equal(t, 0, svc.locks.size())
}

func TestService_SessionsRunInParallel(t *testing.T) {
	ctx := context.Background()
	gen := newFakeGenerator()
	var inFlight atomic.Int32
	bothIn := make(chan struct{})
	var once sync.Once
	gen.respond = func(context.Context, []llm.Message, []llm.Tool) (*llm.Result, error) {
		if inFlight.Add(1) == 2 {
			once.Do(func() { close(bothIn) })
		}
		select {
		case <-bothIn:
			return &llm.Result{Text: "next?"}, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("sessions were serialized")
		}
	}

	svc, _ := newTestService(t, gen, Options{})
	importSWE(t, svc)
	a, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)
	b, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []string{a.SessionID, b.SessionID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CandidateMessage(ctx, id, "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestService_WaitingCallerHonorsContext(t *testing.T) {
	gen := newFakeGenerator()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	gen.respond = func(context.Context, []llm.Message, []llm.Tool) (*llm.Result, error) {
		close(entered)
		<-unblock
		return &llm.Result{Text: "ok?"}, nil
	}

	svc, _ := newTestService(t, gen, Options{})
	importSWE(t, svc)
	start, err := svc.StartSession(context.Background(), StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.CandidateMessage(context.Background(), start.SessionID, "first")
		done <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.CandidateMessage(ctx, start.SessionID, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gen.callCount())
}

func TestService_ReimportMidSessionContinuesOnNewList(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, newFakeGenerator(), Options{})
	importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	qs := importSWE(t, svc, "New Q1?", "New Q2?")

	lastIndex := -1
	res, err := svc.CandidateMessage(ctx, start.SessionID, "skip")
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Equal(t, qs[0].QuestionID, res.Summary.QuestionID)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, "New Q2?", *res.NextQuestion)
	assertInvariants(t, st, start.SessionID, &lastIndex)

	res, err = svc.CandidateMessage(ctx, start.SessionID, "skip")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, res.Status.Status)
	assert.Equal(t, 1, res.Status.CurrentIndex)
	assertInvariants(t, st, start.SessionID, &lastIndex)

	payload, err := svc.Score(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Len(t, payload.CanonicalQuestions, 2)
	assert.Len(t, payload.QuestionSummaries, 2)
}

func TestService_ReimportShorterListReportsNoQuestionsRemain(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeGenerator(), Options{})
	importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)
	_, err = svc.CandidateMessage(ctx, start.SessionID, "skip")
	require.NoError(t, err)

	importSWE(t, svc, "Only question?")

	_, err = svc.CandidateMessage(ctx, start.SessionID, "hello")
	var remain *NoQuestionsRemainError
	require.ErrorAs(t, err, &remain)
	assert.Equal(t, KindNoQuestionsRemain, Kind(err))
}

// failingResolveStore fails Resolve while fail is set
type failingResolveStore struct {
	*store.MemoryStore
	fail atomic.Bool
}

func (s *failingResolveStore) Resolve(ctx context.Context, res store.Resolution) (int, error) {
	if s.fail.Load() {
		return 0, errors.New("disk full")
	}
	return s.MemoryStore.Resolve(ctx, res)
}

func TestService_FailedResolutionRetriesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	st := &failingResolveStore{MemoryStore: store.NewMemoryStore()}
	svc := NewService(st, newFakeGenerator(), Options{Now: func() time.Time { return fixedNow }})
	qs := importSWE(t, svc)
	start, err := svc.StartSession(ctx, StartRequest{RoleID: "swe"})
	require.NoError(t, err)

	_, err = svc.CandidateMessage(ctx, start.SessionID, "I migrated our billing service.")
	require.NoError(t, err)

	st.fail.Store(true)
	_, err = svc.CandidateMessage(ctx, start.SessionID, "It cut invoice latency in half.")
	require.Error(t, err)
	assert.Equal(t, KindInternal, Kind(err))

	live, err := st.LiveTurns(ctx, start.SessionID, qs[0].QuestionID)
	require.NoError(t, err)
	require.Len(t, live, 3)
	assert.Equal(t, types.SenderCandidate, live[2].Sender, "no interviewer reply is kept for the failed resolution")

	st.fail.Store(false)
	res, err := svc.CandidateMessage(ctx, start.SessionID, "It cut invoice latency in half.")
	require.NoError(t, err)
	require.NotNil(t, res.Summary)
	assert.Equal(t, types.OutcomeAnswered, res.Summary.Outcome)

	archived, err := st.ArchivedTurns(ctx, start.SessionID, qs[0].QuestionID)
	require.NoError(t, err)
	require.Len(t, archived, 4)
	senders := []types.Sender{types.SenderCandidate, types.SenderInterviewer, types.SenderCandidate, types.SenderInterviewer}
	for i, tr := range archived {
		assert.Equal(t, senders[i], tr.Sender, "turn %d", i)
	}
	assert.Equal(t, "It cut invoice latency in half.", archived[2].Text)
	assert.Equal(t, res.AssistantText, archived[3].Text)
}
