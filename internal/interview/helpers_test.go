package interview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

// fakeGenerator replays scripted results and records every call.
type fakeGenerator struct {
	mu      sync.Mutex
	respond func(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Result, error)
	calls   [][]llm.Message
	tools   [][]llm.Tool
}

func newFakeGenerator() *fakeGenerator {
	g := &fakeGenerator{}
	g.respond = func(context.Context, []llm.Message, []llm.Tool) (*llm.Result, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return &llm.Result{Text: fmt.Sprintf("Follow-up %d?", len(g.calls))}, nil
	}
	return g
}

func (g *fakeGenerator) Generate(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, append([]llm.Message(nil), messages...))
	g.tools = append(g.tools, tools)
	respond := g.respond
	g.mu.Unlock()
	return respond(ctx, messages, tools)
}

func (g *fakeGenerator) Model() string { return "fake" }
func (g *fakeGenerator) Close() error  { return nil }

func (g *fakeGenerator) lastCall() []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	return g.calls[len(g.calls)-1]
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, gen llm.Generator, opts Options) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return NewService(st, gen, opts), st
}

func importSWE(t *testing.T, svc *Service, texts ...string) []types.Question {
	t.Helper()
	if len(texts) == 0 {
		texts = []string{
			"Describe a complex technical challenge you faced and how you solved it.",
			"How do you approach mentoring junior developers?",
			"Tell me about a time you disagreed with a technical decision.",
		}
	}
	ctx := context.Background()
	_, err := svc.ImportQuestions(ctx, "swe", texts)
	require.NoError(t, err)
	qs, err := svc.Bank().GetQuestions(ctx, "swe")
	require.NoError(t, err)
	return qs
}

// assertInvariants checks the session-wide invariants that must hold after every call.
func assertInvariants(t *testing.T, st store.Store, sessionID string, lastIndex *int) {
	t.Helper()
	ctx := context.Background()

	rec, err := st.GetSession(ctx, sessionID)
	require.NoError(t, err)
	summaries, err := st.ListSummaries(ctx, sessionID)
	require.NoError(t, err)

	require.GreaterOrEqual(t, rec.Session.CurrentIndex, *lastIndex, "current_index must not decrease")
	require.Len(t, summaries, rec.Session.CurrentIndex+1, "one summary per completed question")
	*lastIndex = rec.Session.CurrentIndex

	for _, s := range summaries {
		live, err := st.LiveTurns(ctx, sessionID, s.QuestionID)
		require.NoError(t, err)
		require.Empty(t, live, "resolved question keeps no live turns")
		_, err = st.ArchivedTurns(ctx, sessionID, s.QuestionID)
		require.NoError(t, err, "resolved question has an archive entry")
	}
	if rec.Session.ActiveQuestionID != "" {
		_, err := st.ArchivedTurns(ctx, sessionID, rec.Session.ActiveQuestionID)
		require.ErrorIs(t, err, store.ErrNotFound, "active question is not archived")
	}
}
