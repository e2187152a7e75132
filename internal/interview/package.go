package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/interview-orchestrator/internal/questions"
	"github.com/jonathan/interview-orchestrator/internal/schemas"
	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

// defaultArchiveReaders bounds concurrent archive reads while packaging
const defaultArchiveReaders = 4

// Packager assembles the scoring payload of a completed session.
// It only reads; concurrent calls need no coordination.
type Packager struct {
	store   store.Store
	bank    *questions.Bank
	readers int
	now     func() time.Time
}

// NewPackager creates a packager over the given store and question bank
func NewPackager(s store.Store, bank *questions.Bank) *Packager {
	return &Packager{store: s, bank: bank, readers: defaultArchiveReaders, now: time.Now}
}

// Package returns the full scoring payload. Transcripts follow the order
// in which questions were resolved and hold every archived turn.
func (p *Packager) Package(ctx context.Context, sessionID string) (*types.ScoringPayload, error) {
	rec, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &SessionNotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec.Session.Status != types.StatusCompleted {
		return nil, &SessionNotCompletedError{SessionID: sessionID}
	}

	qs, err := p.bank.GetQuestions(ctx, rec.Session.RoleID)
	if err != nil {
		return nil, err
	}
	summaries, err := p.store.ListSummaries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	order := make(map[string]int, len(qs))
	for _, q := range qs {
		order[q.QuestionID] = q.OrderIndex
	}

	transcripts := make([]types.QuestionTranscript, len(summaries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.readers)
	for i, s := range summaries {
		g.Go(func() error {
			turns, err := p.store.ArchivedTurns(gCtx, sessionID, s.QuestionID)
			if err != nil {
				return fmt.Errorf("read archive for question %s: %w", s.QuestionID, err)
			}
			index, ok := order[s.QuestionID]
			if !ok {
				index = i
			}
			// each goroutine owns its slot
			transcripts[i] = types.QuestionTranscript{QuestionID: s.QuestionID, OrderIndex: index, Turns: turns}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if qs == nil {
		qs = []types.Question{}
	}
	if summaries == nil {
		summaries = []types.QuestionSummary{}
	}
	payload := &types.ScoringPayload{
		SessionID:          sessionID,
		RoleID:             rec.Session.RoleID,
		PinnedContext:      rec.Pinned,
		Rubric:             rec.Rubric,
		CanonicalQuestions: qs,
		QuestionSummaries:  summaries,
		FullTranscripts:    transcripts,
		PackagedAt:         p.now().UTC(),
	}
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// checkPayload validates the payload against the scoring payload schema
// before it leaves the orchestrator.
func checkPayload(payload *types.ScoringPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode scoring payload: %w", err)
	}
	if err := schemas.Validate(schemas.ScoringPayload, data); err != nil {
		return fmt.Errorf("scoring payload for session %s: %w", payload.SessionID, err)
	}
	return nil
}
