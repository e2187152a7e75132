package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonathan/interview-orchestrator/internal/types"
)

var errClosed = errors.New("memory store is closed")

// MemoryStore keeps every record in process memory behind a single mutex.
// Returned slices are copies; callers never alias stored state.
type MemoryStore struct {
	mu        sync.Mutex
	questions map[string][]types.Question
	sessions  map[string]types.SessionRecord
	live      map[string][]types.Turn
	archive   map[string][]types.Turn
	summaries map[string][]types.QuestionSummary
	closed    bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: make(map[string][]types.Question),
		sessions:  make(map[string]types.SessionRecord),
		live:      make(map[string][]types.Turn),
		archive:   make(map[string][]types.Turn),
		summaries: make(map[string][]types.QuestionSummary),
	}
}

func (s *MemoryStore) ReplaceQuestions(_ context.Context, roleID string, questions []types.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.questions[roleID] = append([]types.Question(nil), questions...)
	return nil
}

func (s *MemoryStore) ListQuestions(_ context.Context, roleID string) ([]types.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return append([]types.Question(nil), s.questions[roleID]...), nil
}

func (s *MemoryStore) CreateSession(_ context.Context, rec types.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, exists := s.sessions[rec.Session.SessionID]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, rec.Session.SessionID)
	}
	s.sessions[rec.Session.SessionID] = rec
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*types.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, session types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	rec, ok := s.sessions[session.SessionID]
	if !ok {
		return ErrNotFound
	}
	rec.Session = session
	s.sessions[session.SessionID] = rec
	return nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, sessionID, questionID string, turn types.Turn) error {
	if err := ValidateKey(sessionID, questionID); err != nil {
		return err
	}
	key := TranscriptKey(sessionID, questionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, archived := s.archive[key]; archived {
		return ErrAlreadyArchived
	}
	s.live[key] = append(s.live[key], turn)
	return nil
}

func (s *MemoryStore) LiveTurns(_ context.Context, sessionID, questionID string) ([]types.Turn, error) {
	key := TranscriptKey(sessionID, questionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return append([]types.Turn(nil), s.live[key]...), nil
}

func (s *MemoryStore) ArchivedTurns(_ context.Context, sessionID, questionID string) ([]types.Turn, error) {
	key := TranscriptKey(sessionID, questionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	turns, ok := s.archive[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]types.Turn(nil), turns...), nil
}

func (s *MemoryStore) ListSummaries(_ context.Context, sessionID string) ([]types.QuestionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return append([]types.QuestionSummary(nil), s.summaries[sessionID]...), nil
}

func (s *MemoryStore) Resolve(_ context.Context, res Resolution) (int, error) {
	sessionID := res.Session.SessionID
	if err := ValidateKey(sessionID, res.QuestionID); err != nil {
		return 0, err
	}
	key := TranscriptKey(sessionID, res.QuestionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	rec, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if _, archived := s.archive[key]; archived {
		return 0, ErrAlreadyArchived
	}

	turns := make([]types.Turn, 0, len(s.live[key])+len(res.FinalTurns))
	turns = append(turns, s.live[key]...)
	turns = append(turns, res.FinalTurns...)
	s.archive[key] = turns
	delete(s.live, key)
	s.summaries[sessionID] = append(s.summaries[sessionID], res.Summary)
	rec.Session = res.Session
	s.sessions[sessionID] = rec
	return len(turns), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
