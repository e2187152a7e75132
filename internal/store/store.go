// Package store defines the persistence capability used by the interview orchestrator
// and an in-memory implementation of it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/interview-orchestrator/internal/types"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// ErrSessionExists is returned when creating a session whose id is taken.
var ErrSessionExists = errors.New("session already exists")

// ErrAlreadyArchived is returned when a question's transcript was archived before.
var ErrAlreadyArchived = errors.New("transcript already archived")

// Resolution is everything that changes when a question resolves.
// Session is the already-advanced session record. FinalTurns are archived
// after the live turns without ever being written to the live list.
type Resolution struct {
	Session    types.Session
	QuestionID string
	Summary    types.QuestionSummary
	FinalTurns []types.Turn
}

// Store is key-addressed durable storage for questions, sessions, turns, summaries and archives.
//
// Resolve must be atomic: the live turns of (session, question) move to the archive, the
// live list is cleared, FinalTurns are archived after them, the summary is appended and the
// session saved, or nothing changes.
type Store interface {
	ReplaceQuestions(ctx context.Context, roleID string, questions []types.Question) error
	ListQuestions(ctx context.Context, roleID string) ([]types.Question, error)

	CreateSession(ctx context.Context, rec types.SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	SaveSession(ctx context.Context, session types.Session) error

	AppendTurn(ctx context.Context, sessionID, questionID string, turn types.Turn) error
	LiveTurns(ctx context.Context, sessionID, questionID string) ([]types.Turn, error)
	ArchivedTurns(ctx context.Context, sessionID, questionID string) ([]types.Turn, error)
	ListSummaries(ctx context.Context, sessionID string) ([]types.QuestionSummary, error)

	Resolve(ctx context.Context, res Resolution) (int, error)

	Close() error
}

// TranscriptKey is the composite key of a per-question transcript.
func TranscriptKey(sessionID, questionID string) string {
	return sessionID + "::" + questionID
}

// ValidateKey checks the fields that address a transcript.
func ValidateKey(sessionID, questionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session_id is required")
	}
	if strings.TrimSpace(questionID) == "" {
		return fmt.Errorf("question_id is required")
	}
	return nil
}
