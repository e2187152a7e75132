package interview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/interview-orchestrator/internal/logger"
	"github.com/jonathan/interview-orchestrator/internal/store"
)

// Archiver commits a question's resolution: its live turns move to the
// archive together with the summary append and the session advance.
type Archiver struct {
	store  store.Store
	logger *zap.Logger
}

// NewArchiver creates an archiver over the given store
func NewArchiver(s store.Store, log *zap.Logger) *Archiver {
	return &Archiver{store: s, logger: logger.OrNop(log)}
}

// Resolve archives the question and saves the advanced session in one step.
// It returns the number of archived turns.
func (a *Archiver) Resolve(ctx context.Context, res store.Resolution) (int, error) {
	if err := store.ValidateKey(res.Session.SessionID, res.QuestionID); err != nil {
		return 0, &ValidationError{Field: "resolution", Message: err.Error()}
	}
	if res.Summary.QuestionID != res.QuestionID {
		return 0, &ValidationError{Field: "summary.question_id", Message: "summary belongs to a different question"}
	}

	n, err := a.store.Resolve(ctx, res)
	if err != nil {
		return 0, fmt.Errorf("archive question %s: %w", res.QuestionID, err)
	}

	a.logger.Debug("question archived",
		append(logger.SessionFields(res.Session.SessionID, res.Session.RoleID, res.QuestionID),
			zap.String("outcome", string(res.Summary.Outcome)),
			zap.Int("turns", n))...)
	return n, nil
}
