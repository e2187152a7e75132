// Package questions owns the ordered, immutable canonical question lists per role.
package questions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

// digestLength is the number of hex characters kept from the SHA-256 digest
const digestLength = 16

// ValidationError represents an invalid import
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Bank reads and writes canonical questions through the persistence capability.
type Bank struct {
	store store.Store
}

// NewBank creates a question bank backed by the given store
func NewBank(s store.Store) *Bank {
	return &Bank{store: s}
}

// QuestionID returns the deterministic digest id of a question text.
// Identical texts share an id.
func QuestionID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:digestLength]
}

// Build converts ordered question texts into canonical questions.
// Repeated texts collapse onto their first occurrence so ids stay unique within a role.
func Build(roleID string, texts []string) ([]types.Question, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, &ValidationError{Field: "role_id", Message: "role id is required"}
	}
	seen := make(map[string]bool, len(texts))
	out := make([]types.Question, 0, len(texts))
	for i, raw := range texts {
		text := strings.TrimSpace(raw)
		if text == "" {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("questions[%d]", i),
				Message: "question text must not be blank",
			}
		}
		id := QuestionID(text)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, types.Question{
			RoleID:     roleID,
			QuestionID: id,
			OrderIndex: len(out),
			Text:       text,
		})
	}
	return out, nil
}

// ImportQuestions replaces the role's question list (last write wins) and returns the stored count.
// An empty list leaves the role without questions.
func (b *Bank) ImportQuestions(ctx context.Context, roleID string, texts []string) (int, error) {
	qs, err := Build(roleID, texts)
	if err != nil {
		return 0, err
	}
	if err := b.store.ReplaceQuestions(ctx, strings.TrimSpace(roleID), qs); err != nil {
		return 0, fmt.Errorf("failed to store questions: %w", err)
	}
	return len(qs), nil
}

// GetQuestions returns the role's questions ordered by order_index
func (b *Bank) GetQuestions(ctx context.Context, roleID string) ([]types.Question, error) {
	qs, err := b.store.ListQuestions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	sortByOrder(qs)
	return qs, nil
}

// GetNext returns the question right after the session's last completed one, or nil.
func (b *Bank) GetNext(ctx context.Context, session types.Session) (*types.Question, error) {
	qs, err := b.GetQuestions(ctx, session.RoleID)
	if err != nil {
		return nil, err
	}
	next := session.CurrentIndex + 1
	for i := range qs {
		if qs[i].OrderIndex == next {
			return &qs[i], nil
		}
	}
	return nil, nil
}

// Active returns the question named by the session's active_question_id, or nil.
func (b *Bank) Active(ctx context.Context, session types.Session) (*types.Question, error) {
	if session.ActiveQuestionID == "" {
		return nil, nil
	}
	qs, err := b.GetQuestions(ctx, session.RoleID)
	if err != nil {
		return nil, err
	}
	for i := range qs {
		if qs[i].QuestionID == session.ActiveQuestionID && qs[i].OrderIndex > session.CurrentIndex {
			return &qs[i], nil
		}
	}
	return nil, nil
}

func sortByOrder(qs []types.Question) {
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].OrderIndex < qs[j].OrderIndex })
}
