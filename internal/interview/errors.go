package interview

import (
	"errors"
	"fmt"

	"github.com/jonathan/interview-orchestrator/internal/questions"
)

// Error kinds reported at the boundary
const (
	KindNoQuestionsForRole  = "no_questions_for_role"
	KindSessionNotFound     = "session_not_found"
	KindSessionNotActive    = "session_not_active"
	KindNoQuestionsRemain   = "no_questions_remain"
	KindSessionNotCompleted = "session_not_completed"
	KindGenerationFailure   = "generation_failure"
	KindValidation          = "validation"
	KindInternal            = "internal"
)

// NoQuestionsForRoleError is returned when a session is started for a role with no imported questions
type NoQuestionsForRoleError struct {
	RoleID string
}

func (e *NoQuestionsForRoleError) Error() string {
	return fmt.Sprintf("no questions imported for role %q", e.RoleID)
}

// SessionNotFoundError indicates an unknown session id
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

// SessionNotActiveError indicates a message sent to a completed session
type SessionNotActiveError struct {
	SessionID string
}

func (e *SessionNotActiveError) Error() string {
	return fmt.Sprintf("session %s is not active", e.SessionID)
}

// NoQuestionsRemainError means an active session has nothing left to ask.
// Reaching it indicates a broken invariant.
type NoQuestionsRemainError struct {
	SessionID string
}

func (e *NoQuestionsRemainError) Error() string {
	return fmt.Sprintf("no questions remain for active session %s", e.SessionID)
}

// SessionNotCompletedError is returned when scoring is requested before completion
type SessionNotCompletedError struct {
	SessionID string
}

func (e *SessionNotCompletedError) Error() string {
	return fmt.Sprintf("session %s is not completed", e.SessionID)
}

// GenerationError represents a failed or timed-out call to the text-generation capability.
// The session is unchanged apart from the retained candidate turn; callers may retry.
type GenerationError struct {
	SessionID string
	Cause     error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation failed for session %s: %v", e.SessionID, e.Cause)
	}
	return fmt.Sprintf("generation failed for session %s", e.SessionID)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Retryable reports that the same call may be repeated
func (e *GenerationError) Retryable() bool {
	return true
}

// ValidationError represents invalid caller input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Kind returns the stable kind name of an orchestrator error.
func Kind(err error) string {
	var (
		noQuestions  *NoQuestionsForRoleError
		notFound     *SessionNotFoundError
		notActive    *SessionNotActiveError
		noneRemain   *NoQuestionsRemainError
		notCompleted *SessionNotCompletedError
		generation   *GenerationError
		validation   *ValidationError
		bankInput    *questions.ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &noQuestions):
		return KindNoQuestionsForRole
	case errors.As(err, &notFound):
		return KindSessionNotFound
	case errors.As(err, &notActive):
		return KindSessionNotActive
	case errors.As(err, &noneRemain):
		return KindNoQuestionsRemain
	case errors.As(err, &notCompleted):
		return KindSessionNotCompleted
	case errors.As(err, &generation):
		return KindGenerationFailure
	case errors.As(err, &validation), errors.As(err, &bankInput):
		return KindValidation
	default:
		return KindInternal
	}
}
