// Package types provides type definitions for structured data used throughout the interview orchestrator.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Sender identifies who produced a turn
type Sender string

// Sender constants
const (
	SenderInterviewer Sender = "interviewer"
	SenderCandidate   Sender = "candidate"
)

// Outcome is how a canonical question was resolved
type Outcome string

// Outcome constants
const (
	OutcomeAnswered Outcome = "answered"
	OutcomeSkipped  Outcome = "skipped"
)

// SessionState is the lifecycle state of an interview session
type SessionState string

// Session states. Active is initial, Completed is terminal.
const (
	StatusActive    SessionState = "active"
	StatusCompleted SessionState = "completed"
)

// Question is one canonical, ordered interview question for a role.
type Question struct {
	RoleID     string `json:"role_id"`
	QuestionID string `json:"question_id"`
	OrderIndex int    `json:"order_index"`
	Text       string `json:"question_text"`
}

// Turn is a single message exchanged while a question is active.
type Turn struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

// QuestionSummary is the structured, immutable record of a resolved question.
type QuestionSummary struct {
	QuestionID       string    `json:"question_id"`
	Outcome          Outcome   `json:"outcome"`
	Bullets          []string  `json:"bullet_summary"`
	EvidenceSnippets []string  `json:"evidence_snippets"`
	Confidence       float64   `json:"confidence"`
	Timestamp        time.Time `json:"ts"`
}

// PinnedContext is the read-only background included in every prompt for a session.
type PinnedContext struct {
	JDDigest        string `json:"jd_digest"`
	CandidateDigest string `json:"candidate_digest"`
	LinkedInDigest  string `json:"linkedin_digest"`
	ExtraNotes      string `json:"extra_notes"`
}

// Session is the state-machine record of one interview.
// CurrentIndex is the order_index of the last completed question (-1 before the first).
// An empty ActiveQuestionID means no question is active.
type Session struct {
	SessionID        string       `json:"session_id"`
	RoleID           string       `json:"role_id"`
	Status           SessionState `json:"status"`
	CurrentIndex     int          `json:"current_index"`
	ActiveQuestionID string       `json:"active_question_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
}

// SessionRecord bundles a session with the data fixed at session start.
type SessionRecord struct {
	Session Session       `json:"session"`
	Pinned  PinnedContext `json:"pinned_context"`
	Rubric  string        `json:"rubric"`
}

// SessionStatus is the externally visible snapshot of a session.
type SessionStatus struct {
	SessionID        string       `json:"session_id"`
	RoleID           string       `json:"role_id"`
	Status           SessionState `json:"status"`
	ActiveQuestionID *string      `json:"active_question_id"`
	CurrentIndex     int          `json:"current_index"`
	SummariesCount   int          `json:"summaries_count"`
}

// QuestionTranscript is the archived raw exchange for one question.
type QuestionTranscript struct {
	QuestionID string `json:"question_id"`
	OrderIndex int    `json:"order_index"`
	Turns      []Turn `json:"turns"`
}

// ScoringPayload is the complete artifact handed to each independent scoring model.
type ScoringPayload struct {
	SessionID          string               `json:"session_id"`
	RoleID             string               `json:"role_id"`
	PinnedContext      PinnedContext        `json:"pinned_context"`
	Rubric             string               `json:"rubric"`
	CanonicalQuestions []Question           `json:"canonical_questions"`
	QuestionSummaries  []QuestionSummary    `json:"question_summaries"`
	FullTranscripts    []QuestionTranscript `json:"full_transcripts"`
	PackagedAt         time.Time            `json:"packaged_at"`
}

// Snapshot returns the externally visible status of the session.
func (s Session) Snapshot(summariesCount int) SessionStatus {
	status := SessionStatus{
		SessionID:      s.SessionID,
		RoleID:         s.RoleID,
		Status:         s.Status,
		CurrentIndex:   s.CurrentIndex,
		SummariesCount: summariesCount,
	}
	if s.ActiveQuestionID != "" {
		id := s.ActiveQuestionID
		status.ActiveQuestionID = &id
	}
	return status
}

// IsActive reports whether the session still accepts candidate messages.
func (s Session) IsActive() bool {
	return s.Status == StatusActive
}

// CandidateTurns counts the candidate turns in a transcript.
func CandidateTurns(turns []Turn) int {
	count := 0
	for _, t := range turns {
		if t.Sender == SenderCandidate {
			count++
		}
	}
	return count
}
