// Package types provides type definitions for structured data used throughout the interview orchestrator.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"github.com/go-playground/validator/v10"
)

// ImportQuestionsRequest is the body of a canonical question import.
type ImportQuestionsRequest struct {
	Questions []string `json:"questions" validate:"required,dive,required"`
}

// ImportQuestionsResponse reports how many questions were stored for a role.
type ImportQuestionsResponse struct {
	RoleID string `json:"role_id"`
	Count  int    `json:"count"`
}

// StartSessionRequest starts an interview for a role.
type StartSessionRequest struct {
	RoleID          string `json:"role_id" validate:"required"`
	JDDigest        string `json:"jd_digest"`
	CandidateDigest string `json:"candidate_digest"`
	LinkedInDigest  string `json:"linkedin_digest"`
	ExtraNotes      string `json:"extra_notes"`
	Rubric          string `json:"rubric"`
}

// Pinned returns the pinned context carried by the request.
func (r *StartSessionRequest) Pinned() PinnedContext {
	return PinnedContext{
		JDDigest:        r.JDDigest,
		CandidateDigest: r.CandidateDigest,
		LinkedInDigest:  r.LinkedInDigest,
		ExtraNotes:      r.ExtraNotes,
	}
}

// StartSessionResponse is returned when a session starts.
// Token is only set when candidate tokens are enabled.
type StartSessionResponse struct {
	SessionID     string  `json:"session_id"`
	FirstQuestion *string `json:"first_question"`
	Token         string  `json:"token,omitempty"`
}

// CandidateMessageRequest carries one candidate message.
type CandidateMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// CandidateMessageResponse is the interviewer's reply plus the refreshed status.
// NextQuestion is set when this message resolved a question and another one follows.
type CandidateMessageResponse struct {
	AssistantText string        `json:"assistant_text"`
	NextQuestion  *string       `json:"next_question,omitempty"`
	SessionStatus SessionStatus `json:"session_status"`
}

// ScoreResponse wraps the packaged scoring payload.
type ScoreResponse struct {
	SessionID       string          `json:"session_id"`
	PackagedPayload *ScoringPayload `json:"packaged_payload"`
}

// Validate validates the ImportQuestionsRequest using the validator.
func (r *ImportQuestionsRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the StartSessionRequest using the validator.
func (r *StartSessionRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the CandidateMessageRequest using the validator.
func (r *CandidateMessageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
