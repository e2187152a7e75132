package interview

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

const (
	// DefaultWindowTurns is how many of the current question's turns are sent to the model
	DefaultWindowTurns = 20

	pinnedContextName    = "pinned_context"
	pinnedContextVersion = "v1"
)

// WindowInput is everything the context window is built from.
type WindowInput struct {
	SystemPrompt     string
	ToolInstructions string
	RoleID           string
	Pinned           types.PinnedContext
	Summaries        []types.QuestionSummary
	Question         types.Question
	Turns            []types.Turn
	MaxTurns         int
}

// pinnedBlock is serialized in field order so identical inputs give identical bytes.
type pinnedBlock struct {
	ContextVersion  string                  `json:"context_version"`
	RoleID          string                  `json:"role_id"`
	JDDigest        string                  `json:"jd_digest"`
	CandidateDigest string                  `json:"candidate_digest"`
	LinkedInDigest  string                  `json:"linkedin_digest"`
	ExtraNotes      string                  `json:"extra_notes"`
	PriorSummaries  []types.QuestionSummary `json:"prior_summaries"`
	CurrentQuestion currentQuestion         `json:"current_question"`
}

type currentQuestion struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"question_text"`
}

// BuildWindow builds the messages sent to the generator for one exchange:
// the system instruction, the pinned context with all prior summaries, and
// the most recent turns of the current question only. It has no side effects.
func BuildWindow(in WindowInput) []llm.Message {
	system := strings.TrimSpace(in.SystemPrompt)
	if tools := strings.TrimSpace(in.ToolInstructions); tools != "" {
		system += "\n\n" + tools
	}

	summaries := in.Summaries
	if summaries == nil {
		summaries = []types.QuestionSummary{}
	}
	pinned, err := json.Marshal(pinnedBlock{
		ContextVersion:  pinnedContextVersion,
		RoleID:          in.RoleID,
		JDDigest:        in.Pinned.JDDigest,
		CandidateDigest: in.Pinned.CandidateDigest,
		LinkedInDigest:  in.Pinned.LinkedInDigest,
		ExtraNotes:      in.Pinned.ExtraNotes,
		PriorSummaries:  summaries,
		CurrentQuestion: currentQuestion{QuestionID: in.Question.QuestionID, Text: in.Question.Text},
	})
	if err != nil {
		pinned = []byte("{}")
	}

	turns := recentTurns(in.Turns, in.MaxTurns)
	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages,
		llm.Message{Role: llm.RoleSystem, Content: system},
		llm.Message{Role: llm.RoleSystem, Name: pinnedContextName, Content: string(pinned)},
	)
	for _, t := range turns {
		role := llm.RoleUser
		if t.Sender == types.SenderInterviewer {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Text})
	}
	return messages
}

func recentTurns(turns []types.Turn, limit int) []types.Turn {
	if limit <= 0 {
		limit = DefaultWindowTurns
	}
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}
