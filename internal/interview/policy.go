package interview

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

// DefaultAnswerThreshold is the candidate-turn count at which a question counts as answered
const DefaultAnswerThreshold = 2

// Tool names offered to the model
const (
	ToolMarkAnswered = "mark_answered"
	ToolMarkSkipped  = "mark_skipped"
)

// DefaultSkipPhrases are matched case-insensitively against the whole trimmed candidate message
var DefaultSkipPhrases = []string{"skip", "pass", "next, please"}

// PolicyInput is what a resolution decision may look at for the active question.
type PolicyInput struct {
	QuestionID     string
	CandidateText  string
	CandidateTurns int
	ToolCalls      []llm.ToolCall
}

// Decision says whether the active question resolves after this exchange, and how.
type Decision struct {
	Resolve bool
	Outcome types.Outcome
}

// ResolutionPolicy decides when the active question is finished.
// It never touches session state.
type ResolutionPolicy interface {
	Decide(in PolicyInput) Decision
	// Tools returns the tool declarations offered to the model, if any
	Tools() []llm.Tool
}

// HeuristicPolicy skips on an exact skip phrase and otherwise resolves as
// answered once the candidate has replied Threshold times.
type HeuristicPolicy struct {
	SkipPhrases []string
	Threshold   int
}

// NewHeuristicPolicy returns a heuristic policy; zero values select the defaults.
func NewHeuristicPolicy(threshold int, skipPhrases []string) *HeuristicPolicy {
	if threshold <= 0 {
		threshold = DefaultAnswerThreshold
	}
	if len(skipPhrases) == 0 {
		skipPhrases = DefaultSkipPhrases
	}
	return &HeuristicPolicy{SkipPhrases: skipPhrases, Threshold: threshold}
}

// Decide implements ResolutionPolicy
func (p *HeuristicPolicy) Decide(in PolicyInput) Decision {
	if p.IsSkip(in.CandidateText) {
		return Decision{Resolve: true, Outcome: types.OutcomeSkipped}
	}
	if in.CandidateTurns >= p.Threshold {
		return Decision{Resolve: true, Outcome: types.OutcomeAnswered}
	}
	return Decision{}
}

// IsSkip reports whether text is exactly one of the skip phrases, ignoring case and surrounding space.
func (p *HeuristicPolicy) IsSkip(text string) bool {
	text = strings.TrimSpace(text)
	for _, phrase := range p.SkipPhrases {
		if strings.EqualFold(text, strings.TrimSpace(phrase)) {
			return true
		}
	}
	return false
}

// Tools implements ResolutionPolicy; the heuristic offers none.
func (p *HeuristicPolicy) Tools() []llm.Tool {
	return nil
}

// ToolCallPolicy resolves on mark_answered / mark_skipped calls from the model
// and defers to Fallback when the model made no usable call.
type ToolCallPolicy struct {
	Fallback ResolutionPolicy
}

// NewToolCallPolicy wraps a fallback policy
func NewToolCallPolicy(fallback ResolutionPolicy) *ToolCallPolicy {
	if fallback == nil {
		fallback = NewHeuristicPolicy(0, nil)
	}
	return &ToolCallPolicy{Fallback: fallback}
}

type markArgs struct {
	QuestionID string `mapstructure:"question_id"`
	Reason     string `mapstructure:"reason"`
}

// Decide implements ResolutionPolicy. Calls naming a different question are ignored.
func (p *ToolCallPolicy) Decide(in PolicyInput) Decision {
	for _, call := range in.ToolCalls {
		var outcome types.Outcome
		switch call.Name {
		case ToolMarkAnswered:
			outcome = types.OutcomeAnswered
		case ToolMarkSkipped:
			outcome = types.OutcomeSkipped
		default:
			continue
		}

		var args markArgs
		if err := mapstructure.WeakDecode(call.Args, &args); err != nil {
			continue
		}
		if args.QuestionID != "" && args.QuestionID != in.QuestionID {
			continue
		}
		return Decision{Resolve: true, Outcome: outcome}
	}
	return p.Fallback.Decide(in)
}

// Tools implements ResolutionPolicy
func (p *ToolCallPolicy) Tools() []llm.Tool {
	return InterviewTools()
}

// InterviewTools declares the resolution tools the interviewer model may call.
func InterviewTools() []llm.Tool {
	params := []llm.ToolParameter{
		{Name: "question_id", Description: "id of the current question", Required: true},
		{Name: "reason", Description: "one short sentence explaining the decision"},
	}
	return []llm.Tool{
		{
			Name:        ToolMarkAnswered,
			Description: "Mark the current question as sufficiently answered and move on.",
			Parameters:  params,
		},
		{
			Name:        ToolMarkSkipped,
			Description: "Mark the current question as skipped at the candidate's request.",
			Parameters:  params,
		},
	}
}
