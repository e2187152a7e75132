package interview

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

func windowInput(turns int) WindowInput {
	in := WindowInput{
		SystemPrompt: "You are the interviewer.",
		RoleID:       "swe",
		Pinned: types.PinnedContext{
			JDDigest:        "Senior backend engineer",
			CandidateDigest: "Go, Kafka",
			LinkedInDigest:  "Staff at Acme",
			ExtraNotes:      "Prefers async work",
		},
		Summaries: []types.QuestionSummary{{
			QuestionID: "q0",
			Outcome:    types.OutcomeSkipped,
			Bullets:    []string{"a", "b", "c"},
			Confidence: 0.2,
			Timestamp:  fixedNow,
		}},
		Question: types.Question{RoleID: "swe", QuestionID: "q1", OrderIndex: 1, Text: "How do you mentor?"},
	}
	for i := 0; i < turns; i++ {
		sender := types.SenderCandidate
		if i%2 == 1 {
			sender = types.SenderInterviewer
		}
		in.Turns = append(in.Turns, types.Turn{Sender: sender, Text: fmt.Sprintf("turn-%02d", i), Timestamp: fixedNow.Add(time.Duration(i) * time.Second)})
	}
	return in
}

func TestBuildWindow_Layout(t *testing.T) {
	msgs := BuildWindow(windowInput(3))

	require.Len(t, msgs, 5)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You are the interviewer.", msgs[0].Content)
	assert.Equal(t, llm.RoleSystem, msgs[1].Role)
	assert.Equal(t, "pinned_context", msgs[1].Name)
	assert.Equal(t, llm.RoleUser, msgs[2].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[3].Role)
	assert.Equal(t, "turn-02", msgs[4].Content)

	var pinned map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[1].Content), &pinned))
	assert.Equal(t, "swe", pinned["role_id"])
	assert.Equal(t, "Senior backend engineer", pinned["jd_digest"])
	assert.Equal(t, "Prefers async work", pinned["extra_notes"])
	assert.Len(t, pinned["prior_summaries"], 1)
	current := pinned["current_question"].(map[string]any)
	assert.Equal(t, "q1", current["question_id"])
	assert.Equal(t, "How do you mentor?", current["question_text"])
}

func TestBuildWindow_CapsTurns(t *testing.T) {
	in := windowInput(30)
	msgs := BuildWindow(in)
	require.Len(t, msgs, 2+DefaultWindowTurns)
	assert.Equal(t, "turn-10", msgs[2].Content)
	assert.Equal(t, "turn-29", msgs[len(msgs)-1].Content)

	in.MaxTurns = 4
	msgs = BuildWindow(in)
	require.Len(t, msgs, 6)
	assert.Equal(t, "turn-26", msgs[2].Content)
}

func TestBuildWindow_Deterministic(t *testing.T) {
	in := windowInput(7)
	assert.Equal(t, BuildWindow(in), BuildWindow(in))

	// inputs are not mutated
	before := append([]types.Turn(nil), in.Turns...)
	_ = BuildWindow(in)
	assert.Equal(t, before, in.Turns)
}

func TestBuildWindow_ToolInstructionsAndEmptySummaries(t *testing.T) {
	in := windowInput(1)
	in.Summaries = nil
	in.ToolInstructions = "Call mark_answered when done."

	msgs := BuildWindow(in)
	assert.Equal(t, "You are the interviewer.\n\nCall mark_answered when done.", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, `"prior_summaries":[]`)
}
