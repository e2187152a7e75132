package llm

import (
	"context"
	"strings"
	"sync"
)

const (
	scriptedModel   = "scripted"
	scriptedOpening = "To begin, could you walk me through your approach to this topic?"
)

// DefaultFollowUps are the follow-ups the scripted interviewer rotates through.
var DefaultFollowUps = []string{
	"Thanks. Could you share one concrete metric or outcome from that experience?",
	"What was your specific role, and how large was the team?",
	"Which tools or technologies did you rely on, and why those?",
	"Looking back, what trade-off would you make differently?",
}

// ScriptedGenerator is an offline Generator that needs no credentials.
// It opens when the dialog has no candidate content and otherwise asks
// one follow-up per call, cycling through its list.
type ScriptedGenerator struct {
	mu        sync.Mutex
	followUps []string
	next      int
	calls     int
}

// NewScriptedGenerator returns a scripted generator; with no follow-ups given it uses DefaultFollowUps.
func NewScriptedGenerator(followUps ...string) *ScriptedGenerator {
	if len(followUps) == 0 {
		followUps = DefaultFollowUps
	}
	return &ScriptedGenerator{followUps: append([]string(nil), followUps...)}
}

// Generate returns the next scripted line. Tools are ignored.
func (g *ScriptedGenerator) Generate(ctx context.Context, messages []Message, _ []Tool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if lastUserContent(messages) == "" {
		return &Result{Text: scriptedOpening}, nil
	}
	text := g.followUps[g.next%len(g.followUps)]
	g.next++
	return &Result{Text: text}, nil
}

// Calls reports how many times Generate ran.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Model returns the pseudo model name
func (g *ScriptedGenerator) Model() string { return scriptedModel }

// Close is a no-op
func (g *ScriptedGenerator) Close() error { return nil }

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
