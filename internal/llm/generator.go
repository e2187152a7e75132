package llm

import (
	"context"
	"fmt"
	"strings"
)

// Role is the conversational role of a message sent to a model
type Role string

// Role constants
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one provider-neutral chat message.
type Message struct {
	Role    Role   `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ToolParameter describes one string argument of a tool.
type ToolParameter struct {
	Name        string
	Description string
	Enum        []string
	Required    bool
}

// Tool is a function the model may call instead of, or alongside, replying.
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ToolCall is a function call returned by the model.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is the output of one generation call.
type Result struct {
	Text      string     `json:"assistant_text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Generator is the text-generation capability: messages and tools in, text and tool calls out.
// Implementations never see or mutate orchestrator state.
type Generator interface {
	Generate(ctx context.Context, messages []Message, tools []Tool) (*Result, error)
	// Model returns the provider model name (for logging)
	Model() string
	// Close releases any resources held by the generator
	Close() error
}

// NewGenerator creates a generator for the configured provider and tier
func NewGenerator(ctx context.Context, config *Config, tier ModelTier) (Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, tier)
	case ProviderGenAI, ProviderVertex:
		return NewGenAIClient(ctx, config, tier)
	case ProviderScripted:
		return NewScriptedGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", config.Provider)
	}
}

// SplitSystem joins all system messages into one instruction and returns the remaining dialog.
func SplitSystem(messages []Message) (string, []Message) {
	var system []string
	dialog := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if content := strings.TrimSpace(m.Content); content != "" {
				system = append(system, content)
			}
			continue
		}
		dialog = append(dialog, m)
	}
	return strings.Join(system, "\n\n"), dialog
}

// resumePlaceholder opens a dialog whose window starts with an interviewer turn
const resumePlaceholder = "(continuing the interview)"

// prepareDialog checks the dialog ends with a user message and starts with one.
func prepareDialog(dialog []Message) ([]Message, error) {
	if len(dialog) == 0 {
		return nil, fmt.Errorf("no dialog messages to send")
	}
	if dialog[len(dialog)-1].Role != RoleUser {
		return nil, fmt.Errorf("last dialog message must come from the user, got %s", dialog[len(dialog)-1].Role)
	}
	if dialog[0].Role != RoleUser {
		dialog = append([]Message{{Role: RoleUser, Content: resumePlaceholder}}, dialog...)
	}
	return dialog, nil
}
