package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Generator for Google Gemini
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient creates a new Gemini client for a model tier
func NewGeminiClient(ctx context.Context, config *Config, tier ModelTier) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	modelName := config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       modelName,
		temperature: config.Temperature,
	}, nil
}

// Generate sends the dialog as a chat: all but the last message become history.
func (c *GeminiClient) Generate(ctx context.Context, messages []Message, tools []Tool) (*Result, error) {
	system, dialog := SplitSystem(messages)
	dialog, err := prepareDialog(dialog)
	if err != nil {
		return nil, err
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiFunctions(tools)}}
	}

	cs := model.StartChat()
	cs.History = toGeminiHistory(dialog[:len(dialog)-1])

	resp, err := cs.SendMessage(ctx, genai.Text(dialog[len(dialog)-1].Content))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return resultFromGemini(resp)
}

// Model returns the model name used by this client
func (c *GeminiClient) Model() string {
	return c.model
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// toGeminiHistory maps assistant messages to the "model" role and everything else to "user"
func toGeminiHistory(dialog []Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(dialog))
	for _, m := range dialog {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history
}

func toGeminiFunctions(tools []Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if len(tool.Parameters) > 0 {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(tool.Parameters)),
			}
			for _, p := range tool.Parameters {
				schema.Properties[p.Name] = &genai.Schema{
					Type:        genai.TypeString,
					Description: p.Description,
					Enum:        p.Enum,
				}
				if p.Required {
					schema.Required = append(schema.Required, p.Name)
				}
			}
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return decls
}

// resultFromGemini collects text and function calls from the first candidate
func resultFromGemini(resp *genai.GenerateContentResponse) (*Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	result := &Result{}
	var parts []string
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			parts = append(parts, string(p))
		case genai.FunctionCall:
			result.ToolCalls = append(result.ToolCalls, ToolCall{Name: p.Name, Args: p.Args})
		}
	}
	result.Text = strings.TrimSpace(strings.Join(parts, ""))

	if result.Text == "" && len(result.ToolCalls) == 0 {
		return nil, fmt.Errorf("no text or function calls in response")
	}
	return result, nil
}
