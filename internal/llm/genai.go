package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models used by GenAIClient
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIClient implements Generator with the google.golang.org/genai SDK,
// against either the Gemini API or Vertex AI.
type GenAIClient struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewGenAIClient creates a client for ProviderGenAI (API key) or ProviderVertex (project/location).
func NewGenAIClient(ctx context.Context, config *Config, tier ModelTier) (*GenAIClient, error) {
	modelName := config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	cfg := &genai.ClientConfig{}
	switch config.Provider {
	case ProviderVertex:
		if strings.TrimSpace(config.Project) == "" || strings.TrimSpace(config.Location) == "" {
			return nil, errors.New("vertex project and location are required")
		}
		cfg.Backend = genai.BackendVertexAI
		cfg.Project = config.Project
		cfg.Location = config.Location
	default:
		apiKey := strings.TrimSpace(config.APIKey)
		if apiKey == "" {
			return nil, errors.New("gemini api key is required")
		}
		cfg.Backend = genai.BackendGeminiAPI
		cfg.APIKey = apiKey
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIClient{models: client.Models, model: modelName, temperature: config.Temperature}, nil
}

// Generate sends the full dialog as contents with the system instruction in the config.
func (c *GenAIClient) Generate(ctx context.Context, messages []Message, tools []Tool) (*Result, error) {
	if c == nil || c.models == nil {
		return nil, errors.New("genai client is not initialized")
	}

	system, dialog := SplitSystem(messages)
	dialog, err := prepareDialog(dialog)
	if err != nil {
		return nil, err
	}

	temperature := c.temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toGenAIFunctions(tools)}}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, toGenAIContents(dialog), config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return resultFromGenAI(resp)
}

// Model returns the model name used by this client
func (c *GenAIClient) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Close is a no-op; the genai client holds no closable resources.
func (c *GenAIClient) Close() error {
	return nil
}

func toGenAIContents(dialog []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(dialog))
	for _, m := range dialog {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents
}

func toGenAIFunctions(tools []Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decl := &genai.FunctionDeclaration{Name: tool.Name, Description: tool.Description}
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

func resultFromGenAI(resp *genai.GenerateContentResponse) (*Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("genai returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, errors.New("genai returned empty content")
	}

	result := &Result{}
	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
		builder.WriteString(part.Text)
	}
	result.Text = strings.TrimSpace(builder.String())

	if result.Text == "" && len(result.ToolCalls) == 0 {
		return nil, errors.New("genai returned empty response")
	}
	return result, nil
}
