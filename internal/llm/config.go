// Package llm provides the text-generation capability used by the interviewer:
// a provider-neutral Generator port plus Gemini, GenAI/Vertex and scripted implementations.
package llm

import "fmt"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: summarization, extraction
	TierLite ModelTier = "lite"
	// TierStandard is for the live interviewer dialog
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is Google Gemini through github.com/google/generative-ai-go
	ProviderGemini Provider = "gemini"
	// ProviderGenAI is Google Gemini through the google.golang.org/genai SDK
	ProviderGenAI Provider = "genai"
	// ProviderVertex is Gemini on Vertex AI through the google.golang.org/genai SDK
	ProviderVertex Provider = "vertex"
	// ProviderScripted is the offline interviewer used for demos and tests
	ProviderScripted Provider = "scripted"
)

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	APIKey      string
	Project     string // Vertex AI only
	Location    string // Vertex AI only
	Temperature float32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: 0.3,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := *c
	newConfig.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return &newConfig
}

// Validate checks that the provider has what it needs to connect
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderScripted:
		return nil
	case ProviderGemini, ProviderGenAI:
		if c.APIKey == "" {
			return fmt.Errorf("llm: api key is required for provider %s", c.Provider)
		}
	case ProviderVertex:
		if c.Project == "" || c.Location == "" {
			return fmt.Errorf("llm: project and location are required for provider %s", c.Provider)
		}
	default:
		return fmt.Errorf("llm: unsupported provider %q", c.Provider)
	}
	if c.GetModel(TierStandard) == "" {
		return fmt.Errorf("llm: no model configured")
	}
	return nil
}
