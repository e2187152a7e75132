// Package config loads and validates the orchestrator configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/interview-orchestrator/internal/llm"
)

// EnvPrefix is prepended to every environment override, e.g. INTERVIEW_LLM_API_KEY.
const EnvPrefix = "INTERVIEW"

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Interview InterviewConfig `mapstructure:"interview"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the persistence adapter
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory postgres sqlite gorm-postgres"`
	URL    string `mapstructure:"url" validate:"required_if=Driver postgres,required_if=Driver gorm-postgres"`
}

// ModelsConfig maps model tiers to model names
type ModelsConfig struct {
	Lite     string `mapstructure:"lite"`
	Standard string `mapstructure:"standard"`
	Advanced string `mapstructure:"advanced"`
}

// LLMConfig selects and configures the text generator
type LLMConfig struct {
	Provider    string       `mapstructure:"provider" validate:"oneof=gemini genai vertex scripted"`
	APIKey      string       `mapstructure:"api_key"`
	Project     string       `mapstructure:"project"`
	Location    string       `mapstructure:"location"`
	Temperature float32      `mapstructure:"temperature" validate:"gte=0,lte=2"`
	Models      ModelsConfig `mapstructure:"models"`
}

// InterviewConfig tunes the turn controller
type InterviewConfig struct {
	WindowTurns       int           `mapstructure:"window_turns" validate:"min=1"`
	AnswerThreshold   int           `mapstructure:"answer_threshold" validate:"min=1"`
	SkipPhrases       []string      `mapstructure:"skip_phrases"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout" validate:"gt=0"`
	Summarizer        string        `mapstructure:"summarizer" validate:"oneof=heuristic model"`
	Resolution        string        `mapstructure:"resolution" validate:"oneof=heuristic tools"`
}

// AuthConfig configures admin and candidate authentication.
// Empty values disable the corresponding check.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	AdminKeyHash string        `mapstructure:"admin_key_hash"`
}

// RateLimitConfig configures the per-client token buckets
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit" validate:"min=1"`
	Window  time.Duration `mapstructure:"window" validate:"gt=0"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers every key with its default so env overrides and Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	models := llm.DefaultGeminiConfig().Models

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.url", "")

	v.SetDefault("llm.provider", string(llm.ProviderScripted))
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.project", "")
	v.SetDefault("llm.location", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.models.lite", models[llm.TierLite])
	v.SetDefault("llm.models.standard", models[llm.TierStandard])
	v.SetDefault("llm.models.advanced", models[llm.TierAdvanced])

	v.SetDefault("interview.window_turns", 20)
	v.SetDefault("interview.answer_threshold", 2)
	v.SetDefault("interview.skip_phrases", []string{"skip", "pass", "next, please"})
	v.SetDefault("interview.generation_timeout", 30*time.Second)
	v.SetDefault("interview.summarizer", "heuristic")
	v.SetDefault("interview.resolution", "heuristic")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_key_hash", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 120)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// Load reads the optional config file at path, applies INTERVIEW_* environment
// overrides and defaults, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates a prepared viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and the rules that span fields
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config error: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config error: %w", err)
	}

	switch llm.Provider(c.LLM.Provider) {
	case llm.ProviderGemini, llm.ProviderGenAI:
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			return fmt.Errorf("config error: llm.api_key is required for provider %s", c.LLM.Provider)
		}
	case llm.ProviderVertex:
		if c.LLM.Project == "" || c.LLM.Location == "" {
			return fmt.Errorf("config error: llm.project and llm.location are required for provider vertex")
		}
	}

	if c.Interview.Summarizer == "model" && c.LLM.Provider == string(llm.ProviderScripted) {
		return fmt.Errorf("config error: interview.summarizer=model needs a real llm provider")
	}
	return nil
}

// LLMSettings converts the llm section into the generator configuration
func (c LLMConfig) LLMSettings() *llm.Config {
	models := map[llm.ModelTier]string{}
	if c.Models.Lite != "" {
		models[llm.TierLite] = c.Models.Lite
	}
	if c.Models.Standard != "" {
		models[llm.TierStandard] = c.Models.Standard
	}
	if c.Models.Advanced != "" {
		models[llm.TierAdvanced] = c.Models.Advanced
	}
	return &llm.Config{
		Provider:    llm.Provider(c.Provider),
		Models:      models,
		APIKey:      c.APIKey,
		Project:     c.Project,
		Location:    c.Location,
		Temperature: c.Temperature,
	}
}
