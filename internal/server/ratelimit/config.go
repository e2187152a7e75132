package ratelimit

import "time"

// EndpointConfig overrides the default limit for one route.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends with "/"
	Method string        // HTTP method
	Limit  int           // requests per window
	Window time.Duration // refill window
	Burst  int           // bucket capacity, Limit when zero
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig builds a configuration around a default per-client limit, with the
// stricter per-route limits from DefaultEndpointConfigs.
func NewConfig(enabled bool, limit int, window time.Duration) *Config {
	return &Config{
		Enabled:         enabled,
		DefaultLimit:    limit,
		DefaultWindow:   window,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits the routes that reach the model or write heavily.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// starting sessions and scoring are admin operations but still bounded
		{Path: "/sessions", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/roles/", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		// candidate messages each cost one generation
		{Path: "/sessions/", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
	}
}
