package ratelimit

import "strings"

// unlimited marks routes that are never limited
var unlimited = EndpointConfig{}

// MatchEndpoint returns the endpoint configuration for a request, preferring an
// exact path over the longest matching "/"-terminated prefix. It returns nil when
// nothing matches so the caller falls back to the default limit.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &unlimited
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
