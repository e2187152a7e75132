// Package middleware provides HTTP middleware for admin and candidate authentication.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const (
	sessionIDKey ContextKey = "sessionID"
	adminKey     ContextKey = "admin"
)

// AdminKeyHeader carries the operator key on admin routes
const AdminKeyHeader = "X-Admin-Key"

// TokenValidator validates candidate session tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (SessionIDGetter, error)
}

// SessionIDGetter extracts the session a token was issued for.
type SessionIDGetter interface {
	GetSessionID() string
}

// AdminVerifier checks the operator key.
type AdminVerifier interface {
	AdminKeyRequired() bool
	VerifyAdminKey(key string) bool
}

// RequireAdmin rejects requests without a valid admin key. When no key is
// configured every request passes and is treated as admin.
func RequireAdmin(verifier AdminVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.VerifyAdminKey(r.Header.Get(AdminKeyHeader)) {
				unauthorized(w, "admin key required")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, true)))
		})
	}
}

// RequireSession checks the candidate token against the {id} path value.
// A nil validator disables the check.
func RequireSession(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				next.ServeHTTP(w, r)
				return
			}
			sessionID, ok := authorizeSession(validator, r)
			if !ok {
				unauthorized(w, "valid session token required")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDKey, sessionID)))
		})
	}
}

// RequireAdminOrSession accepts either a valid admin key or a candidate token for the session.
func RequireAdminOrSession(verifier AdminVerifier, validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if !verifier.AdminKeyRequired() || (key != "" && verifier.VerifyAdminKey(key)) {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, true)))
				return
			}
			if validator != nil {
				if sessionID, ok := authorizeSession(validator, r); ok {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDKey, sessionID)))
					return
				}
			}
			unauthorized(w, "admin key or session token required")
		})
	}
}

func authorizeSession(validator TokenValidator, r *http.Request) (string, bool) {
	token := BearerToken(r)
	if token == "" {
		return "", false
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		return "", false
	}
	sessionID := claims.GetSessionID()
	want := r.PathValue("id")
	if want == "" || subtle.ConstantTimeCompare([]byte(sessionID), []byte(want)) != 1 {
		return "", false
	}
	return sessionID, true
}

// BearerToken returns the token from the Authorization header, falling back to the
// "token" query parameter that browsers must use for WebSocket upgrades.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// SessionID returns the session authorized by a candidate token, if any.
func SessionID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(sessionIDKey).(string)
	return id, ok
}

// IsAdmin reports whether the request passed the admin check.
func IsAdmin(r *http.Request) bool {
	admin, _ := r.Context().Value(adminKey).(bool)
	return admin
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": "unauthorized"})
}
