package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured log field keys
const (
	FieldSessionID  = "session_id"
	FieldRoleID     = "role_id"
	FieldQuestionID = "question_id"
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(l *zap.Logger, fields ...zap.Field) *zap.Logger {
	l = OrNop(l)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// SessionFields describes a session and, when set, its active question.
func SessionFields(sessionID, roleID, questionID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSessionID, Value: sessionID},
		StringField{Key: FieldRoleID, Value: roleID},
		StringField{Key: FieldQuestionID, Value: questionID},
	)
}

// ModelFields describes the AI provider and model.
func ModelFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithModel attaches the provider and model fields to the logger.
func WithModel(l *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(l, ModelFields(provider, model)...)
}
