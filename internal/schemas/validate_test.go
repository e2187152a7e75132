package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_QuestionSummary(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "valid",
			doc:  `{"bullet_summary": ["a", "b", "c"], "evidence_snippets": ["we cut p99 by 40%"], "confidence": 0.7}`,
		},
		{
			name:    "too few bullets",
			doc:     `{"bullet_summary": ["a", "b"], "confidence": 0.7}`,
			wantErr: true,
		},
		{
			name:    "too many snippets",
			doc:     `{"bullet_summary": ["a", "b", "c"], "evidence_snippets": ["x", "y", "z"], "confidence": 0.7}`,
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			doc:     `{"bullet_summary": ["a", "b", "c"], "confidence": 1.5}`,
			wantErr: true,
		},
		{
			name:    "missing confidence",
			doc:     `{"bullet_summary": ["a", "b", "c"]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			doc:     `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(QuestionSummary, []byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.NotEmpty(t, vErr.Errors)
		})
	}
}

func TestValidate_ScoringPayload(t *testing.T) {
	doc := `{
		"session_id": "s1",
		"role_id": "swe",
		"pinned_context": {},
		"rubric": "",
		"canonical_questions": [{"question_id": "q", "order_index": 0, "question_text": "Q"}],
		"question_summaries": [{"question_id": "q", "outcome": "skipped", "bullet_summary": ["a","b","c"], "confidence": 0.2}],
		"full_transcripts": []
	}`
	assert.NoError(t, Validate(ScoringPayload, []byte(doc)))

	err := Validate(ScoringPayload, []byte(`{"session_id": "s1"}`))
	assert.Error(t, err)
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.json", []byte(`{}`))
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "missing.json", loadErr.Name)
}
