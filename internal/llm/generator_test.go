package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSystem(t *testing.T) {
	system, dialog := SplitSystem([]Message{
		{Role: RoleSystem, Content: "You are the interviewer."},
		{Role: RoleSystem, Name: "pinned_context", Content: `{"jd_digest":"x"}`},
		{Role: RoleAssistant, Content: "Q1?"},
		{Role: RoleUser, Content: "answer"},
		{Role: RoleSystem, Content: "  "},
	})

	assert.Equal(t, "You are the interviewer.\n\n{\"jd_digest\":\"x\"}", system)
	require.Len(t, dialog, 2)
	assert.Equal(t, RoleAssistant, dialog[0].Role)
}

func TestPrepareDialog(t *testing.T) {
	_, err := prepareDialog(nil)
	assert.Error(t, err)

	_, err = prepareDialog([]Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}})
	assert.Error(t, err)

	dialog, err := prepareDialog([]Message{{Role: RoleAssistant, Content: "Q?"}, {Role: RoleUser, Content: "A"}})
	require.NoError(t, err)
	require.Len(t, dialog, 3)
	assert.Equal(t, resumePlaceholder, dialog[0].Content)
	assert.Equal(t, RoleUser, dialog[0].Role)
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(context.Background(), &Config{Provider: ProviderScripted}, TierStandard)
	require.NoError(t, err)
	assert.Equal(t, "scripted", gen.Model())
	assert.NoError(t, gen.Close())

	_, err = NewGenerator(context.Background(), &Config{Provider: "openai"}, TierStandard)
	assert.Error(t, err)

	_, err = NewGenerator(context.Background(), DefaultConfig(), TierStandard)
	assert.Error(t, err, "gemini without an api key")
}

func TestScriptedGenerator(t *testing.T) {
	ctx := context.Background()
	gen := NewScriptedGenerator("first?", "second?")

	res, err := gen.Generate(ctx, []Message{{Role: RoleSystem, Content: "sys"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, scriptedOpening, res.Text)

	msgs := []Message{{Role: RoleAssistant, Content: "Q"}, {Role: RoleUser, Content: "I led a migration."}}
	for _, want := range []string{"first?", "second?", "first?"} {
		res, err = gen.Generate(ctx, msgs, nil)
		require.NoError(t, err)
		assert.Equal(t, want, res.Text)
		assert.Empty(t, res.ToolCalls)
	}
	assert.Equal(t, 4, gen.Calls())
}

func TestScriptedGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScriptedGenerator().Generate(ctx, []Message{{Role: RoleUser, Content: "x"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
