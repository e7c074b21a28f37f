package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	state := map[string]any{
		"blog_outline": "1. Intro 2. Body",
		"count":        3,
	}

	t.Run("no placeholders", func(t *testing.T) {
		out, err := RenderTemplate("plain text", state)
		require.NoError(t, err)
		assert.Equal(t, "plain text", out)
	})

	t.Run("substitution", func(t *testing.T) {
		out, err := RenderTemplate("Write from outline: {blog_outline}", state)
		require.NoError(t, err)
		assert.Equal(t, "Write from outline: 1. Intro 2. Body", out)
	})

	t.Run("non string value", func(t *testing.T) {
		out, err := RenderTemplate("retries={count}", state)
		require.NoError(t, err)
		assert.Equal(t, "retries=3", out)
	})

	t.Run("missing key is an error", func(t *testing.T) {
		_, err := RenderTemplate("use {missing_key} here", state)
		require.Error(t, err)
		var mv *MissingVariableError
		require.ErrorAs(t, err, &mv)
		assert.Equal(t, "missing_key", mv.Variable)
	})

	t.Run("escaped braces", func(t *testing.T) {
		out, err := RenderTemplate("literal {{braces}} and {count}", state)
		require.NoError(t, err)
		assert.Equal(t, "literal {braces} and 3", out)
	})

	t.Run("unterminated placeholder", func(t *testing.T) {
		_, err := RenderTemplate("broken {placeholder", state)
		assert.Error(t, err)
	})
}

func TestSchemaFor(t *testing.T) {
	type params struct {
		Topic  string  `json:"topic" description:"subject to cover"`
		Limit  int     `json:"limit,omitempty"`
		Factor *float64 `json:"factor"`
	}

	schema := SchemaFor(params{})
	assert.Equal(t, "object", schema["type"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, "string", props["topic"].(map[string]any)["type"])
	assert.Equal(t, "subject to cover", props["topic"].(map[string]any)["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "number", props["factor"].(map[string]any)["type"])

	assert.Equal(t, []string{"topic"}, schema["required"])
}

func TestValidateArguments(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		},
		"required": []string{"topic"},
	}

	assert.NoError(t, ValidateArguments(map[string]any{"topic": "go", "limit": float64(2)}, schema))

	err := ValidateArguments(map[string]any{"limit": 2}, schema)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "topic", ve.Field)

	err = ValidateArguments(map[string]any{"topic": 42}, schema)
	require.Error(t, err)

	// fields outside the schema pass through
	assert.NoError(t, ValidateArguments(map[string]any{"topic": "go", "extra": true}, schema))
}
