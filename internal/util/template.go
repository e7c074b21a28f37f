package util

import (
	"fmt"
	"strings"
)

// MissingVariableError reports a `{key}` placeholder with no matching state key.
type MissingVariableError struct {
	Variable string
}

// Error implements the error interface.
func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("instruction references undefined state key %q", e.Variable)
}

// RenderTemplate substitutes `{key}` placeholders in text with values from
// state. Resolution is strict: a placeholder naming an absent key is an error
// rather than silently rendering empty. Literal braces are written as `{{`
// and `}}`. This lives in internal to avoid committing to public API
// stability prematurely.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.ContainsRune(text, '{') {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			b.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			b.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			name := text[i+1 : i+end]
			val, ok := state[name]
			if !ok {
				return "", &MissingVariableError{Variable: name}
			}
			fmt.Fprintf(&b, "%v", val)
			i += end + 1
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), nil
}
