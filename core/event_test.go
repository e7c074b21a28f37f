package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventText_NilContent(t *testing.T) {
	ev := Event{ID: NewID(), Author: "system"}

	assert.Equal(t, "", ev.Text())
	assert.Empty(t, ev.FunctionCalls())
}

func TestEventText_ConcatenatesTextParts(t *testing.T) {
	ev := NewMessageEvent("inv-1", "writer", "hello")

	assert.Equal(t, "hello", ev.Text())
}
