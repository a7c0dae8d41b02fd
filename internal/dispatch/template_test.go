package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		data     map[string]any
		expected string
	}{
		{
			name:     "substitutes known keys",
			template: `{"t":"{{title}}","b":"{{body}}"}`,
			data:     map[string]any{"title": "Hi", "body": "Yo"},
			expected: `{"t":"Hi","b":"Yo"}`,
		},
		{
			name:     "unmatched keys become empty string",
			template: `{"t":"{{title}}","x":"{{missing}}"}`,
			data:     map[string]any{"title": "Hi"},
			expected: `{"t":"Hi","x":""}`,
		},
		{
			name:     "nil values become empty string",
			template: `{"room":"{{roomId}}"}`,
			data:     map[string]any{"roomId": nil},
			expected: `{"room":""}`,
		},
		{
			name:     "numeric values render without exponent",
			template: `{"room":{{roomId}},"n":{{count}}}`,
			data:     map[string]any{"roomId": int64(42), "count": float64(7)},
			expected: `{"room":42,"n":7}`,
		},
		{
			name:     "repeated placeholders all substituted",
			template: `{{title}} and {{title}}`,
			data:     map[string]any{"title": "A"},
			expected: `A and A`,
		},
		{
			name:     "no placeholders leaves template untouched",
			template: `{"static":true}`,
			data:     map[string]any{"title": "Hi"},
			expected: `{"static":true}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RenderTemplate(tc.template, tc.data))
		})
	}
}
