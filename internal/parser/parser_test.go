package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []domain.Content
	}{
		{
			name:     "Simple source and target",
			input:    "Q: la casa\nA: the house",
			expected: []domain.Content{{SourceText: "la casa", TargetText: "the house"}},
		},
		{
			name:  "All fields",
			input: "Q: ¿Qué hora es?\nA: What time is it?\nC: questions\nL: 2",
			expected: []domain.Content{{
				SourceText: "¿Qué hora es?",
				TargetText: "What time is it?",
				Pattern:    "questions",
				Level:      2,
			}},
		},
		{
			name: "Multiline target",
			input: `
Q: Los colores primarios
A: Rojo
Azul
Amarillo
`,
			expected: []domain.Content{{SourceText: "Los colores primarios", TargetText: "Rojo\nAzul\nAmarillo"}},
		},
		{
			name: "Two items without separator",
			input: `
Q: uno
A: one

Q: dos
A: two
`,
			expected: []domain.Content{
				{SourceText: "uno", TargetText: "one"},
				{SourceText: "dos", TargetText: "two"},
			},
		},
		{
			name:  "Separator ends an item",
			input: "Q: tres\nA: three\n---\nnotes between items\n---\nQ: cuatro\nA: four",
			expected: []domain.Content{
				{SourceText: "tres", TargetText: "three"},
				{SourceText: "cuatro", TargetText: "four"},
			},
		},
		{
			name:     "Lines after a level are dropped",
			input:    "Q: cinco\nL: 1\nstray text\nA: five",
			expected: []domain.Content{{SourceText: "cinco", TargetText: "five", Level: 1}},
		},
		{
			name:     "No items, just text",
			input:    "This is a file with no questions.",
			expected: nil,
		},
		{
			name:     "Prefixes with no space",
			input:    "Q:Pregunta\nA:Answer",
			expected: []domain.Content{{SourceText: "Pregunta", TargetText: "Answer"}},
		},
		{
			name:     "Blank source is skipped",
			input:    "Q:   \nA: orphan answer",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, items)
		})
	}
}

func TestParseInvalidLevel(t *testing.T) {
	for _, input := range []string{"Q: x\nL: high", "Q: x\nL: -1"} {
		_, err := Parse(strings.NewReader(input))
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.md")
	require.NoError(t, os.WriteFile(path, []byte("Q: gato\nA: cat\n"), 0o600))

	items, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.Content{{SourceText: "gato", TargetText: "cat"}}, items)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
