package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuestionText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "What Is 2+2?", "what is 22"},
		{"strips punctuation", "solve: x^2 - 4 = 0!", "solve x2 4 0"},
		{"collapses whitespace", "  a   b\t\nc  ", "a b c"},
		{"keeps digits and underscores", "value_1 equals 10", "value_1 equals 10"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeQuestionText(tt.input))
		})
	}
}

func TestQuestionHash_EquivalentTexts(t *testing.T) {
	a := QuestionHash("What is 1/2 + 1/4?")
	b := QuestionHash("what is 12   + 14")
	assert.Equal(t, a, b)

	c := QuestionHash("What is 1/3 + 1/4?")
	assert.NotEqual(t, a, c)
}

func TestQuestionHash_Stable(t *testing.T) {
	// 64 hex chars of SHA-256
	h := QuestionHash("anything")
	assert.Len(t, h, 64)
	assert.Equal(t, h, QuestionHash("anything"))
}
