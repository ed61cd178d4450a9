package contextutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{"simple", "alice", true},
		{"with digits", "alice42", true},
		{"with hyphen and underscore", "alice-b_c", true},
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 65), false},
		{"empty", "", false},
		{"contains space", "alice smith", false},
		{"non printable", "alice\x00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidUsername(tt.username))
		})
	}
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, IsValidPassword("longenough"))
	assert.False(t, IsValidPassword("short"))
	assert.False(t, IsValidPassword(""))
}
