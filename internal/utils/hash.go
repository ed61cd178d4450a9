package contextutils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeQuestionText canonicalizes question text for duplicate detection:
// lowercased, punctuation stripped, whitespace collapsed to single spaces.
func NormalizeQuestionText(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// QuestionHash returns the hex-encoded SHA-256 of the normalized question text.
// Two questions that differ only in casing, punctuation or spacing hash equal.
func QuestionHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestionText(text)))
	return hex.EncodeToString(sum[:])
}
