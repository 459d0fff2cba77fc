// Package validate checks and normalizes task text coming from untrusted
// callers before it reaches the store.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fentz26/tasklist/internal/taskerr"
)

// DefaultMaxLength is the maximum task text length, in runes.
const DefaultMaxLength = 500

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeAndValidate returns the normalized form of raw.
//
// The length limit applies to raw before any trimming so normalization cannot
// be used to smuggle oversized input past it. A maxLen <= 0 selects
// DefaultMaxLength.
func NormalizeAndValidate(raw string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	if n := utf8.RuneCountInString(raw); n > maxLen {
		return "", fmt.Errorf("%w: %d characters, limit is %d", taskerr.ErrTooLong, n, maxLen)
	}
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: null byte", taskerr.ErrInvalidCharacters)
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return "", taskerr.ErrEmptyInput
	}
	return collapseLines(text), nil
}

// collapseLines joins a multi-line paste into one line. Whitespace around
// each break is dropped and consecutive breaks count as one.
func collapseLines(s string) string {
	s = lineBreaks.Replace(s)
	if !strings.Contains(s, "\n") {
		return s
	}
	parts := strings.Split(s, "\n")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
