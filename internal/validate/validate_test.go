package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/tasklist/internal/taskerr"
)

func TestNormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "buy milk", "buy milk"},
		{"trims", "  buy milk \t", "buy milk"},
		{"collapses newline", "buy\nmilk", "buy milk"},
		{"collapses crlf runs", "buy\r\n\r\n  milk\r", "buy milk"},
		{"keeps inner spaces", "a  b", "a  b"},
		{"unicode", "  café ☕ ", "café ☕"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAndValidate(tt.in, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAndValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", taskerr.ErrEmptyInput},
		{"blank", "   ", taskerr.ErrEmptyInput},
		{"only newlines", "\n\r\n", taskerr.ErrEmptyInput},
		{"null byte", "a\x00b", taskerr.ErrInvalidCharacters},
		{"too long", strings.Repeat("a", 501), taskerr.ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeAndValidate(tt.in, DefaultMaxLength)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, taskerr.KindInvalidInput, taskerr.KindOf(err))
		})
	}
}

func TestNormalizeAndValidate_LengthBoundary(t *testing.T) {
	got, err := NormalizeAndValidate(strings.Repeat("a", 500), 500)
	require.NoError(t, err)
	assert.Len(t, got, 500)

	// Whitespace that trimming would remove still counts against the limit.
	_, err = NormalizeAndValidate(strings.Repeat("a", 499)+"  ", 500)
	assert.True(t, errors.Is(err, taskerr.ErrTooLong))
}

func TestNormalizeAndValidate_CountsRunes(t *testing.T) {
	_, err := NormalizeAndValidate(strings.Repeat("é", 10), 10)
	assert.NoError(t, err)
}
