package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim spaces", "  Ada Lovelace  ", "Ada Lovelace"},
		{"multiple spaces between words", "Ada    Lovelace", "Ada Lovelace"},
		{"tabs and newlines", "Ada\t\nLovelace", "Ada Lovelace"},
		{"empty string", "", ""},
		{"only whitespace", "   \t\n  ", ""},
		{"control characters dropped", "Ada\x00 Lovelace", "Ada Lovelace"},
		{"preserve special characters", " Café & Co™ ", "Café & Co™"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, TrimAndNormalize(got), "must be idempotent")
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("ada @example.com"))
	assert.Equal(t, "", NormalizeEmail(""))
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "Desk-A", NormalizeIdentifier(" Desk-A\n"))
	assert.Equal(t, "", NormalizeIdentifier(" \t "))
}

func TestNormalizeIdentifiers(t *testing.T) {
	got := NormalizeIdentifiers([]string{" a", "b", "a ", "", "  ", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []string{}, NormalizeIdentifiers(nil))
}
