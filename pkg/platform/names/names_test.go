package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  M  ", "r_p  ", "  v_rel"},
			expected: []string{"M", "r_p", "v_rel"},
		},
		{
			name:     "drops empty strings",
			input:    []string{"M", "", "  ", "alpha"},
			expected: []string{"M", "alpha"},
		},
		{
			name:     "keeps duplicates for the caller to report",
			input:    []string{"Q", " Q "},
			expected: []string{"Q", "Q"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Trim(tt.input))
		})
	}
}

func TestDuplicates(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"all unique", []string{"M", "r_p", "alpha"}, nil},
		{"reports each duplicate once", []string{"M", "r_p", "M", "v_rel", "r_p", "M"}, []string{"M", "r_p"}},
		{"case sensitive", []string{"M", "m"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Duplicates(tt.input))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("r_p"))
	assert.True(t, Valid("log10_Q"))
	assert.False(t, Valid(""))
	assert.False(t, Valid(" M"))
	assert.False(t, Valid("a,b"))
	assert.False(t, Valid("quote\"d"))
	assert.False(t, Valid("line\nbreak"))
}
