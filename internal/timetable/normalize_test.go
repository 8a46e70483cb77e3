package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTrainNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Feed scope prefix stripped",
			input:    "1:1111406H",
			expected: "406H",
		},
		{
			name:     "Operator route prefix stripped",
			input:    "42000906G",
			expected: "906G",
		},
		{
			name:     "Leading zeros stripped",
			input:    "4200406H",
			expected: "406H",
		},
		{
			name:     "Plain train number passes through",
			input:    "400G",
			expected: "400G",
		},
		{
			name:     "Lower case letter upper cased",
			input:    "400g",
			expected: "400G",
		},
		{
			name:     "Four digit body kept",
			input:    "1234G",
			expected: "1234G",
		},
		{
			name:     "Dotted timetable identifier",
			input:    "JR-East.Yamanote.400G.Weekday",
			expected: "400G",
		},
		{
			name:     "No letter tail",
			input:    "420012",
			expected: "",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Letters only",
			input:    "Yamanote",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTrainNumber(tt.input))
		})
	}
}

func TestNormalizeTrainNumberIdempotent(t *testing.T) {
	inputs := []string{"1:1111406H", "42000906G", "4200406H", "400G", "0042A"}
	for _, input := range inputs {
		once := NormalizeTrainNumber(input)
		if once == "" {
			continue
		}
		assert.Equal(t, once, NormalizeTrainNumber(once), "normalize should be idempotent for %q", input)
	}
}

func TestNormalizeTrainNumberAgreesAcrossFeeds(t *testing.T) {
	// The same physical train appears under different identifier schemes.
	assert.Equal(t, NormalizeTrainNumber("1:1111406H"), NormalizeTrainNumber("4200406H"))
	assert.Equal(t, "406H", NormalizeTrainNumber("4200406H"))
}
