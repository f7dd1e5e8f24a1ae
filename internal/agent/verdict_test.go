package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		ok      bool
		valid   bool
		missing []string
	}{
		{"plain json", `{"valid": true, "missing_components": []}`, true, true, []string{}},
		{"fenced", "```json\n{\"valid\": false, \"missing_components\": [\"lipid panel\"]}\n```", true, false, []string{"lipid panel"}},
		{"prose around", "Here you go: {\"valid\": true} hope it helps", true, true, []string{}},
		{"missing valid field", `{"missing_components": []}`, false, false, nil},
		{"no object", "valid report", false, false, nil},
		{"broken json", `{"valid": tru`, false, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := parseVerdict(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.valid, v.Valid)
				assert.Equal(t, tt.missing, v.MissingComponents)
			}
		})
	}
}

func TestFallbackVerdict(t *testing.T) {
	v := fallbackVerdict("not sure")
	assert.False(t, v.Valid)
	assert.Equal(t, "not sure", v.Notes)
	assert.NotNil(t, v.MissingComponents)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 10))
	assert.Equal(t, "ab", truncateString("abc", 2))
	// "é" is two bytes; never split it
	assert.Equal(t, "a", truncateString("aé", 2))
}
