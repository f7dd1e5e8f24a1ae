package agent

import (
	"encoding/json"
	"strings"

	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// parseVerdict extracts the verifier's JSON object from free text, tolerating
// code fences and prose around it. ok is false when no object with a "valid"
// field can be decoded.
func parseVerdict(text string) (models.Verdict, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return models.Verdict{}, false
	}

	var raw struct {
		Valid             *bool    `json:"valid"`
		MissingComponents []string `json:"missing_components"`
		Notes             string   `json:"notes"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil || raw.Valid == nil {
		return models.Verdict{}, false
	}

	v := models.Verdict{
		Valid:             *raw.Valid,
		MissingComponents: raw.MissingComponents,
		Notes:             raw.Notes,
	}
	if v.MissingComponents == nil {
		v.MissingComponents = []string{}
	}
	return v, true
}

// fallbackVerdict keeps an unparseable verifier answer as notes. It is never
// reported as valid.
func fallbackVerdict(text string) models.Verdict {
	return models.Verdict{
		Valid:             false,
		MissingComponents: []string{},
		Notes:             text,
	}
}
