package models

// Report is the output of one agent pipeline run. It is serialized to JSON
// and stored as AnalysisResult.Analysis.
type Report struct {
	Verification Verdict `json:"verification"`
	Findings     string  `json:"findings"`
	Nutrition    string  `json:"nutrition"`
	Exercise     string  `json:"exercise"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
}

// Verdict is the verification stage's structured output.
type Verdict struct {
	Valid             bool     `json:"valid"`
	MissingComponents []string `json:"missing_components"`
	Notes             string   `json:"notes,omitempty"`
}
