// Package agent runs a blood report through a fixed sequence of
// role-specialized LLM stages: verification, analysis, nutrition, exercise.
package agent

import "strings"

type StageName string

const (
	StageVerification StageName = "verification"
	StageAnalysis     StageName = "analysis"
	StageNutrition    StageName = "nutrition"
	StageExercise     StageName = "exercise"
)

// Stage describes one role in the pipeline. Descriptors are plain values
// built per run; the pipeline never mutates them.
type Stage struct {
	Name           StageName
	Role           string
	Goal           string
	Backstory      string
	Task           string // {query} is replaced with the user's query
	ExpectedOutput string

	// MaxIter bounds provider calls for this stage, delegation included.
	MaxIter         int
	AllowDelegation bool
	UsesQuery       bool
	UsesFindings    bool
}

func (s Stage) maxIter() int {
	if s.MaxIter < 1 {
		return 1
	}
	return s.MaxIter
}

// MaxCalls is the most provider calls a run over stages can make.
func MaxCalls(stages []Stage) int {
	n := 0
	for _, s := range stages {
		n += s.maxIter()
	}
	return n
}

func (s Stage) task(query string) string {
	return strings.ReplaceAll(s.Task, "{query}", query)
}

// DefaultStages returns fresh descriptors for the four stages in execution order.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name: StageVerification,
			Role: "Medical Report Verifier",
			Goal: "Verify the accuracy and validity of medical reports",
			Backstory: "You are a meticulous medical records specialist with a keen eye for detail. " +
				"You carefully review all documents to ensure they are valid medical reports " +
				"and flag any potential issues or inconsistencies.",
			Task: "Verify the validity of the uploaded blood test report and confirm it contains all necessary components.",
			ExpectedOutput: "A single JSON object and nothing else: " +
				`{"valid": <true|false>, "missing_components": [<strings>], "notes": "<completeness assessment and any issues>"}`,
			MaxIter: 2,
		},
		{
			Name: StageAnalysis,
			Role: "Senior Doctor",
			Goal: "Provide accurate medical advice based on blood test reports and patient queries",
			Backstory: "You are an experienced medical professional with 15+ years of experience. " +
				"You carefully analyze blood test reports and provide evidence-based recommendations. " +
				"You consider all factors before making a diagnosis and always prioritize patient safety.",
			Task: "Analyze the patient's blood test report and provide a comprehensive health assessment " +
				"based on their query: {query}",
			ExpectedOutput: "A detailed analysis of the blood test report including:\n" +
				"- Summary of key findings\n" +
				"- Interpretation of abnormal values\n" +
				"- Potential health implications\n" +
				"- Recommended next steps or follow-up tests\n" +
				"- Answers to the patient's specific questions",
			MaxIter:         3,
			AllowDelegation: true,
			UsesQuery:       true,
		},
		{
			Name: StageNutrition,
			Role: "Clinical Nutritionist",
			Goal: "Provide evidence-based nutritional advice based on blood test results",
			Backstory: "You are a certified nutritionist with expertise in interpreting blood test results. " +
				"You provide personalized dietary recommendations based on scientific evidence " +
				"and the patient's specific health markers.",
			Task: "Analyze the blood test results and provide personalized nutritional recommendations " +
				"based on the values. Patient query: {query}",
			ExpectedOutput: "A nutrition plan including:\n" +
				"- Foods to include/avoid based on test results\n" +
				"- Recommended supplements (if medically indicated)\n" +
				"- Lifestyle modifications\n" +
				"- Scientific references supporting recommendations",
			MaxIter:      2,
			UsesQuery:    true,
			UsesFindings: true,
		},
		{
			Name: StageExercise,
			Role: "Exercise Physiologist",
			Goal: "Create safe and effective exercise plans based on health status",
			Backstory: "You are a certified exercise specialist with training in adapting workouts " +
				"for various health conditions. You create personalized exercise programs " +
				"that consider the patient's current health status and limitations.",
			Task: "Create a safe exercise plan based on the patient's blood test results and health status. " +
				"Patient query: {query}",
			ExpectedOutput: "An exercise prescription including:\n" +
				"- Recommended types of exercise\n" +
				"- Intensity and duration guidelines\n" +
				"- Contraindications or precautions\n" +
				"- Gradual progression plan",
			MaxIter:      2,
			UsesQuery:    true,
			UsesFindings: true,
		},
	}
}
