package model

// GradeSuggestion is an AI-proposed grade for one answer. Ephemeral: it lives
// only for the current grading session and becomes durable only when a grader
// applies it and explicitly saves.
type GradeSuggestion struct {
	AnswerID        string   `json:"answerId"`
	SuggestedPoints float64  `json:"suggestedPoints"`
	MaxPoints       float64  `json:"maxPoints"`
	Explanation     string   `json:"explanation"`
	Strengths       []string `json:"strengths,omitempty"`
	Gaps            []string `json:"gaps,omitempty"`
}

// ScoreBreakdown is the honest partial-grading view of an attempt:
// Earned and GradedTotal count only answers with a grade timestamp,
// OverallTotal is always the full question-point sum.
type ScoreBreakdown struct {
	Earned       float64 `json:"earnedPoints"`
	GradedTotal  float64 `json:"gradedTotalPoints"`
	OverallTotal float64 `json:"overallTotalPoints"`
}
