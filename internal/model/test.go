package model

import "time"

// QuestionType defines the type of question
type QuestionType string

const (
	QuestionTypeSingleSelect QuestionType = "SINGLE_SELECT" // One correct option, auto-graded
	QuestionTypeMultiSelect  QuestionType = "MULTI_SELECT"  // Several correct options, auto-graded
	QuestionTypeNumeric      QuestionType = "NUMERIC"       // Numeric value with tolerance, auto-graded
	QuestionTypeBlankFill    QuestionType = "BLANK_FILL"    // Ordered blank-fill values, auto-graded
	QuestionTypeFreeResponse QuestionType = "FREE_RESPONSE" // Human (or AI-assisted) graded
)

// IsObjective reports whether answers of this type are auto-graded at submission.
func (t QuestionType) IsObjective() bool {
	return t != QuestionTypeFreeResponse
}

// Option is a selectable choice on a single/multi-select question
type Option struct {
	ID      string `json:"id" bson:"id"`
	Text    string `json:"text" bson:"text"`
	Correct bool   `json:"-" bson:"correct"`
}

// Question is one question of a Test. Immutable once an attempt begins.
type Question struct {
	ID               string       `json:"id" bson:"id"`
	Type             QuestionType `json:"type" bson:"type"`
	Prompt           string       `json:"prompt" bson:"prompt"`
	Points           float64      `json:"points" bson:"points"`
	Options          []Option     `json:"options,omitempty" bson:"options,omitempty"`
	CorrectNumeric   *float64     `json:"-" bson:"correctNumeric,omitempty"`
	NumericTolerance float64      `json:"-" bson:"numericTolerance,omitempty"`
	CorrectBlanks    []string     `json:"-" bson:"correctBlanks,omitempty"` // One entry per blank, in order
	Rubric           string       `json:"-" bson:"rubric,omitempty"`       // Grading guidance for FRQ
}

// Test is the immutable configuration an attempt runs against
type Test struct {
	ID                string     `json:"id" bson:"_id,omitempty"`
	Title             string     `json:"title" bson:"title"`
	DurationSeconds   int        `json:"durationSeconds" bson:"durationSeconds"`
	OpensAt           time.Time  `json:"opensAt" bson:"opensAt"`
	ClosesAt          time.Time  `json:"closesAt" bson:"closesAt"`
	LateDeadline      *time.Time `json:"lateDeadline,omitempty" bson:"lateDeadline,omitempty"` // Late-allowance start deadline
	MaxAttempts       int        `json:"maxAttempts" bson:"maxAttempts"`
	RequireFullscreen bool       `json:"requireFullscreen" bson:"requireFullscreen"`
	AllowMultiSession bool       `json:"allowMultiSession" bson:"allowMultiSession"` // Permits save & exit
	PasswordHash      string     `json:"-" bson:"passwordHash,omitempty"`            // SHA-256 hex; empty means no password
	Questions         []Question `json:"questions" bson:"questions"`
}

// HasPassword reports whether starting an attempt requires a password.
func (t *Test) HasPassword() bool {
	return t.PasswordHash != ""
}

// StartWindowOpen reports whether a new attempt may begin at now.
// The late-allowance deadline, when set, extends the start window past ClosesAt.
func (t *Test) StartWindowOpen(now time.Time) bool {
	if now.Before(t.OpensAt) {
		return false
	}
	deadline := t.ClosesAt
	if t.LateDeadline != nil && t.LateDeadline.After(deadline) {
		deadline = *t.LateDeadline
	}
	return !now.After(deadline)
}

// TotalPoints is the sum of points across all questions.
func (t *Test) TotalPoints() float64 {
	var sum float64
	for _, q := range t.Questions {
		sum += q.Points
	}
	return sum
}

// QuestionByID returns the question with the given id, or nil.
func (t *Test) QuestionByID(id string) *Question {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i]
		}
	}
	return nil
}
