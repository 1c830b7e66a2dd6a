package model

import "time"

// AttemptStatus is the lifecycle state of an attempt.
// Forward-only except for the pause/resume cycle, which stays IN_PROGRESS.
type AttemptStatus string

const (
	AttemptNotStarted  AttemptStatus = "NOT_STARTED"
	AttemptInProgress  AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted   AttemptStatus = "SUBMITTED"
	AttemptGraded      AttemptStatus = "GRADED"
	AttemptInvalidated AttemptStatus = "INVALIDATED"
)

// Terminal reports whether the status admits no further transitions
// other than SUBMITTED -> GRADED / INVALIDATED.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptGraded || s == AttemptInvalidated
}

// Attempt is one user's run at a Test. Exactly one attempt per (test, user)
// may be IN_PROGRESS at a time.
type Attempt struct {
	ID                 string        `json:"id" bson:"_id,omitempty"`
	TestID             string        `json:"testId" bson:"testId"`
	UserID             string        `json:"userId" bson:"userId"`
	Status             AttemptStatus `json:"status" bson:"status"`
	StartedAt          time.Time     `json:"startedAt" bson:"startedAt"`
	SubmittedAt        *time.Time    `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	TabSwitchCount     int           `json:"tabSwitchCount" bson:"tabSwitchCount"`
	TimeOffPageSeconds int           `json:"timeOffPageSeconds" bson:"timeOffPageSeconds"`
	ProctoringScore    float64       `json:"proctoringScore" bson:"proctoringScore"`
	GradeEarned        *float64      `json:"gradeEarned,omitempty" bson:"gradeEarned,omitempty"`
	ClientFingerprint  string        `json:"clientFingerprint,omitempty" bson:"clientFingerprint,omitempty"`
}

// Answer is one user's response to one question of an attempt
type Answer struct {
	ID                string     `json:"id" bson:"_id,omitempty"`
	AttemptID         string     `json:"attemptId" bson:"attemptId"`
	QuestionID        string     `json:"questionId" bson:"questionId"`
	AnswerText        string     `json:"answerText,omitempty" bson:"answerText,omitempty"`
	SelectedOptionIDs []string   `json:"selectedOptionIds,omitempty" bson:"selectedOptionIds,omitempty"`
	NumericAnswer     *float64   `json:"numericAnswer,omitempty" bson:"numericAnswer,omitempty"`
	BlankAnswers      []string   `json:"blankAnswers,omitempty" bson:"blankAnswers,omitempty"`
	MarkedForReview   bool       `json:"markedForReview" bson:"markedForReview"`
	PointsAwarded     *float64   `json:"pointsAwarded,omitempty" bson:"pointsAwarded,omitempty"`
	GradedAt          *time.Time `json:"gradedAt,omitempty" bson:"gradedAt,omitempty"`
	GraderNote        string     `json:"graderNote,omitempty" bson:"graderNote,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Graded reports whether the answer carries a grade timestamp.
func (a *Answer) Graded() bool {
	return a.GradedAt != nil
}

// Empty reports whether the answer holds no response payload at all.
func (a *Answer) Empty() bool {
	return a.AnswerText == "" && len(a.SelectedOptionIDs) == 0 &&
		a.NumericAnswer == nil && len(a.BlankAnswers) == 0
}
