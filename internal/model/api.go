package model

// Error codes returned by the attempt API
const (
	CodeNeedTestPassword   = "NEED_TEST_PASSWORD"
	CodeMaxAttemptsReached = "MAX_ATTEMPTS_REACHED"
)

// StartAttemptRequest begins a new attempt at a test
type StartAttemptRequest struct {
	Fingerprint string `json:"fingerprint"`
	Password    string `json:"password,omitempty"`
}

// RecordEventRequest persists one proctor event
type RecordEventRequest struct {
	Kind EventKind         `json:"kind"`
	Meta map[string]string `json:"meta,omitempty"`
}

// PushCountersRequest pushes the accumulated tab-tracking counters
type PushCountersRequest struct {
	TabSwitchCount     int `json:"tabSwitchCount"`
	TimeOffPageSeconds int `json:"timeOffPageSeconds"`
}

// UpsertAnswerRequest creates or replaces the answer for one question
type UpsertAnswerRequest struct {
	QuestionID        string   `json:"questionId"`
	AnswerText        string   `json:"answerText,omitempty"`
	SelectedOptionIDs []string `json:"selectedOptionIds,omitempty"`
	NumericAnswer     *float64 `json:"numericAnswer,omitempty"`
	BlankAnswers      []string `json:"blankAnswers,omitempty"`
	MarkedForReview   bool     `json:"markedForReview"`
}

// SubmitAttemptRequest finalizes an attempt
type SubmitAttemptRequest struct {
	ClientFingerprint string `json:"clientFingerprint"`
}

// SuggestMode selects single-answer or whole-attempt suggestion generation
type SuggestMode string

const (
	SuggestSingle SuggestMode = "single"
	SuggestAll    SuggestMode = "all"
)

// SuggestGradesRequest fetches AI grade suggestions for an attempt
type SuggestGradesRequest struct {
	Mode     SuggestMode `json:"mode"`
	AnswerID string      `json:"answerId,omitempty"` // Required for mode "single"
}

// GradeInput is one grader-entered grade in a save request
type GradeInput struct {
	AnswerID      string  `json:"answerId"`
	PointsAwarded float64 `json:"pointsAwarded"`
	GraderNote    string  `json:"graderNote,omitempty"`
}

// SaveGradesRequest commits grader edits for free-response answers
type SaveGradesRequest struct {
	Grades []GradeInput `json:"grades"`
}
