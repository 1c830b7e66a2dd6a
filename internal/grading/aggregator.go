package grading

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"proctorly/internal/model"
)

var (
	ErrUnknownAnswer       = errors.New("answer not part of this grading session")
	ErrObjectiveImmutable  = errors.New("objective answers are auto-graded and read-only")
	ErrNoSuggestion        = errors.New("no suggestion fetched for this answer")
	ErrPointsOutOfBounds   = errors.New("points outside [0, question points]")
	ErrUnknownQuestionType = errors.New("answer references a question not on the test")
)

// API is the slice of the attempt API a grading session needs.
type API interface {
	ListAnswers(ctx context.Context, attemptID string) ([]model.Answer, error)
	SuggestGrades(ctx context.Context, attemptID string, req model.SuggestGradesRequest) ([]model.GradeSuggestion, error)
	SaveGrades(ctx context.Context, attemptID string, req model.SaveGradesRequest) error
}

// Breakdown computes the honest partial-grading score view: Earned and
// GradedTotal include only answers with a grade timestamp, so a partially
// graded attempt shows a truthful ratio; OverallTotal is always the full
// question-point sum, showing how much grading remains.
func Breakdown(test *model.Test, answers []model.Answer) model.ScoreBreakdown {
	b := model.ScoreBreakdown{OverallTotal: test.TotalPoints()}
	for _, a := range answers {
		if !a.Graded() {
			continue
		}
		q := test.QuestionByID(a.QuestionID)
		if q == nil {
			continue
		}
		b.GradedTotal += q.Points
		if a.PointsAwarded != nil {
			b.Earned += *a.PointsAwarded
		}
	}
	return b
}

// gradeEdit is one buffered, not-yet-saved grader edit.
type gradeEdit struct {
	points float64
	note   string
}

// Session is one grader's pass over an attempt. Edits and AI suggestions are
// buffered locally; the explicit Save is the only path to a durable grade
// change, so a suggestion can never silently become authoritative.
type Session struct {
	api       API
	test      *model.Test
	attemptID string

	mu          sync.Mutex
	answers     map[string]model.Answer // By answer id
	edits       map[string]*gradeEdit
	suggestions map[string]model.GradeSuggestion
}

// NewSession fetches the attempt's answers and opens a grading session.
func NewSession(ctx context.Context, api API, test *model.Test, attemptID string) (*Session, error) {
	answers, err := api.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	s := &Session{
		api:         api,
		test:        test,
		attemptID:   attemptID,
		answers:     make(map[string]model.Answer, len(answers)),
		edits:       make(map[string]*gradeEdit),
		suggestions: make(map[string]model.GradeSuggestion),
	}
	for _, a := range answers {
		s.answers[a.ID] = a
	}
	return s, nil
}

// Breakdown returns the current score view from durable state. Buffered edits
// do not move the breakdown until they are saved.
func (s *Session) Breakdown() model.ScoreBreakdown {
	s.mu.Lock()
	answers := make([]model.Answer, 0, len(s.answers))
	for _, a := range s.answers {
		answers = append(answers, a)
	}
	s.mu.Unlock()
	return Breakdown(s.test, answers)
}

// Answer returns the durable answer record by id.
func (s *Session) Answer(answerID string) (model.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[answerID]
	return a, ok
}

// SetPoints buffers a points edit for a free-response answer. Bounds are
// validated at save time; objective answers are rejected outright.
func (s *Session) SetPoints(answerID string, points float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(answerID); err != nil {
		return err
	}
	s.editLocked(answerID).points = points
	return nil
}

// SetNote buffers a grader note edit.
func (s *Session) SetNote(answerID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(answerID); err != nil {
		return err
	}
	s.editLocked(answerID).note = note
	return nil
}

// PendingEdit returns the buffered edit for an answer, if any.
func (s *Session) PendingEdit(answerID string) (points float64, note string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edits[answerID]
	if !ok {
		return 0, "", false
	}
	return e.points, e.note, true
}

// FetchSuggestions fetches/generates AI suggestions on demand, per answer or
// for the whole attempt, and holds them for this session only.
func (s *Session) FetchSuggestions(ctx context.Context, mode model.SuggestMode, answerID string) error {
	suggestions, err := s.api.SuggestGrades(ctx, s.attemptID, model.SuggestGradesRequest{
		Mode:     mode,
		AnswerID: answerID,
	})
	if err != nil {
		return fmt.Errorf("fetch suggestions: %w", err)
	}
	s.mu.Lock()
	for _, sg := range suggestions {
		s.suggestions[sg.AnswerID] = sg
	}
	s.mu.Unlock()
	return nil
}

// Suggestion returns the fetched suggestion for an answer, if any.
func (s *Session) Suggestion(answerID string) (model.GradeSuggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg, ok := s.suggestions[answerID]
	return sg, ok
}

// ApplySuggestion copies the suggested score and explanation into the local
// edit buffer. It performs no persistence: the grader's explicit Save is the
// only path to a durable grade change.
func (s *Session) ApplySuggestion(answerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg, ok := s.suggestions[answerID]
	if !ok {
		return ErrNoSuggestion
	}
	if err := s.editableLocked(answerID); err != nil {
		return err
	}
	e := s.editLocked(answerID)
	e.points = sg.SuggestedPoints
	e.note = sg.Explanation
	return nil
}

// Save validates every buffered edit against its question's bounds and
// commits them in one request. The buffer is cleared only on success.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	req := model.SaveGradesRequest{}
	for answerID, e := range s.edits {
		answer := s.answers[answerID]
		q := s.test.QuestionByID(answer.QuestionID)
		if q == nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: answer %s", ErrUnknownQuestionType, answerID)
		}
		if e.points < 0 || e.points > q.Points {
			s.mu.Unlock()
			return fmt.Errorf("%w: answer %s got %.2f, max %.2f", ErrPointsOutOfBounds, answerID, e.points, q.Points)
		}
		req.Grades = append(req.Grades, model.GradeInput{
			AnswerID:      answerID,
			PointsAwarded: e.points,
			GraderNote:    e.note,
		})
	}
	s.mu.Unlock()

	if len(req.Grades) == 0 {
		return nil
	}
	if err := s.api.SaveGrades(ctx, s.attemptID, req); err != nil {
		return fmt.Errorf("save grades: %w", err)
	}

	// Refresh durable state so the breakdown reflects the committed grades.
	answers, err := s.api.ListAnswers(ctx, s.attemptID)
	if err != nil {
		return fmt.Errorf("refresh answers: %w", err)
	}
	s.mu.Lock()
	s.answers = make(map[string]model.Answer, len(answers))
	for _, a := range answers {
		s.answers[a.ID] = a
	}
	s.edits = make(map[string]*gradeEdit)
	s.mu.Unlock()
	return nil
}

// editableLocked rejects edits on answers that are absent or auto-graded.
func (s *Session) editableLocked(answerID string) error {
	answer, ok := s.answers[answerID]
	if !ok {
		return ErrUnknownAnswer
	}
	q := s.test.QuestionByID(answer.QuestionID)
	if q == nil {
		return ErrUnknownQuestionType
	}
	if q.Type.IsObjective() {
		return ErrObjectiveImmutable
	}
	return nil
}

// editLocked returns the edit buffer entry for an answer, seeding it from the
// durable record so a note edit alone does not zero the points.
func (s *Session) editLocked(answerID string) *gradeEdit {
	e, ok := s.edits[answerID]
	if !ok {
		e = &gradeEdit{}
		if a, found := s.answers[answerID]; found {
			if a.PointsAwarded != nil {
				e.points = *a.PointsAwarded
			}
			e.note = a.GraderNote
		}
		s.edits[answerID] = e
	}
	return e
}
