package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"proctorly/internal/grading"
	"proctorly/internal/model"
	"proctorly/internal/repository"
)

var (
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrAnswerNotGradable   = errors.New("objective answers are auto-graded and immutable")
	ErrGradeOutOfBounds    = errors.New("points outside [0, question points]")
	ErrAttemptNotSubmitted = errors.New("attempt has not been submitted")
)

// GradingService handles manual grading of free-response answers and
// on-demand AI suggestions.
type GradingService struct {
	attemptSvc  *AttemptService
	answerRepo  repository.AnswerRepo
	attemptRepo repository.AttemptRepo
	suggest     *SuggestService
	broadcaster Broadcaster
}

// NewGradingService creates a new grading service
func NewGradingService(
	attemptSvc *AttemptService,
	answerRepo repository.AnswerRepo,
	attemptRepo repository.AttemptRepo,
	suggest *SuggestService,
) *GradingService {
	return &GradingService{
		attemptSvc:  attemptSvc,
		answerRepo:  answerRepo,
		attemptRepo: attemptRepo,
		suggest:     suggest,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *GradingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ListAnswers returns all answers of an attempt for grading
func (s *GradingService) ListAnswers(ctx context.Context, attemptID string) ([]*model.Answer, error) {
	if _, err := s.attemptSvc.GetAttempt(ctx, attemptID); err != nil {
		return nil, err
	}
	return s.answerRepo.ListByAttempt(ctx, attemptID)
}

// Suggest generates AI grade suggestions, per answer or for the whole attempt.
// Suggestions are returned, never stored.
func (s *GradingService) Suggest(ctx context.Context, attemptID string, req model.SuggestGradesRequest) ([]model.GradeSuggestion, error) {
	attempt, err := s.attemptSvc.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	test, err := s.attemptSvc.GetTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	if req.Mode == model.SuggestSingle {
		answer, err := s.answerRepo.GetByID(ctx, req.AnswerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get answer: %w", err)
		}
		if answer == nil || answer.AttemptID != attemptID {
			return nil, ErrAnswerNotFound
		}
		q := test.QuestionByID(answer.QuestionID)
		if q == nil || q.Type.IsObjective() {
			return nil, ErrAnswerNotGradable
		}
		suggestion, err := s.suggest.SuggestOne(ctx, q, answer)
		if err != nil {
			return nil, err
		}
		return []model.GradeSuggestion{*suggestion}, nil
	}

	answers, err := s.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return s.suggest.SuggestAll(ctx, test, answers)
}

// SaveGrades commits grader edits on free-response answers. Every grade is
// bounds-checked before anything is written; the attempt moves to GRADED once
// all of its free-response answers carry a grade.
func (s *GradingService) SaveGrades(ctx context.Context, attemptID string, req model.SaveGradesRequest) (*model.Attempt, error) {
	attempt, err := s.attemptSvc.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptSubmitted && attempt.Status != model.AttemptGraded {
		return nil, ErrAttemptNotSubmitted
	}
	test, err := s.attemptSvc.GetTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	// Validate the whole batch before the first write
	answers := make([]*model.Answer, 0, len(req.Grades))
	for _, g := range req.Grades {
		answer, err := s.answerRepo.GetByID(ctx, g.AnswerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get answer: %w", err)
		}
		if answer == nil || answer.AttemptID != attemptID {
			return nil, ErrAnswerNotFound
		}
		q := test.QuestionByID(answer.QuestionID)
		if q == nil || q.Type.IsObjective() {
			return nil, ErrAnswerNotGradable
		}
		if g.PointsAwarded < 0 || g.PointsAwarded > q.Points {
			return nil, fmt.Errorf("%w: answer %s got %.2f, max %.2f", ErrGradeOutOfBounds, g.AnswerID, g.PointsAwarded, q.Points)
		}
		answers = append(answers, answer)
	}

	now := time.Now()
	for i, g := range req.Grades {
		answer := answers[i]
		points := g.PointsAwarded
		answer.PointsAwarded = &points
		answer.GraderNote = g.GraderNote
		answer.GradedAt = &now
		if err := s.answerRepo.Update(ctx, answer); err != nil {
			return nil, fmt.Errorf("failed to save grade for %s: %w", answer.ID, err)
		}
	}

	attempt, err = s.finalizeIfFullyGraded(ctx, attempt, test)
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMonitors(attempt.TestID, "grades_saved", map[string]interface{}{
			"attemptId": attemptID,
			"status":    attempt.Status,
		})
	}

	return attempt, nil
}

// Breakdown returns the honest partial-grading score view of an attempt
func (s *GradingService) Breakdown(ctx context.Context, attemptID string) (model.ScoreBreakdown, error) {
	attempt, err := s.attemptSvc.GetAttempt(ctx, attemptID)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	test, err := s.attemptSvc.GetTest(ctx, attempt.TestID)
	if err != nil {
		return model.ScoreBreakdown{}, err
	}
	answers, err := s.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return model.ScoreBreakdown{}, fmt.Errorf("failed to list answers: %w", err)
	}

	flat := make([]model.Answer, len(answers))
	for i, a := range answers {
		flat[i] = *a
	}
	return grading.Breakdown(test, flat), nil
}

// finalizeIfFullyGraded moves the attempt to GRADED and stores the earned
// total once every answer on it carries a grade. Questions the candidate
// never answered have no answer document and score zero.
func (s *GradingService) finalizeIfFullyGraded(ctx context.Context, attempt *model.Attempt, test *model.Test) (*model.Attempt, error) {
	answers, err := s.answerRepo.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}

	var earned float64
	for _, a := range answers {
		if !a.Graded() {
			return attempt, nil
		}
		if a.PointsAwarded != nil {
			earned += *a.PointsAwarded
		}
	}

	attempt.Status = model.AttemptGraded
	attempt.GradeEarned = &earned
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to finalize attempt: %w", err)
	}
	return attempt, nil
}
