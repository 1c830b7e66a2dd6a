package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"proctorly/internal/cache"
	"proctorly/internal/model"
	"proctorly/internal/proctor"
	"proctorly/internal/repository"
	"proctorly/internal/timebudget"
)

var (
	ErrTestNotFound         = errors.New("test not found")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrStartWindowClosed    = errors.New("test start window is closed")
	ErrNeedTestPassword     = errors.New("test requires a password")
	ErrWrongTestPassword    = errors.New("wrong test password")
	ErrMaxAttemptsReached   = errors.New("maximum attempts reached")
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	ErrAttemptInvalidated   = errors.New("attempt was invalidated")
)

// AttemptService handles the attempt lifecycle: start, proctor events,
// counter pushes, answer upserts, submission with auto-grading, and
// staff invalidation.
type AttemptService struct {
	testRepo     repository.TestRepo
	attemptRepo  repository.AttemptRepo
	answerRepo   repository.AnswerRepo
	eventRepo    repository.ProctorEventRepo
	testCache    cache.TestCache
	attemptCache cache.AttemptCache
	riskCache    cache.RiskCache
	markers      timebudget.MarkerStore
	broadcaster  Broadcaster
}

// NewAttemptService creates a new attempt service
func NewAttemptService(
	testRepo repository.TestRepo,
	attemptRepo repository.AttemptRepo,
	answerRepo repository.AnswerRepo,
	eventRepo repository.ProctorEventRepo,
	testCache cache.TestCache,
	attemptCache cache.AttemptCache,
	riskCache cache.RiskCache,
	markers timebudget.MarkerStore,
) *AttemptService {
	return &AttemptService{
		testRepo:     testRepo,
		attemptRepo:  attemptRepo,
		answerRepo:   answerRepo,
		eventRepo:    eventRepo,
		testCache:    testCache,
		attemptCache: attemptCache,
		riskCache:    riskCache,
		markers:      markers,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *AttemptService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// GetTest loads a test, preferring the cache.
func (s *AttemptService) GetTest(ctx context.Context, testID string) (*model.Test, error) {
	test, err := s.testCache.Get(ctx, testID)
	if err != nil {
		log.Printf("test cache read failed for %s: %v", testID, err)
	}
	if test != nil {
		return test, nil
	}

	test, err = s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if test == nil {
		return nil, ErrTestNotFound
	}

	if err := s.testCache.Set(ctx, test); err != nil {
		log.Printf("test cache write failed for %s: %v", testID, err)
	}
	return test, nil
}

// GetAttempt loads an attempt, preferring the live cache.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error) {
	attempt, err := s.attemptCache.GetLive(ctx, attemptID)
	if err != nil {
		log.Printf("attempt cache read failed for %s: %v", attemptID, err)
	}
	if attempt != nil {
		return attempt, nil
	}

	attempt, err = s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

// StartAttempt begins a new attempt or resumes the user's open one.
/// Validation order: window, password, attempt ceiling.
func (s *AttemptService) StartAttempt(ctx context.Context, testID, userID string, req model.StartAttemptRequest) (*model.Attempt, error) {
	test, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	// An open attempt always resumes; it does not consume a new slot.
	existing, err := s.attemptRepo.GetInProgress(ctx, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open attempt: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if !test.StartWindowOpen(time.Now()) {
		return nil, ErrStartWindowClosed
	}

	if test.HasPassword() {
		if req.Password == "" {
			return nil, ErrNeedTestPassword
		}
		if hashPassword(req.Password) != test.PasswordHash {
			return nil, ErrWrongTestPassword
		}
	}

	if test.MaxAttempts > 0 {
		count, err := s.attemptRepo.CountByTestAndUser(ctx, testID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count attempts: %w", err)
		}
		if count >= int64(test.MaxAttempts) {
			return nil, ErrMaxAttemptsReached
		}
	}

	attempt := &model.Attempt{
		TestID:            testID,
		UserID:            userID,
		Status:            model.AttemptInProgress,
		StartedAt:         time.Now(),
		ClientFingerprint: req.Fingerprint,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	if err := s.attemptCache.SetLive(ctx, attempt); err != nil {
		log.Printf("attempt cache write failed for %s: %v", attempt.ID, err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMonitors(testID, "attempt_started", attempt)
	}

	return attempt, nil
}

// RecordEvent appends a proctor event and recomputes the risk score.
// Events against attempts that are not IN_PROGRESS are dropped silently:
// late signals from a closing client must not alter a finalized record.
func (s *AttemptService) RecordEvent(ctx context.Context, attemptID string, req model.RecordEventRequest) error {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil
	}

	event := &model.ProctorEvent{
		AttemptID: attemptID,
		Kind:      req.Kind,
		At:        time.Now(),
		Meta:      req.Meta,
	}
	if err := s.eventRepo.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	score, err := s.recomputeRisk(ctx, attempt)
	if err != nil {
		log.Printf("risk recompute failed for attempt %s: %v", attemptID, err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMonitors(attempt.TestID, "proctor_event", map[string]interface{}{
			"attemptId": attemptID,
			"kind":      req.Kind,
			"at":        event.At,
			"riskScore": score,
			"riskBand":  proctor.Band(score),
		})
	}

	return nil
}

// PushCounters stores the client's accumulated tab-tracking counters.
// Counters only grow; a stale push can never shrink them.
func (s *AttemptService) PushCounters(ctx context.Context, attemptID string, req model.PushCountersRequest) error {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil
	}

	changed := false
	if req.TabSwitchCount > attempt.TabSwitchCount {
		attempt.TabSwitchCount = req.TabSwitchCount
		changed = true
	}
	if req.TimeOffPageSeconds > attempt.TimeOffPageSeconds {
		attempt.TimeOffPageSeconds = req.TimeOffPageSeconds
		changed = true
	}
	if !changed {
		return nil
	}

	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if err := s.attemptCache.SetLive(ctx, attempt); err != nil {
		log.Printf("attempt cache write failed for %s: %v", attemptID, err)
	}
	if err := s.attemptCache.SetCounters(ctx, attemptID, attempt.TabSwitchCount, attempt.TimeOffPageSeconds); err != nil {
		log.Printf("counter cache write failed for %s: %v", attemptID, err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMonitors(attempt.TestID, "counters_updated", map[string]interface{}{
			"attemptId":          attemptID,
			"tabSwitchCount":     attempt.TabSwitchCount,
			"timeOffPageSeconds": attempt.TimeOffPageSeconds,
		})
	}

	return nil
}

// UpsertAnswer creates or replaces the answer for one question
func (s *AttemptService) UpsertAnswer(ctx context.Context, attemptID string, req model.UpsertAnswerRequest) (*model.Answer, error) {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, ErrAttemptNotInProgress
	}

	test, err := s.GetTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	if test.QuestionByID(req.QuestionID) == nil {
		return nil, fmt.Errorf("question %s not on test %s", req.QuestionID, test.ID)
	}

	answer, err := s.answerRepo.Upsert(ctx, attemptID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert answer: %w", err)
	}
	return answer, nil
}

// SubmitAttempt finalizes an attempt: auto-grades objective answers, freezes
// the risk score, and moves the attempt to SUBMITTED (or straight to GRADED
// when the test has no free-response questions). Repeated submission of an
// already-submitted attempt returns it unchanged.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string, req model.SubmitAttemptRequest) (*model.Attempt, error) {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	switch attempt.Status {
	case model.AttemptSubmitted, model.AttemptGraded:
		return attempt, nil
	case model.AttemptInvalidated:
		return nil, ErrAttemptInvalidated
	case model.AttemptInProgress:
		// Proceed
	default:
		return nil, ErrAttemptNotInProgress
	}

	test, err := s.GetTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}

	answers, err := s.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}

	now := time.Now()
	allGraded := true
	var earned float64
	for _, answer := range answers {
		q := test.QuestionByID(answer.QuestionID)
		if q == nil {
			continue
		}
		if !q.Type.IsObjective() {
			allGraded = false
			continue
		}
		points := autoGrade(q, answer)
		answer.PointsAwarded = &points
		answer.GradedAt = &now
		earned += points
		if err := s.answerRepo.Update(ctx, answer); err != nil {
			return nil, fmt.Errorf("failed to grade answer %s: %w", answer.ID, err)
		}
	}
	// Questions with no answer document still need human review if subjective
	for i := range test.Questions {
		if !test.Questions[i].Type.IsObjective() {
			allGraded = false
		}
	}

	score, err := s.recomputeRisk(ctx, attempt)
	if err != nil {
		log.Printf("final risk recompute failed for attempt %s: %v", attemptID, err)
	}

	attempt.Status = model.AttemptSubmitted
	attempt.SubmittedAt = &now
	attempt.ProctoringScore = score
	if req.ClientFingerprint != "" {
		attempt.ClientFingerprint = req.ClientFingerprint
	}
	if allGraded {
		attempt.Status = model.AttemptGraded
		attempt.GradeEarned = &earned
	}

	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to update attempt: %w", err)
	}

	// Live state is no longer needed; pause markers must not leak credit
	// into a future attempt with a recycled id.
	if err := s.attemptCache.Delete(ctx, attemptID); err != nil {
		log.Printf("attempt cache delete failed for %s: %v", attemptID, err)
	}
	s.clearMarkers(ctx, attemptID)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMonitors(attempt.TestID, "attempt_submitted", attempt)
		s.broadcaster.DisconnectAttempt(attemptID)
	}

	return attempt, nil
}

// InvalidateAttempt lets staff void an attempt. Invalidated attempts do not
// count against the attempt ceiling.
func (s *AttemptService) InvalidateAttempt(ctx context.Context, attemptID, reason string) (*model.Attempt, error) {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptInvalidated {
		return attempt, nil
	}

	attempt.Status = model.AttemptInvalidated
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to invalidate attempt: %w", err)
	}

	if err := s.attemptCache.Delete(ctx, attemptID); err != nil {
		log.Printf("attempt cache delete failed for %s: %v", attemptID, err)
	}
	if err := s.riskCache.Remove(ctx, attempt.TestID, attemptID); err != nil {
		log.Printf("risk cache remove failed for %s: %v", attemptID, err)
	}
	s.clearMarkers(ctx, attemptID)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToMonitors(attempt.TestID, "attempt_invalidated", map[string]interface{}{
			"attemptId": attemptID,
			"reason":    reason,
		})
		s.broadcaster.DisconnectAttempt(attemptID)
	}

	return attempt, nil
}

// ListAttempts returns all attempts at a test for the monitor dashboard
func (s *AttemptService) ListAttempts(ctx context.Context, testID string) ([]*model.Attempt, error) {
	return s.attemptRepo.ListByTest(ctx, testID)
}

// ListEvents returns the full proctor event log of an attempt
func (s *AttemptService) ListEvents(ctx context.Context, attemptID string) ([]*model.ProctorEvent, error) {
	return s.eventRepo.ListByAttempt(ctx, attemptID)
}

// TopRisk returns the riskiest attempts at a test, riskiest first
func (s *AttemptService) TopRisk(ctx context.Context, testID string, limit int) ([]cache.RiskEntry, error) {
	return s.riskCache.GetTop(ctx, testID, limit)
}

// AttemptLiveStatus is the monitor dashboard's detail view of one attempt:
// the hot counters from the cache plus the attempt's place in the per-test
// risk ranking.
type AttemptLiveStatus struct {
	Attempt            *model.Attempt `json:"attempt"`
	TabSwitchCount     int            `json:"tabSwitchCount"`
	TimeOffPageSeconds int            `json:"timeOffPageSeconds"`
	RiskRank           int64          `json:"riskRank"` // 1-indexed; -1 when unranked
	RiskBand           model.RiskBand `json:"riskBand"`
}

// LiveStatus assembles the live view of an attempt for the monitor dashboard.
// Counters are the max of the cached push and the persisted attempt, since
// either side can lag the other.
func (s *AttemptService) LiveStatus(ctx context.Context, attemptID string) (*AttemptLiveStatus, error) {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	tabs, offPage, err := s.attemptCache.GetCounters(ctx, attemptID)
	if err != nil {
		log.Printf("counter cache read failed for %s: %v", attemptID, err)
	}
	if attempt.TabSwitchCount > tabs {
		tabs = attempt.TabSwitchCount
	}
	if attempt.TimeOffPageSeconds > offPage {
		offPage = attempt.TimeOffPageSeconds
	}

	rank, err := s.riskCache.GetRank(ctx, attempt.TestID, attemptID)
	if err != nil {
		log.Printf("risk rank read failed for %s: %v", attemptID, err)
		rank = -1
	}

	return &AttemptLiveStatus{
		Attempt:            attempt,
		TabSwitchCount:     tabs,
		TimeOffPageSeconds: offPage,
		RiskRank:           rank,
		RiskBand:           proctor.Band(attempt.ProctoringScore),
	}, nil
}

// RemainingSeconds computes the server-side view of an attempt's remaining
// time, including pause credit from the marker store.
func (s *AttemptService) RemainingSeconds(ctx context.Context, attempt *model.Attempt) (int, error) {
	test, err := s.GetTest(ctx, attempt.TestID)
	if err != nil {
		return 0, err
	}
	paused, err := s.markers.PausedSeconds(ctx, attempt.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to read pause credit: %w", err)
	}
	remaining := timebudget.Remaining(time.Now(), attempt.StartedAt, test.DurationSeconds, attempt.TimeOffPageSeconds, paused)
	return remaining, nil
}

// clearMarkers drops both pause markers of a terminal attempt, so a future
// attempt with a recycled id can never inherit pause credit.
func (s *AttemptService) clearMarkers(ctx context.Context, attemptID string) {
	if err := s.markers.ClearPauseStart(ctx, attemptID); err != nil {
		log.Printf("pause marker clear failed for %s: %v", attemptID, err)
	}
	if err := s.markers.ClearPausedSeconds(ctx, attemptID); err != nil {
		log.Printf("paused seconds clear failed for %s: %v", attemptID, err)
	}
}

// recomputeRisk re-derives the proctoring score from the full event log and
// stores it on the attempt and the per-test ranking.
func (s *AttemptService) recomputeRisk(ctx context.Context, attempt *model.Attempt) (float64, error) {
	counts, err := s.eventRepo.CountsByKind(ctx, attempt.ID)
	if err != nil {
		return attempt.ProctoringScore, err
	}

	score := proctor.ScoreCounts(counts)
	attempt.ProctoringScore = score

	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return score, err
	}
	if err := s.attemptCache.SetLive(ctx, attempt); err != nil {
		log.Printf("attempt cache write failed for %s: %v", attempt.ID, err)
	}
	if err := s.riskCache.UpdateScore(ctx, attempt.TestID, attempt.ID, score); err != nil {
		log.Printf("risk cache write failed for %s: %v", attempt.ID, err)
	}

	return score, nil
}

// autoGrade scores an objective answer against its question.
// Single/multi-select are all-or-nothing; numeric honors the tolerance;
// blank-fill awards proportional credit per correct blank.
func autoGrade(q *model.Question, answer *model.Answer) float64 {
	switch q.Type {
	case model.QuestionTypeSingleSelect:
		if len(answer.SelectedOptionIDs) != 1 {
			return 0
		}
		for _, opt := range q.Options {
			if opt.Correct && opt.ID == answer.SelectedOptionIDs[0] {
				return q.Points
			}
		}
		return 0

	case model.QuestionTypeMultiSelect:
		correct := make(map[string]bool)
		for _, opt := range q.Options {
			if opt.Correct {
				correct[opt.ID] = true
			}
		}
		if len(answer.SelectedOptionIDs) != len(correct) {
			return 0
		}
		for _, id := range answer.SelectedOptionIDs {
			if !correct[id] {
				return 0
			}
		}
		return q.Points

	case model.QuestionTypeNumeric:
		if answer.NumericAnswer == nil || q.CorrectNumeric == nil {
			return 0
		}
		diff := *answer.NumericAnswer - *q.CorrectNumeric
		if diff < 0 {
			diff = -diff
		}
		if diff <= q.NumericTolerance {
			return q.Points
		}
		return 0

	case model.QuestionTypeBlankFill:
		if len(q.CorrectBlanks) == 0 {
			return 0
		}
		hits := 0
		for i, want := range q.CorrectBlanks {
			if i >= len(answer.BlankAnswers) {
				break
			}
			if strings.EqualFold(strings.TrimSpace(answer.BlankAnswers[i]), strings.TrimSpace(want)) {
				hits++
			}
		}
		return q.Points * float64(hits) / float64(len(q.CorrectBlanks))
	}

	return 0
}

// hashPassword is the canonical test password digest: SHA-256 hex.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
