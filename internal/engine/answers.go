package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"proctorly/internal/model"
)

// DefaultDebounce is the delay between the last edit to a question and its
// autosave. A newer edit to the same question supersedes the pending save.
const DefaultDebounce = 1000 * time.Millisecond

// AnswerPayload is the response portion of an answer, without the review flag.
type AnswerPayload struct {
	Text              string
	SelectedOptionIDs []string
	NumericAnswer     *float64
	BlankAnswers      []string
}

// AnswerStore holds the in-memory answer state for one attempt and propagates
// it to durable storage without stalling input. The in-memory map is the
// source of truth the user sees; autosave is best-effort and the mandatory
// FlushAll before a terminal transition closes any gap.
type AnswerStore struct {
	backend   Backend
	attemptID string
	debounce  time.Duration

	// onSaveError surfaces a non-blocking warning for a failed autosave.
	// In-memory state is never rolled back.
	onSaveError func(questionID string, err error)

	mu      sync.Mutex
	answers map[string]*model.UpsertAnswerRequest
	timers  map[string]*time.Timer
}

// NewAnswerStore creates an answer store for one attempt.
func NewAnswerStore(backend Backend, attemptID string, debounce time.Duration, onSaveError func(questionID string, err error)) *AnswerStore {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onSaveError == nil {
		onSaveError = func(questionID string, err error) {
			log.Printf("[answers] autosave failed for question %s: %v", questionID, err)
		}
	}
	return &AnswerStore{
		backend:     backend,
		attemptID:   attemptID,
		debounce:    debounce,
		onSaveError: onSaveError,
		answers:     make(map[string]*model.UpsertAnswerRequest),
		timers:      make(map[string]*time.Timer),
	}
}

// Seed preloads answers fetched for a resumed attempt without scheduling saves.
func (s *AnswerStore) Seed(answers []model.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range answers {
		s.answers[a.QuestionID] = &model.UpsertAnswerRequest{
			QuestionID:        a.QuestionID,
			AnswerText:        a.AnswerText,
			SelectedOptionIDs: a.SelectedOptionIDs,
			NumericAnswer:     a.NumericAnswer,
			BlankAnswers:      a.BlankAnswers,
			MarkedForReview:   a.MarkedForReview,
		}
	}
}

// SetAnswer updates in-memory state synchronously and schedules a debounced
// save that supersedes any pending save for the same question.
func (s *AnswerStore) SetAnswer(questionID string, payload AnswerPayload) {
	s.mu.Lock()
	entry := s.entryLocked(questionID)
	entry.AnswerText = payload.Text
	entry.SelectedOptionIDs = payload.SelectedOptionIDs
	entry.NumericAnswer = payload.NumericAnswer
	entry.BlankAnswers = payload.BlankAnswers

	if t, ok := s.timers[questionID]; ok {
		t.Stop()
	}
	s.timers[questionID] = time.AfterFunc(s.debounce, func() {
		s.saveOne(questionID)
	})
	s.mu.Unlock()
}

// SetMarkedForReview updates in-memory state and saves immediately. Review
// flags are lower-volume, higher-importance signals than keystrokes, so they
// skip the debounce.
func (s *AnswerStore) SetMarkedForReview(questionID string, flag bool) {
	s.mu.Lock()
	entry := s.entryLocked(questionID)
	entry.MarkedForReview = flag
	if t, ok := s.timers[questionID]; ok {
		t.Stop()
		delete(s.timers, questionID)
	}
	s.mu.Unlock()

	s.saveOne(questionID)
}

// Answer returns a copy of the in-memory answer for a question, if any.
func (s *AnswerStore) Answer(questionID string) (model.UpsertAnswerRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.answers[questionID]
	if !ok {
		return model.UpsertAnswerRequest{}, false
	}
	return *entry, true
}

// AnsweredCount returns how many questions hold a non-empty response, and how
// many are flagged for review.
func (s *AnswerStore) AnsweredCount() (answered, marked int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.answers {
		if entry.AnswerText != "" || len(entry.SelectedOptionIDs) > 0 ||
			entry.NumericAnswer != nil || len(entry.BlankAnswers) > 0 {
			answered++
		}
		if entry.MarkedForReview {
			marked++
		}
	}
	return answered, marked
}

// CancelPending stops every pending debounced save without issuing it.
func (s *AnswerStore) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// FlushAll cancels pending debounced timers and issues a save for every
// in-memory answer concurrently, returning only once all have settled. This is
// mandatory before any terminal transition, so the durable record matches the
// last value the user saw even if earlier incremental saves failed silently.
func (s *AnswerStore) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	snapshot := make([]model.UpsertAnswerRequest, 0, len(s.answers))
	for _, entry := range s.answers {
		snapshot = append(snapshot, *entry)
	}
	s.mu.Unlock()

	var (
		wg   sync.WaitGroup
		errMu sync.Mutex
		errs []error
	)
	for _, req := range snapshot {
		wg.Add(1)
		go func(req model.UpsertAnswerRequest) {
			defer wg.Done()
			if err := s.backend.UpsertAnswer(ctx, s.attemptID, req); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("question %s: %w", req.QuestionID, err))
				errMu.Unlock()
			}
		}(req)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// entryLocked returns the mutable entry for a question, creating it if needed.
// Caller holds s.mu.
func (s *AnswerStore) entryLocked(questionID string) *model.UpsertAnswerRequest {
	entry, ok := s.answers[questionID]
	if !ok {
		entry = &model.UpsertAnswerRequest{QuestionID: questionID}
		s.answers[questionID] = entry
	}
	return entry
}

// saveOne snapshots and persists a single question's answer. Failures surface
// a warning only; the in-memory value stays authoritative.
func (s *AnswerStore) saveOne(questionID string) {
	s.mu.Lock()
	entry, ok := s.answers[questionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	req := *entry
	delete(s.timers, questionID)
	s.mu.Unlock()

	if err := s.backend.UpsertAnswer(context.Background(), s.attemptID, req); err != nil {
		s.onSaveError(questionID, err)
	}
}
