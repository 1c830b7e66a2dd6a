package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"proctorly/internal/cache"
	"proctorly/internal/model"
)

// Map-backed fakes for the storage layer. Methods mirror the repository and
// cache interfaces closely enough that service logic runs unmodified.

type fakeTestRepo struct {
	mu    sync.Mutex
	tests map[string]*model.Test
}

func newFakeTestRepo(tests ...*model.Test) *fakeTestRepo {
	r := &fakeTestRepo{tests: make(map[string]*model.Test)}
	for _, t := range tests {
		r.tests[t.ID] = t
	}
	return r
}

func (r *fakeTestRepo) Create(_ context.Context, test *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) GetByID(_ context.Context, id string) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTestRepo) List(_ context.Context) ([]*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Test, 0, len(r.tests))
	for _, t := range r.tests {
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeTestRepo) Update(_ context.Context, test *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tests, id)
	return nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[string]*model.Attempt)}
}

func (r *fakeAttemptRepo) Create(_ context.Context, attempt *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return nil
}

func (r *fakeAttemptRepo) GetByID(_ context.Context, id string) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAttemptRepo) GetInProgress(_ context.Context, testID, userID string) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.TestID == testID && a.UserID == userID && a.Status == model.AttemptInProgress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAttemptRepo) CountByTestAndUser(_ context.Context, testID, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.attempts {
		if a.TestID == testID && a.UserID == userID && a.Status != model.AttemptInvalidated {
			n++
		}
	}
	return n, nil
}

func (r *fakeAttemptRepo) ListByTest(_ context.Context, testID string) ([]*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Attempt
	for _, a := range r.attempts {
		if a.TestID == testID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) Update(_ context.Context, attempt *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return nil
}

type fakeAnswerRepo struct {
	mu      sync.Mutex
	answers map[string]*model.Answer // By answer id
}

func newFakeAnswerRepo() *fakeAnswerRepo {
	return &fakeAnswerRepo{answers: make(map[string]*model.Answer)}
}

func (r *fakeAnswerRepo) Upsert(_ context.Context, attemptID string, req model.UpsertAnswerRequest) (*model.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.answers {
		if a.AttemptID == attemptID && a.QuestionID == req.QuestionID {
			a.AnswerText = req.AnswerText
			a.SelectedOptionIDs = req.SelectedOptionIDs
			a.NumericAnswer = req.NumericAnswer
			a.BlankAnswers = req.BlankAnswers
			a.MarkedForReview = req.MarkedForReview
			cp := *a
			return &cp, nil
		}
	}
	a := &model.Answer{
		ID:                uuid.NewString(),
		AttemptID:         attemptID,
		QuestionID:        req.QuestionID,
		AnswerText:        req.AnswerText,
		SelectedOptionIDs: req.SelectedOptionIDs,
		NumericAnswer:     req.NumericAnswer,
		BlankAnswers:      req.BlankAnswers,
		MarkedForReview:   req.MarkedForReview,
	}
	r.answers[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *fakeAnswerRepo) GetByID(_ context.Context, id string) (*model.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.answers[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAnswerRepo) ListByAttempt(_ context.Context, attemptID string) ([]*model.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Answer
	for _, a := range r.answers {
		if a.AttemptID == attemptID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAnswerRepo) Update(_ context.Context, answer *model.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *answer
	r.answers[answer.ID] = &cp
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*model.ProctorEvent
}

func (r *fakeEventRepo) Append(_ context.Context, event *model.ProctorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) ListByAttempt(_ context.Context, attemptID string) ([]*model.ProctorEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ProctorEvent
	for _, ev := range r.events {
		if ev.AttemptID == attemptID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) CountsByKind(_ context.Context, attemptID string) (map[model.EventKind]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[model.EventKind]int)
	for _, ev := range r.events {
		if ev.AttemptID == attemptID {
			counts[ev.Kind]++
		}
	}
	return counts, nil
}

type fakeTestCache struct {
	mu    sync.Mutex
	tests map[string]*model.Test
}

func newFakeTestCache() *fakeTestCache {
	return &fakeTestCache{tests: make(map[string]*model.Test)}
}

func (c *fakeTestCache) Set(_ context.Context, test *model.Test) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tests[test.ID] = test
	return nil
}

func (c *fakeTestCache) Get(_ context.Context, id string) (*model.Test, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tests[id], nil
}

func (c *fakeTestCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tests, id)
	return nil
}

type fakeAttemptCache struct {
	mu       sync.Mutex
	live     map[string]*model.Attempt
	counters map[string][2]int
}

func newFakeAttemptCache() *fakeAttemptCache {
	return &fakeAttemptCache{
		live:     make(map[string]*model.Attempt),
		counters: make(map[string][2]int),
	}
}

func (c *fakeAttemptCache) SetLive(_ context.Context, attempt *model.Attempt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *attempt
	c.live[attempt.ID] = &cp
	return nil
}

func (c *fakeAttemptCache) GetLive(_ context.Context, attemptID string) (*model.Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.live[attemptID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (c *fakeAttemptCache) Delete(_ context.Context, attemptID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, attemptID)
	delete(c.counters, attemptID)
	return nil
}

func (c *fakeAttemptCache) SetCounters(_ context.Context, attemptID string, tabSwitches, offPageSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[attemptID] = [2]int{tabSwitches, offPageSeconds}
	return nil
}

func (c *fakeAttemptCache) GetCounters(_ context.Context, attemptID string) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.counters[attemptID]
	return v[0], v[1], nil
}

type fakeRiskCache struct {
	mu     sync.Mutex
	scores map[string]map[string]float64 // testID -> attemptID -> score
}

func newFakeRiskCache() *fakeRiskCache {
	return &fakeRiskCache{scores: make(map[string]map[string]float64)}
}

func (c *fakeRiskCache) UpdateScore(_ context.Context, testID, attemptID string, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scores[testID] == nil {
		c.scores[testID] = make(map[string]float64)
	}
	c.scores[testID][attemptID] = score
	return nil
}

func (c *fakeRiskCache) GetTop(_ context.Context, testID string, limit int) ([]cache.RiskEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entries []cache.RiskEntry
	for id, score := range c.scores[testID] {
		entries = append(entries, cache.RiskEntry{AttemptID: id, Score: score})
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (c *fakeRiskCache) GetRank(_ context.Context, testID, attemptID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	score, ok := c.scores[testID][attemptID]
	if !ok {
		return -1, nil
	}
	rank := int64(1)
	for _, other := range c.scores[testID] {
		if other > score {
			rank++
		}
	}
	return rank, nil
}

func (c *fakeRiskCache) Remove(_ context.Context, testID, attemptID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scores[testID], attemptID)
	return nil
}

// recordingBroadcaster captures broadcast calls for assertions
type recordingBroadcaster struct {
	mu          sync.Mutex
	monitorMsgs []string
	disconnects []string
}

func (b *recordingBroadcaster) BroadcastToMonitors(_ string, msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.monitorMsgs = append(b.monitorMsgs, msgType)
}

func (b *recordingBroadcaster) BroadcastToCandidate(_ string, _ string, _ interface{}) {}

func (b *recordingBroadcaster) DisconnectAttempt(attemptID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects = append(b.disconnects, attemptID)
}
