package engine

import (
	"context"
	"sync"
	"time"

	"proctorly/internal/model"
)

// fakeBackend records calls and lets tests inject failures and latency.
type fakeBackend struct {
	mu sync.Mutex

	attempt *model.Attempt

	upserts     []model.UpsertAnswerRequest
	events      []model.RecordEventRequest
	counters    []model.PushCountersRequest
	submits     []model.SubmitAttemptRequest
	sequence    []string // Interleaving of upsert/submit calls
	submitDelay time.Duration

	upsertErr error
	submitErr error
	eventErr  error
}

func newFakeBackend(attempt *model.Attempt) *fakeBackend {
	return &fakeBackend{attempt: attempt}
}

func (b *fakeBackend) StartAttempt(_ context.Context, testID string, req model.StartAttemptRequest) (*model.Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	att := *b.attempt
	att.TestID = testID
	att.ClientFingerprint = req.Fingerprint
	return &att, nil
}

func (b *fakeBackend) RecordEvent(_ context.Context, _ string, req model.RecordEventRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.eventErr != nil {
		return b.eventErr
	}
	b.events = append(b.events, req)
	return nil
}

func (b *fakeBackend) PushCounters(_ context.Context, _ string, req model.PushCountersRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters = append(b.counters, req)
	return nil
}

func (b *fakeBackend) UpsertAnswer(_ context.Context, _ string, req model.UpsertAnswerRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.upsertErr != nil {
		return b.upsertErr
	}
	b.upserts = append(b.upserts, req)
	b.sequence = append(b.sequence, "upsert")
	return nil
}

func (b *fakeBackend) SubmitAttempt(_ context.Context, _ string, req model.SubmitAttemptRequest) (*model.Attempt, error) {
	b.mu.Lock()
	delay := b.submitDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.submits = append(b.submits, req)
	b.sequence = append(b.sequence, "submit")
	att := *b.attempt
	att.Status = model.AttemptSubmitted
	now := time.Now()
	att.SubmittedAt = &now
	att.ClientFingerprint = req.ClientFingerprint
	return &att, nil
}

func (b *fakeBackend) submitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submits)
}

func (b *fakeBackend) lastUpsertFor(questionID string) (model.UpsertAnswerRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.upserts) - 1; i >= 0; i-- {
		if b.upserts[i].QuestionID == questionID {
			return b.upserts[i], true
		}
	}
	return model.UpsertAnswerRequest{}, false
}

func (b *fakeBackend) upsertCountFor(questionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, u := range b.upserts {
		if u.QuestionID == questionID {
			n++
		}
	}
	return n
}

func (b *fakeBackend) eventKinds() []model.EventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	kinds := make([]model.EventKind, len(b.events))
	for i, ev := range b.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// fakeEnv is a scriptable Environment.
type fakeEnv struct {
	mu         sync.Mutex
	nextID     int
	handlers   map[int]func(Signal)
	fullscreen bool
	fsErr      error
	reasserts  int
	navs       []string
}

func (e *fakeEnv) Subscribe(handler func(Signal)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[int]func(Signal))
	}
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, id)
	}
}

func (e *fakeEnv) emit(sig Signal) {
	e.mu.Lock()
	handlers := make([]func(Signal), 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()
	for _, h := range handlers {
		h(sig)
	}
}

func (e *fakeEnv) RequestFullscreen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fsErr != nil {
		return e.fsErr
	}
	e.fullscreen = true
	return nil
}

func (e *fakeEnv) ExitFullscreen() {
	e.mu.Lock()
	e.fullscreen = false
	e.mu.Unlock()
}

func (e *fakeEnv) IsFullscreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreen
}

func (e *fakeEnv) ReassertLocation() {
	e.mu.Lock()
	e.reasserts++
	e.mu.Unlock()
}

func (e *fakeEnv) Navigate(dest string) {
	e.mu.Lock()
	e.navs = append(e.navs, dest)
	e.mu.Unlock()
}

func (e *fakeEnv) reassertCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reasserts
}

func (e *fakeEnv) navigations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.navs...)
}
