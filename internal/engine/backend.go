package engine

import (
	"context"
	"errors"

	"proctorly/internal/model"
)

// Sentinel errors mapped from the attempt API's error codes.
var (
	ErrNeedTestPassword   = errors.New("test password required or incorrect")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	ErrSubmitInFlight     = errors.New("a submission is already in flight")
	ErrNotInProgress      = errors.New("attempt is not in progress")
	ErrPauseNotAllowed    = errors.New("test does not allow multi-session attempts")
	ErrFullscreenBlocked  = errors.New("interaction blocked until fullscreen is re-entered")
)

// Backend is the external collaborator API the engine talks to. The CRUD layer
// behind it is out of scope here; these are just the operation shapes.
type Backend interface {
	StartAttempt(ctx context.Context, testID string, req model.StartAttemptRequest) (*model.Attempt, error)
	RecordEvent(ctx context.Context, attemptID string, req model.RecordEventRequest) error
	PushCounters(ctx context.Context, attemptID string, req model.PushCountersRequest) error
	UpsertAnswer(ctx context.Context, attemptID string, req model.UpsertAnswerRequest) error
	SubmitAttempt(ctx context.Context, attemptID string, req model.SubmitAttemptRequest) (*model.Attempt, error)
}

// FingerprintFunc recomputes the client fingerprint. Called freshly for every
// submit request, never cached across submissions.
type FingerprintFunc func() string
