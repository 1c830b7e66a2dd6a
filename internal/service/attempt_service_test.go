package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctorly/internal/model"
	"proctorly/internal/timebudget"
)

type attemptFixture struct {
	svc      *AttemptService
	tests    *fakeTestRepo
	attempts *fakeAttemptRepo
	answers  *fakeAnswerRepo
	events   *fakeEventRepo
	risk     *fakeRiskCache
	cache    *fakeAttemptCache
	markers  *timebudget.MemoryStore
	cast     *recordingBroadcaster
	test     *model.Test
}

func newAttemptFixture(t *testing.T, mutate func(*model.Test)) *attemptFixture {
	t.Helper()

	ten := 10.0
	test := &model.Test{
		ID:              "test-1",
		Title:           "Midterm",
		DurationSeconds: 1800,
		OpensAt:         time.Now().Add(-time.Hour),
		ClosesAt:        time.Now().Add(time.Hour),
		MaxAttempts:     2,
		Questions: []model.Question{
			{
				ID: "q1", Type: model.QuestionTypeSingleSelect, Prompt: "pick one", Points: 2,
				Options: []model.Option{
					{ID: "a", Text: "wrong"},
					{ID: "b", Text: "right", Correct: true},
				},
			},
			{
				ID: "q2", Type: model.QuestionTypeNumeric, Prompt: "how many", Points: 2,
				CorrectNumeric: &ten, NumericTolerance: 0.5,
			},
			{
				ID: "q3", Type: model.QuestionTypeFreeResponse, Prompt: "explain", Points: 5,
				Rubric: "needs the impossibility argument",
			},
		},
	}
	if mutate != nil {
		mutate(test)
	}

	f := &attemptFixture{
		tests:    newFakeTestRepo(test),
		attempts: newFakeAttemptRepo(),
		answers:  newFakeAnswerRepo(),
		events:   &fakeEventRepo{},
		risk:     newFakeRiskCache(),
		cache:    newFakeAttemptCache(),
		markers:  timebudget.NewMemoryStore(),
		cast:     &recordingBroadcaster{},
		test:     test,
	}
	f.svc = NewAttemptService(
		f.tests, f.attempts, f.answers, f.events,
		newFakeTestCache(), f.cache, f.risk, f.markers,
	)
	f.svc.SetBroadcaster(f.cast)
	return f
}

func (f *attemptFixture) start(t *testing.T, userID string) *model.Attempt {
	t.Helper()
	attempt, err := f.svc.StartAttempt(context.Background(), f.test.ID, userID, model.StartAttemptRequest{Fingerprint: "fp-1"})
	require.NoError(t, err)
	return attempt
}

func TestStartAttemptCreatesInProgress(t *testing.T) {
	f := newAttemptFixture(t, nil)

	attempt := f.start(t, "user-1")
	assert.Equal(t, model.AttemptInProgress, attempt.Status)
	assert.Equal(t, "test-1", attempt.TestID)
	assert.Equal(t, "fp-1", attempt.ClientFingerprint)
	assert.False(t, attempt.StartedAt.IsZero())
}

func TestStartAttemptPasswordGate(t *testing.T) {
	f := newAttemptFixture(t, func(test *model.Test) {
		test.PasswordHash = hashPassword("letmein")
	})

	_, err := f.svc.StartAttempt(context.Background(), "test-1", "user-1", model.StartAttemptRequest{})
	assert.ErrorIs(t, err, ErrNeedTestPassword)

	_, err = f.svc.StartAttempt(context.Background(), "test-1", "user-1", model.StartAttemptRequest{Password: "nope"})
	assert.ErrorIs(t, err, ErrWrongTestPassword)

	attempt, err := f.svc.StartAttempt(context.Background(), "test-1", "user-1", model.StartAttemptRequest{Password: "letmein"})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, attempt.Status)
}

func TestStartAttemptWindowClosed(t *testing.T) {
	f := newAttemptFixture(t, func(test *model.Test) {
		test.OpensAt = time.Now().Add(time.Hour)
		test.ClosesAt = time.Now().Add(2 * time.Hour)
	})

	_, err := f.svc.StartAttempt(context.Background(), "test-1", "user-1", model.StartAttemptRequest{})
	assert.ErrorIs(t, err, ErrStartWindowClosed)
}

func TestStartAttemptLateDeadlineExtendsWindow(t *testing.T) {
	late := time.Now().Add(time.Hour)
	f := newAttemptFixture(t, func(test *model.Test) {
		test.OpensAt = time.Now().Add(-2 * time.Hour)
		test.ClosesAt = time.Now().Add(-time.Minute)
		test.LateDeadline = &late
	})

	attempt, err := f.svc.StartAttempt(context.Background(), "test-1", "user-1", model.StartAttemptRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, attempt.Status)
}

func TestStartAttemptResumesOpenAttempt(t *testing.T) {
	f := newAttemptFixture(t, nil)

	first := f.start(t, "user-1")
	second := f.start(t, "user-1")
	assert.Equal(t, first.ID, second.ID)
}

func TestStartAttemptCeiling(t *testing.T) {
	f := newAttemptFixture(t, nil)

	// Two terminal attempts exhaust maxAttempts=2
	for i := 0; i < 2; i++ {
		attempt := f.start(t, "user-1")
		_, err := f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
		require.NoError(t, err)
	}

	_, err := f.svc.StartAttempt(context.Background(), "test-1", "user-1", model.StartAttemptRequest{})
	assert.ErrorIs(t, err, ErrMaxAttemptsReached)
}

func TestInvalidatedAttemptDoesNotCountAgainstCeiling(t *testing.T) {
	f := newAttemptFixture(t, nil)

	for i := 0; i < 2; i++ {
		attempt := f.start(t, "user-1")
		_, err := f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
		require.NoError(t, err)
		_, err = f.svc.InvalidateAttempt(context.Background(), attempt.ID, "proctoring violation")
		require.NoError(t, err)
	}

	attempt, err := f.svc.StartAttempt(context.Background(), "test-1", "user-1", model.StartAttemptRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, attempt.Status)
}

func TestRecordEventRecomputesRiskScore(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	for i := 0; i < 2; i++ {
		require.NoError(t, f.svc.RecordEvent(context.Background(), attempt.ID, model.RecordEventRequest{Kind: model.EventTabSwitch}))
	}
	require.NoError(t, f.svc.RecordEvent(context.Background(), attempt.ID, model.RecordEventRequest{Kind: model.EventBlur}))

	updated, err := f.svc.GetAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	// 10*ln(3) + 5*ln(2) ≈ 14.45
	assert.InDelta(t, 14.45, updated.ProctoringScore, 0.1)
}

func TestRecordEventDroppedAfterSubmission(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	_, err := f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
	require.NoError(t, err)

	require.NoError(t, f.svc.RecordEvent(context.Background(), attempt.ID, model.RecordEventRequest{Kind: model.EventTabSwitch}))
	events, err := f.svc.ListEvents(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPushCountersNeverShrink(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	require.NoError(t, f.svc.PushCounters(context.Background(), attempt.ID, model.PushCountersRequest{TabSwitchCount: 5, TimeOffPageSeconds: 300}))
	// A stale push must not roll the counters back
	require.NoError(t, f.svc.PushCounters(context.Background(), attempt.ID, model.PushCountersRequest{TabSwitchCount: 3, TimeOffPageSeconds: 200}))

	updated, err := f.svc.GetAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.TabSwitchCount)
	assert.Equal(t, 300, updated.TimeOffPageSeconds)
}

func TestUpsertAnswerGuards(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	_, err := f.svc.UpsertAnswer(context.Background(), attempt.ID, model.UpsertAnswerRequest{QuestionID: "ghost"})
	assert.Error(t, err)

	_, err = f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
	require.NoError(t, err)

	_, err = f.svc.UpsertAnswer(context.Background(), attempt.ID, model.UpsertAnswerRequest{QuestionID: "q1"})
	assert.ErrorIs(t, err, ErrAttemptNotInProgress)
}

func TestSubmitAutoGradesObjectiveAnswers(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	near := 10.3
	_, err := f.svc.UpsertAnswer(context.Background(), attempt.ID, model.UpsertAnswerRequest{QuestionID: "q1", SelectedOptionIDs: []string{"b"}})
	require.NoError(t, err)
	_, err = f.svc.UpsertAnswer(context.Background(), attempt.ID, model.UpsertAnswerRequest{QuestionID: "q2", NumericAnswer: &near})
	require.NoError(t, err)
	_, err = f.svc.UpsertAnswer(context.Background(), attempt.ID, model.UpsertAnswerRequest{QuestionID: "q3", AnswerText: "an essay"})
	require.NoError(t, err)

	submitted, err := f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{ClientFingerprint: "fp-2"})
	require.NoError(t, err)

	// FRQ outstanding, so SUBMITTED rather than GRADED
	assert.Equal(t, model.AttemptSubmitted, submitted.Status)
	assert.Equal(t, "fp-2", submitted.ClientFingerprint)
	require.NotNil(t, submitted.SubmittedAt)

	answers, err := f.answers.ListByAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	for _, a := range answers {
		switch a.QuestionID {
		case "q1":
			require.NotNil(t, a.PointsAwarded)
			assert.Equal(t, 2.0, *a.PointsAwarded)
		case "q2":
			require.NotNil(t, a.PointsAwarded)
			assert.Equal(t, 2.0, *a.PointsAwarded) // 10.3 within tolerance 0.5
		case "q3":
			assert.Nil(t, a.PointsAwarded)
			assert.Nil(t, a.GradedAt)
		}
	}
}

func TestSubmitAllObjectiveGoesStraightToGraded(t *testing.T) {
	f := newAttemptFixture(t, func(test *model.Test) {
		test.Questions = test.Questions[:2] // Drop the FRQ
	})
	attempt := f.start(t, "user-1")

	_, err := f.svc.UpsertAnswer(context.Background(), attempt.ID, model.UpsertAnswerRequest{QuestionID: "q1", SelectedOptionIDs: []string{"a"}})
	require.NoError(t, err)

	submitted, err := f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
	require.NoError(t, err)

	assert.Equal(t, model.AttemptGraded, submitted.Status)
	require.NotNil(t, submitted.GradeEarned)
	assert.Equal(t, 0.0, *submitted.GradeEarned) // Wrong option scores zero
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	first, err := f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
	require.NoError(t, err)
	second, err := f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.SubmittedAt.Unix(), second.SubmittedAt.Unix())
}

func TestSubmitInvalidatedAttemptFails(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	_, err := f.svc.InvalidateAttempt(context.Background(), attempt.ID, "caught cheating")
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(context.Background(), attempt.ID, model.SubmitAttemptRequest{})
	assert.ErrorIs(t, err, ErrAttemptInvalidated)
}

func TestInvalidateRemovesFromRiskRanking(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	require.NoError(t, f.svc.RecordEvent(context.Background(), attempt.ID, model.RecordEventRequest{Kind: model.EventDevtoolsOpen}))
	entries, err := f.svc.TopRisk(context.Background(), "test-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = f.svc.InvalidateAttempt(context.Background(), attempt.ID, "violation")
	require.NoError(t, err)

	entries, err = f.svc.TopRisk(context.Background(), "test-1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordEventScoresRawVisibilityKind(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	// Clients with their own tab-switch detection report raw visibility events
	require.NoError(t, f.svc.RecordEvent(context.Background(), attempt.ID, model.RecordEventRequest{Kind: model.EventVisibilityHidden}))

	updated, err := f.svc.GetAttempt(context.Background(), attempt.ID)
	require.NoError(t, err)
	// 8*ln(2) ≈ 5.55
	assert.InDelta(t, 5.55, updated.ProctoringScore, 0.1)
}

func TestSubmitClearsPauseMarkers(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")
	ctx := context.Background()

	require.NoError(t, f.markers.SetPauseStart(ctx, attempt.ID, time.Now()))
	require.NoError(t, f.markers.SetPausedSeconds(ctx, attempt.ID, 42))

	_, err := f.svc.SubmitAttempt(ctx, attempt.ID, model.SubmitAttemptRequest{})
	require.NoError(t, err)

	_, ok, err := f.markers.PauseStart(ctx, attempt.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	paused, err := f.markers.PausedSeconds(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Zero(t, paused)
}

func TestInvalidateClearsPauseMarkers(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")
	ctx := context.Background()

	require.NoError(t, f.markers.SetPauseStart(ctx, attempt.ID, time.Now()))
	require.NoError(t, f.markers.SetPausedSeconds(ctx, attempt.ID, 90))

	_, err := f.svc.InvalidateAttempt(ctx, attempt.ID, "violation")
	require.NoError(t, err)

	_, ok, err := f.markers.PauseStart(ctx, attempt.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	paused, err := f.markers.PausedSeconds(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Zero(t, paused)
}

func TestLiveStatusReportsCountersAndRank(t *testing.T) {
	f := newAttemptFixture(t, nil)
	ctx := context.Background()

	riskier := f.start(t, "user-1")
	quieter := f.start(t, "user-2")

	require.NoError(t, f.svc.RecordEvent(ctx, riskier.ID, model.RecordEventRequest{Kind: model.EventDevtoolsOpen}))
	require.NoError(t, f.svc.RecordEvent(ctx, quieter.ID, model.RecordEventRequest{Kind: model.EventBlur}))
	require.NoError(t, f.svc.PushCounters(ctx, riskier.ID, model.PushCountersRequest{TabSwitchCount: 5, TimeOffPageSeconds: 120}))

	status, err := f.svc.LiveStatus(ctx, riskier.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, status.TabSwitchCount)
	assert.Equal(t, 120, status.TimeOffPageSeconds)
	assert.Equal(t, int64(1), status.RiskRank)
	assert.Equal(t, model.RiskLow, status.RiskBand)

	status, err = f.svc.LiveStatus(ctx, quieter.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.RiskRank)
}

func TestLiveStatusUnrankedAttempt(t *testing.T) {
	f := newAttemptFixture(t, nil)
	attempt := f.start(t, "user-1")

	status, err := f.svc.LiveStatus(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), status.RiskRank)
}

func TestAutoGradeBlankFillPartialCredit(t *testing.T) {
	q := &model.Question{
		Type:          model.QuestionTypeBlankFill,
		Points:        4,
		CorrectBlanks: []string{"prepare", "commit"},
	}

	full := &model.Answer{BlankAnswers: []string{" Prepare ", "COMMIT"}}
	assert.Equal(t, 4.0, autoGrade(q, full)) // Case and whitespace insensitive

	half := &model.Answer{BlankAnswers: []string{"prepare", "abort"}}
	assert.Equal(t, 2.0, autoGrade(q, half))

	none := &model.Answer{}
	assert.Equal(t, 0.0, autoGrade(q, none))
}

func TestAutoGradeMultiSelectAllOrNothing(t *testing.T) {
	q := &model.Question{
		Type:   model.QuestionTypeMultiSelect,
		Points: 3,
		Options: []model.Option{
			{ID: "a", Correct: true},
			{ID: "b", Correct: true},
			{ID: "c"},
		},
	}

	assert.Equal(t, 3.0, autoGrade(q, &model.Answer{SelectedOptionIDs: []string{"b", "a"}}))
	assert.Equal(t, 0.0, autoGrade(q, &model.Answer{SelectedOptionIDs: []string{"a"}}))
	assert.Equal(t, 0.0, autoGrade(q, &model.Answer{SelectedOptionIDs: []string{"a", "b", "c"}}))
}
