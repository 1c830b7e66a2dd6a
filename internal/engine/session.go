package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"proctorly/internal/model"
	"proctorly/internal/timebudget"
)

// SubmitTrigger is one of the exactly three paths to SUBMITTED.
type SubmitTrigger string

const (
	TriggerManual     SubmitTrigger = "manual"     // User-confirmed dialog
	TriggerTimeout    SubmitTrigger = "timeout"    // Time budget reached zero
	TriggerNavigation SubmitTrigger = "navigation" // Forced by an attempt to leave the page
)

// Default timer cadence while an attempt is in progress.
const (
	DefaultTickInterval = 1 * time.Second
	DefaultPushInterval = 10 * time.Second
)

// SessionConfig wires a Session's collaborators and callbacks.
type SessionConfig struct {
	Backend     Backend
	Env         Environment
	Clock       timebudget.Clock
	Markers     timebudget.MarkerStore
	Fingerprint FingerprintFunc
	Test        *model.Test

	Debounce     time.Duration // Answer autosave debounce; DefaultDebounce if zero
	TickInterval time.Duration
	PushInterval time.Duration

	SubmitDest string // Navigation destination after a successful submit
	PauseDest  string // Navigation destination after save & exit

	// UI callbacks; all optional. Invoked without the session lock held.
	OnRemaining func(seconds int)
	OnWarning   func(msg string)
	OnBlocked   func(blocked bool)
	OnSubmitted func(attempt *model.Attempt)
}

// SubmitSummary is what the manual-submit confirmation dialog surfaces. The
// warnings are non-blocking; submission is still allowed.
type SubmitSummary struct {
	Unanswered      int
	MarkedForReview int
}

// Session is the attempt state machine. It owns the answer store, the
// time-budget calculator, and the integrity recorder, and it is the only
// writer of the exit-intent and pause markers, so multiple sessions in one
// process never interfere.
type Session struct {
	backend     Backend
	env         Environment
	clock       timebudget.Clock
	fingerprint FingerprintFunc
	test        *model.Test

	answers *AnswerStore
	calc    *timebudget.Calculator

	tickInterval time.Duration
	pushInterval time.Duration
	submitDest   string
	pauseDest    string

	onRemaining func(int)
	onWarning   func(string)
	onBlocked   func(bool)
	onSubmitted func(*model.Attempt)

	mu             sync.Mutex
	attempt        *model.Attempt
	exiting        bool // Set before the first terminal network call; checked by every trigger path
	paused         bool
	blocked        bool // Fullscreen-required block: interaction disabled until re-entry
	controlledExit bool // Next fullscreen exit is the engine's own, not a violation
	tabSwitches    int
	offPageSince   *time.Time
	stopTimers     chan struct{}
	unsubscribe    func()
}

// Start validates availability and creates a new attempt. Must be called from
// a user gesture when the test requires fullscreen, so the immediate
// fullscreen request is permitted by platform policy.
func Start(ctx context.Context, cfg SessionConfig, password string) (*Session, error) {
	attempt, err := cfg.Backend.StartAttempt(ctx, cfg.Test.ID, model.StartAttemptRequest{
		Fingerprint: cfg.Fingerprint(),
		Password:    password,
	})
	if err != nil {
		return nil, err
	}

	s := newSession(cfg, attempt)
	calc, err := timebudget.NewCalculator(ctx, s.clock, cfg.Markers, attempt.ID, attempt.StartedAt, cfg.Test.DurationSeconds, attempt.TimeOffPageSeconds)
	if err != nil {
		return nil, err
	}
	s.calc = calc

	if cfg.Test.RequireFullscreen {
		if err := s.env.RequestFullscreen(); err != nil {
			s.setBlocked(true)
		}
	}
	s.begin()
	return s, nil
}

// Resume re-enters IN_PROGRESS for an existing non-terminal attempt. Any
// persisted pause marker is consumed exactly once; if fullscreen is required
// and not active, the session starts inside the fullscreen-required block,
// because platforms refuse fullscreen without a fresh user gesture.
func Resume(ctx context.Context, cfg SessionConfig, attempt *model.Attempt, answers []model.Answer) (*Session, error) {
	if attempt.Status != model.AttemptInProgress {
		return nil, ErrNotInProgress
	}

	s := newSession(cfg, attempt)
	calc, err := timebudget.NewCalculator(ctx, s.clock, cfg.Markers, attempt.ID, attempt.StartedAt, cfg.Test.DurationSeconds, attempt.TimeOffPageSeconds)
	if err != nil {
		return nil, err
	}
	s.calc = calc
	if _, err := calc.ConsumePause(ctx); err != nil {
		return nil, fmt.Errorf("consume pause marker: %w", err)
	}

	s.answers.Seed(answers)
	s.tabSwitches = attempt.TabSwitchCount

	if cfg.Test.RequireFullscreen && !s.env.IsFullscreen() {
		s.setBlocked(true)
	}
	s.begin()
	return s, nil
}

func newSession(cfg SessionConfig, attempt *model.Attempt) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = timebudget.SystemClock
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	push := cfg.PushInterval
	if push <= 0 {
		push = DefaultPushInterval
	}

	s := &Session{
		backend:      cfg.Backend,
		env:          cfg.Env,
		clock:        clock,
		fingerprint:  cfg.Fingerprint,
		test:         cfg.Test,
		tickInterval: tick,
		pushInterval: push,
		submitDest:   cfg.SubmitDest,
		pauseDest:    cfg.PauseDest,
		onRemaining:  cfg.OnRemaining,
		onWarning:    cfg.OnWarning,
		onBlocked:    cfg.OnBlocked,
		onSubmitted:  cfg.OnSubmitted,
		attempt:      attempt,
	}
	s.answers = NewAnswerStore(cfg.Backend, attempt.ID, cfg.Debounce, func(questionID string, err error) {
		s.warn(fmt.Sprintf("autosave failed for question %s; your answer is kept locally", questionID))
		log.Printf("[session %s] autosave failed for question %s: %v", attempt.ID, questionID, err)
	})
	return s
}

// begin subscribes to environment signals and starts the periodic timers.
func (s *Session) begin() {
	s.mu.Lock()
	s.unsubscribe = s.env.Subscribe(s.handleSignal)
	stop := make(chan struct{})
	s.stopTimers = stop
	s.mu.Unlock()

	go s.runTimers(stop)
}

// runTimers drives the 1-second remaining-time tick and the 10-second counter
// push. Both stop the moment the attempt leaves IN_PROGRESS so no work leaks
// against a closed attempt.
func (s *Session) runTimers(stop chan struct{}) {
	tick := time.NewTicker(s.tickInterval)
	push := time.NewTicker(s.pushInterval)
	defer tick.Stop()
	defer push.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			s.onTick()
		case <-push.C:
			s.pushCounters(context.Background())
		}
	}
}

func (s *Session) onTick() {
	s.mu.Lock()
	running := s.attempt.Status == model.AttemptInProgress && !s.exiting && !s.paused
	s.mu.Unlock()
	if !running {
		return
	}

	remaining := s.calc.Remaining()
	if s.onRemaining != nil {
		s.onRemaining(remaining)
	}
	if remaining == 0 {
		// Forced submission, no confirmation dialog. A concurrent manual
		// submit already in flight wins via the exiting flag.
		if err := s.Submit(context.Background(), TriggerTimeout); err != nil &&
			!errors.Is(err, ErrSubmitInFlight) && !errors.Is(err, ErrNotInProgress) {
			log.Printf("[session %s] timeout submission failed: %v", s.attempt.ID, err)
		}
	}
}

// Remaining returns the current seconds left in the budget.
func (s *Session) Remaining() int {
	return s.calc.Remaining()
}

// Attempt returns the session's current attempt snapshot.
func (s *Session) Attempt() model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.attempt
}

// Answers exposes the session's answer store.
func (s *Session) Answers() *AnswerStore {
	return s.answers
}

// Blocked reports whether the fullscreen-required block is active.
func (s *Session) Blocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked
}

// Summary returns the counts the manual-submit dialog warns about.
func (s *Session) Summary() SubmitSummary {
	answered, marked := s.answers.AnsweredCount()
	return SubmitSummary{
		Unanswered:      len(s.test.Questions) - answered,
		MarkedForReview: marked,
	}
}

// ReenterFullscreen is the single explicit re-entry action that lifts the
// fullscreen-required block. Must be called from a user gesture.
func (s *Session) ReenterFullscreen() error {
	if err := s.env.RequestFullscreen(); err != nil {
		return err
	}
	s.setBlocked(false)
	return nil
}

// handleSignal is the sole consumer of environment signals. Lockdown is
// advisory, not punitive: a manual fullscreen exit re-enters the block
// instead of failing the attempt.
func (s *Session) handleSignal(sig Signal) {
	s.mu.Lock()
	if s.attempt.Status != model.AttemptInProgress || s.paused || s.exiting {
		s.mu.Unlock()
		return
	}

	switch sig.Kind {
	case SignalVisibilityHidden:
		s.tabSwitches++
		s.markOffPageLocked()
		s.mu.Unlock()
		s.record(model.EventTabSwitch, sig.Meta)

	case SignalBlur:
		s.markOffPageLocked()
		s.mu.Unlock()
		s.record(model.EventBlur, sig.Meta)

	case SignalVisibilityVisible, SignalFocus:
		var off int
		if s.offPageSince != nil {
			off = int(s.clock.Now().Sub(*s.offPageSince) / time.Second)
			s.offPageSince = nil
		}
		s.mu.Unlock()
		s.calc.AddOffPage(off)

	case SignalFullscreenExited:
		if s.controlledExit {
			s.controlledExit = false
			s.mu.Unlock()
			return
		}
		required := s.test.RequireFullscreen
		s.mu.Unlock()
		s.record(model.EventExitFullscreen, sig.Meta)
		if required {
			s.setBlocked(true)
		}

	case SignalFullscreenEntered:
		s.mu.Unlock()
		s.setBlocked(false)

	case SignalNavigationAway:
		s.mu.Unlock()
		// Suppress the navigation's immediate effect before the async
		// submission completes; otherwise the attempt would strand
		// IN_PROGRESS with an unsent final flush.
		s.env.ReassertLocation()
		go func() {
			if err := s.Submit(context.Background(), TriggerNavigation); err != nil &&
				!errors.Is(err, ErrSubmitInFlight) && !errors.Is(err, ErrNotInProgress) {
				log.Printf("[session %s] forced-navigation submission failed: %v", s.attempt.ID, err)
			}
		}()

	default:
		s.mu.Unlock()
		if kind, ok := recordOnly[sig.Kind]; ok {
			s.record(kind, sig.Meta)
		}
	}
}

func (s *Session) markOffPageLocked() {
	if s.offPageSince == nil {
		now := s.clock.Now()
		s.offPageSince = &now
	}
}

// record appends a proctor event while the attempt is IN_PROGRESS; a no-op
// otherwise. The persist call is fire-and-forget: failure is logged, never
// retried, and never blocks the UI.
func (s *Session) record(kind model.EventKind, meta map[string]string) {
	s.mu.Lock()
	if s.attempt.Status != model.AttemptInProgress {
		s.mu.Unlock()
		return
	}
	attemptID := s.attempt.ID
	s.mu.Unlock()

	go func() {
		if err := s.backend.RecordEvent(context.Background(), attemptID, model.RecordEventRequest{Kind: kind, Meta: meta}); err != nil {
			log.Printf("[session %s] event %s not recorded: %v", attemptID, kind, err)
		}
	}()
}

// pushCounters pushes the accumulated tab-tracking counters. Best effort.
func (s *Session) pushCounters(ctx context.Context) {
	s.mu.Lock()
	attemptID := s.attempt.ID
	tabs := s.tabSwitches
	s.mu.Unlock()

	req := model.PushCountersRequest{
		TabSwitchCount:     tabs,
		TimeOffPageSeconds: s.calc.OffPageSeconds(),
	}
	if err := s.backend.PushCounters(ctx, attemptID, req); err != nil {
		log.Printf("[session %s] counter push failed: %v", attemptID, err)
	}
}

// Pause is "save & exit": flush answers, stamp and persist the pause-start
// marker, leave fullscreen, and navigate away without submitting. Only
// permitted when the test allows multi-session attempts.
func (s *Session) Pause(ctx context.Context) error {
	if !s.test.AllowMultiSession {
		return ErrPauseNotAllowed
	}

	s.mu.Lock()
	if s.exiting {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	if s.attempt.Status != model.AttemptInProgress || s.paused {
		s.mu.Unlock()
		return ErrNotInProgress
	}
	s.exiting = true
	s.mu.Unlock()

	s.haltTimers()
	if err := s.answers.FlushAll(ctx); err != nil {
		s.resumeInteractive()
		return fmt.Errorf("flush before pause: %w", err)
	}
	if err := s.calc.BeginPause(ctx); err != nil {
		s.resumeInteractive()
		return err
	}
	s.pushCounters(ctx)

	s.mu.Lock()
	s.controlledExit = true
	s.paused = true
	s.exiting = false
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	s.env.ExitFullscreen()
	if s.pauseDest != "" {
		s.env.Navigate(s.pauseDest)
	}
	return nil
}

// Submit drives the submission protocol for all three triggers, in order:
// cancel pending debounced saves, flush the answer store and await it, send
// the final submit request with a freshly recomputed fingerprint, then
// release fullscreen and navigate. On failure the session is restored to an
// interactive, lockdown-compliant state for retry. A submission already in
// flight is never re-triggered: the exiting flag is set before the first
// network call and checked by every trigger path.
func (s *Session) Submit(ctx context.Context, trigger SubmitTrigger) error {
	s.mu.Lock()
	if s.exiting {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	if s.attempt.Status != model.AttemptInProgress || s.paused {
		s.mu.Unlock()
		return ErrNotInProgress
	}
	s.exiting = true
	attemptID := s.attempt.ID
	s.mu.Unlock()

	s.haltTimers()
	s.answers.CancelPending()

	if err := s.answers.FlushAll(ctx); err != nil {
		s.resumeInteractive()
		return fmt.Errorf("final flush: %w", err)
	}
	s.pushCounters(ctx)

	attempt, err := s.backend.SubmitAttempt(ctx, attemptID, model.SubmitAttemptRequest{
		ClientFingerprint: s.fingerprint(),
	})
	if err != nil {
		s.resumeInteractive()
		s.warn("submission failed; you are still in the test and can retry")
		return fmt.Errorf("submit (%s): %w", trigger, err)
	}

	s.mu.Lock()
	s.attempt = attempt
	s.controlledExit = true
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	s.env.ExitFullscreen()
	if s.submitDest != "" {
		s.env.Navigate(s.submitDest)
	}
	if s.onSubmitted != nil {
		s.onSubmitted(attempt)
	}
	return nil
}

// haltTimers tears down the periodic tick/push work.
func (s *Session) haltTimers() {
	s.mu.Lock()
	if s.stopTimers != nil {
		close(s.stopTimers)
		s.stopTimers = nil
	}
	s.mu.Unlock()
}

// resumeInteractive restores an interactive, lockdown-compliant state after a
// failed terminal transition so the user can retry.
func (s *Session) resumeInteractive() {
	s.mu.Lock()
	s.exiting = false
	stop := make(chan struct{})
	s.stopTimers = stop
	s.mu.Unlock()
	go s.runTimers(stop)

	if s.test.RequireFullscreen && !s.env.IsFullscreen() {
		if err := s.env.RequestFullscreen(); err != nil {
			s.setBlocked(true)
		}
	}
}

func (s *Session) setBlocked(blocked bool) {
	s.mu.Lock()
	changed := s.blocked != blocked
	s.blocked = blocked
	s.mu.Unlock()
	if changed && s.onBlocked != nil {
		s.onBlocked(blocked)
	}
}

func (s *Session) warn(msg string) {
	if s.onWarning != nil {
		s.onWarning(msg)
	}
}
