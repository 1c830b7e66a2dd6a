package timebudget

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Remaining computes the seconds left in an attempt's budget at now. Off-page
// and paused time is refunded back into the budget: the clock only runs while
// the user is actively on the page and not paused.
func Remaining(now, startedAt time.Time, durationSeconds, timeOffPageSeconds, totalPausedSeconds int) int {
	elapsed := int(now.Sub(startedAt) / time.Second)
	remaining := durationSeconds - elapsed + timeOffPageSeconds + totalPausedSeconds
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Calculator tracks one attempt's time budget across off-page intervals and
// explicit pause/resume cycles. The pause marker and accumulated paused
// seconds live in a MarkerStore so they survive a reload.
type Calculator struct {
	clock     Clock
	store     MarkerStore
	attemptID string
	startedAt time.Time
	duration  int

	mu      sync.Mutex
	offPage int
	paused  int
}

// NewCalculator creates a calculator for one attempt. totalPausedSeconds is
// re-read from the store so a reloaded page resumes with the right budget.
func NewCalculator(ctx context.Context, clock Clock, store MarkerStore, attemptID string, startedAt time.Time, durationSeconds, timeOffPageSeconds int) (*Calculator, error) {
	paused, err := store.PausedSeconds(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("read paused seconds: %w", err)
	}
	return &Calculator{
		clock:     clock,
		store:     store,
		attemptID: attemptID,
		startedAt: startedAt,
		duration:  durationSeconds,
		offPage:   timeOffPageSeconds,
		paused:    paused,
	}, nil
}

// Remaining returns the seconds left at the clock's current instant.
func (c *Calculator) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Remaining(c.clock.Now(), c.startedAt, c.duration, c.offPage, c.paused)
}

// AddOffPage credits seconds spent away from the page back into the budget.
// Called when the page transitions from hidden/blurred back to visible.
func (c *Calculator) AddOffPage(seconds int) {
	if seconds <= 0 {
		return
	}
	c.mu.Lock()
	c.offPage += seconds
	c.mu.Unlock()
}

// OffPageSeconds returns the accumulated off-page time.
func (c *Calculator) OffPageSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offPage
}

// TotalPausedSeconds returns the accumulated explicit-pause time.
func (c *Calculator) TotalPausedSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// BeginPause stamps and persists the pause-start marker. An already-present
// marker is left alone so a crashed pause cannot shorten the recorded pause.
func (c *Calculator) BeginPause(ctx context.Context) error {
	if _, ok, err := c.store.PauseStart(ctx, c.attemptID); err != nil {
		return fmt.Errorf("read pause marker: %w", err)
	} else if ok {
		return nil
	}
	return c.store.SetPauseStart(ctx, c.attemptID, c.clock.Now())
}

// ConsumePause reads the persisted pause-start marker, adds the elapsed pause
// duration to the paused total, and clears the marker. The marker is cleared
// before the total is returned, so re-reading the same marker twice cannot
// double-count: a second call finds no marker and credits nothing.
func (c *Calculator) ConsumePause(ctx context.Context) (int, error) {
	start, ok, err := c.store.PauseStart(ctx, c.attemptID)
	if err != nil {
		return 0, fmt.Errorf("read pause marker: %w", err)
	}
	if !ok {
		return 0, nil
	}

	elapsed := int(c.clock.Now().Sub(start) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	if err := c.store.ClearPauseStart(ctx, c.attemptID); err != nil {
		return 0, fmt.Errorf("clear pause marker: %w", err)
	}

	c.mu.Lock()
	c.paused += elapsed
	total := c.paused
	c.mu.Unlock()

	if err := c.store.SetPausedSeconds(ctx, c.attemptID, total); err != nil {
		return elapsed, fmt.Errorf("persist paused seconds: %w", err)
	}
	return elapsed, nil
}
