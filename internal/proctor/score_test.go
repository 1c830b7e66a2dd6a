package proctor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"proctorly/internal/model"
)

func events(kinds ...model.EventKind) []model.ProctorEvent {
	evs := make([]model.ProctorEvent, len(kinds))
	for i, k := range kinds {
		evs[i] = model.ProctorEvent{Kind: k}
	}
	return evs
}

func TestScoreEmpty(t *testing.T) {
	assert.Zero(t, Score(nil))
	assert.Zero(t, Score([]model.ProctorEvent{}))
}

func TestScoreKnownScenario(t *testing.T) {
	// Two tab switches and one blur: 10*ln(3) + 5*ln(2) ≈ 14.48, band low.
	score := Score(events(model.EventTabSwitch, model.EventTabSwitch, model.EventBlur))
	expected := 10*math.Log(3) + 5*math.Log(2)
	assert.InDelta(t, expected, score, 1e-9)
	assert.InDelta(t, 14.48, score, 0.01)
	assert.Equal(t, model.RiskLow, Band(score))
}

func TestScoreCap(t *testing.T) {
	var evs []model.ProctorEvent
	for i := 0; i < 500; i++ {
		evs = append(evs, model.ProctorEvent{Kind: model.EventDevtoolsOpen})
		evs = append(evs, model.ProctorEvent{Kind: model.EventExitFullscreen})
	}
	score := Score(evs)
	assert.Equal(t, MaxScore, score)
}

func TestScoreMonotonicInCount(t *testing.T) {
	for kind := range weights {
		prev := 0.0
		evs := []model.ProctorEvent{}
		for n := 1; n <= 50; n++ {
			evs = append(evs, model.ProctorEvent{Kind: kind})
			score := Score(evs)
			assert.GreaterOrEqual(t, score, prev, "kind %s count %d", kind, n)
			assert.LessOrEqual(t, score, MaxScore)
			prev = score
		}
	}
}

func TestScoreIgnoresUnknownKinds(t *testing.T) {
	score := Score(events(model.EventKind("telepathy")))
	assert.Zero(t, score)
}

func TestBands(t *testing.T) {
	tests := []struct {
		score float64
		band  model.RiskBand
	}{
		{0, model.RiskLow},
		{39.99, model.RiskLow},
		{40, model.RiskMedium},
		{74.99, model.RiskMedium},
		{75, model.RiskHigh},
		{100, model.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.band, Band(tt.score), "score %v", tt.score)
	}
}

func TestTally(t *testing.T) {
	counts := Tally(events(model.EventCopy, model.EventCopy, model.EventPaste))
	assert.Equal(t, 2, counts[model.EventCopy])
	assert.Equal(t, 1, counts[model.EventPaste])
}
