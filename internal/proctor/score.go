package proctor

import (
	"math"

	"proctorly/internal/model"
)

// MaxScore caps the aggregate risk score.
const MaxScore = 100.0

// weights are the canonical per-kind risk weights. A kind with count n
// contributes weight * ln(n+1): repeated events of one kind carry diminishing
// marginal penalty, while variety of violations adds up linearly.
var weights = map[model.EventKind]float64{
	model.EventDevtoolsOpen:     20,
	model.EventExitFullscreen:   15,
	model.EventMultiMonitorHint: 12,
	model.EventTabSwitch:        10, // The bundled session reports visibility loss as tab-switch
	model.EventCopy:             10,
	model.EventVisibilityHidden: 8, // Raw visibility events from clients with their own tab-switch detection
	model.EventPaste:            8,
	model.EventBlur:             5,
	model.EventNetworkOffline:   5,
	model.EventContextMenu:      3,
	model.EventResize:           2,
}

// Weight returns the risk weight for a kind; unknown kinds weigh zero.
func Weight(kind model.EventKind) float64 {
	return weights[kind]
}

// Tally groups events by kind.
func Tally(events []model.ProctorEvent) map[model.EventKind]int {
	counts := make(map[model.EventKind]int, len(weights))
	for _, ev := range events {
		counts[ev.Kind]++
	}
	return counts
}

// Score reduces an event log to a risk score in [0, MaxScore]. It is a pure
// function of the event multiset and is recomputed on demand, never cached
// incrementally, so a dropped record call under-reports exactly one occurrence
// and nothing else.
func Score(events []model.ProctorEvent) float64 {
	return ScoreCounts(Tally(events))
}

// ScoreCounts scores a pre-tallied event multiset.
func ScoreCounts(counts map[model.EventKind]int) float64 {
	var total float64
	for kind, n := range counts {
		if n <= 0 {
			continue
		}
		total += weights[kind] * math.Log(float64(n)+1)
	}
	return math.Min(total, MaxScore)
}

// Band buckets a score for display.
func Band(score float64) model.RiskBand {
	switch {
	case score < 40:
		return model.RiskLow
	case score < 75:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}
