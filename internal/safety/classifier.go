package safety

import (
	"time"

	"github.com/noahxzhu/medtracker/internal/model"
)

// Classify tags a dose by the time since the previous one: early under half
// the interval, warning under the full interval, normal otherwise.
//
// This is deliberately coarser than Evaluate, and the two can disagree on
// the same doses.
func Classify(at time.Time, previous *time.Time, intervalHours float64) model.DoseStatus {
	if previous == nil || previous.IsZero() {
		return model.StatusNormal
	}

	hours := Elapsed(at, *previous)
	switch {
	case hours < intervalHours/2:
		return model.StatusEarly
	case hours < intervalHours:
		return model.StatusWarning
	default:
		return model.StatusNormal
	}
}
