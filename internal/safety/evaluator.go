// Package safety decides whether a candidate dose is too soon or over the
// daily quota, and tags recorded doses by how early they were taken.
package safety

import (
	"math"
	"time"

	"github.com/noahxzhu/medtracker/internal/model"
	"github.com/noahxzhu/medtracker/internal/timing"
)

// Verdict is the outcome of a safety evaluation together with the figures
// shown in an override prompt.
type Verdict struct {
	HasTimeRestriction  bool
	HasQuotaRestriction bool
	TimeSinceLastDose   float64 // Hours, +Inf without a prior dose
	DosesToday          int
	RequiredInterval    float64 // Hours
	RecommendedWaitTime float64 // Hours, from the timing profile
}

// Restricted reports whether either rule is violated.
func (v Verdict) Restricted() bool {
	return v.HasTimeRestriction || v.HasQuotaRestriction
}

// HasPriorDose is false when TimeSinceLastDose is infinite.
func (v Verdict) HasPriorDose() bool {
	return !math.IsInf(v.TimeSinceLastDose, 1)
}

// Evaluate checks a dose at time at against settings and the existing doses.
// Doses may be in any order. A future at is not rejected here.
func Evaluate(settings model.Settings, doses []model.Dose, at time.Time, profile timing.Profile) Verdict {
	recommended := profile.Hours()

	required := settings.MinTimeBetweenDoses
	if settings.UseRecommendedTiming {
		required = recommended
	}

	since := math.Inf(1)
	if last, ok := MostRecent(doses); ok {
		since = Elapsed(at, last)
	}

	today := DosesOnDay(doses, at)

	return Verdict{
		HasTimeRestriction:  since < required,
		HasQuotaRestriction: today >= settings.MaxDailyDoses,
		TimeSinceLastDose:   since,
		DosesToday:          today,
		RequiredInterval:    required,
		RecommendedWaitTime: recommended,
	}
}

// MostRecent returns the latest timestamp among doses, skipping doses
// without one.
func MostRecent(doses []model.Dose) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, d := range doses {
		if d.Timestamp.IsZero() {
			continue
		}
		if !found || d.Timestamp.After(latest) {
			latest = d.Timestamp
			found = true
		}
	}
	return latest, found
}

// DosesOnDay counts doses on the calendar day of at, in at's location.
func DosesOnDay(doses []model.Dose, at time.Time) int {
	y, m, d := at.Date()
	loc := at.Location()

	count := 0
	for _, dose := range doses {
		if dose.Timestamp.IsZero() {
			continue
		}
		dy, dm, dd := dose.Timestamp.In(loc).Date()
		if dy == y && dm == m && dd == d {
			count++
		}
	}
	return count
}

// Elapsed returns the hours from last to now. Live displays call it on
// their own schedule.
func Elapsed(now, last time.Time) float64 {
	return now.Sub(last).Hours()
}
