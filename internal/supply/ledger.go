// Package supply keeps the remaining quantity of a substance.
package supply

import (
	"math"

	"github.com/noahxzhu/medtracker/internal/model"
)

// Decrement subtracts amount from current, flooring at zero.
func Decrement(current, amount float64) float64 {
	return math.Max(0, current-amount)
}

// Exhausted reports whether a new dose request must be refused. An unset
// supply counts as empty while tracking is on.
func Exhausted(s model.Settings) bool {
	if !s.TrackSupply {
		return false
	}
	return s.CurrentSupply == nil || *s.CurrentSupply <= 0
}

// Apply returns settings with the supply reduced by a committed dose of
// amount. Untracked settings are returned unchanged.
func Apply(s model.Settings, amount float64) model.Settings {
	if !s.TrackSupply {
		return s
	}
	current := 0.0
	if s.CurrentSupply != nil {
		current = *s.CurrentSupply
	}
	next := Decrement(current, amount)
	s.CurrentSupply = &next
	return s
}
