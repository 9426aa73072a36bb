package workflow

import (
	"context"
	"log/slog"
	"math"

	"github.com/noahxzhu/medtracker/internal/model"
	"github.com/noahxzhu/medtracker/internal/records"
)

// SettingsInput is an edit of a substance's settings. CurrentSupply is
// ignored unless TrackSupply is set.
type SettingsInput struct {
	DefaultDosage        float64
	MaxDailyDoses        int
	MinTimeBetweenDoses  float64
	UseRecommendedTiming bool
	TrackSupply          bool
	CurrentSupply        float64
	ShowTimeline         bool
}

func (in SettingsInput) validate() error {
	switch {
	case !finite(in.DefaultDosage) || in.DefaultDosage < 0:
		return invalid("defaultDosage", "must be a non-negative number")
	case in.MaxDailyDoses < 1:
		return invalid("maxDailyDoses", "must be at least 1")
	case !in.UseRecommendedTiming && (!finite(in.MinTimeBetweenDoses) || in.MinTimeBetweenDoses < 0):
		return invalid("minTimeBetweenDoses", "must be a non-negative number of hours")
	case in.TrackSupply && (!finite(in.CurrentSupply) || in.CurrentSupply < 0):
		return invalid("currentSupply", "must be a non-negative number")
	}
	return nil
}

// UpdateSettings replaces the settings of a substance. With recommended
// timing on, the stored interval is the timing profile's duration.
func (s *Service) UpdateSettings(ctx context.Context, id model.ID, in SettingsInput) (model.Substance, error) {
	if err := in.validate(); err != nil {
		return model.Substance{}, err
	}

	updated, err := s.repo.Update(ctx, id, func(sub *model.Substance, _ *records.Change) error {
		interval := in.MinTimeBetweenDoses
		if in.UseRecommendedTiming {
			interval = s.Profile(*sub).Hours()
		}

		var current *float64
		if in.TrackSupply {
			v := in.CurrentSupply
			current = &v
		}

		sub.Settings = model.Settings{
			DefaultDosage:        model.Amount(in.DefaultDosage),
			DefaultDosageUnit:    sub.DosageUnit,
			MaxDailyDoses:        in.MaxDailyDoses,
			MinTimeBetweenDoses:  interval,
			TrackSupply:          in.TrackSupply,
			CurrentSupply:        current,
			ShowTimeline:         in.ShowTimeline,
			UseRecommendedTiming: in.UseRecommendedTiming,
		}
		return nil
	})
	if err != nil {
		return model.Substance{}, s.commitError(err)
	}

	s.committed()
	slog.Info("Settings updated", "substance", id, "max_daily_doses", in.MaxDailyDoses,
		"min_hours", updated.Settings.MinTimeBetweenDoses, "track_supply", in.TrackSupply)
	return updated, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
