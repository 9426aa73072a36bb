// Package history groups a dose log into days for display.
package history

import (
	"encoding/json"
	"iter"
	"slices"
	"time"

	"github.com/noahxzhu/medtracker/internal/model"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"

	dateLayout      = "1/2/2006"
	clockLayout     = "03:04 PM"
	bareClockLayout = "03:04"
)

type Entry struct {
	Dose   model.Dose
	Amount string // e.g. "200 mg"
	Time   string
}

type DayGroup struct {
	Label   string
	Day     time.Time // Midnight of the group's day in now's location
	Entries []Entry
}

// Aggregate groups doses by calendar day, most recent day first and most
// recent dose first within a day. Days are taken in now's location.
//
// The returned sequence is lazy and recomputed on every iteration.
// Doses without a timestamp are dropped.
func Aggregate(doses []model.Dose, unit string, now time.Time) iter.Seq[DayGroup] {
	return func(yield func(DayGroup) bool) {
		for _, g := range group(Valid(doses), unit, now) {
			if !yield(g) {
				return
			}
		}
	}
}

// Collect materializes an aggregation.
func Collect(seq iter.Seq[DayGroup]) []DayGroup {
	return slices.Collect(seq)
}

// Flatten returns the doses of an aggregation in display order.
func Flatten(seq iter.Seq[DayGroup]) []model.Dose {
	var out []model.Dose
	for g := range seq {
		for _, e := range g.Entries {
			out = append(out, e.Dose)
		}
	}
	return out
}

// Valid drops doses that cannot be placed on a day. It never fails.
func Valid(doses []model.Dose) []model.Dose {
	out := make([]model.Dose, 0, len(doses))
	for _, d := range doses {
		if d.Timestamp.IsZero() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Decode reads a stored dose collection, skipping anything malformed. A
// payload that is not a JSON array yields no doses.
func Decode(data []byte) []model.Dose {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	out := make([]model.Dose, 0, len(raw))
	for _, r := range raw {
		var d model.Dose
		if err := json.Unmarshal(r, &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return Valid(out)
}

// group expects every dose to carry a timestamp.
func group(doses []model.Dose, unit string, now time.Time) []DayGroup {
	loc := now.Location()
	sorted := slices.Clone(doses)
	slices.SortStableFunc(sorted, func(a, b model.Dose) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	today := midnight(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	var groups []DayGroup
	for _, d := range sorted {
		local := d.Timestamp.In(loc)
		day := midnight(local, loc)

		if len(groups) == 0 || !groups[len(groups)-1].Day.Equal(day) {
			groups = append(groups, DayGroup{Label: dayLabel(day, today, yesterday), Day: day})
		}

		g := &groups[len(groups)-1]
		g.Entries = append(g.Entries, Entry{
			Dose:   d,
			Amount: d.Amount.String() + " " + unit,
			Time:   timeLabel(local, g.Label),
		})
	}
	return groups
}

func dayLabel(day, today, yesterday time.Time) string {
	switch {
	case day.Equal(today):
		return LabelToday
	case day.Equal(yesterday):
		return LabelYesterday
	default:
		return day.Format(dateLayout)
	}
}

// Older rows show the time part of "1/2/2006 03:04 PM", which drops the
// meridiem.
func timeLabel(t time.Time, label string) string {
	if label == LabelToday || label == LabelYesterday {
		return t.Format(clockLayout)
	}
	return t.Format(bareClockLayout)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
