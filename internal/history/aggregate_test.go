package history

import (
	"reflect"
	"testing"
	"time"

	"github.com/noahxzhu/medtracker/internal/model"
)

var now = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func dose(id string, ts time.Time, amount float64) model.Dose {
	return model.Dose{ID: model.ID(id), Timestamp: ts, Amount: model.Amount(amount), Status: model.StatusNormal}
}

func sampleDoses() []model.Dose {
	return []model.Dose{
		dose("old", time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC), 100),
		dose("today-early", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), 200),
		dose("yesterday", time.Date(2025, 3, 9, 22, 15, 0, 0, time.UTC), 200),
		{ID: "broken", Amount: 50},
		dose("today-late", time.Date(2025, 3, 10, 14, 45, 0, 0, time.UTC), 400),
		dose("old-later", time.Date(2025, 3, 1, 21, 40, 0, 0, time.UTC), 100),
	}
}

func TestAggregateGroupsAndOrders(t *testing.T) {
	groups := Collect(Aggregate(sampleDoses(), "mg", now))

	if len(groups) != 3 {
		t.Fatalf("expected 3 day groups, got %d", len(groups))
	}

	wantLabels := []string{"Today", "Yesterday", "3/1/2025"}
	wantIDs := [][]model.ID{{"today-late", "today-early"}, {"yesterday"}, {"old-later", "old"}}
	wantTimes := [][]string{{"02:45 PM", "08:00 AM"}, {"10:15 PM"}, {"09:40", "09:05"}}

	for i, g := range groups {
		if g.Label != wantLabels[i] {
			t.Errorf("group %d label = %q, want %q", i, g.Label, wantLabels[i])
		}
		if len(g.Entries) != len(wantIDs[i]) {
			t.Fatalf("group %d has %d entries, want %d", i, len(g.Entries), len(wantIDs[i]))
		}
		for j, e := range g.Entries {
			if e.Dose.ID != wantIDs[i][j] {
				t.Errorf("group %d entry %d = %q, want %q", i, j, e.Dose.ID, wantIDs[i][j])
			}
			if e.Time != wantTimes[i][j] {
				t.Errorf("group %d entry %d time = %q, want %q", i, j, e.Time, wantTimes[i][j])
			}
		}
	}

	if got := groups[0].Entries[0].Amount; got != "400 mg" {
		t.Errorf("amount label = %q, want %q", got, "400 mg")
	}
}

func TestAggregateIsExhaustiveOverValidDoses(t *testing.T) {
	input := sampleDoses()
	seen := map[model.ID]int{}
	for g := range Aggregate(input, "mg", now) {
		for _, e := range g.Entries {
			seen[e.Dose.ID]++
		}
	}

	for _, d := range input {
		if d.Timestamp.IsZero() {
			if seen[d.ID] != 0 {
				t.Errorf("untimestamped dose %q must be dropped", d.ID)
			}
			continue
		}
		if seen[d.ID] != 1 {
			t.Errorf("dose %q appears %d times, want exactly once", d.ID, seen[d.ID])
		}
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	seq := Aggregate(sampleDoses(), "mg", now)

	first := Collect(seq)
	second := Collect(seq)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("iterating the same sequence twice must yield identical groups")
	}

	again := Collect(Aggregate(Flatten(seq), "mg", now))
	if !reflect.DeepEqual(first, again) {
		t.Fatal("re-aggregating flattened output must reproduce the grouping")
	}
}

func TestAggregateStopsEarly(t *testing.T) {
	count := 0
	for range Aggregate(sampleDoses(), "mg", now) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected to stop after one group, got %d", count)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if groups := Collect(Aggregate(nil, "mg", now)); len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}

func TestAggregateUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	localNow := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)
	// 02:00 UTC on the 10th is 21:00 on the 9th in UTC-5.
	doses := []model.Dose{dose("late-night", time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), 1)}

	groups := Collect(Aggregate(doses, "mg", localNow))
	if len(groups) != 1 || groups[0].Label != "Yesterday" || groups[0].Entries[0].Time != "09:00 PM" {
		t.Fatalf("unexpected grouping: %+v", groups)
	}
}

func TestDecodeFiltersMalformedRecords(t *testing.T) {
	raw := `[
		{"id": 1, "timestamp": "2025-03-10T08:00:00Z", "dosage": 200, "status": "normal"},
		{"id": 2, "dosage": 100, "status": "normal"},
		{"id": 3, "timestamp": "not a time", "dosage": 100},
		"garbage",
		{"id": "4", "timestamp": "2025-03-09T08:00:00Z", "dosage": "50", "status": "override", "overrideReason": "pain"}
	]`

	doses := Decode([]byte(raw))
	if len(doses) != 2 {
		t.Fatalf("expected 2 valid doses, got %d: %+v", len(doses), doses)
	}
	if doses[0].ID != "1" || doses[1].ID != "4" || doses[1].Amount != 50 {
		t.Fatalf("unexpected doses: %+v", doses)
	}
}

func TestDecodeNonArray(t *testing.T) {
	for _, raw := range []string{`{"doses": []}`, `null`, `42`, ``} {
		if got := Decode([]byte(raw)); len(got) != 0 {
			t.Errorf("Decode(%q) = %v, want empty", raw, got)
		}
	}
}
