package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSubstanceDecodesLegacyShapes(t *testing.T) {
	raw := `{
		"id": 1718000000000,
		"name": "Ibuprofen",
		"dosage": "200",
		"dosageUnit": "mg",
		"doses": [{"id": 1718000001000, "timestamp": "2024-06-10T08:00:00.000Z", "dosage": "400", "status": "normal"}],
		"settings": {
			"defaultDosage": {"amount": "400", "unit": "mg"},
			"maxDailyDoses": 4,
			"minTimeBetweenDoses": 6,
			"trackSupply": true,
			"currentSupply": 20,
			"showTimeline": true
		}
	}`

	var s Substance
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.ID != "1718000000000" {
		t.Fatalf("expected numeric id to decode as string, got %q", s.ID)
	}
	if s.Dosage != 200 {
		t.Fatalf("expected dosage 200, got %v", s.Dosage)
	}
	if s.Settings.DefaultDosage != 400 {
		t.Fatalf("expected default dosage 400 from object form, got %v", s.Settings.DefaultDosage)
	}
	if len(s.Doses) != 1 || s.Doses[0].Amount != 400 || s.Doses[0].ID != "1718000001000" {
		t.Fatalf("unexpected doses: %+v", s.Doses)
	}
	if s.Settings.CurrentSupply == nil || *s.Settings.CurrentSupply != 20 {
		t.Fatalf("unexpected supply: %v", s.Settings.CurrentSupply)
	}
	if s.StandardDose() != 400 {
		t.Fatalf("expected standard dose from settings, got %v", s.StandardDose())
	}
}

func TestAmountRejectsGarbage(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`"ten"`), &a); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
	if err := json.Unmarshal([]byte(`""`), &a); err != nil || a != 0 {
		t.Fatalf("expected empty string to decode as zero, got %v, %v", a, err)
	}
}

func TestUnitFallsBack(t *testing.T) {
	if got := (Substance{}).Unit(); got != "mg" {
		t.Fatalf("expected mg fallback, got %q", got)
	}
	s := Substance{DosageUnit: "ml", Settings: Settings{DefaultDosageUnit: "drops"}}
	if got := s.Unit(); got != "drops" {
		t.Fatalf("expected settings unit, got %q", got)
	}
}

func TestDoseTimestampShapes(t *testing.T) {
	tests := map[string]time.Time{
		`{"id":1,"timestamp":"2024-06-10T08:00:00.000Z","dosage":1}`: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
		`{"id":1,"timestamp":1718006400000,"dosage":1}`:              time.UnixMilli(1718006400000).UTC(),
		`{"id":1,"timestamp":"","dosage":1}`:                         {},
		`{"id":1,"timestamp":null,"dosage":1}`:                       {},
		`{"id":1,"dosage":1}`:                                        {},
	}
	for raw, want := range tests {
		var d Dose
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			t.Errorf("%s: %v", raw, err)
			continue
		}
		if !d.Timestamp.Equal(want) || d.ID != "1" || d.Amount != 1 {
			t.Errorf("%s: got %+v, want timestamp %v", raw, d, want)
		}
	}

	var d Dose
	if err := json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &d); err == nil {
		t.Fatal("expected an error for a non-ISO timestamp")
	}
}
