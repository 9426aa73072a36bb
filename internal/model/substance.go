package model

import (
	"encoding/json"
	"time"
)

// DoseStatus is assigned once when a dose is recorded.
type DoseStatus string

const (
	StatusNormal   DoseStatus = "normal"
	StatusEarly    DoseStatus = "early"
	StatusWarning  DoseStatus = "warning"
	StatusOverride DoseStatus = "override"
)

// Dose is one recorded administration.
type Dose struct {
	ID             ID         `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Amount         Amount     `json:"dosage"`
	Status         DoseStatus `json:"status"`
	OverrideReason string     `json:"overrideReason,omitempty"`
}

// Settings holds the per-substance thresholds and supply tracking.
type Settings struct {
	DefaultDosage        Amount   `json:"defaultDosage"`
	DefaultDosageUnit    string   `json:"defaultDosageUnit"`
	MaxDailyDoses        int      `json:"maxDailyDoses"`
	MinTimeBetweenDoses  float64  `json:"minTimeBetweenDoses"` // Hours
	TrackSupply          bool     `json:"trackSupply"`
	CurrentSupply        *float64 `json:"currentSupply"` // nil when untracked
	ShowTimeline         bool     `json:"showTimeline"`
	UseRecommendedTiming bool     `json:"useRecommendedTiming"`
}

// Substance is a tracked medication with its settings and dose log, newest
// dose first.
type Substance struct {
	ID         ID       `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category,omitempty"`
	Dosage     Amount   `json:"dosage"`
	DosageUnit string   `json:"dosageUnit"`
	Warnings   string   `json:"warnings,omitempty"`
	Doses      []Dose   `json:"doses"`
	Settings   Settings `json:"settings"`
}

// UnmarshalJSON accepts a missing, empty or null timestamp as the zero time
// and a number as milliseconds since the epoch.
func (d *Dose) UnmarshalJSON(data []byte) error {
	type plain Dose
	var aux struct {
		plain
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	at, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	*d = Dose(aux.plain)
	d.Timestamp = at
	return nil
}

// StandardDose is the amount a new dose request is pre-filled with.
func (s Substance) StandardDose() float64 {
	if s.Settings.DefaultDosage > 0 {
		return float64(s.Settings.DefaultDosage)
	}
	return float64(s.Dosage)
}

// Unit is the unit history rows are rendered in.
func (s Substance) Unit() string {
	if s.Settings.DefaultDosageUnit != "" {
		return s.Settings.DefaultDosageUnit
	}
	if s.DosageUnit != "" {
		return s.DosageUnit
	}
	return "mg"
}

// LastDose returns the head of the dose collection, which is the most
// recently added dose.
func (s Substance) LastDose() (Dose, bool) {
	if len(s.Doses) == 0 {
		return Dose{}, false
	}
	return s.Doses[0], true
}

// OverrideLog is one audit record written when a dose is taken despite a
// safety restriction.
type OverrideLog struct {
	Timestamp         time.Time `json:"timestamp"`
	DrugID            ID        `json:"drugId"`
	DrugName          string    `json:"drugName"`
	Reason            string    `json:"reason"`
	TimeSinceLastDose *float64  `json:"timeSinceLastDose"` // Hours, nil without a prior dose
	DosesToday        int       `json:"dosesToday"`
}
