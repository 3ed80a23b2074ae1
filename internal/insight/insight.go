// Package insight turns the latest vitals into short, rule-based notes.
//
// The rules are fixed thresholds, not a diagnosis: blood pressure above
// 140/90 or below 90/60, sugar above 140 mg/dL or rising by more than
// 20 mg/dL since the previous reading, temperature above 37.5 °C.
package insight

import (
	"fmt"
	"strconv"

	"github.com/sakif/medhistory/internal/model"
)

// Window is how many of the latest readings the rules look at.
const Window = 3

// Thresholds.
const (
	SystolicHigh  = 140
	DiastolicHigh = 90
	SystolicLow   = 90
	DiastolicLow  = 60
	SugarHigh     = 140
	SugarJump     = 20
	FeverCelsius  = 37.5
)

// Report statuses.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// Severity of one insight.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityAlert   Severity = "alert"
)

// Insight is one finding.
type Insight struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// Report is the result shown to the user.
type Report struct {
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Insights []Insight `json:"insights"`
}

// NoData is the report for a user without any vitals.
func NoData() Report {
	return Report{
		Status:   StatusNoData,
		Message:  "No clinical data found. Log your vitals (sugar, BP, temperature) to get insights.",
		Insights: []Insight{},
	}
}

// Failed is the report when the vitals could not be read.
func Failed() Report {
	return Report{
		Status:   StatusError,
		Message:  "Insights are unavailable right now. Please try again later.",
		Insights: []Insight{},
	}
}

// Analyze applies the rules to readings ordered newest first. Only the
// first reading is judged; the second serves as the sugar trend reference.
func Analyze(latestFirst []model.VitalsReading) Report {
	if len(latestFirst) == 0 {
		return NoData()
	}

	latest := latestFirst[0]
	var prev *model.VitalsReading
	if len(latestFirst) > 1 {
		prev = &latestFirst[1]
	}

	var out []Insight
	if in, ok := bloodPressure(latest); ok {
		out = append(out, in)
	}
	if in, ok := sugar(latest, prev); ok {
		out = append(out, in)
	}
	if in, ok := temperature(latest); ok {
		out = append(out, in)
	}
	if out == nil {
		out = []Insight{}
	}
	return Report{Status: StatusOK, Insights: out}
}

// bloodPressure judges the latest reading. Either number out of range is
// enough; high is checked first because it is the more urgent of the two.
func bloodPressure(r model.VitalsReading) (Insight, bool) {
	bp, ok := model.ParseBloodPressure(r.BloodPressure)
	if !ok {
		// not recorded, or written before the format was enforced
		return Insight{}, false
	}

	switch {
	case bp.Systolic > SystolicHigh || bp.Diastolic > DiastolicHigh:
		return Insight{
			Kind:     "bp_high",
			Severity: SeverityAlert,
			Title:    "Hypertension alert",
			Message:  fmt.Sprintf("Your BP (%s) is above the recommended range. Please consult your physician.", bp),
		}, true
	case bp.Systolic < SystolicLow || bp.Diastolic < DiastolicLow:
		return Insight{
			Kind:     "bp_low",
			Severity: SeverityWarning,
			Title:    "Low BP warning",
			Message:  fmt.Sprintf("Your latest reading (%s) is on the lower side. Make sure you stay hydrated.", bp),
		}, true
	default:
		return Insight{
			Kind:     "bp_normal",
			Severity: SeverityOK,
			Title:    "Healthy BP",
			Message:  fmt.Sprintf("Your cardiovascular health appears stable at %s.", bp),
		}, true
	}
}

// sugar judges the latest value against the previous one.
//
// RULE ORDER:
//
// A switch stops at the first true case, so the order of the cases is the
// priority of the rules. A sharp rise is reported even when the value is
// still under SugarHigh, and it wins over "elevated" when both hold,
// because the trend is the more useful thing to tell the user.
func sugar(latest model.VitalsReading, prev *model.VitalsReading) (Insight, bool) {
	v := latest.Sugar.Int()
	if v == 0 {
		// 0 is what LenientInt makes of an empty field
		return Insight{}, false
	}

	switch {
	case prev != nil && v > prev.Sugar.Int()+SugarJump:
		return Insight{
			Kind:     "sugar_rising",
			Severity: SeverityWarning,
			Title:    "Upward sugar trend",
			Message:  fmt.Sprintf("Your sugar level increased by %d mg/dL since your last log. Monitor your diet.", v-prev.Sugar.Int()),
		}, true
	case v > SugarHigh:
		return Insight{
			Kind:     "sugar_elevated",
			Severity: SeverityAlert,
			Title:    "Elevated sugar",
			Message:  fmt.Sprintf("Your level of %d mg/dL is higher than optimal. Consider a low-carb intake today.", v),
		}, true
	default:
		return Insight{
			Kind:     "sugar_normal",
			Severity: SeverityOK,
			Title:    "Glucose balance",
			Message:  fmt.Sprintf("Your sugar level (%d mg/dL) is within the normal range.", v),
		}, true
	}
}

// temperature only ever raises an alert; a normal temperature is not
// worth a card of its own.
func temperature(r model.VitalsReading) (Insight, bool) {
	if !r.Temperature.Valid || r.Temperature.Value <= FeverCelsius {
		return Insight{}, false
	}
	return Insight{
		Kind:     "fever",
		Severity: SeverityAlert,
		Title:    "Fever detected",
		Message: fmt.Sprintf("Your temperature of %s °C indicates a possible fever. Rest and monitor symptoms.",
			strconv.FormatFloat(r.Temperature.Value, 'f', -1, 64)),
	}, true
}
