// Package model defines the data structures shared by every layer.
//
// JSON tags use the column names of the hosted backend tables, so a row
// fetched from the backend decodes straight into these structs and a
// snapshot re-serialises them unchanged.
//
// STRUCT TAGS:
// `json:"bp"` tells encoding/json which key maps to the field; omitempty
// leaves the key out when the value is the zero value. Server-assigned
// fields (id, user_id) use omitempty so an insert does not send empty
// strings that would overwrite generated values.
package model

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used by every date column.
const DateLayout = "2006-01-02"

// VitalsReading is one logged set of vitals. Rows are immutable once stored.
type VitalsReading struct {
	ID            string          `json:"id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	Date          string          `json:"date"`
	BloodPressure string          `json:"bp"`
	Sugar         LenientInt      `json:"sugar"`       // mg/dL
	Temperature   OptionalDecimal `json:"temperature"` // °C
	ReportURL     string          `json:"report_url,omitempty"`
}

// DateLabel abbreviates the reading date to month-day ("2024-01-08" → "01-08").
func (v VitalsReading) DateLabel() string {
	if len(v.Date) <= 5 {
		return ""
	}
	end := len(v.Date)
	if end > 10 {
		end = 10
	}
	return v.Date[5:end]
}

// ParseDate validates an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// BloodPressure is a parsed "systolic/diastolic" reading.
type BloodPressure struct {
	Systolic  int
	Diastolic int
}

// ParseBloodPressure parses "120/80". ok is false for anything else.
func ParseBloodPressure(s string) (bp BloodPressure, ok bool) {
	sys, dia, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return BloodPressure{}, false
	}
	systolic, err := strconv.Atoi(strings.TrimSpace(sys))
	if err != nil {
		return BloodPressure{}, false
	}
	diastolic, err := strconv.Atoi(strings.TrimSpace(dia))
	if err != nil {
		return BloodPressure{}, false
	}
	if systolic <= 0 || diastolic <= 0 {
		return BloodPressure{}, false
	}
	return BloodPressure{Systolic: systolic, Diastolic: diastolic}, true
}

func (bp BloodPressure) String() string {
	return strconv.Itoa(bp.Systolic) + "/" + strconv.Itoa(bp.Diastolic)
}
