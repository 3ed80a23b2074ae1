package model

import "time"

// ShareSnapshot is the point-in-time bundle handed to a physician.
// ExpiresAt is advisory metadata; nothing purges expired snapshots.
type ShareSnapshot struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	Profile     Profile         `json:"profile"`
	Records     []MedicalRecord `json:"records"`
	Vitals      []VitalsReading `json:"vitals"`
}

// NewShareSnapshot stamps a snapshot at now with the given lifetime.
// Nil slices are normalised so the payload always carries JSON arrays.
//
// NIL VS EMPTY SLICE:
// encoding/json writes a nil slice as null and an empty one as []. A reader
// iterating "records" would have to special-case null, so both lists are
// made non-nil here.
func NewShareSnapshot(now time.Time, ttl time.Duration, profile Profile, records []MedicalRecord, vitals []VitalsReading) ShareSnapshot {
	if records == nil {
		records = []MedicalRecord{}
	}
	if vitals == nil {
		vitals = []VitalsReading{}
	}
	now = now.UTC()
	return ShareSnapshot{
		GeneratedAt: now,
		ExpiresAt:   now.Add(ttl),
		Profile:     profile,
		Records:     records,
		Vitals:      vitals,
	}
}
