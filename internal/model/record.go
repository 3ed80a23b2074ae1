package model

// Record priorities. Anything that is not High is shown with the low
// priority records.
const (
	PriorityHigh = "High"
	PriorityLow  = "Low"
)

// MedicalRecord is a single doctor visit.
type MedicalRecord struct {
	ID              string `json:"id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	Priority        string `json:"priority"`
	Date            string `json:"date"`
	Diagnosis       string `json:"diagnosis"`
	Treatment       string `json:"treatment"`
	Doctor          string `json:"doctor"`
	Notes           string `json:"notes"`
	PrescriptionURL string `json:"prescription_url,omitempty"`
	BodyPart        string `json:"body_part,omitempty"`
}

// IsHighPriority reports whether the record belongs in the high priority table.
func (r MedicalRecord) IsHighPriority() bool {
	return r.Priority == PriorityHigh
}

// RecordGroups is the records view split by priority, each newest first.
type RecordGroups struct {
	High []MedicalRecord `json:"high"`
	Low  []MedicalRecord `json:"low"`
}

// GroupByPriority splits records preserving their order.
func GroupByPriority(records []MedicalRecord) RecordGroups {
	groups := RecordGroups{
		High: []MedicalRecord{},
		Low:  []MedicalRecord{},
	}
	for _, r := range records {
		if r.IsHighPriority() {
			groups.High = append(groups.High, r)
		} else {
			groups.Low = append(groups.Low, r)
		}
	}
	return groups
}
