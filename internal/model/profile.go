package model

// Profile is the per-user summary row. Its ID equals the backend user ID.
type Profile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email,omitempty"`
	Name             string     `json:"name"`
	Age              LenientInt `json:"age"`
	Gender           string     `json:"gender"`
	BloodGroup       string     `json:"blood_group,omitempty"`
	EmergencyContact string     `json:"emergency_contact,omitempty"`
	Allergies        string     `json:"allergies,omitempty"`
	PhotoURL         string     `json:"photo_url,omitempty"`
}

// DefaultProfile is written when a user has no profile row yet.
func DefaultProfile(userID, email, name string) Profile {
	if name == "" {
		name = "User"
	}
	return Profile{
		ID:     userID,
		Email:  email,
		Name:   name,
		Age:    0,
		Gender: "-",
	}
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name             string `json:"name"`
	Age              int    `json:"age"`
	Gender           string `json:"gender"`
	BloodGroup       string `json:"blood_group"`
	EmergencyContact string `json:"emergency_contact"`
	Allergies        string `json:"allergies"`
}

// Values returns the update as a column → value map.
func (u ProfileUpdate) Values() map[string]any {
	return map[string]any{
		"name":              u.Name,
		"age":               u.Age,
		"gender":            u.Gender,
		"blood_group":       u.BloodGroup,
		"emergency_contact": u.EmergencyContact,
		"allergies":         u.Allergies,
	}
}

// Apply merges the update into p.
func (u ProfileUpdate) Apply(p Profile) Profile {
	p.Name = u.Name
	p.Age = LenientInt(u.Age)
	p.Gender = u.Gender
	p.BloodGroup = u.BloodGroup
	p.EmergencyContact = u.EmergencyContact
	p.Allergies = u.Allergies
	return p
}
