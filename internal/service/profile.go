package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/model"
)

// Profile field limits.
const (
	MaxNameLength = 100
	MaxAge        = 150
	maxTextField  = 500
)

type ProfileService struct {
	client backend.Client
	logger *slog.Logger
}

func NewProfileService(client backend.Client, logger *slog.Logger) *ProfileService {
	return &ProfileService{client: client, logger: logger}
}

// Get returns the user's profile. A user that signed up but never got a
// profile row receives a default one, written back so the next read finds
// it. email and name come from the access token and seed that default.
//
// GET OR CREATE:
//
// Sign-up happens at the identity provider, which knows nothing about our
// tables. Instead of a separate "create profile" step the client would
// have to remember, the first read creates the row. Two concurrent first
// reads may both insert; the primary key on id lets only one win, and the
// loser's error surfaces as a 500 that a retry resolves.
func (s *ProfileService) Get(ctx context.Context, userID, email, name string) (*model.Profile, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("user_id", "user ID is required")
	}

	var rows []model.Profile
	q := backend.From(backend.TableProfiles).Where("id", userID).Take(1)
	if err := s.client.Select(ctx, q, &rows); err != nil {
		s.logger.Error("failed to load profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, backendError("loading profile", err)
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}

	profile := model.DefaultProfile(userID, email, name)
	if err := s.client.Insert(ctx, backend.TableProfiles, profile); err != nil {
		s.logger.Error("failed to create default profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, backendError("creating profile", err)
	}

	s.logger.Info("default profile created", slog.String("user_id", userID))
	return &profile, nil
}

// Update overwrites the editable fields and returns the stored profile.
func (s *ProfileService) Update(ctx context.Context, userID, email string, u model.ProfileUpdate) (*model.Profile, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Gender = strings.TrimSpace(u.Gender)
	u.BloodGroup = strings.TrimSpace(u.BloodGroup)
	u.EmergencyContact = strings.TrimSpace(u.EmergencyContact)
	u.Allergies = strings.TrimSpace(u.Allergies)

	if err := validateProfile(u); err != nil {
		return nil, err
	}

	// Make sure the row exists before patching it.
	current, err := s.Get(ctx, userID, email, u.Name)
	if err != nil {
		return nil, err
	}

	if err := s.client.Update(ctx, backend.TableProfiles, u.Values(), backend.Eq("id", userID)); err != nil {
		s.logger.Error("failed to update profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, backendError("updating profile", err)
	}

	// The backends do not return the patched row, so build it locally.
	updated := u.Apply(*current)
	s.logger.Info("profile updated", slog.String("user_id", userID))
	return &updated, nil
}

// validateProfile checks the already-trimmed fields. Limits are counted in
// bytes, which is stricter than runes for non-ASCII names.
func validateProfile(u model.ProfileUpdate) error {
	if u.Name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if len(u.Name) > MaxNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if u.Age < 0 || u.Age > MaxAge {
		return apperror.ValidationFailed("age",
			fmt.Sprintf("age must be between 0 and %d", MaxAge))
	}
	for field, v := range map[string]string{
		"gender":            u.Gender,
		"blood_group":       u.BloodGroup,
		"emergency_contact": u.EmergencyContact,
		"allergies":         u.Allergies,
	} {
		if len(v) > maxTextField {
			return apperror.ValidationFailed(field,
				fmt.Sprintf("%s must be %d characters or less", field, maxTextField))
		}
	}
	return nil
}
