package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/export"
)

// AccountService covers whole-account operations: export, deletion and the
// emergency link.
type AccountService struct {
	client     backend.Client
	profiles   *ProfileService
	records    *RecordService
	vitals     *VitalsService
	publicBase string
	logger     *slog.Logger

	// called after a successful deletion; the server uses this to drop the
	// user's cached chart
	onDelete []func(userID string)
}

// NewAccountService creates an AccountService. publicBase is the origin
// the emergency link points at.
func NewAccountService(client backend.Client, profiles *ProfileService, records *RecordService, vitals *VitalsService, publicBase string, logger *slog.Logger) *AccountService {
	return &AccountService{
		client:     client,
		profiles:   profiles,
		records:    records,
		vitals:     vitals,
		publicBase: strings.TrimRight(publicBase, "/"),
		logger:     logger,
	}
}

// OnDelete registers fn to run after an account was deleted.
func (s *AccountService) OnDelete(fn func(userID string)) {
	s.onDelete = append(s.onDelete, fn)
}

// Delete removes the user's records, vitals and profile, in that order.
// The first failure stops the deletion; what was already removed stays
// removed, and calling Delete again finishes the job.
//
// ORDER MATTERS:
//
// The profile goes last. A half-finished deletion then still has a profile
// row, so the user can sign in and press delete again. Deleting the
// profile first would leave orphaned history nobody can reach.
//
// The hosted backend has no multi-table transaction over REST, so this is
// the closest thing to atomic the two backends can share.
func (s *AccountService) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return apperror.ValidationFailed("user_id", "user ID is required")
	}

	steps := []struct {
		table  string
		column string
	}{
		{backend.TableMedicalRecords, "user_id"},
		{backend.TableVitals, "user_id"},
		{backend.TableProfiles, "id"},
	}
	for _, step := range steps {
		if err := s.client.Delete(ctx, step.table, backend.Eq(step.column, userID)); err != nil {
			s.logger.Error("account deletion failed",
				slog.String("user_id", userID),
				slog.String("table", step.table),
				slog.String("error", err.Error()),
			)
			return backendError("deleting "+step.table, err)
		}
	}

	for _, fn := range s.onDelete {
		fn(userID)
	}
	s.logger.Info("account data deleted", slog.String("user_id", userID))
	return nil
}

// EmergencyLink is the public page a first responder can open to see the
// user's emergency details.
func (s *AccountService) EmergencyLink(userID string) string {
	return s.publicBase + "/emergency.html?id=" + url.QueryEscape(userID)
}

// Export returns the user's profile, records and vitals as an .xlsx workbook.
func (s *AccountService) Export(ctx context.Context, userID, email, name string) ([]byte, error) {
	profile, err := s.profiles.Get(ctx, userID, email, name)
	if err != nil {
		return nil, err
	}
	records, err := s.records.All(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	vitals, err := s.vitals.List(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	data, err := export.Workbook(*profile, records, vitals)
	if err != nil {
		s.logger.Error("export failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return data, nil
}
