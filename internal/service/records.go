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

const (
	MaxDiagnosisLength = 200
	MaxNotesLength     = 5000
)

// RecordService manages doctor visit records.
type RecordService struct {
	client backend.Client
	logger *slog.Logger
}

func NewRecordService(client backend.Client, logger *slog.Logger) *RecordService {
	return &RecordService{client: client, logger: logger}
}

// List returns the user's records newest first, optionally only those for
// one body part, split into high and low priority.
func (s *RecordService) List(ctx context.Context, userID, bodyPart string) (model.RecordGroups, error) {
	records, err := s.All(ctx, userID, bodyPart)
	if err != nil {
		return model.RecordGroups{}, err
	}
	return model.GroupByPriority(records), nil
}

// All returns the user's records newest first. An empty bodyPart matches
// every record.
func (s *RecordService) All(ctx context.Context, userID, bodyPart string) ([]model.MedicalRecord, error) {
	q := backend.From(backend.TableMedicalRecords).Where("user_id", userID)
	if bodyPart = strings.TrimSpace(bodyPart); bodyPart != "" {
		q = q.Where("body_part", bodyPart)
	}
	q = q.OrderBy("date", false)

	var records []model.MedicalRecord
	if err := s.client.Select(ctx, q, &records); err != nil {
		s.logger.Error("failed to list records",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, backendError("loading records", err)
	}
	return records, nil
}

// Create validates and stores a record for userID.
func (s *RecordService) Create(ctx context.Context, userID string, r model.MedicalRecord) (*model.MedicalRecord, error) {
	r.Date = strings.TrimSpace(r.Date)
	r.Diagnosis = strings.TrimSpace(r.Diagnosis)
	r.Priority = strings.TrimSpace(r.Priority)
	r.Doctor = strings.TrimSpace(r.Doctor)
	r.BodyPart = strings.TrimSpace(r.BodyPart)

	if _, err := model.ParseDate(r.Date); err != nil {
		return nil, apperror.ValidationFailed("date", "date must be formatted YYYY-MM-DD")
	}
	if r.Diagnosis == "" {
		return nil, apperror.ValidationFailed("diagnosis", "diagnosis is required")
	}
	if len(r.Diagnosis) > MaxDiagnosisLength {
		return nil, apperror.ValidationFailed("diagnosis",
			fmt.Sprintf("diagnosis must be %d characters or less", MaxDiagnosisLength))
	}
	if len(r.Notes) > MaxNotesLength || len(r.Treatment) > MaxNotesLength {
		return nil, apperror.ValidationFailed("notes",
			fmt.Sprintf("notes and treatment must be %d characters or less", MaxNotesLength))
	}
	switch r.Priority {
	case "":
		r.Priority = model.PriorityLow
	case model.PriorityHigh, model.PriorityLow:
	default:
		return nil, apperror.ValidationFailed("priority", "priority must be High or Low")
	}

	r.ID = ""
	r.UserID = userID
	if err := s.client.Insert(ctx, backend.TableMedicalRecords, r); err != nil {
		s.logger.Error("failed to create record",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, backendError("saving record", err)
	}

	s.logger.Info("record created",
		slog.String("user_id", userID),
		slog.String("priority", r.Priority),
	)
	return &r, nil
}
