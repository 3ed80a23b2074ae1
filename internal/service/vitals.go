package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/model"
)

// ChangeFunc is called after a user's vitals changed. ctx is the context of
// the request that made the change.
type ChangeFunc func(ctx context.Context, userID string)

// VitalsService logs and reads vitals. Readings are append-only.
type VitalsService struct {
	client   backend.Client
	logger   *slog.Logger
	onChange []ChangeFunc
}

func NewVitalsService(client backend.Client, logger *slog.Logger) *VitalsService {
	return &VitalsService{client: client, logger: logger}
}

// OnChange registers fn to run after every successful Create. Register
// during setup only; the list is not guarded.
//
// OBSERVERS INSTEAD OF IMPORTS:
//
// VitalsService does not know the trend chart exists. The server wires
// TrendService.Invalidate in here at startup, so the dependency points
// from the chart to the data and never the other way round.
func (s *VitalsService) OnChange(fn ChangeFunc) {
	s.onChange = append(s.onChange, fn)
}

// List returns the user's readings newest first. limit <= 0 means all.
func (s *VitalsService) List(ctx context.Context, userID string, limit int) ([]model.VitalsReading, error) {
	q := backend.From(backend.TableVitals).Where("user_id", userID).OrderBy("date", false)
	if limit > 0 {
		q = q.Take(limit)
	}
	return s.selectReadings(ctx, userID, q)
}

// Ascending returns the user's readings oldest first, the order the trend
// chart plots them in.
func (s *VitalsService) Ascending(ctx context.Context, userID string) ([]model.VitalsReading, error) {
	// Dates are stored as YYYY-MM-DD, so string order is date order.
	q := backend.From(backend.TableVitals).Where("user_id", userID).OrderBy("date", true)
	return s.selectReadings(ctx, userID, q)
}

func (s *VitalsService) selectReadings(ctx context.Context, userID string, q backend.Query) ([]model.VitalsReading, error) {
	var readings []model.VitalsReading
	if err := s.client.Select(ctx, q, &readings); err != nil {
		s.logger.Error("failed to load vitals",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, backendError("loading vitals", err)
	}
	if readings == nil {
		readings = []model.VitalsReading{}
	}
	return readings, nil
}

// Create validates and stores one reading. Sugar is already coerced by
// model.LenientInt; blood pressure, when given, must read "sys/dia".
func (s *VitalsService) Create(ctx context.Context, userID string, v model.VitalsReading) (*model.VitalsReading, error) {
	v.Date = strings.TrimSpace(v.Date)
	v.BloodPressure = strings.TrimSpace(v.BloodPressure)

	if _, err := model.ParseDate(v.Date); err != nil {
		return nil, apperror.ValidationFailed("date", "date must be formatted YYYY-MM-DD")
	}
	if v.BloodPressure != "" {
		bp, ok := model.ParseBloodPressure(v.BloodPressure)
		if !ok {
			return nil, apperror.ValidationFailed("bp", "blood pressure must look like 120/80")
		}
		v.BloodPressure = bp.String()
	}
	if v.Sugar < 0 {
		return nil, apperror.ValidationFailed("sugar", "sugar cannot be negative")
	}

	// the backend assigns the ID; the owner always comes from the token
	v.ID = ""
	v.UserID = userID
	if err := s.client.Insert(ctx, backend.TableVitals, v); err != nil {
		s.logger.Error("failed to log vitals",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, backendError("saving vitals", err)
	}

	s.logger.Info("vitals logged",
		slog.String("user_id", userID),
		slog.String("date", v.Date),
	)

	for _, fn := range s.onChange {
		fn(ctx, userID)
	}
	return &v, nil
}
