package service

import (
	"context"
	"log/slog"

	"github.com/sakif/medhistory/internal/insight"
)

// InsightService derives notes from the latest vitals.
type InsightService struct {
	vitals *VitalsService
	logger *slog.Logger
}

func NewInsightService(vitals *VitalsService, logger *slog.Logger) *InsightService {
	return &InsightService{vitals: vitals, logger: logger}
}

// Report analyses the latest insight.Window readings. A read failure is
// reported inside the Report, never as an error.
func (s *InsightService) Report(ctx context.Context, userID string) insight.Report {
	readings, err := s.vitals.List(ctx, userID, insight.Window)
	if err != nil {
		s.logger.Warn("insights unavailable",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return insight.Failed()
	}
	return insight.Analyze(readings)
}
