package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/guard"
	"github.com/sakif/medhistory/internal/model"
)

// Share snapshot defaults.
const (
	DefaultShareBucket = "medical_uploads"
	DefaultShareTTL    = 24 * time.Hour
	shareCacheControl  = "3600"
	shareContentType   = "application/json"
)

// ShareResult is what the user gets back after a snapshot was stored.
type ShareResult struct {
	Code      string    `json:"code"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ShareService produces read-only snapshots of a user's record for a
// physician. Every call writes a new object under a fresh access code.
type ShareService struct {
	client  backend.Client
	storage backend.Storage
	guard   guard.Guard
	bucket  string
	ttl     time.Duration
	logger  *slog.Logger

	now  func() time.Time
	rand io.Reader // nil means crypto/rand
}

// NewShareService wires the snapshot generator. An empty bucket or a
// non-positive ttl fall back to the defaults.
func NewShareService(client backend.Client, storage backend.Storage, g guard.Guard, bucket string, ttl time.Duration, logger *slog.Logger) *ShareService {
	if bucket == "" {
		bucket = DefaultShareBucket
	}
	if ttl <= 0 {
		ttl = DefaultShareTTL
	}
	if g == nil {
		g = guard.NewMemory()
	}
	return &ShareService{
		client:  client,
		storage: storage,
		guard:   g,
		bucket:  bucket,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Generate builds a snapshot of profile plus the user's records and vitals
// and uploads it under shares/<code>.
//
// Only one generation per user runs at a time; a concurrent call fails with
// guard.ErrBusy. A failed records or vitals read is logged and that list is
// shared empty. The upload never overwrites: if the code is already taken
// the call fails with a conflict and the user has to retry.
func (s *ShareService) Generate(ctx context.Context, userID string, profile model.Profile) (*ShareResult, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("user_id", "user ID is required")
	}

	// DEFER RELEASE:
	// defer runs release on every return below: success, a failed upload,
	// a failed encode. No path can leave the user locked out.
	release, err := s.guard.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var records []model.MedicalRecord
	q := backend.From(backend.TableMedicalRecords).Where("user_id", userID).OrderBy("date", false)
	if err := s.client.Select(ctx, q, &records); err != nil {
		s.logger.Warn("share: records unavailable, sharing without them",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		records = nil
	}

	var vitals []model.VitalsReading
	q = backend.From(backend.TableVitals).Where("user_id", userID).OrderBy("date", false)
	if err := s.client.Select(ctx, q, &vitals); err != nil {
		s.logger.Warn("share: vitals unavailable, sharing without them",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		vitals = nil
	}

	snap := model.NewShareSnapshot(s.now(), s.ttl, profile, records, vitals)

	code, err := NewAccessCode(s.rand)
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("share: encoding snapshot: %w", err)
	}

	// Upsert false: the storage refuses an existing key instead of replacing
	// a snapshot someone else already holds the code for
	key := ShareKey(code)
	err = s.storage.Upload(ctx, s.bucket, key, payload, backend.UploadOptions{
		ContentType:  shareContentType,
		CacheControl: shareCacheControl,
		Upsert:       false,
	})
	if err != nil {
		s.logger.Error("share: upload failed",
			slog.String("user_id", userID),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, uploadError(key, err)
	}

	s.logger.Info("share snapshot created",
		slog.String("user_id", userID),
		slog.String("key", key),
		slog.Int("records", len(snap.Records)),
		slog.Int("vitals", len(snap.Vitals)),
	)

	return &ShareResult{
		Code:      code,
		Key:       key,
		URL:       s.storage.PublicURL(s.bucket, key),
		ExpiresAt: snap.ExpiresAt,
	}, nil
}

func uploadError(key string, err error) error {
	switch {
	case errors.Is(err, backend.ErrObjectExists):
		e := apperror.Conflict("share snapshot", key)
		e.Cause = err
		return e
	case errors.Is(err, backend.ErrUnauthorized):
		return apperror.Unauthorized("the storage service rejected your session, please sign in again")
	default:
		return apperror.Upstream("could not store the share snapshot, please try again", err)
	}
}
