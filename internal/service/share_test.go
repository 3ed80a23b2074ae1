package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/guard"
	"github.com/sakif/medhistory/internal/model"
)

// INJECTED CLOCK AND RANDOMNESS:
// ShareService reads the time through s.now and random bytes through
// s.rand. The tests live in package service, so they can set those
// unexported fields: a fixed clock makes expiresAt exact, and a
// bytes.Reader makes the access code predictable.
var shareTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestShareService(t *testing.T) (*ShareService, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	svc := NewShareService(fb, fb, guard.NewMemory(), "", 0, testLogger())
	svc.now = func() time.Time { return shareTime }
	return svc, fb
}

func decodeSnapshot(t *testing.T, data []byte) model.ShareSnapshot {
	t.Helper()
	var snap model.ShareSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func TestNewAccessCode_Alphabet(t *testing.T) {
	for i := 0; i < 10000; i++ {
		code, err := NewAccessCode(nil)
		require.NoError(t, err)
		require.Len(t, code, AccessCodeLength)
		for _, c := range code {
			require.True(t, strings.ContainsRune(AccessCodeAlphabet, c), "symbol %q in %q", c, code)
			require.NotContains(t, "IO10", string(c))
		}
	}
}

func TestNewAccessCode_Deterministic(t *testing.T) {
	// one byte per symbol, reduced modulo the alphabet size
	code, err := NewAccessCode(bytes.NewReader([]byte{0, 1, 2, 31, 63, 8}))
	require.NoError(t, err)
	assert.Equal(t, "ABC99J", code)

	_, err = NewAccessCode(bytes.NewReader(nil))
	assert.Error(t, err, "an exhausted source is an error")
}

func TestShareKey(t *testing.T) {
	assert.Equal(t, "shares/ABC234", ShareKey("ABC234"))
}

func TestShare_EmptyRecordScenario(t *testing.T) {
	svc, fb := newTestShareService(t)

	res, err := svc.Generate(context.Background(), "u1", model.DefaultProfile("u1", "a@b.c", "Asha"))
	require.NoError(t, err)

	assert.Regexp(t, `^[A-HJ-NP-Z2-9]{6}$`, res.Code)
	assert.Equal(t, "shares/"+res.Code, res.Key)
	assert.Equal(t, shareTime.Add(24*time.Hour), res.ExpiresAt)
	assert.Equal(t, "https://cdn.test/medical_uploads/shares/"+res.Code, res.URL)

	obj := fb.object(t, DefaultShareBucket, res.Key)
	assert.Equal(t, backend.UploadOptions{ContentType: "application/json", CacheControl: "3600", Upsert: false}, obj.opts)

	snap := decodeSnapshot(t, obj.data)
	assert.Equal(t, shareTime, snap.GeneratedAt)
	assert.Equal(t, shareTime.Add(24*time.Hour), snap.ExpiresAt)
	assert.Empty(t, snap.Records)
	assert.Empty(t, snap.Vitals)
	assert.Equal(t, "Asha", snap.Profile.Name)
	assert.Contains(t, string(obj.data), `"records":[]`)
}

func TestShare_PartialData(t *testing.T) {
	svc, fb := newTestShareService(t)
	fb.seed(t, backend.TableVitals, []model.VitalsReading{
		{UserID: "u1", Date: "2024-01-01", Sugar: 110},
		{UserID: "u1", Date: "2024-01-08", Sugar: 135},
	})
	fb.selectErr[backend.TableMedicalRecords] = backend.ErrUnavailable

	res, err := svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
	require.NoError(t, err)
	assert.Len(t, res.Code, AccessCodeLength)

	snap := decodeSnapshot(t, fb.object(t, DefaultShareBucket, res.Key).data)
	assert.Empty(t, snap.Records)
	require.Len(t, snap.Vitals, 2)
	assert.Equal(t, "2024-01-08", snap.Vitals[0].Date, "newest first")
}

func TestShare_OnlyOwnRows(t *testing.T) {
	svc, fb := newTestShareService(t)
	fb.seed(t, backend.TableMedicalRecords, []model.MedicalRecord{
		{UserID: "u1", Date: "2024-01-01", Diagnosis: "Flu"},
		{UserID: "u2", Date: "2024-01-02", Diagnosis: "Other"},
	})

	res, err := svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
	require.NoError(t, err)

	snap := decodeSnapshot(t, fb.object(t, DefaultShareBucket, res.Key).data)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "Flu", snap.Records[0].Diagnosis)
}

func TestShare_CollisionIsConflict(t *testing.T) {
	svc, fb := newTestShareService(t)
	svc.rand = bytes.NewReader(bytes.Repeat([]byte{0}, 12))

	first, err := svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Code)

	_, err = svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.ErrorIs(t, err, backend.ErrObjectExists)

	// the first snapshot is untouched
	snap := decodeSnapshot(t, fb.object(t, DefaultShareBucket, first.Key).data)
	assert.Equal(t, shareTime, snap.GeneratedAt)
}

func TestShare_UploadFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", backend.ErrUnavailable, apperror.ErrUpstream},
		{"unauthorized", backend.ErrUnauthorized, apperror.ErrUnauthorized},
		{"other", errors.New("boom"), apperror.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fb := newTestShareService(t)
			fb.uploadErr = tt.err

			res, err := svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, fb.objects)

			// the guard is released on failure
			fb.uploadErr = nil
			_, err = svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
			assert.NoError(t, err)
		})
	}
}

// blockingStorage holds the first upload until released; later uploads go
// straight through. A sync.Once would not do here: Once.Do blocks every
// concurrent caller until the first call returns.
type blockingStorage struct {
	*fakeBackend
	first   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStorage) Upload(ctx context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	if b.first.CompareAndSwap(false, true) {
		close(b.entered)
		<-b.release
	}
	return b.fakeBackend.Upload(ctx, bucket, key, data, opts)
}

func TestShare_ConcurrentRequestIsBusy(t *testing.T) {
	fb := newFakeBackend()
	bs := &blockingStorage{fakeBackend: fb, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewShareService(fb, bs, guard.NewMemory(), "", 0, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
		done <- err
	}()
	<-bs.entered

	_, err := svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
	assert.ErrorIs(t, err, guard.ErrBusy)

	_, err = svc.Generate(context.Background(), "u2", model.Profile{ID: "u2"})
	assert.NoError(t, err, "other users are not blocked")

	close(bs.release)
	require.NoError(t, <-done)
}

func TestShare_RequiresUser(t *testing.T) {
	svc, _ := newTestShareService(t)
	_, err := svc.Generate(context.Background(), "", model.Profile{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestShare_ConfiguredBucketAndTTL(t *testing.T) {
	fb := newFakeBackend()
	svc := NewShareService(fb, fb, nil, "shares-bucket", time.Hour, testLogger())
	svc.now = func() time.Time { return shareTime }

	res, err := svc.Generate(context.Background(), "u1", model.Profile{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, shareTime.Add(time.Hour), res.ExpiresAt)
	fb.object(t, "shares-bucket", res.Key)
}
