package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/export"
	"github.com/sakif/medhistory/internal/model"
)

// =========================================================================
// TEST HELPERS
// =========================================================================

// newTestAccountService wires an AccountService the way the server does,
// with every dependency sharing one fake backend.
func newTestAccountService(t *testing.T) (*AccountService, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	logger := testLogger()
	svc := NewAccountService(fb,
		NewProfileService(fb, logger),
		NewRecordService(fb, logger),
		NewVitalsService(fb, logger),
		"https://health.example.com/",
		logger,
	)
	return svc, fb
}

// seedAccount gives userID one row in each table Delete touches.
func seedAccount(t *testing.T, fb *fakeBackend, userID string) {
	t.Helper()
	fb.seed(t, backend.TableProfiles, model.Profile{ID: userID, Name: "Asha"})
	fb.seed(t, backend.TableMedicalRecords, model.MedicalRecord{UserID: userID, Date: "2024-01-01", Diagnosis: "Flu", Priority: "Low"})
	fb.seed(t, backend.TableVitals, model.VitalsReading{UserID: userID, Date: "2024-01-01", Sugar: 120})
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestAccount_Delete(t *testing.T) {
	svc, fb := newTestAccountService(t)
	seedAccount(t, fb, "u1")
	seedAccount(t, fb, "u2")

	var forgotten []string
	svc.OnDelete(func(userID string) { forgotten = append(forgotten, userID) })

	require.NoError(t, svc.Delete(context.Background(), "u1"))

	assert.Equal(t, []string{backend.TableMedicalRecords, backend.TableVitals, backend.TableProfiles}, fb.deletes)
	for _, table := range []string{backend.TableProfiles, backend.TableMedicalRecords, backend.TableVitals} {
		assert.Equal(t, 1, fb.count(table), "only u2 left in %s", table)
	}
	assert.Equal(t, []string{"u1"}, forgotten)
}

func TestAccount_DeleteStopsAtFirstFailure(t *testing.T) {
	svc, fb := newTestAccountService(t)
	seedAccount(t, fb, "u1")
	fb.deleteErr[backend.TableVitals] = backend.ErrUnavailable

	err := svc.Delete(context.Background(), "u1")
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, []string{backend.TableMedicalRecords, backend.TableVitals}, fb.deletes)
	assert.Equal(t, 1, fb.count(backend.TableProfiles), "profile kept")

	assert.ErrorIs(t, svc.Delete(context.Background(), ""), apperror.ErrValidation)
}

// =========================================================================
// LINK AND EXPORT TESTS
// =========================================================================

func TestAccount_EmergencyLink(t *testing.T) {
	svc, _ := newTestAccountService(t)
	assert.Equal(t, "https://health.example.com/emergency.html?id=u+1%2F2", svc.EmergencyLink("u 1/2"))
	assert.Equal(t, "https://health.example.com/emergency.html?id=abc", svc.EmergencyLink("abc"))
}

func TestAccount_Export(t *testing.T) {
	svc, fb := newTestAccountService(t)
	seedAccount(t, fb, "u1")

	data, err := svc.Export(context.Background(), "u1", "", "")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetRecords)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Flu", rows[1][2])
}

func TestAccount_ExportFailsOnReadError(t *testing.T) {
	svc, fb := newTestAccountService(t)
	seedAccount(t, fb, "u1")
	fb.selectErr[backend.TableVitals] = backend.ErrUnavailable

	_, err := svc.Export(context.Background(), "u1", "", "")
	assert.ErrorIs(t, err, apperror.ErrUpstream)
}
