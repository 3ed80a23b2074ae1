package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/medhistory/internal/auth"
	"github.com/sakif/medhistory/internal/backend/sqlite"
	"github.com/sakif/medhistory/internal/config"
)

const testSecret = "server-test-secret-0123456789"

// newTestServer wires the whole application onto an in-memory database and
// serves it on a random local port.
//
// END-TO-END TESTS:
//
// These tests go through the real router, middleware and services, so
// they catch wiring mistakes that unit tests with fakes cannot, such as a
// hook that was never connected. They stay fast because nothing leaves
// the process.
//
// NewUnstartedServer reserves the port before the server runs, which lets
// the public base URL (used in share and storage links) point at it.
func newTestServer(t *testing.T) (*httptest.Server, *auth.TokenService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, err := config.LoadFrom(func(k string) string {
		return map[string]string{"JWT_SECRET": testSecret}[k]
	})
	require.NoError(t, err)

	ts := httptest.NewUnstartedServer(nil)
	cfg.PublicBaseURL = "http://" + ts.Listener.Addr().String()

	db, err := sqlite.New(":memory:", sqlite.WithPublicBaseURL(cfg.PublicBaseURL))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewWithDeps(cfg, logger, Deps{Backend: db})
	require.NoError(t, err)
	// background chart invalidations must finish before the database closes
	t.Cleanup(s.trend.Wait)

	ts.Config.Handler = s.Handler()
	ts.Start()
	t.Cleanup(ts.Close)

	tokens, err := auth.NewTokenService(testSecret, "")
	require.NoError(t, err)
	return ts, tokens
}

// call sends one request, with a bearer token when token is not empty.
// The body is closed when the test ends.
func call(t *testing.T, ts *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := call(t, ts, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_APIRequiresToken(t *testing.T) {
	ts, tokens := newTestServer(t)

	resp := call(t, ts, http.MethodGet, "/api/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := tokens.Generate(auth.Identity{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)
	resp = call(t, ts, http.MethodGet, "/api/profile", expired, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_ShareFlow(t *testing.T) {
	ts, tokens := newTestServer(t)
	token, err := tokens.Generate(auth.Identity{UserID: "u1", Email: "asha@example.com", Name: "Asha"}, time.Hour)
	require.NoError(t, err)

	for _, body := range []string{
		`{"date":"2024-01-01","sugar":110}`,
		`{"date":"2024-01-08","sugar":135}`,
		`{"date":"2024-01-15","sugar":160}`,
	} {
		resp := call(t, ts, http.MethodPost, "/api/vitals", token, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := call(t, ts, http.MethodPost, "/api/records", token, `{"date":"2024-01-09","diagnosis":"Checkup","priority":"High"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = call(t, ts, http.MethodPost, "/api/share", token, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var share struct {
		Code string `json:"code"`
		URL  string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&share))
	assert.Len(t, share.Code, 6)
	require.True(t, strings.HasPrefix(share.URL, ts.URL+"/storage/medical_uploads/shares/"), share.URL)

	// the public link works without a token
	pub, err := ts.Client().Get(share.URL)
	require.NoError(t, err)
	defer pub.Body.Close()
	require.Equal(t, http.StatusOK, pub.StatusCode)

	var snap struct {
		Profile struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"profile"`
		Records []json.RawMessage `json:"records"`
		Vitals  []json.RawMessage `json:"vitals"`
	}
	require.NoError(t, json.NewDecoder(pub.Body).Decode(&snap))
	assert.Equal(t, "Asha", snap.Profile.Name)
	assert.Len(t, snap.Records, 1)
	assert.Len(t, snap.Vitals, 3)
}

func TestServer_TrendFollowsNewVitals(t *testing.T) {
	ts, tokens := newTestServer(t)
	token, err := tokens.Generate(auth.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	resp := call(t, ts, http.MethodGet, "/api/vitals/trend", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, ts, http.MethodPost, "/api/vitals", token, `{"date":"2024-01-01","sugar":250}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = call(t, ts, http.MethodGet, "/api/vitals/trend", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chart struct {
		Geometry struct {
			MaxVal int `json:"maxVal"`
			Points []struct {
				Value int `json:"value"`
			} `json:"points"`
		} `json:"geometry"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chart))
	assert.Equal(t, 250, chart.Geometry.MaxVal)
	require.Len(t, chart.Geometry.Points, 1)
}

func TestNewWithDeps_RequiresBackend(t *testing.T) {
	_, err := NewWithDeps(&config.Config{JWTSecret: testSecret}, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{})
	assert.Error(t, err)
}
