package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlab/pipescope/internal/config"
	"github.com/voxlab/pipescope/internal/frames"
	"github.com/voxlab/pipescope/internal/monitoring"
	"github.com/voxlab/pipescope/internal/observer"
	"github.com/voxlab/pipescope/internal/store"
)

func newTestServer(t *testing.T, runs *store.RunStore) (*Server, *observer.Observer) {
	t.Helper()

	obs, err := observer.New(config.DefaultObservability(), frames.NewWireSerializer(), nil)
	require.NoError(t, err)
	obs.Attach()
	t.Cleanup(obs.Close)

	cfg := config.ServerConfig{Port: 9090, ReadTimeout: time.Second, WriteTimeout: time.Second}
	return New(cfg, obs, runs, "run-test"), obs
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// ENVELOPE INGESTION
// =============================================================================

func TestIngestEnvelope_CountsFrame(t *testing.T) {
	s, obs := newTestServer(t, nil)

	payload := base64.StdEncoding.EncodeToString([]byte{0x1a, 0x02, 0x08, 0x01})
	s.ingestEnvelope([]byte(`{
		"type": "TranscriptionFrame",
		"direction": "downstream",
		"source": "stt",
		"destination": "llm",
		"observed_at": "2026-08-25T10:00:00.000Z",
		"payload": "` + payload + `"
	}`))

	assert.Equal(t, int64(1), obs.FrameCounts()["TranscriptionFrame"])
}

func TestIngestEnvelope_DropsMalformed(t *testing.T) {
	s, obs := newTestServer(t, nil)

	s.ingestEnvelope([]byte(`{not json`))
	s.ingestEnvelope([]byte(`{"direction": "downstream"}`)) // no type
	assert.Empty(t, obs.FrameCounts())
}

func TestIngestEnvelope_CountsDespiteBadPayloadEncoding(t *testing.T) {
	s, obs := newTestServer(t, nil)

	s.ingestEnvelope([]byte(`{"type": "TextFrame", "direction": "upstream", "payload": "%%%not-base64%%%"}`))
	assert.Equal(t, int64(1), obs.FrameCounts()["TextFrame"])
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, frames.DirectionDownstream, parseDirection("downstream"))
	assert.Equal(t, frames.DirectionUpstream, parseDirection("upstream"))
	assert.Equal(t, frames.DirectionControl, parseDirection("control"))
	assert.Equal(t, frames.DirectionControl, parseDirection("sideways"))
}

// =============================================================================
// OPERATOR API
// =============================================================================

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleSummary(t *testing.T) {
	s, obs := newTestServer(t, nil)
	obs.OnFrame(&frames.Frame{Type: frames.TypeText}, frames.DirectionDownstream, time.Now())

	rec := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary observer.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.FrameCounts["TextFrame"])
}

func TestRoutes_CarryRunID(t *testing.T) {
	s, _ := newTestServer(t, nil)

	var got string
	h := s.withRunID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = monitoring.RunIDFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "run-test", got)
}

func TestRunEndpoints_WithoutStore(t *testing.T) {
	s, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotImplemented, get(t, s, "/api/runs").Code)
	assert.Equal(t, http.StatusNotImplemented, get(t, s, "/api/runs/run-1").Code)
}

func TestRunEndpoints_WithStore(t *testing.T) {
	runs, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	started := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	require.NoError(t, runs.SaveRun(store.RunRecord{
		ID:        "run-1",
		StartedAt: started,
		EndedAt:   started.Add(time.Minute),
		Summary:   json.RawMessage(`{"frame_counts":{}}`),
	}))

	s, _ := newTestServer(t, runs)

	rec := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "run-1", list[0].ID)

	rec = get(t, s, "/api/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var rec1 store.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rec1))
	assert.Equal(t, "run-1", rec1.ID)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/missing").Code)
}

func TestListRuns_RejectsBadLimit(t *testing.T) {
	runs, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	s, _ := newTestServer(t, runs)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/runs?limit=abc").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/api/runs?limit=5").Code)
}
