package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/resqrelief/incident-feed/internal/adapter/http"
	"github.com/resqrelief/incident-feed/internal/domain"
	"github.com/resqrelief/incident-feed/internal/submit"
)

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockFeed struct {
	incidents []domain.Incident
}

func (m *mockFeed) Snapshot() []domain.Incident { return m.incidents }

type mockSubmitter struct {
	receipt submit.Receipt
	err     error
	inputs  []submit.Input
}

func (m *mockSubmitter) Submit(_ context.Context, input submit.Input) (submit.Receipt, error) {
	m.inputs = append(m.inputs, input)
	return m.receipt, m.err
}

func newTestServer(feedView *mockFeed, submitter *mockSubmitter, readyErr error) *httpadapter.Server {
	if feedView == nil {
		feedView = &mockFeed{}
	}
	if submitter == nil {
		submitter = &mockSubmitter{}
	}
	return httpadapter.NewServer(":0", feedView, submitter, &mockReadiness{err: readyErr}, slog.Default())
}

// --- operational endpoints ---

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns503WhenNotSeeded(t *testing.T) {
	srv := newTestServer(nil, nil, fmt.Errorf("feed has not completed its initial seed yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- feed endpoint ---

func TestListIncidentsServesFeedView(t *testing.T) {
	createdAt := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	feedView := &mockFeed{incidents: []domain.Incident{
		{ID: "a", DisasterType: domain.DisasterFloods, Location: "Hebbal", CreatedAt: createdAt},
		{ID: "b", DisasterType: domain.DisasterWildfire, Location: "Nandi Hills", CreatedAt: createdAt.Add(-time.Hour)},
	}}
	srv := newTestServer(feedView, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Incidents []domain.Incident `json:"incidents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Incidents, 2)
	assert.Equal(t, "a", body.Incidents[0].ID)
	assert.Equal(t, "b", body.Incidents[1].ID)
}

// --- submission endpoint ---

func sector12() domain.Location {
	return domain.Location{
		Label:       "Sector 12",
		Coordinates: &domain.Coordinates{Latitude: 13.02, Longitude: 77.59},
	}
}

func TestSubmitIncidentJSON(t *testing.T) {
	submitter := &mockSubmitter{receipt: submit.Receipt{
		Location: sector12(),
		Incident: domain.Incident{ID: "id-1", DisasterType: domain.DisasterFloods},
	}}
	srv := newTestServer(nil, submitter, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents",
		strings.NewReader(`{"disaster_type":"floods","message":"water rising"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, submitter.inputs, 1)
	assert.Equal(t, "floods", submitter.inputs[0].DisasterType)
	assert.Equal(t, "water rising", submitter.inputs[0].Message)
	assert.Empty(t, submitter.inputs[0].Image)

	var body struct {
		Incident domain.Incident `json:"incident"`
		Location domain.Location `json:"location"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "id-1", body.Incident.ID)
	assert.Equal(t, "Sector 12", body.Location.Label)
}

func TestSubmitIncidentMultipartWithPhoto(t *testing.T) {
	submitter := &mockSubmitter{receipt: submit.Receipt{Location: sector12()}}
	srv := newTestServer(nil, submitter, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("disaster_type", "wildfire"))
	require.NoError(t, w.WriteField("message", "smoke on the ridge"))
	fw, err := w.CreateFormFile("photo", "fire.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, submitter.inputs, 1)
	assert.Equal(t, "wildfire", submitter.inputs[0].DisasterType)
	assert.Equal(t, "smoke on the ridge", submitter.inputs[0].Message)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0}, submitter.inputs[0].Image)
}

func TestSubmitIncidentMissingTypeReturns400(t *testing.T) {
	submitter := &mockSubmitter{err: fmt.Errorf("submit: %w", domain.ErrMissingDisasterType)}
	srv := newTestServer(nil, submitter, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(`{"message":"no type"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitIncidentLocationUnavailableReturns503(t *testing.T) {
	submitter := &mockSubmitter{err: fmt.Errorf("submit: %w", submit.ErrLocationUnavailable)}
	srv := newTestServer(nil, submitter, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(`{"disaster_type":"floods"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitIncidentPersistenceFailureCarriesLocation(t *testing.T) {
	submitter := &mockSubmitter{
		receipt: submit.Receipt{Location: sector12()},
		err:     fmt.Errorf("submit: %w", submit.ErrPersistenceFailed),
	}
	srv := newTestServer(nil, submitter, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader(`{"disaster_type":"floods"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The client still gets the captured location alongside the error.
	var body struct {
		Error    string          `json:"error"`
		Location domain.Location `json:"location"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "persistence_failed", body.Error)
	assert.Equal(t, "Sector 12", body.Location.Label)
	require.NotNil(t, body.Location.Coordinates)
	assert.InDelta(t, 13.02, body.Location.Coordinates.Latitude, 1e-9)
}

func TestSubmitIncidentMalformedBodyReturns400(t *testing.T) {
	submitter := &mockSubmitter{}
	srv := newTestServer(nil, submitter, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, submitter.inputs)
}
