package checkin

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestHandler(seed ...CheckIn) (*Handler, *repoMock) {
	repo := NewRepoMock(seed...)
	return NewHandler(repo, NewImporter(repo), metrics.NewTestManager()), repo
}

func TestHandler_HandleUpsert(t *testing.T) {
	handler, repo := newTestHandler()

	sleep := 7.5
	body, err := json.Marshal(upsertRequest{
		CheckIn: CheckIn{LogDate: "2026-02-11", SleepHours: &sleep},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/diet", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleUpsert(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	saved, ok := repo.CheckIns["2026-02-11"]
	require.True(t, ok)
	require.NotNil(t, saved.SleepHours)
	assert.InDelta(t, 7.5, *saved.SleepHours, 0.0001)
}

func TestHandler_HandleUpsert_CreateExisting(t *testing.T) {
	handler, _ := newTestHandler(CheckIn{LogDate: "2026-02-11"})

	body := `{"log_date":"2026-02-11","entry_mode":"create"}`
	req := httptest.NewRequest("POST", "/diet", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleUpsert(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	var resp struct {
		OK        bool `json:"ok"`
		NeedsEdit bool `json:"needs_edit"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.True(t, resp.NeedsEdit)
}

func TestHandler_HandleUpsert_InvalidDate(t *testing.T) {
	handler, _ := newTestHandler()

	req := httptest.NewRequest("POST", "/diet", strings.NewReader(`{"log_date":"11-02-2026"}`))
	rr := httptest.NewRecorder()
	handler.HandleUpsert(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_HandleDelete(t *testing.T) {
	handler, repo := newTestHandler(CheckIn{LogDate: "2026-02-11"})

	r := mux.NewRouter()
	r.HandleFunc("/diet/{date}", handler.HandleDelete).Methods("DELETE")

	req := httptest.NewRequest("DELETE", "/diet/2026-02-11", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, repo.CheckIns)

	req = httptest.NewRequest("DELETE", "/diet/2026-02-11", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestHandler_HandleImportPreview(t *testing.T) {
	handler, _ := newTestHandler(CheckIn{LogDate: "2026-02-10"})

	csv := importHeader + "\n2026-02-11,7.5,9000,71.2,80,100,Y,0\n2026-02-10,8,,,,,N,0"
	body, contentType := multipartCSV(t, "checkins.csv", csv)

	req := httptest.NewRequest("POST", "/diet/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.HandleImportPreview(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK      bool           `json:"ok"`
		Summary PreviewSummary `json:"summary"`
		Preview []RowResult    `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Valid)
	assert.Equal(t, 1, resp.Summary.Conflict)
}

func TestHandler_HandleImportPreview_WrongExtension(t *testing.T) {
	handler, _ := newTestHandler()

	body, contentType := multipartCSV(t, "checkins.xlsx", "not a csv")
	req := httptest.NewRequest("POST", "/diet/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.HandleImportPreview(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "extension .csv")
}

func TestHandler_HandleImportApply(t *testing.T) {
	handler, repo := newTestHandler(CheckIn{LogDate: "2026-02-10"})

	body := `{"rows":[
		{"row_number":2,"row":{"log_date":"2026-02-11","sleep_hours":7.5}},
		{"row_number":3,"row":{"log_date":"2026-02-10","sleep_hours":8}}
	]}`
	req := httptest.NewRequest("POST", "/diet/import/apply", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleImportApply(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK      bool         `json:"ok"`
		Summary ApplySummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 1, resp.Summary.Imported)
	assert.Equal(t, 1, resp.Summary.Conflict)
	assert.Contains(t, repo.CheckIns, "2026-02-11")
}
