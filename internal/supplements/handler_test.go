package supplements

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestHandler(repo *repoMock) *Handler {
	return NewHandler(repo, newTestService(repo))
}

func TestHandler_CatalogSave_Create(t *testing.T) {
	repo := NewRepoMock()
	handler := newTestHandler(repo)

	body := `{"name": "  Omega   3 ", "doses_per_day": 2, "notes": "con las comidas"}`
	req := httptest.NewRequest("POST", "/supplements/config", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleCatalogSave(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK         bool       `json:"ok"`
		EntryMode  string     `json:"entry_mode"`
		Supplement Supplement `json:"supplement"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "create", resp.EntryMode)
	assert.Equal(t, "Omega 3", resp.Supplement.Name)
	assert.Equal(t, "Y", resp.Supplement.ActiveYN)
	assert.Equal(t, 2, resp.Supplement.DosesPerDay)
}

func TestHandler_CatalogSave_Validation(t *testing.T) {
	handler := newTestHandler(NewRepoMock())

	cases := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing name", `{"doses_per_day": 2}`, "Nombre de suplemento requerido."},
		{"missing doses", `{"name": "Zinc"}`, "Define cuantas tomas al dia (numero entero)."},
		{"doses too low", `{"name": "Zinc", "doses_per_day": 0}`, "Las tomas por dia deben estar entre 1 y 12."},
		{"doses too high", `{"name": "Zinc", "doses_per_day": 13}`, "Las tomas por dia deben estar entre 1 y 12."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.HandleCatalogSave(rr, httptest.NewRequest("POST", "/supplements/config", strings.NewReader(tc.body)))
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantMsg)
		})
	}
}

func TestHandler_CatalogSave_NameConflict(t *testing.T) {
	repo := NewRepoMock(Supplement{SupplementID: 1, Name: "Creatina", DosesPerDay: 1, ActiveYN: "Y"})
	handler := newTestHandler(repo)

	body := `{"name": "creatina", "doses_per_day": 2}`
	rr := httptest.NewRecorder()
	handler.HandleCatalogSave(rr, httptest.NewRequest("POST", "/supplements/config", strings.NewReader(body)))

	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "Ya existe un suplemento con ese nombre.")
}

func TestHandler_CatalogSave_EditNotFound(t *testing.T) {
	handler := newTestHandler(NewRepoMock())

	body := `{"supplement_id": 99, "name": "Zinc", "doses_per_day": 1}`
	rr := httptest.NewRecorder()
	handler.HandleCatalogSave(rr, httptest.NewRequest("POST", "/supplements/config", strings.NewReader(body)))

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Suplemento no encontrado.")
}

func TestHandler_CatalogGet_ActiveOnly(t *testing.T) {
	repo := NewRepoMock(
		Supplement{SupplementID: 1, Name: "Creatina", DosesPerDay: 1, ActiveYN: "Y"},
		Supplement{SupplementID: 2, Name: "Ashwagandha", DosesPerDay: 1, ActiveYN: "N"},
	)
	handler := newTestHandler(repo)

	rr := httptest.NewRecorder()
	handler.HandleCatalogGet(rr, httptest.NewRequest("GET", "/supplements/config?active_only=1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Supplements []Supplement `json:"supplements"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Supplements, 1)
	assert.Equal(t, "Creatina", resp.Supplements[0].Name)
}

func TestHandler_CatalogDelete(t *testing.T) {
	repo := NewRepoMock(Supplement{SupplementID: 4, Name: "Zinc", DosesPerDay: 1, ActiveYN: "Y"})
	handler := newTestHandler(repo)

	r := mux.NewRouter()
	r.HandleFunc("/supplements/config/{supplementID}", handler.HandleCatalogDelete).Methods("DELETE")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/supplements/config/4", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Zinc"`)
	assert.Empty(t, repo.Catalog)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/supplements/config/4", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_DaySave_ReplacesAndReturnsTotals(t *testing.T) {
	repo := NewRepoMock(seedCatalog()...)
	handler := newTestHandler(repo)

	body := `{
		"log_date": "2026-02-10",
		"entries": [
			{"supplement_id": 1, "doses_taken": 1},
			{"supplement_id": 2, "doses_taken": 1, "notes": "solo una"}
		]
	}`
	rr := httptest.NewRecorder()
	handler.HandleDaySave(rr, httptest.NewRequest("POST", "/supplements/day", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK      bool `json:"ok"`
		HasLogs bool `json:"has_logs"`
		Entries []DayEntry `json:"entries"`
		Totals  DayTotals  `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.True(t, resp.HasLogs)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, 3, resp.Totals.TargetDoses)
	assert.Equal(t, 2, resp.Totals.TakenDoses)
	require.NotNil(t, resp.Totals.AdherencePct)
	assert.InDelta(t, 66.67, *resp.Totals.AdherencePct, 0.01)
}

func TestHandler_DaySave_Validation(t *testing.T) {
	handler := newTestHandler(NewRepoMock(seedCatalog()...))

	cases := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"bad date", `{"log_date": "ayer"}`, http.StatusBadRequest, "log_date invalida"},
		{"missing id", `{"log_date": "2026-02-10", "entries": [{"doses_taken": 1}]}`, http.StatusBadRequest, "supplement_id invalido en entries."},
		{"duplicate id", `{"log_date": "2026-02-10", "entries": [{"supplement_id": 1}, {"supplement_id": 1}]}`, http.StatusBadRequest, "Hay suplementos repetidos en entries."},
		{"doses out of range", `{"log_date": "2026-02-10", "entries": [{"supplement_id": 1, "doses_taken": 25}]}`, http.StatusBadRequest, "doses_taken debe estar entre 0 y 24."},
		{"unknown supplement", `{"log_date": "2026-02-10", "entries": [{"supplement_id": 9}]}`, http.StatusNotFound, "Suplemento no encontrado (ID 9)."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.HandleDaySave(rr, httptest.NewRequest("POST", "/supplements/day", strings.NewReader(tc.body)))
			require.Equal(t, tc.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantMsg)
		})
	}
}

func TestHandler_DayDelete(t *testing.T) {
	repo := NewRepoMock(seedCatalog()...)
	require.NoError(t, repo.ReplaceDay(context.Background(), "2026-02-10", []LogEntry{{SupplementID: 1, DosesTaken: 1}}))
	handler := newTestHandler(repo)

	r := mux.NewRouter()
	r.HandleFunc("/supplements/day/{date}", handler.HandleDayDelete).Methods("DELETE")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/supplements/day/2026-02-10", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"deleted_rows":1`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/supplements/day/2026-02-10", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "No hay registro para esa fecha.")
}

func TestHandler_History(t *testing.T) {
	repo := NewRepoMock(seedCatalog()...)
	require.NoError(t, repo.ReplaceDay(context.Background(), "2026-02-10", []LogEntry{
		{SupplementID: 1, DosesTaken: 1},
		{SupplementID: 2, DosesTaken: 2},
	}))
	handler := newTestHandler(repo)

	rr := httptest.NewRecorder()
	handler.HandleHistory(rr, httptest.NewRequest("GET", "/supplements/history?limit=7", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK    bool          `json:"ok"`
		Limit int           `json:"limit"`
		Rows  []HistoryItem `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 7, resp.Limit)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "100%", resp.Rows[0].AdherenceLabel)
}

func TestHandler_History_InvalidLimit(t *testing.T) {
	handler := newTestHandler(NewRepoMock())

	rr := httptest.NewRecorder()
	handler.HandleHistory(rr, httptest.NewRequest("GET", "/supplements/history?limit=0", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "limit invalido")
}
