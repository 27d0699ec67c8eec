package workout

import (
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

func TestHandler_HandleSave_Create(t *testing.T) {
	repo := NewRepoMock()
	handler := NewHandler(repo)

	body := `{
		"log_date": "2026-02-09",
		"session_type": "pesas",
		"session_done_yn": "y",
		"rpe_session": 8,
		"exercises": [
			{"exercise_name": "Press Banca", "weight_kg": 80, "reps": "5", "rpe": 8.5},
			{"name": "Remo", "weight_kg": "62,5"}
		]
	}`
	req := httptest.NewRequest("POST", "/workout", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleSave(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK        bool   `json:"ok"`
		SessionID int    `json:"session_id"`
		EntryMode string `json:"entry_mode"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "create", resp.EntryMode)

	saved := repo.Sessions[resp.SessionID]
	assert.Equal(t, SessionTypePesas, saved.SessionType)
	require.NotNil(t, saved.SessionDoneYN)
	assert.Equal(t, "Y", *saved.SessionDoneYN)
	require.NotNil(t, saved.RPESession)
	assert.Equal(t, 8, *saved.RPESession)

	require.Len(t, saved.Exercises, 2)
	assert.Equal(t, "80kg · 5 reps · RPE 8.5", saved.Exercises[0].TopsetText)
	require.NotNil(t, saved.Exercises[1].WeightKg)
	assert.InDelta(t, 62.5, *saved.Exercises[1].WeightKg, 0.0001)
}

func TestHandler_HandleSave_ClaseDropsExercises(t *testing.T) {
	repo := NewRepoMock()
	handler := NewHandler(repo)

	body := `{
		"log_date": "2026-02-09",
		"session_type": "clase",
		"class_activity": "spinning",
		"exercises": [{"exercise_name": "colado", "weight_kg": 40}]
	}`
	req := httptest.NewRequest("POST", "/workout", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleSave(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, repo.Sessions, 1)
	for _, saved := range repo.Sessions {
		assert.Equal(t, "spinning", saved.ClassDone)
		assert.Empty(t, saved.Exercises)
	}
}

func TestHandler_HandleSave_EditMissingSessionID(t *testing.T) {
	handler := NewHandler(NewRepoMock())

	body := `{"log_date": "2026-02-09", "entry_mode": "edit"}`
	req := httptest.NewRequest("POST", "/workout", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleSave(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Para editar un entreno debes indicar session_id.")
}

func TestHandler_HandleSave_EditNotFound(t *testing.T) {
	handler := NewHandler(NewRepoMock())

	body := `{"log_date": "2026-02-09", "entry_mode": "edit", "session_id": 42}`
	req := httptest.NewRequest("POST", "/workout", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleSave(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sesion no encontrada.")
}

func TestHandler_HandleSave_UpsertReusesDateSession(t *testing.T) {
	repo := NewRepoMock(Session{SessionID: 7, LogDate: "2026-02-09", SessionType: SessionTypePesas})
	handler := NewHandler(repo)

	body := `{"log_date": "2026-02-09", "notes": "segunda pasada"}`
	req := httptest.NewRequest("POST", "/workout", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleSave(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		SessionID int    `json:"session_id"`
		EntryMode string `json:"entry_mode"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.SessionID)
	assert.Equal(t, "edit", resp.EntryMode)
	require.Len(t, repo.Sessions, 1)
	assert.Equal(t, "segunda pasada", repo.Sessions[7].Notes)
}

func TestHandler_HandleDelete(t *testing.T) {
	repo := NewRepoMock(Session{SessionID: 3, LogDate: "2026-02-09"})
	handler := NewHandler(repo)

	r := mux.NewRouter()
	r.HandleFunc("/workout/{sessionID}", handler.HandleDelete).Methods("DELETE")

	req := httptest.NewRequest("DELETE", "/workout/3", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK      bool   `json:"ok"`
		LogDate string `json:"log_date"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "2026-02-09", resp.LogDate)
	assert.Empty(t, repo.Sessions)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/workout/3", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sesion de entreno no encontrada.")
}

func TestHandler_HandleDelete_InvalidID(t *testing.T) {
	handler := NewHandler(NewRepoMock())

	r := mux.NewRouter()
	r.HandleFunc("/workout/{sessionID}", handler.HandleDelete).Methods("DELETE")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/workout/abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
