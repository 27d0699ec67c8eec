package plan

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

func newPlanTestHandler() (*Handler, *repoMock) {
	repo := NewRepoMock()
	service := NewService(
		repo,
		&checkinReaderMock{dates: map[string]bool{}},
		&workoutCounterMock{counts: map[string]int{}},
	)
	return NewHandler(NewImporter(repo), service, repo, metrics.NewTestManager()), repo
}

func multipartCSV(t *testing.T, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "plan.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandler_HandleImportDiet(t *testing.T) {
	handler, repo := newPlanTestHandler()

	body, contentType := multipartCSV(t, dietCSV(dietRow("2026-02-02")))
	req := httptest.NewRequest("POST", "/plan/import/diet", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.HandleImportDiet(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK      bool              `json:"ok"`
		Summary DietImportSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 1, resp.Summary.Imported)
	assert.Len(t, repo.DietDays, 1)
}

func TestHandler_HandleImportWorkout_MissingColumns(t *testing.T) {
	handler, _ := newPlanTestHandler()

	body, contentType := multipartCSV(t, "log_date\n2026-02-02\n")
	req := httptest.NewRequest("POST", "/plan/import/workout", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.HandleImportWorkout(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Faltan columnas obligatorias")
}

func TestHandler_HandleDay(t *testing.T) {
	handler, repo := newPlanTestHandler()
	repo.DietDays["2026-02-04"] = DietDay{LogDate: "2026-02-04", Lunch: "arroz"}

	req := httptest.NewRequest("GET", "/plan/day?log_date=2026-02-04&adherence_days=7", nil)
	rr := httptest.NewRecorder()
	handler.HandleDay(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK       bool     `json:"ok"`
		LogDate  string   `json:"log_date"`
		Diet     *DietDay `json:"diet"`
		Coverage Coverage `json:"coverage"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "2026-02-04", resp.LogDate)
	require.NotNil(t, resp.Diet)
	assert.True(t, resp.Coverage.HasDietPlan)
	assert.False(t, resp.Coverage.HasWorkoutPlan)
}

func TestHandler_HandleDay_InvalidDate(t *testing.T) {
	handler, _ := newPlanTestHandler()

	req := httptest.NewRequest("GET", "/plan/day?log_date=04-02-2026", nil)
	rr := httptest.NewRecorder()
	handler.HandleDay(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_HandleAdherenceUpsert(t *testing.T) {
	handler, repo := newPlanTestHandler()

	body := `{"log_date":"2026-02-04","diet_score":1,"workout_score":"0.5","notes":"bien"}`
	req := httptest.NewRequest("POST", "/plan/adherence", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleAdherenceUpsert(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	saved, ok := repo.Adherences["2026-02-04"]
	require.True(t, ok)
	require.NotNil(t, saved.DietScore)
	assert.InDelta(t, 1, *saved.DietScore, 0.0001)
	require.NotNil(t, saved.WorkoutScore)
	assert.InDelta(t, 0.5, *saved.WorkoutScore, 0.0001)
	assert.Equal(t, "bien", saved.Notes)
}

func TestHandler_HandleAdherenceUpsert_InvalidScore(t *testing.T) {
	handler, _ := newPlanTestHandler()

	body := `{"log_date":"2026-02-04","diet_score":0.7}`
	req := httptest.NewRequest("POST", "/plan/adherence", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleAdherenceUpsert(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "diet_score debe ser 1, 0.5 o 0.")
}

func TestHandler_HandleAdherenceUpsert_EmptyClears(t *testing.T) {
	handler, repo := newPlanTestHandler()
	repo.Adherences["2026-02-04"] = Adherence{LogDate: "2026-02-04", DietScore: scorePtr(1)}

	body := `{"log_date":"2026-02-04","diet_score":"","workout_score":null,"notes":""}`
	req := httptest.NewRequest("POST", "/plan/adherence", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleAdherenceUpsert(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, ok := repo.Adherences["2026-02-04"]
	assert.False(t, ok)
}

func TestHandler_HandleDeleteDietDay(t *testing.T) {
	handler, repo := newPlanTestHandler()
	repo.DietDays["2026-02-04"] = DietDay{LogDate: "2026-02-04"}

	r := mux.NewRouter()
	r.HandleFunc("/plan/diet/{date}", handler.HandleDeleteDietDay).Methods("DELETE")

	req := httptest.NewRequest("DELETE", "/plan/diet/2026-02-04", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, repo.DietDays)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/plan/diet/2026-02-04", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "No existe dieta plan para esa fecha.")
}

func TestHandler_HandleDeleteWorkoutSession(t *testing.T) {
	handler, repo := newPlanTestHandler()
	repo.Sessions[workoutSessionKey{"2026-02-04", "S01"}] = WorkoutSession{
		LogDate:       "2026-02-04",
		PlanSessionID: "S01",
		SessionType:   SessionTypePesas,
		Exercises:     []WorkoutExercise{{ExerciseOrder: 1, ExerciseName: "press banca"}},
	}

	r := mux.NewRouter()
	r.HandleFunc("/plan/workout/{date}/{sessionID}", handler.HandleDeleteWorkoutSession).Methods("DELETE")

	req := httptest.NewRequest("DELETE", "/plan/workout/2026-02-04/S01", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		OK               bool `json:"ok"`
		DeletedSessions  int  `json:"deleted_sessions"`
		DeletedExercises int  `json:"deleted_exercises"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 1, resp.DeletedSessions)
	assert.Equal(t, 1, resp.DeletedExercises)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("DELETE", "/plan/workout/2026-02-04/S01", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "No existe esa sesion planificada.")
}

func TestHandler_HandleFlushWorkout(t *testing.T) {
	handler, repo := newPlanTestHandler()
	repo.Sessions[workoutSessionKey{"2026-02-04", "S01"}] = WorkoutSession{
		LogDate: "2026-02-04", PlanSessionID: "S01",
		Exercises: []WorkoutExercise{{ExerciseOrder: 1}, {ExerciseOrder: 2}},
	}

	req := httptest.NewRequest("DELETE", "/plan/workout", nil)
	rr := httptest.NewRecorder()
	handler.HandleFlushWorkout(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		DeletedSessions  int `json:"deleted_sessions"`
		DeletedExercises int `json:"deleted_exercises"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.DeletedSessions)
	assert.Equal(t, 2, resp.DeletedExercises)
	assert.Empty(t, repo.Sessions)
}
