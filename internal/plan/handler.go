package plan

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/metrics"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxImportFileSize = 8 << 20

type planImporter interface {
	ImportDiet(ctx context.Context, text, sourceTag string) (*DietImportResult, error)
	ImportWorkout(ctx context.Context, text, sourceTag string) (*WorkoutImportResult, error)
}

type planService interface {
	Day(ctx context.Context, logDate string, adherenceDays int) (*Day, error)
	SaveAdherence(ctx context.Context, a Adherence) (*Day, error)
}

type planDeleter interface {
	DeleteDietDay(ctx context.Context, logDate string) error
	FlushDiet(ctx context.Context) (int, error)
	DeleteWorkoutSession(ctx context.Context, logDate, planSessionID string) (int, int, error)
	FlushWorkout(ctx context.Context) (int, int, error)
}

type Handler struct {
	importer       planImporter
	service        planService
	repo           planDeleter
	metricsManager *metrics.Manager
}

func NewHandler(importer planImporter, service planService, repo planDeleter, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		importer:       importer,
		service:        service,
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) HandleImportDiet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.import.diet")
	defer span.End()

	text, ok := pkg.ReadCSVUpload(w, r, maxImportFileSize)
	if !ok {
		return
	}

	result, err := handler.importer.ImportDiet(ctx, text, r.FormValue("source_tag"))
	if err != nil {
		pkg.WriteAPIError(w, err.Error(), http.StatusBadRequest)
		return
	}

	handler.metricsManager.CounterPlanRowsImported.Add(float64(result.Summary.Imported))
	handler.metricsManager.CounterImportRowsRejected.Add(float64(result.Summary.Invalid))

	resp, err := json.Marshal(struct {
		OK              bool              `json:"ok"`
		Summary         DietImportSummary `json:"summary"`
		Results         []DietRowResult   `json:"results"`
		AcceptedColumns []string          `json:"accepted_columns"`
	}{true, result.Summary, result.Results, DietTemplateColumns})
	if err != nil {
		log.Errorf("marshal diet plan import: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleImportWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.import.workout")
	defer span.End()

	text, ok := pkg.ReadCSVUpload(w, r, maxImportFileSize)
	if !ok {
		return
	}

	result, err := handler.importer.ImportWorkout(ctx, text, r.FormValue("source_tag"))
	if err != nil {
		pkg.WriteAPIError(w, err.Error(), http.StatusBadRequest)
		return
	}

	handler.metricsManager.CounterPlanRowsImported.Add(float64(result.Summary.Imported))
	handler.metricsManager.CounterImportRowsRejected.Add(float64(result.Summary.Invalid))

	resp, err := json.Marshal(struct {
		OK              bool                 `json:"ok"`
		Summary         WorkoutImportSummary `json:"summary"`
		Results         []WorkoutRowResult   `json:"results"`
		AcceptedColumns []string             `json:"accepted_columns"`
	}{true, result.Summary, result.Results, WorkoutTemplateColumns})
	if err != nil {
		log.Errorf("marshal workout plan import: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

type dayResponse struct {
	OK bool `json:"ok"`
	*Day
}

func (handler *Handler) HandleDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.day")
	defer span.End()

	logDate := strings.TrimSpace(r.URL.Query().Get("log_date"))
	if logDate != "" && !pkg.ValidISODate(logDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}
	adherenceDays, _ := strconv.Atoi(r.URL.Query().Get("adherence_days"))

	day, err := handler.service.Day(ctx, logDate, adherenceDays)
	if err != nil {
		log.Errorf("plan day [%s]: %s", logDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	handler.writeDay(w, day)
}

type adherenceRequest struct {
	LogDate      string `json:"log_date"`
	DietScore    any    `json:"diet_score"`
	WorkoutScore any    `json:"workout_score"`
	Notes        string `json:"notes"`
}

func (handler *Handler) HandleAdherenceUpsert(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.adherence.upsert")
	defer span.End()

	var req adherenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("upsert adherence, unmarshal json params: %s", err)
		pkg.WriteAPIError(w, "cuerpo JSON invalido", http.StatusBadRequest)
		return
	}

	req.LogDate = strings.TrimSpace(req.LogDate)
	if !pkg.ValidISODate(req.LogDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}

	dietScore, ok := parseScoreValue(req.DietScore)
	if !ok {
		pkg.WriteAPIError(w, "diet_score debe ser 1, 0.5 o 0.", http.StatusBadRequest)
		return
	}
	workoutScore, ok := parseScoreValue(req.WorkoutScore)
	if !ok {
		pkg.WriteAPIError(w, "workout_score debe ser 1, 0.5 o 0.", http.StatusBadRequest)
		return
	}

	day, err := handler.service.SaveAdherence(ctx, Adherence{
		LogDate:      req.LogDate,
		DietScore:    dietScore,
		WorkoutScore: workoutScore,
		Notes:        pkg.ClipText(req.Notes, 300),
	})
	if err != nil {
		log.Errorf("save adherence [%s]: %s", req.LogDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	handler.writeDay(w, day)
}

// parseScoreValue reads a score out of a JSON payload: absent or empty
// means "no score", anything else must land on 1, 0.5 or 0 after
// rounding to two decimals.
func parseScoreValue(v any) (*float64, bool) {
	var val float64
	switch raw := v.(type) {
	case nil:
		return nil, true
	case float64:
		val = raw
	case string:
		if strings.TrimSpace(raw) == "" {
			return nil, true
		}
		parsed, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(raw), ",", ".", 1), 64)
		if err != nil {
			return nil, false
		}
		val = parsed
	default:
		return nil, false
	}

	rounded := math.Round(val*100) / 100
	if !ValidScore(rounded) {
		return nil, false
	}
	return &rounded, true
}

func (handler *Handler) HandleDeleteDietDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.diet.delete")
	defer span.End()

	logDate := strings.TrimSpace(mux.Vars(r)["date"])
	if !pkg.ValidISODate(logDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}

	switch err := handler.repo.DeleteDietDay(ctx, logDate); {
	case errors.Is(err, ErrDietDayNotFound):
		pkg.WriteAPIError(w, "No existe dieta plan para esa fecha.", http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("delete plan diet day [%s]: %s", logDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK          bool   `json:"ok"`
		LogDate     string `json:"log_date"`
		DeletedRows int    `json:"deleted_rows"`
	}{true, logDate, 1})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleFlushDiet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.diet.flush")
	defer span.End()

	deleted, err := handler.repo.FlushDiet(ctx)
	if err != nil {
		log.Errorf("flush plan diet: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK          bool `json:"ok"`
		DeletedRows int  `json:"deleted_rows"`
	}{true, deleted})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleDeleteWorkoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.workout.delete")
	defer span.End()

	vars := mux.Vars(r)
	logDate := strings.TrimSpace(vars["date"])
	if !pkg.ValidISODate(logDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}
	sessionID := pkg.ClipText(vars["sessionID"], 48)
	if sessionID == "" {
		pkg.WriteAPIError(w, "plan_session_id invalido", http.StatusBadRequest)
		return
	}

	deletedSessions, deletedExercises, err := handler.repo.DeleteWorkoutSession(ctx, logDate, sessionID)
	switch {
	case errors.Is(err, ErrPlanSessionNotFound):
		pkg.WriteAPIError(w, "No existe esa sesion planificada.", http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("delete plan workout session [%s/%s]: %s", logDate, sessionID, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK               bool   `json:"ok"`
		LogDate          string `json:"log_date"`
		PlanSessionID    string `json:"plan_session_id"`
		DeletedSessions  int    `json:"deleted_sessions"`
		DeletedExercises int    `json:"deleted_exercises"`
	}{true, logDate, sessionID, deletedSessions, deletedExercises})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleFlushWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plan.workout.flush")
	defer span.End()

	deletedSessions, deletedExercises, err := handler.repo.FlushWorkout(ctx)
	if err != nil {
		log.Errorf("flush plan workout: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK               bool `json:"ok"`
		DeletedSessions  int  `json:"deleted_sessions"`
		DeletedExercises int  `json:"deleted_exercises"`
	}{true, deletedSessions, deletedExercises})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) writeDay(w http.ResponseWriter, day *Day) {
	resp, err := json.Marshal(dayResponse{OK: true, Day: day})
	if err != nil {
		log.Errorf("marshal plan day: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
