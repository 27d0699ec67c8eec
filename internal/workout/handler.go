package workout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ibaifernandez/gymtracker/internal/importcsv"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type workoutRepo interface {
	Save(ctx context.Context, session Session, mode string) (int, bool, error)
	Delete(ctx context.Context, sessionID int) (string, error)
}

type Handler struct {
	repo workoutRepo
}

func NewHandler(repo workoutRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

type exercisePayload struct {
	ExerciseName string `json:"exercise_name"`
	Name         string `json:"name"`
	WeightKg     any    `json:"weight_kg"`
	Reps         any    `json:"reps"`
	RPE          any    `json:"rpe"`
	TopsetText   string `json:"topset_text"`
	Topset       string `json:"topset"`
}

type saveRequest struct {
	LogDate       string            `json:"log_date"`
	EntryMode     string            `json:"entry_mode"`
	SessionID     int               `json:"session_id"`
	SessionDoneYN string            `json:"session_done_yn"`
	SessionType   string            `json:"session_type"`
	ClassDone     string            `json:"class_done"`
	ClassActivity string            `json:"class_activity"`
	RPESession    any               `json:"rpe_session"`
	Notes         string            `json:"notes"`
	Exercises     []exercisePayload `json:"exercises"`
}

func (handler *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.save")
	defer span.End()

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("save workout, unmarshal json params: %s", err)
		pkg.WriteAPIError(w, "cuerpo JSON invalido", http.StatusBadRequest)
		return
	}

	req.LogDate = strings.TrimSpace(req.LogDate)
	if !pkg.ValidISODate(req.LogDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}
	mode := NormalizeEntryMode(strings.ToLower(strings.TrimSpace(req.EntryMode)))
	if mode == EntryModeEdit && req.SessionID == 0 {
		pkg.WriteAPIError(w, "Para editar un entreno debes indicar session_id.", http.StatusBadRequest)
		return
	}

	session := Session{
		SessionID:   req.SessionID,
		LogDate:     req.LogDate,
		SessionType: NormalizeSessionType(req.SessionType),
		ClassDone:   strings.TrimSpace(firstNonEmpty(req.ClassDone, req.ClassActivity)),
		Notes:       strings.TrimSpace(req.Notes),
	}
	if yn := importcsv.YNOrEmpty(req.SessionDoneYN); yn != "" {
		session.SessionDoneYN = &yn
	}
	session.RPESession = intValue(req.RPESession)
	if session.SessionType != SessionTypeClase {
		session.Exercises = parseExercisesPayload(req.Exercises)
	}

	sessionID, created, err := handler.repo.Save(ctx, session, mode)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		pkg.WriteAPIError(w, "Sesion no encontrada.", http.StatusNotFound)
		return
	case errors.Is(err, ErrOrderCollision):
		pkg.WriteAPIError(w, "No se pudo crear la sesion por colision concurrente. Intenta de nuevo.", http.StatusConflict)
		return
	case err != nil:
		log.Errorf("save workout [%s]: %s", req.LogDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	savedMode := EntryModeEdit
	if created {
		savedMode = EntryModeCreate
	}
	resp, _ := json.Marshal(struct {
		OK        bool   `json:"ok"`
		LogDate   string `json:"log_date"`
		SessionID int    `json:"session_id"`
		EntryMode string `json:"entry_mode"`
	}{true, req.LogDate, sessionID, savedMode})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.delete")
	defer span.End()

	sessionID, err := strconv.Atoi(mux.Vars(r)["sessionID"])
	if err != nil || sessionID <= 0 {
		pkg.WriteAPIError(w, "session_id invalido", http.StatusBadRequest)
		return
	}

	logDate, err := handler.repo.Delete(ctx, sessionID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		pkg.WriteAPIError(w, "Sesion de entreno no encontrada.", http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("delete workout session [%d]: %s", sessionID, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK        bool   `json:"ok"`
		SessionID int    `json:"session_id"`
		LogDate   string `json:"log_date"`
	}{true, sessionID, logDate})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

// parseExercisesPayload keeps entries that carry a name or any metric;
// a nameless entry with metrics gets a positional placeholder name.
func parseExercisesPayload(payload []exercisePayload) []Exercise {
	parsed := make([]Exercise, 0, len(payload))
	for _, item := range payload {
		name := NormalizeExerciseName(firstNonEmpty(item.ExerciseName, item.Name))
		weight := floatValue(item.WeightKg)
		reps := intValue(item.Reps)
		rpe := floatValue(item.RPE)
		topset := strings.TrimSpace(firstNonEmpty(item.TopsetText, item.Topset))
		if topset == "" {
			topset = BuildTopsetText(weight, reps, rpe)
		}

		hasMetrics := weight != nil || reps != nil || rpe != nil || topset != ""
		if name == "" && !hasMetrics {
			continue
		}
		if name == "" {
			name = "Ejercicio " + strconv.Itoa(len(parsed)+1)
		}
		parsed = append(parsed, Exercise{
			ExerciseName: name,
			WeightKg:     weight,
			Reps:         reps,
			RPE:          rpe,
			TopsetText:   topset,
		})
	}
	return parsed
}

// floatValue reads a possibly-stringly JSON number, nil when absent or
// unparseable.
func floatValue(v any) *float64 {
	switch raw := v.(type) {
	case float64:
		return &raw
	case string:
		trimmed := strings.Replace(strings.TrimSpace(raw), ",", ".", 1)
		if trimmed == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func intValue(v any) *int {
	f := floatValue(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	if float64(n) != *f {
		return nil
	}
	return &n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
