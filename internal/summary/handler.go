package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ibaifernandez/gymtracker/internal/checkin"
	"github.com/ibaifernandez/gymtracker/internal/plan"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/internal/workout"
	"github.com/ibaifernandez/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

type summaryFetcher interface {
	Fetch(ctx context.Context, dateFrom, dateTo string, rollingDays int) (*Summary, error)
}

type checkinLister interface {
	ListWindow(ctx context.Context, days int) ([]checkin.CheckIn, error)
}

type workoutLister interface {
	ListWindow(ctx context.Context, days int) ([]workout.Session, error)
}

type planDayReader interface {
	Day(ctx context.Context, logDate string, adherenceDays int) (*plan.Day, error)
}

// Handler serves the combined dashboard state: the metric summary plus
// the recent check-in and workout windows and today's plan.
type Handler struct {
	engine   summaryFetcher
	checkins checkinLister
	workouts workoutLister
	plans    planDayReader
}

func NewHandler(engine summaryFetcher, checkins checkinLister, workouts workoutLister, plans planDayReader) *Handler {
	return &Handler{
		engine:   engine,
		checkins: checkins,
		workouts: workouts,
		plans:    plans,
	}
}

type stateResponse struct {
	Summary   *Summary          `json:"summary"`
	Diet      []checkin.CheckIn `json:"diet"`
	Workout   []workout.Session `json:"workout"`
	PlanToday *plan.Day         `json:"plan_today"`
}

func (handler *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.summary.state")
	defer span.End()

	query := r.URL.Query()
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil {
		limit = 0 // ListWindow falls back to its default
	}
	dateFrom := strings.TrimSpace(query.Get("date_from"))
	dateTo := strings.TrimSpace(query.Get("date_to"))
	summaryDays, _ := strconv.Atoi(query.Get("summary_days"))
	summaryDays = NormalizeSummaryDays(summaryDays)

	summary, err := handler.engine.Fetch(ctx, dateFrom, dateTo, summaryDays)
	if err != nil {
		log.Errorf("state, fetch summary: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	diet, err := handler.checkins.ListWindow(ctx, limit)
	if err != nil {
		log.Errorf("state, list check-ins: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	workouts, err := handler.workouts.ListWindow(ctx, limit)
	if err != nil {
		log.Errorf("state, list workouts: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	planToday, err := handler.plans.Day(ctx, "", 0)
	if err != nil {
		log.Errorf("state, plan today: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	if diet == nil {
		diet = []checkin.CheckIn{}
	}
	if workouts == nil {
		workouts = []workout.Session{}
	}

	resp, err := json.Marshal(stateResponse{
		Summary:   summary,
		Diet:      diet,
		Workout:   workouts,
		PlanToday: planToday,
	})
	if err != nil {
		log.Errorf("marshal state: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.summary.get")
	defer span.End()

	query := r.URL.Query()
	summaryDays, _ := strconv.Atoi(query.Get("summary_days"))
	summary, err := handler.engine.Fetch(
		ctx,
		strings.TrimSpace(query.Get("date_from")),
		strings.TrimSpace(query.Get("date_to")),
		NormalizeSummaryDays(summaryDays),
	)
	if err != nil {
		log.Errorf("fetch summary: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(struct {
		OK bool `json:"ok"`
		*Summary
	}{true, summary})
	if err != nil {
		log.Errorf("marshal summary: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
