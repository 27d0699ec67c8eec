package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"
)

// adherenceWindowChoices are the history window lengths the UI offers.
var adherenceWindowChoices = map[int]bool{7: true, 15: true, 30: true}

const defaultAdherenceWindowDays = 15

// NormalizeAdherenceDays snaps a requested history window onto one of
// the supported lengths.
func NormalizeAdherenceDays(days int) int {
	if adherenceWindowChoices[days] {
		return days
	}
	return defaultAdherenceWindowDays
}

type dayRepo interface {
	GetDietDay(ctx context.Context, logDate string) (*DietDay, error)
	ListWorkoutDay(ctx context.Context, logDate string) ([]WorkoutSession, error)
	GetAdherence(ctx context.Context, logDate string) (*Adherence, error)
	ListAdherenceRange(ctx context.Context, from, to string) ([]Adherence, error)
	UpsertAdherence(ctx context.Context, a Adherence) error
	DeleteAdherence(ctx context.Context, logDate string) error
}

type checkinReader interface {
	Exists(ctx context.Context, logDate string) (bool, error)
}

type workoutCounter interface {
	CountForDate(ctx context.Context, logDate string) (int, error)
}

// Service assembles the planned-vs-actual day view: the plan rows, what
// was actually logged that date, and the adherence rating with its
// recent history.
type Service struct {
	repo     dayRepo
	checkins checkinReader
	workouts workoutCounter
	now      func() time.Time
}

func NewService(repo dayRepo, checkins checkinReader, workouts workoutCounter) *Service {
	return &Service{
		repo:     repo,
		checkins: checkins,
		workouts: workouts,
		now:      time.Now,
	}
}

type Actual struct {
	DietLogged            bool `json:"diet_logged"`
	WorkoutSessionsLogged int  `json:"workout_sessions_logged"`
}

type AdherenceView struct {
	DietScore    *float64 `json:"diet_score"`
	WorkoutScore *float64 `json:"workout_score"`
	TotalScore   *float64 `json:"total_score"`
	Notes        string   `json:"notes"`
	UpdatedAt    string   `json:"updated_at"`
	DietLabel    string   `json:"diet_label"`
	WorkoutLabel string   `json:"workout_label"`
}

type Coverage struct {
	HasDietPlan    bool `json:"has_diet_plan"`
	HasWorkoutPlan bool `json:"has_workout_plan"`
}

type HistoryItem struct {
	LogDate      string   `json:"log_date"`
	DietScore    *float64 `json:"diet_score"`
	WorkoutScore *float64 `json:"workout_score"`
	TotalScore   *float64 `json:"total_score"`
	Notes        string   `json:"notes"`
	UpdatedAt    string   `json:"updated_at"`
}

type History struct {
	WindowDays int           `json:"window_days"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	TotalDays  int           `json:"total_days"`
	LoggedDays int           `json:"logged_days"`
	ScoredDays int           `json:"scored_days"`
	AvgTotal   *float64      `json:"avg_total"`
	Items      []HistoryItem `json:"items"`
}

type WeekSummary struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	TotalDays  int      `json:"total_days"`
	LoggedDays int      `json:"logged_days"`
	ScoredDays int      `json:"scored_days"`
	AvgTotal   *float64 `json:"avg_total"`
	AvgDiet    *float64 `json:"avg_diet"`
	AvgWorkout *float64 `json:"avg_workout"`
}

type Day struct {
	LogDate          string           `json:"log_date"`
	Diet             *DietDay         `json:"diet"`
	WorkoutSessions  []WorkoutSession `json:"workout_sessions"`
	Actual           Actual           `json:"actual"`
	Adherence        AdherenceView    `json:"adherence"`
	AdherenceHistory History          `json:"adherence_history"`
	AdherenceWeek    WeekSummary      `json:"adherence_week"`
	Coverage         Coverage         `json:"coverage"`
}

// Day builds the full payload of one date. An invalid date falls back
// to today so the view always renders something.
func (s *Service) Day(ctx context.Context, logDate string, adherenceDays int) (_ *Day, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "plan.day")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if !pkg.ValidISODate(logDate) {
		logDate = pkg.FormatISODate(s.now())
	}
	adherenceDays = NormalizeAdherenceDays(adherenceDays)

	diet, err := s.repo.GetDietDay(ctx, logDate)
	if err != nil && !errors.Is(err, ErrDietDayNotFound) {
		return nil, fmt.Errorf("get diet day: %w", err)
	}

	sessions, err := s.repo.ListWorkoutDay(ctx, logDate)
	if err != nil {
		return nil, fmt.Errorf("list workout day: %w", err)
	}

	adherence, err := s.repo.GetAdherence(ctx, logDate)
	if err != nil && !errors.Is(err, ErrAdherenceNotFound) {
		return nil, fmt.Errorf("get adherence: %w", err)
	}

	dietLogged, err := s.checkins.Exists(ctx, logDate)
	if err != nil {
		return nil, fmt.Errorf("check-in exists: %w", err)
	}
	workoutCount, err := s.workouts.CountForDate(ctx, logDate)
	if err != nil {
		return nil, fmt.Errorf("count workout sessions: %w", err)
	}

	history, err := s.history(ctx, logDate, adherenceDays)
	if err != nil {
		return nil, err
	}
	week, err := s.weekSummary(ctx, logDate)
	if err != nil {
		return nil, err
	}

	coverage := Coverage{
		HasDietPlan:    diet != nil,
		HasWorkoutPlan: len(sessions) > 0,
	}

	view := AdherenceView{
		DietLabel:    ScoreLabel(nil, coverage.HasDietPlan),
		WorkoutLabel: ScoreLabel(nil, coverage.HasWorkoutPlan),
	}
	if adherence != nil {
		view.DietScore = adherence.DietScore
		view.WorkoutScore = adherence.WorkoutScore
		view.TotalScore = TotalScore(adherence.DietScore, adherence.WorkoutScore)
		view.Notes = adherence.Notes
		view.UpdatedAt = adherence.UpdatedAt.Format(time.RFC3339)
		view.DietLabel = ScoreLabel(adherence.DietScore, coverage.HasDietPlan)
		view.WorkoutLabel = ScoreLabel(adherence.WorkoutScore, coverage.HasWorkoutPlan)
	}

	return &Day{
		LogDate:         logDate,
		Diet:            diet,
		WorkoutSessions: sessions,
		Actual: Actual{
			DietLogged:            dietLogged,
			WorkoutSessionsLogged: workoutCount,
		},
		Adherence:        view,
		AdherenceHistory: *history,
		AdherenceWeek:    *week,
		Coverage:         coverage,
	}, nil
}

// SaveAdherence stores (or, when every field is empty, clears) the
// rating of a date and returns the refreshed day payload.
func (s *Service) SaveAdherence(ctx context.Context, a Adherence) (_ *Day, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "plan.saveadherence")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if a.DietScore == nil && a.WorkoutScore == nil && a.Notes == "" {
		if err := s.repo.DeleteAdherence(ctx, a.LogDate); err != nil {
			return nil, fmt.Errorf("delete adherence: %w", err)
		}
	} else {
		a.UpdatedAt = s.now()
		if err := s.repo.UpsertAdherence(ctx, a); err != nil {
			return nil, fmt.Errorf("upsert adherence: %w", err)
		}
	}

	return s.Day(ctx, a.LogDate, defaultAdherenceWindowDays)
}

// history covers the window of the given length ending at the anchor
// date, newest first.
func (s *Service) history(ctx context.Context, anchor string, windowDays int) (*History, error) {
	from := pkg.AddDaysISO(anchor, -(windowDays - 1))

	rows, err := s.repo.ListAdherenceRange(ctx, from, anchor)
	if err != nil {
		return nil, fmt.Errorf("list adherence range: %w", err)
	}

	items := make([]HistoryItem, 0, len(rows))
	totalValues := make([]float64, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		total := TotalScore(row.DietScore, row.WorkoutScore)
		if total != nil {
			totalValues = append(totalValues, *total)
		}
		items = append(items, HistoryItem{
			LogDate:      row.LogDate,
			DietScore:    row.DietScore,
			WorkoutScore: row.WorkoutScore,
			TotalScore:   total,
			Notes:        row.Notes,
			UpdatedAt:    row.UpdatedAt.Format(time.RFC3339),
		})
	}

	return &History{
		WindowDays: windowDays,
		From:       from,
		To:         anchor,
		TotalDays:  windowDays,
		LoggedDays: len(items),
		ScoredDays: len(totalValues),
		AvgTotal:   meanOrNil(totalValues),
		Items:      items,
	}, nil
}

// weekSummary averages the scores of the Monday..Sunday week around the
// anchor date.
func (s *Service) weekSummary(ctx context.Context, anchor string) (*WeekSummary, error) {
	anchorDay, err := time.Parse(pkg.ISODateLayout, anchor)
	if err != nil {
		return nil, fmt.Errorf("parse anchor date: %w", err)
	}
	weekStart := anchorDay.AddDate(0, 0, -((int(anchorDay.Weekday()) + 6) % 7))
	weekEnd := weekStart.AddDate(0, 0, 6)
	from, to := pkg.FormatISODate(weekStart), pkg.FormatISODate(weekEnd)

	rows, err := s.repo.ListAdherenceRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list adherence range: %w", err)
	}

	var totalValues, dietValues, workoutValues []float64
	for _, row := range rows {
		if total := TotalScore(row.DietScore, row.WorkoutScore); total != nil {
			totalValues = append(totalValues, *total)
		}
		if row.DietScore != nil {
			dietValues = append(dietValues, *row.DietScore)
		}
		if row.WorkoutScore != nil {
			workoutValues = append(workoutValues, *row.WorkoutScore)
		}
	}

	return &WeekSummary{
		From:       from,
		To:         to,
		TotalDays:  7,
		LoggedDays: len(rows),
		ScoredDays: len(totalValues),
		AvgTotal:   meanOrNil(totalValues),
		AvgDiet:    meanOrNil(dietValues),
		AvgWorkout: meanOrNil(workoutValues),
	}, nil
}

func meanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	return &mean
}
