package workout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"
)

type listRepo interface {
	ListAll(ctx context.Context) ([]Session, error)
	MaxLogDate(ctx context.Context) (string, error)
}

// Service derives the read view of the workout log: per-exercise
// progress deltas need the full history, so they live here rather than
// in SQL.
type Service struct {
	repo listRepo
	now  func() time.Time
}

func NewService(repo listRepo) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type previousLift struct {
	weight *float64
	reps   *int
}

// ListWindow returns the sessions of a calendar window newest-first,
// with deltas against the previous chronological instance of each
// exercise name (case-insensitive) and the one-line exercises text.
func (s *Service) ListWindow(ctx context.Context, days int) (_ []Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workout.listwindow")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	days = pkg.NormalizeWindowDays(days, 15, 1, 180)
	maxDate, err := s.repo.MaxLogDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("max log date: %w", err)
	}
	from, to := pkg.CalendarWindow(maxDate, days, s.now())

	sessions, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	// walk full history oldest-first so deltas compare against lifts
	// before the window too
	prevByExercise := make(map[string]previousLift)
	for i := range sessions {
		for j := range sessions[i].Exercises {
			exercise := &sessions[i].Exercises[j]

			name := exercise.ExerciseName
			if name == "" {
				name = "Ejercicio"
				exercise.ExerciseName = name
			}
			key := strings.ToLower(name)

			prev, seen := prevByExercise[key]
			if seen {
				if exercise.WeightKg != nil && prev.weight != nil {
					delta := *exercise.WeightKg - *prev.weight
					exercise.DeltaWeight = &delta
				}
				if exercise.Reps != nil && prev.reps != nil {
					delta := *exercise.Reps - *prev.reps
					exercise.DeltaReps = &delta
				}
			}
			if exercise.WeightKg != nil || exercise.Reps != nil {
				prevByExercise[key] = previousLift{weight: exercise.WeightKg, reps: exercise.Reps}
			}

			if exercise.TopsetText == "" {
				exercise.TopsetText = BuildTopsetText(exercise.WeightKg, exercise.Reps, exercise.RPE)
			}
		}
	}

	windowed := make([]Session, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		session := sessions[i]
		if session.LogDate < from || session.LogDate > to {
			continue
		}
		session.ExercisesText = exercisesText(session.Exercises)
		windowed = append(windowed, session)
	}
	return windowed, nil
}

func exercisesText(exercises []Exercise) string {
	chunks := make([]string, 0, len(exercises))
	for _, exercise := range exercises {
		text := exercise.TopsetText
		if text == "" {
			text = "—"
		}
		chunks = append(chunks, fmt.Sprintf("%s: %s", exercise.ExerciseName, text))
	}
	return strings.Join(chunks, " | ")
}
