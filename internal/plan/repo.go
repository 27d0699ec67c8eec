package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrDietDayNotFound     = errors.New("plan diet day not found")
	ErrPlanSessionNotFound = errors.New("planned session not found")
	ErrAdherenceNotFound   = errors.New("adherence not found")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// UpsertDietDays writes an imported diet batch in one transaction: either
// the whole file lands or none of it does.
func (r *Repo) UpsertDietDays(ctx context.Context, days []DietDay) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.upsertdietdays")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("days", len(days)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	now := time.Now()
	for _, day := range days {
		_, err = tx.Exec(
			ctx,
			`INSERT INTO plan_day_diet
				(log_date, calories_target_kcal, protein_target_g, carbs_target_g, fat_target_g,
				 breakfast, snack_1, lunch, snack_2, dinner, notes, source_tag, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
			ON CONFLICT (log_date) DO UPDATE SET
				calories_target_kcal = excluded.calories_target_kcal,
				protein_target_g = excluded.protein_target_g,
				carbs_target_g = excluded.carbs_target_g,
				fat_target_g = excluded.fat_target_g,
				breakfast = excluded.breakfast,
				snack_1 = excluded.snack_1,
				lunch = excluded.lunch,
				snack_2 = excluded.snack_2,
				dinner = excluded.dinner,
				notes = excluded.notes,
				source_tag = excluded.source_tag,
				updated_at = excluded.updated_at;`,
			day.LogDate, day.CaloriesTargetKcal, day.ProteinTargetG, day.CarbsTargetG, day.FatTargetG,
			day.Breakfast, day.Snack1, day.Lunch, day.Snack2, day.Dinner, day.Notes, day.SourceTag, now,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetDietDay(ctx context.Context, logDate string) (_ *DietDay, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.getdietday")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, calories_target_kcal, protein_target_g, carbs_target_g, fat_target_g,
				breakfast, snack_1, lunch, snack_2, dinner, notes, source_tag, updated_at
			FROM plan_day_diet WHERE log_date = $1;`,
		logDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days, err := rows2dietDays(rows)
	if err != nil {
		return nil, err
	}
	if len(days) != 1 {
		return nil, ErrDietDayNotFound
	}
	return &days[0], nil
}

// ListDietRange returns planned diet days with log_date in [from, to]
// inclusive, oldest first.
func (r *Repo) ListDietRange(ctx context.Context, from, to string) (_ []DietDay, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.listdietrange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, calories_target_kcal, protein_target_g, carbs_target_g, fat_target_g,
				breakfast, snack_1, lunch, snack_2, dinner, notes, source_tag, updated_at
			FROM plan_day_diet
			WHERE log_date BETWEEN $1 AND $2
			ORDER BY log_date ASC;`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2dietDays(rows)
}

func (r *Repo) DeleteDietDay(ctx context.Context, logDate string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.deletedietday")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	tag, err := r.db.Exec(ctx, `DELETE FROM plan_day_diet WHERE log_date = $1;`, logDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDietDayNotFound
	}
	return nil
}

// FlushDiet removes the whole diet plan and returns how many days it held.
func (r *Repo) FlushDiet(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.flushdiet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM plan_day_diet;`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ReplaceWorkoutDays swaps in the imported sessions: every date present
// in the batch is wiped first, then rebuilt, all in one transaction.
// Exercises go away with their session through the FK cascade.
func (r *Repo) ReplaceWorkoutDays(ctx context.Context, sessions []WorkoutSession) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.replaceworkoutdays")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("sessions", len(sessions)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	seen := make(map[string]bool, len(sessions))
	dates := make([]string, 0, len(sessions))
	for _, session := range sessions {
		if !seen[session.LogDate] {
			seen[session.LogDate] = true
			dates = append(dates, session.LogDate)
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM plan_day_workout_session WHERE log_date = ANY($1);`, dates)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, session := range sessions {
		_, err = tx.Exec(
			ctx,
			`INSERT INTO plan_day_workout_session
				(log_date, plan_session_id, session_order, session_type, warmup, class_sessions,
				 cardio, mobility_cooldown, additional_exercises, notes, source_tag, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12);`,
			session.LogDate, session.PlanSessionID, session.SessionOrder, session.SessionType,
			session.Warmup, session.ClassSessions, session.Cardio, session.MobilityCooldown,
			session.AdditionalExercises, session.Notes, session.SourceTag, now,
		)
		if err != nil {
			return err
		}

		for _, exercise := range session.Exercises {
			_, err = tx.Exec(
				ctx,
				`INSERT INTO plan_day_workout_exercise
					(log_date, plan_session_id, exercise_order, exercise_name,
					 target_sets, target_reps_min, target_reps_max, target_weight_kg, target_rpe,
					 intensity_target, progression_weight_rule, progression_reps_rule, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13);`,
				session.LogDate, session.PlanSessionID, exercise.ExerciseOrder, exercise.ExerciseName,
				exercise.TargetSets, exercise.TargetRepsMin, exercise.TargetRepsMax,
				exercise.TargetWeightKg, exercise.TargetRPE,
				exercise.IntensityTarget, exercise.ProgressionWeightRule, exercise.ProgressionRepsRule, now,
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// ListWorkoutDay returns the planned sessions of one date with their
// exercises, ordered by session ordinal.
func (r *Repo) ListWorkoutDay(ctx context.Context, logDate string) (_ []WorkoutSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.listworkoutday")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, plan_session_id, session_order, session_type, warmup, class_sessions,
				cardio, mobility_cooldown, additional_exercises, notes, source_tag
			FROM plan_day_workout_session
			WHERE log_date = $1
			ORDER BY session_order ASC, plan_session_id ASC;`,
		logDate,
	)
	if err != nil {
		return nil, err
	}

	sessions := make([]WorkoutSession, 0)
	for rows.Next() {
		var s WorkoutSession
		if err := rows.Scan(
			&s.LogDate, &s.PlanSessionID, &s.SessionOrder, &s.SessionType, &s.Warmup, &s.ClassSessions,
			&s.Cardio, &s.MobilityCooldown, &s.AdditionalExercises, &s.Notes, &s.SourceTag,
		); err != nil {
			rows.Close()
			return nil, err
		}
		s.Exercises = make([]WorkoutExercise, 0)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	exRows, err := r.db.Query(
		ctx,
		`SELECT plan_session_id, exercise_order, exercise_name,
				target_sets, target_reps_min, target_reps_max, target_weight_kg, target_rpe,
				intensity_target, progression_weight_rule, progression_reps_rule
			FROM plan_day_workout_exercise
			WHERE log_date = $1
			ORDER BY plan_session_id ASC, exercise_order ASC;`,
		logDate,
	)
	if err != nil {
		return nil, err
	}
	defer exRows.Close()

	bySessionID := make(map[string]int, len(sessions))
	for i, s := range sessions {
		bySessionID[s.PlanSessionID] = i
	}
	for exRows.Next() {
		var sessionID string
		var e WorkoutExercise
		if err := exRows.Scan(
			&sessionID, &e.ExerciseOrder, &e.ExerciseName,
			&e.TargetSets, &e.TargetRepsMin, &e.TargetRepsMax, &e.TargetWeightKg, &e.TargetRPE,
			&e.IntensityTarget, &e.ProgressionWeightRule, &e.ProgressionRepsRule,
		); err != nil {
			return nil, err
		}
		if i, ok := bySessionID[sessionID]; ok {
			sessions[i].Exercises = append(sessions[i].Exercises, e)
		}
	}
	return sessions, exRows.Err()
}

// WorkoutDates returns the set of dates that have at least one planned
// session in [from, to].
func (r *Repo) WorkoutDates(ctx context.Context, from, to string) (_ map[string]bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.workoutdates")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT DISTINCT log_date FROM plan_day_workout_session WHERE log_date BETWEEN $1 AND $2;`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// DeleteWorkoutSession removes one planned session and reports how many
// session and exercise rows went with it.
func (r *Repo) DeleteWorkoutSession(ctx context.Context, logDate, planSessionID string) (deletedSessions, deletedExercises int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.deleteworkoutsession")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))
	span.SetAttributes(attribute.String("plan_session_id", planSessionID))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM plan_day_workout_exercise WHERE log_date = $1 AND plan_session_id = $2;`,
		logDate, planSessionID,
	).Scan(&deletedExercises)
	if err != nil {
		return 0, 0, err
	}

	tag, err := tx.Exec(
		ctx,
		`DELETE FROM plan_day_workout_session WHERE log_date = $1 AND plan_session_id = $2;`,
		logDate, planSessionID,
	)
	if err != nil {
		return 0, 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, 0, ErrPlanSessionNotFound
	}
	deletedSessions = int(tag.RowsAffected())
	return deletedSessions, deletedExercises, nil
}

// FlushWorkout removes the whole workout plan and reports the session
// and exercise counts it held.
func (r *Repo) FlushWorkout(ctx context.Context) (deletedSessions, deletedExercises int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.flushworkout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM plan_day_workout_exercise;`).Scan(&deletedExercises)
	if err != nil {
		return 0, 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM plan_day_workout_session;`)
	if err != nil {
		return 0, 0, err
	}
	deletedSessions = int(tag.RowsAffected())
	return deletedSessions, deletedExercises, nil
}

// UpsertAdherence inserts or overwrites the adherence rating of one date.
func (r *Repo) UpsertAdherence(ctx context.Context, a Adherence) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.upsertadherence")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", a.LogDate))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO plan_day_adherence (log_date, diet_score, workout_score, notes, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (log_date) DO UPDATE SET
			diet_score = excluded.diet_score,
			workout_score = excluded.workout_score,
			notes = excluded.notes,
			updated_at = excluded.updated_at;`,
		a.LogDate, a.DietScore, a.WorkoutScore, a.Notes, a.UpdatedAt,
	)
	return err
}

// DeleteAdherence clears the rating of a date. Deleting an absent rating
// is not an error: the caller only cares that nothing is stored after.
func (r *Repo) DeleteAdherence(ctx context.Context, logDate string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.deleteadherence")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	_, err = r.db.Exec(ctx, `DELETE FROM plan_day_adherence WHERE log_date = $1;`, logDate)
	return err
}

func (r *Repo) GetAdherence(ctx context.Context, logDate string) (_ *Adherence, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.getadherence")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, diet_score, workout_score, notes, updated_at
			FROM plan_day_adherence WHERE log_date = $1;`,
		logDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adherences, err := rows2adherences(rows)
	if err != nil {
		return nil, err
	}
	if len(adherences) != 1 {
		return nil, ErrAdherenceNotFound
	}
	return &adherences[0], nil
}

// ListAdherenceRange returns adherence rows with log_date in [from, to]
// inclusive, oldest first.
func (r *Repo) ListAdherenceRange(ctx context.Context, from, to string) (_ []Adherence, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plan.listadherencerange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, diet_score, workout_score, notes, updated_at
			FROM plan_day_adherence
			WHERE log_date BETWEEN $1 AND $2
			ORDER BY log_date ASC;`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2adherences(rows)
}

func rows2dietDays(rows pgx.Rows) ([]DietDay, error) {
	days := make([]DietDay, 0)
	for rows.Next() {
		var d DietDay
		var updatedAt time.Time
		if err := rows.Scan(
			&d.LogDate, &d.CaloriesTargetKcal, &d.ProteinTargetG, &d.CarbsTargetG, &d.FatTargetG,
			&d.Breakfast, &d.Snack1, &d.Lunch, &d.Snack2, &d.Dinner, &d.Notes, &d.SourceTag, &updatedAt,
		); err != nil {
			return nil, err
		}
		d.UpdatedAt = updatedAt.Format(time.RFC3339)
		days = append(days, d)
	}
	return days, rows.Err()
}

func rows2adherences(rows pgx.Rows) ([]Adherence, error) {
	adherences := make([]Adherence, 0)
	for rows.Next() {
		var a Adherence
		if err := rows.Scan(&a.LogDate, &a.DietScore, &a.WorkoutScore, &a.Notes, &a.UpdatedAt); err != nil {
			return nil, err
		}
		adherences = append(adherences, a)
	}
	return adherences, rows.Err()
}
