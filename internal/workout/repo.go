package workout

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrSessionNotFound = errors.New("workout session not found")
	// ErrOrderCollision surfaces when concurrent inserts keep racing for
	// the same (log_date, session_order) slot.
	ErrOrderCollision = errors.New("session order collision")
)

// create retries when two inserts race for the same ordinal
const createRetries = 20

const (
	EntryModeCreate = "create"
	EntryModeEdit   = "edit"
	EntryModeUpsert = "upsert"
)

// NormalizeEntryMode maps any input onto create|edit|upsert.
func NormalizeEntryMode(v string) string {
	switch v {
	case EntryModeCreate, EntryModeEdit, EntryModeUpsert:
		return v
	default:
		return EntryModeUpsert
	}
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Save stores a session according to the entry mode: edit targets an
// existing session_id, upsert reuses the session of the date (or the
// given id) when one exists, anything else creates a new session with
// the next free ordinal of the date. Exercises are replaced wholesale.
func (r *Repo) Save(ctx context.Context, session Session, mode string) (sessionID int, created bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", session.LogDate))
	span.SetAttributes(attribute.String("mode", mode))

	targetID, err := r.resolveTarget(ctx, session, mode)
	if err != nil {
		return 0, false, err
	}

	if targetID == 0 {
		sessionID, err = r.createSession(ctx, session)
		return sessionID, true, err
	}
	return targetID, false, r.updateSession(ctx, targetID, session)
}

func (r *Repo) resolveTarget(ctx context.Context, session Session, mode string) (int, error) {
	switch mode {
	case EntryModeEdit:
		exists, err := r.sessionExists(ctx, session.SessionID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrSessionNotFound
		}
		return session.SessionID, nil

	case EntryModeUpsert:
		if session.SessionID != 0 {
			exists, err := r.sessionExists(ctx, session.SessionID)
			if err != nil {
				return 0, err
			}
			if exists {
				return session.SessionID, nil
			}
		}
		var id int
		err := r.db.QueryRow(
			ctx,
			`SELECT session_id FROM workout_session WHERE log_date = $1 ORDER BY session_order ASC LIMIT 1;`,
			session.LogDate,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return id, err

	default:
		return 0, nil
	}
}

func (r *Repo) sessionExists(ctx context.Context, sessionID int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM workout_session WHERE session_id = $1);`,
		sessionID,
	).Scan(&exists)
	return exists, err
}

// createSession recomputes the next ordinal and retries when a
// concurrent insert grabs it first.
func (r *Repo) createSession(ctx context.Context, session Session) (int, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		id, err := r.insertSessionOnce(ctx, session)
		if err == nil {
			return id, nil
		}
		if pkg.IsUniqueViolationError(err) {
			continue
		}
		return 0, err
	}
	return 0, ErrOrderCollision
}

func (r *Repo) insertSessionOnce(ctx context.Context, session Session) (sessionID int, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
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
		`INSERT INTO workout_session
			(log_date, session_order, session_done_yn, session_type, class_done, rpe_session, notes)
			SELECT $1, COALESCE(MAX(session_order), 0) + 1, $2, $3, $4, $5, $6
			FROM workout_session WHERE log_date = $1
		RETURNING session_id;`,
		session.LogDate, session.SessionDoneYN, session.SessionType,
		session.ClassDone, session.RPESession, session.Notes,
	).Scan(&sessionID)
	if err != nil {
		return 0, err
	}

	return sessionID, r.insertExercises(ctx, tx, sessionID, session.Exercises)
}

func (r *Repo) updateSession(ctx context.Context, sessionID int, session Session) (err error) {
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

	// keep the ordinal unless the session moves to another date
	var currentDate string
	var currentOrder int
	err = tx.QueryRow(
		ctx,
		`SELECT log_date, session_order FROM workout_session WHERE session_id = $1;`,
		sessionID,
	).Scan(&currentDate, &currentOrder)
	if err != nil {
		return err
	}

	nextOrder := currentOrder
	if currentDate != session.LogDate {
		err = tx.QueryRow(
			ctx,
			`SELECT COALESCE(MAX(session_order), 0) + 1 FROM workout_session WHERE log_date = $1;`,
			session.LogDate,
		).Scan(&nextOrder)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(
		ctx,
		`UPDATE workout_session SET
			log_date = $1,
			session_order = $2,
			session_done_yn = $3,
			session_type = $4,
			class_done = $5,
			rpe_session = $6,
			notes = $7
		WHERE session_id = $8;`,
		session.LogDate, nextOrder, session.SessionDoneYN, session.SessionType,
		session.ClassDone, session.RPESession, session.Notes, sessionID,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM workout_exercise WHERE session_id = $1;`, sessionID)
	if err != nil {
		return err
	}
	return r.insertExercises(ctx, tx, sessionID, session.Exercises)
}

func (r *Repo) insertExercises(ctx context.Context, tx pgx.Tx, sessionID int, exercises []Exercise) error {
	for i, exercise := range exercises {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO workout_exercise
				(session_id, exercise_name, set_order, weight_kg, reps, rpe, topset_text)
				VALUES ($1, $2, $3, $4, $5, $6, $7);`,
			sessionID, exercise.ExerciseName, i+1,
			exercise.WeightKg, exercise.Reps, exercise.RPE, exercise.TopsetText,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a session (exercises cascade) and returns its log date.
func (r *Repo) Delete(ctx context.Context, sessionID int) (logDate string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session_id", sessionID))

	err = r.db.QueryRow(
		ctx,
		`DELETE FROM workout_session WHERE session_id = $1 RETURNING log_date;`,
		sessionID,
	).Scan(&logDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	return logDate, err
}

// ListAll returns every session oldest-first with exercises in set
// order. The service needs full history to compute per-exercise deltas.
func (r *Repo) ListAll(ctx context.Context) (_ []Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT
			s.session_id, s.log_date, s.session_order, s.session_done_yn, s.session_type,
			s.class_done, s.rpe_session, s.notes,
			e.exercise_id, e.exercise_name, e.set_order, e.weight_kg, e.reps, e.rpe, e.topset_text
		FROM workout_session s
		LEFT JOIN workout_exercise e ON e.session_id = s.session_id
		ORDER BY s.log_date ASC, s.session_order ASC, e.set_order ASC, e.exercise_id ASC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	byID := make(map[int]int)
	for rows.Next() {
		var s Session
		var classDone, notes *string
		var exerciseID, setOrder, reps *int
		var exerciseName, topsetText *string
		var weight, rpe *float64
		if err := rows.Scan(
			&s.SessionID, &s.LogDate, &s.SessionOrder, &s.SessionDoneYN, &s.SessionType,
			&classDone, &s.RPESession, &notes,
			&exerciseID, &exerciseName, &setOrder, &weight, &reps, &rpe, &topsetText,
		); err != nil {
			return nil, err
		}

		idx, ok := byID[s.SessionID]
		if !ok {
			if classDone != nil {
				s.ClassDone = *classDone
			}
			if notes != nil {
				s.Notes = *notes
			}
			s.Exercises = make([]Exercise, 0)
			sessions = append(sessions, s)
			idx = len(sessions) - 1
			byID[s.SessionID] = idx
		}

		if exerciseID == nil {
			continue
		}
		exercise := Exercise{
			ExerciseID: *exerciseID,
			WeightKg:   weight,
			Reps:       reps,
			RPE:        rpe,
		}
		if exerciseName != nil {
			exercise.ExerciseName = *exerciseName
		}
		if setOrder != nil {
			exercise.SetOrder = *setOrder
		}
		if topsetText != nil {
			exercise.TopsetText = *topsetText
		}
		sessions[idx].Exercises = append(sessions[idx].Exercises, exercise)
	}
	return sessions, rows.Err()
}

// CountForDate returns how many sessions were logged on a date.
func (r *Repo) CountForDate(ctx context.Context, logDate string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.countfordate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	err = r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM workout_session WHERE log_date = $1;`,
		logDate,
	).Scan(&count)
	return count, err
}

func (r *Repo) MaxLogDate(ctx context.Context) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.maxlogdate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var maxDate *string
	err = r.db.QueryRow(ctx, `SELECT MAX(log_date) FROM workout_session;`).Scan(&maxDate)
	if err != nil {
		return "", err
	}
	if maxDate == nil {
		return "", nil
	}
	return *maxDate, nil
}
