package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrCheckinNotFound = errors.New("check-in not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Upsert inserts or overwrites the check-in for its log date.
func (r *Repo) Upsert(ctx context.Context, c CheckIn) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", c.LogDate))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO checkin_log
			(log_date, sleep_hours, sleep_quality, steps, weight_kg, waist_cm, hip_cm, alcohol_units, creatine_yn, photo_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (log_date) DO UPDATE SET
			sleep_hours = excluded.sleep_hours,
			sleep_quality = excluded.sleep_quality,
			steps = excluded.steps,
			weight_kg = excluded.weight_kg,
			waist_cm = excluded.waist_cm,
			hip_cm = excluded.hip_cm,
			alcohol_units = excluded.alcohol_units,
			creatine_yn = excluded.creatine_yn,
			photo_url = excluded.photo_url;`,
		c.LogDate, c.SleepHours, c.SleepQuality, c.Steps, c.WeightKg,
		c.WaistCm, c.HipCm, c.AlcoholUnits, c.CreatineYN, c.PhotoURL,
	)
	return err
}

// Insert adds a new check-in and fails on an existing log date, so that
// import apply never silently overwrites a conflicting day.
func (r *Repo) Insert(ctx context.Context, c CheckIn) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", c.LogDate))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO checkin_log
			(log_date, sleep_hours, sleep_quality, steps, weight_kg, waist_cm, hip_cm, alcohol_units, creatine_yn, photo_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`,
		c.LogDate, c.SleepHours, c.SleepQuality, c.Steps, c.WeightKg,
		c.WaistCm, c.HipCm, c.AlcoholUnits, c.CreatineYN, c.PhotoURL,
	)
	return err
}

func (r *Repo) Get(ctx context.Context, logDate string) (_ *CheckIn, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, sleep_hours, sleep_quality, steps, weight_kg, waist_cm, hip_cm, alcohol_units, creatine_yn, photo_url
			FROM checkin_log WHERE log_date = $1;`,
		logDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkins, err := rows2checkins(rows)
	if err != nil {
		return nil, err
	}
	if len(checkins) != 1 {
		return nil, ErrCheckinNotFound
	}
	return &checkins[0], nil
}

func (r *Repo) Exists(ctx context.Context, logDate string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.exists")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var exists bool
	err = r.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM checkin_log WHERE log_date = $1);`,
		logDate,
	).Scan(&exists)
	return exists, err
}

// ListRange returns check-ins with log_date in [from, to] inclusive,
// oldest first. ISO dates compare lexically, so BETWEEN is chronological.
func (r *Repo) ListRange(ctx context.Context, from, to string) (_ []CheckIn, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.listrange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("from", from))
	span.SetAttributes(attribute.String("to", to))

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, sleep_hours, sleep_quality, steps, weight_kg, waist_cm, hip_cm, alcohol_units, creatine_yn, photo_url
			FROM checkin_log
			WHERE log_date BETWEEN $1 AND $2
			ORDER BY log_date ASC;`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2checkins(rows)
}

// ListWindow returns the newest-first check-ins of a calendar window of
// the given length, anchored at the latest logged date or today,
// whichever is later.
func (r *Repo) ListWindow(ctx context.Context, days int) (_ []CheckIn, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.listwindow")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	days = pkg.NormalizeWindowDays(days, 15, 1, 180)
	maxDate, err := r.MaxLogDate(ctx)
	if err != nil {
		return nil, err
	}
	from, to := pkg.CalendarWindow(maxDate, days, time.Now())

	rows, err := r.db.Query(
		ctx,
		`SELECT log_date, sleep_hours, sleep_quality, steps, weight_kg, waist_cm, hip_cm, alcohol_units, creatine_yn, photo_url
			FROM checkin_log
			WHERE log_date BETWEEN $1 AND $2
			ORDER BY log_date DESC
			LIMIT $3;`,
		from, to, days,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return rows2checkins(rows)
}

func (r *Repo) Delete(ctx context.Context, logDate string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	tag, err := r.db.Exec(ctx, `DELETE FROM checkin_log WHERE log_date = $1;`, logDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCheckinNotFound
	}
	return nil
}

// ExistingDates returns the set of dates that already have a check-in,
// used by import preview/apply to classify conflicts.
func (r *Repo) ExistingDates(ctx context.Context) (_ map[string]bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.existingdates")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT log_date FROM checkin_log;`)
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

func (r *Repo) MaxLogDate(ctx context.Context) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkin.maxlogdate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var maxDate *string
	err = r.db.QueryRow(ctx, `SELECT MAX(log_date) FROM checkin_log;`).Scan(&maxDate)
	if err != nil {
		return "", err
	}
	if maxDate == nil {
		return "", nil
	}
	return *maxDate, nil
}

func rows2checkins(rows pgx.Rows) ([]CheckIn, error) {
	checkins := make([]CheckIn, 0)
	for rows.Next() {
		var c CheckIn
		var photoURL *string
		if err := rows.Scan(
			&c.LogDate, &c.SleepHours, &c.SleepQuality, &c.Steps, &c.WeightKg,
			&c.WaistCm, &c.HipCm, &c.AlcoholUnits, &c.CreatineYN, &photoURL,
		); err != nil {
			return nil, err
		}
		if photoURL != nil {
			c.PhotoURL = *photoURL
		}
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}
