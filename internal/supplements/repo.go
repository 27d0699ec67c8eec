package supplements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrSupplementNotFound = errors.New("supplement not found")
	ErrNameConflict       = errors.New("supplement name already taken")
	ErrDayLogNotFound     = errors.New("supplement day log not found")
)

// UnknownSupplementError reports a day-log entry that references a
// supplement_id missing from the catalog.
type UnknownSupplementError struct {
	SupplementID int
}

func (e *UnknownSupplementError) Error() string {
	return fmt.Sprintf("unknown supplement id %d", e.SupplementID)
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// CreateSupplement inserts a catalog row. The name is unique
// case-insensitively.
func (r *Repo) CreateSupplement(ctx context.Context, s Supplement) (_ *Supplement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := time.Now()
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO supplement_catalog (name, doses_per_day, active_yn, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING supplement_id;`,
		s.Name, s.DosesPerDay, s.ActiveYN, s.Notes, now,
	).Scan(&s.SupplementID)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrNameConflict
		}
		return nil, err
	}
	s.CreatedAt = now.Format(time.RFC3339)
	s.UpdatedAt = s.CreatedAt
	return &s, nil
}

func (r *Repo) UpdateSupplement(ctx context.Context, s Supplement) (_ *Supplement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("supplement_id", s.SupplementID))

	now := time.Now()
	var createdAt time.Time
	err = r.db.QueryRow(
		ctx,
		`UPDATE supplement_catalog
			SET name = $1, doses_per_day = $2, active_yn = $3, notes = $4, updated_at = $5
			WHERE supplement_id = $6
			RETURNING created_at;`,
		s.Name, s.DosesPerDay, s.ActiveYN, s.Notes, now, s.SupplementID,
	).Scan(&createdAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrSupplementNotFound
	case pkg.IsUniqueViolationError(err):
		return nil, ErrNameConflict
	case err != nil:
		return nil, err
	}
	s.CreatedAt = createdAt.Format(time.RFC3339)
	s.UpdatedAt = now.Format(time.RFC3339)
	return &s, nil
}

// FindByName looks a catalog row up by case-insensitive name, skipping
// excludeID when editing. Returns nil without error when nothing matches.
func (r *Repo) FindByName(ctx context.Context, name string, excludeID int) (_ *Supplement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.findbyname")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var found Supplement
	var createdAt, updatedAt time.Time
	err = r.db.QueryRow(
		ctx,
		`SELECT supplement_id, name, doses_per_day, active_yn, COALESCE(notes, ''), created_at, updated_at
			FROM supplement_catalog
			WHERE lower(name) = lower($1) AND supplement_id <> $2
			LIMIT 1;`,
		name, excludeID,
	).Scan(&found.SupplementID, &found.Name, &found.DosesPerDay, &found.ActiveYN, &found.Notes, &createdAt, &updatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	}
	found.CreatedAt = createdAt.Format(time.RFC3339)
	found.UpdatedAt = updatedAt.Format(time.RFC3339)
	return &found, nil
}

// DeleteSupplement removes a catalog row and, via FK cascade, its day
// logs. Returns the deleted name.
func (r *Repo) DeleteSupplement(ctx context.Context, supplementID int) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("supplement_id", supplementID))

	var name string
	err = r.db.QueryRow(
		ctx,
		`DELETE FROM supplement_catalog WHERE supplement_id = $1 RETURNING name;`,
		supplementID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSupplementNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// ListCatalog returns the catalog, active rows first then by name.
func (r *Repo) ListCatalog(ctx context.Context, includeInactive bool) (_ []Supplement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.listcatalog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query := `SELECT supplement_id, name, doses_per_day, active_yn, COALESCE(notes, ''), created_at, updated_at
		FROM supplement_catalog `
	if !includeInactive {
		query += `WHERE active_yn = 'Y' `
	}
	query += `ORDER BY active_yn DESC, lower(name) ASC, supplement_id ASC;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var catalog []Supplement
	for rows.Next() {
		var s Supplement
		var createdAt, updatedAt time.Time
		if err := rows.Scan(
			&s.SupplementID, &s.Name, &s.DosesPerDay, &s.ActiveYN, &s.Notes, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt.Format(time.RFC3339)
		s.UpdatedAt = updatedAt.Format(time.RFC3339)
		catalog = append(catalog, s)
	}
	return catalog, rows.Err()
}

// Day returns one date's view: every active supplement plus any
// inactive one that still has a log row for that date.
func (r *Repo) Day(ctx context.Context, logDate string) (_ *Day, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.day")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	rows, err := r.db.Query(
		ctx,
		`SELECT c.supplement_id, c.name, c.doses_per_day, c.active_yn,
				COALESCE(l.doses_taken, 0), COALESCE(l.notes, ''), l.supplement_id IS NOT NULL
			FROM supplement_catalog c
			LEFT JOIN supplement_daily_log l
				ON l.supplement_id = c.supplement_id AND l.log_date = $1
			WHERE c.active_yn = 'Y' OR l.supplement_id IS NOT NULL
			ORDER BY c.active_yn DESC, lower(c.name) ASC, c.supplement_id ASC;`,
		logDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	day := &Day{LogDate: logDate, Entries: []DayEntry{}}
	for rows.Next() {
		var entry DayEntry
		var logged bool
		if err := rows.Scan(
			&entry.SupplementID, &entry.Name, &entry.DosesPerDay, &entry.ActiveYN,
			&entry.DosesTaken, &entry.Notes, &logged,
		); err != nil {
			return nil, err
		}
		if entry.DosesPerDay < 0 {
			entry.DosesPerDay = 0
		}
		if entry.DosesTaken < 0 {
			entry.DosesTaken = 0
		}
		day.HasLogs = day.HasLogs || logged
		day.Totals.TargetDoses += entry.DosesPerDay
		day.Totals.TakenDoses += entry.DosesTaken
		day.Entries = append(day.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if day.Totals.TargetDoses > 0 {
		pct := float64(day.Totals.TakenDoses) / float64(day.Totals.TargetDoses) * 100.0
		day.Totals.AdherencePct = &pct
	}
	return day, nil
}

// ReplaceDay swaps the whole day log of a date in one transaction.
// Every entry must reference a known supplement.
func (r *Repo) ReplaceDay(ctx context.Context, logDate string, entries []LogEntry) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.replaceday")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("log_date", logDate),
		attribute.Int("entries", len(entries)),
	)

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

	if len(entries) > 0 {
		ids := make([]int, 0, len(entries))
		for _, entry := range entries {
			ids = append(ids, entry.SupplementID)
		}
		rows, err := tx.Query(
			ctx,
			`SELECT supplement_id FROM supplement_catalog WHERE supplement_id = ANY($1);`,
			ids,
		)
		if err != nil {
			return err
		}
		known := map[int]bool{}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			known[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, entry := range entries {
			if !known[entry.SupplementID] {
				return &UnknownSupplementError{SupplementID: entry.SupplementID}
			}
		}
	}

	if _, err = tx.Exec(ctx, `DELETE FROM supplement_daily_log WHERE log_date = $1;`, logDate); err != nil {
		return err
	}

	now := time.Now()
	for _, entry := range entries {
		_, err = tx.Exec(
			ctx,
			`INSERT INTO supplement_daily_log (log_date, supplement_id, doses_taken, notes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $5);`,
			logDate, entry.SupplementID, entry.DosesTaken, entry.Notes, now,
		)
		if err != nil {
			// catalog row removed between the id check and the insert
			if pkg.IsForeignKeyViolationError(err) {
				return &UnknownSupplementError{SupplementID: entry.SupplementID}
			}
			return err
		}
	}
	return nil
}

// DeleteDay removes every log row of a date, returning the count.
func (r *Repo) DeleteDay(ctx context.Context, logDate string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.deleteday")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("log_date", logDate))

	tag, err := r.db.Exec(ctx, `DELETE FROM supplement_daily_log WHERE log_date = $1;`, logDate)
	if err != nil {
		return 0, err
	}
	deleted := int(tag.RowsAffected())
	if deleted == 0 {
		return 0, ErrDayLogNotFound
	}
	return deleted, nil
}

// logRow is one raw day-log row joined with its catalog name, feeding
// the history rollup.
type logRow struct {
	LogDate     string
	Name        string
	DosesPerDay int
	DosesTaken  int
	Notes       string
}

// ListLogRange returns joined log rows of [from, to] newest date first,
// names sorted within a date.
func (r *Repo) ListLogRange(ctx context.Context, from, to string) (_ []logRow, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.listlogrange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT l.log_date, c.name, COALESCE(c.doses_per_day, 0), COALESCE(l.doses_taken, 0), COALESCE(l.notes, '')
			FROM supplement_daily_log l
			JOIN supplement_catalog c ON c.supplement_id = l.supplement_id
			WHERE l.log_date BETWEEN $1 AND $2
			ORDER BY l.log_date DESC, lower(c.name) ASC;`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logRows []logRow
	for rows.Next() {
		var row logRow
		if err := rows.Scan(&row.LogDate, &row.Name, &row.DosesPerDay, &row.DosesTaken, &row.Notes); err != nil {
			return nil, err
		}
		logRows = append(logRows, row)
	}
	return logRows, rows.Err()
}

// MaxLogDate returns the newest logged date, empty when there are none.
func (r *Repo) MaxLogDate(ctx context.Context) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.supplements.maxlogdate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var maxDate *string
	if err := r.db.QueryRow(ctx, `SELECT MAX(log_date) FROM supplement_daily_log;`).Scan(&maxDate); err != nil {
		return "", err
	}
	if maxDate == nil {
		return "", nil
	}
	return *maxDate, nil
}
