package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibaifernandez/gymtracker/internal/importcsv"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"
)

const (
	StatusImported = "imported"
	StatusInvalid  = "invalid"

	sourceTagMaxLen  = 80
	defaultSourceTag = "manual"
)

type DietRowResult struct {
	RowNumber int     `json:"row_number"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason"`
	Row       DietDay `json:"row"`
}

// DietImportSummary mirrors the workout summary shape. Diet rows have
// no warning conditions, so Warned stays zero.
type DietImportSummary struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Invalid  int `json:"invalid"`
	Warned   int `json:"warned"`
}

type DietImportResult struct {
	Summary DietImportSummary `json:"summary"`
	Results []DietRowResult   `json:"results"`
}

type WorkoutRowResult struct {
	RowNumber int            `json:"row_number"`
	Status    string         `json:"status"`
	Reason    string         `json:"reason"`
	Row       WorkoutSession `json:"row"`
}

type WorkoutImportSummary struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Invalid  int `json:"invalid"`
	Warned   int `json:"warned"`
}

type WorkoutImportResult struct {
	Summary WorkoutImportSummary `json:"summary"`
	Results []WorkoutRowResult   `json:"results"`
}

type importerRepo interface {
	UpsertDietDays(ctx context.Context, days []DietDay) error
	ReplaceWorkoutDays(ctx context.Context, sessions []WorkoutSession) error
}

// Importer turns uploaded plan CSVs into persisted plan rows. Rows are
// classified first and written in a single batch afterwards, so a failed
// write never leaves a half-imported file behind.
type Importer struct {
	repo importerRepo
}

func NewImporter(repo importerRepo) *Importer {
	return &Importer{
		repo: repo,
	}
}

func normalizeSourceTag(sourceTag string) string {
	tag := pkg.ClipText(sourceTag, sourceTagMaxLen)
	if tag == "" {
		return defaultSourceTag
	}
	return tag
}

// ImportDiet parses and persists a diet-plan CSV. Valid rows upsert by
// date; a date repeated within the file invalidates the later rows.
func (im *Importer) ImportDiet(ctx context.Context, text, sourceTag string) (_ *DietImportResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "plan.import.diet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := importcsv.ParseRows(text, canonicalDietHeader, DietTemplateColumns)
	if err != nil {
		return nil, err
	}

	sourceTag = normalizeSourceTag(sourceTag)
	result := &DietImportResult{Results: make([]DietRowResult, 0, len(rows))}
	seenDates := make(map[string]bool)
	accepted := make([]DietDay, 0, len(rows))

	for _, row := range rows {
		result.Summary.Total++
		day, rowErrs := parseDietRow(row.Fields)
		if day.LogDate != "" && seenDates[day.LogDate] {
			rowErrs = append(rowErrs, "date duplicada dentro del CSV")
		}
		if day.LogDate != "" {
			seenDates[day.LogDate] = true
		}

		status := StatusImported
		if len(rowErrs) > 0 {
			status = StatusInvalid
			result.Summary.Invalid++
		} else {
			day.SourceTag = sourceTag
			accepted = append(accepted, day)
			result.Summary.Imported++
		}
		result.Results = append(result.Results, DietRowResult{
			RowNumber: row.LineNumber,
			Status:    status,
			Reason:    strings.Join(rowErrs, "; "),
			Row:       day,
		})
	}

	if len(accepted) > 0 {
		if err := im.repo.UpsertDietDays(ctx, accepted); err != nil {
			return nil, fmt.Errorf("upsert diet days: %w", err)
		}
	}

	return result, nil
}

// ImportWorkout parses and persists a workout-plan CSV. Session ordinals
// ("S01", "S02"...) are assigned per date over the rows that actually
// persist, so an invalid row never leaves a gap in the numbering. Every
// date touched by the file is replaced wholesale.
func (im *Importer) ImportWorkout(ctx context.Context, text, sourceTag string) (_ *WorkoutImportResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "plan.import.workout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := importcsv.ParseRows(text, canonicalWorkoutHeader, WorkoutTemplateColumns)
	if err != nil {
		return nil, err
	}

	sourceTag = normalizeSourceTag(sourceTag)
	result := &WorkoutImportResult{Results: make([]WorkoutRowResult, 0, len(rows))}
	seenRows := make(map[string]bool)
	orderByDate := make(map[string]int)
	accepted := make([]WorkoutSession, 0, len(rows))

	for _, row := range rows {
		result.Summary.Total++
		session, rowErrs, warnings := parseWorkoutRow(row.Fields)

		fingerprint := workoutRowFingerprint(row.Fields)
		if seenRows[fingerprint] {
			rowErrs = append(rowErrs, "fila duplicada dentro del CSV")
		}
		seenRows[fingerprint] = true

		if len(rowErrs) > 0 {
			result.Summary.Invalid++
			result.Results = append(result.Results, WorkoutRowResult{
				RowNumber: row.LineNumber,
				Status:    StatusInvalid,
				Reason:    strings.Join(rowErrs, "; "),
				Row:       session,
			})
			continue
		}

		orderByDate[session.LogDate]++
		session.SessionOrder = orderByDate[session.LogDate]
		session.PlanSessionID = fmt.Sprintf("S%02d", session.SessionOrder)
		session.SourceTag = sourceTag

		accepted = append(accepted, session)
		result.Summary.Imported++
		if len(warnings) > 0 {
			result.Summary.Warned++
		}
		result.Results = append(result.Results, WorkoutRowResult{
			RowNumber: row.LineNumber,
			Status:    StatusImported,
			Reason:    strings.Join(warnings, " | "),
			Row:       session,
		})
	}

	if len(accepted) > 0 {
		if err := im.repo.ReplaceWorkoutDays(ctx, accepted); err != nil {
			return nil, fmt.Errorf("replace workout days: %w", err)
		}
	}

	return result, nil
}

// workoutRowFingerprint keys a row by its raw template cells: a byte-for-byte
// repeat of an earlier row is a copy-paste mistake, not a second session.
func workoutRowFingerprint(fields map[string]string) string {
	var b strings.Builder
	for _, col := range WorkoutTemplateColumns {
		b.WriteString(fields[col])
		b.WriteByte('\x1f')
	}
	return b.String()
}
