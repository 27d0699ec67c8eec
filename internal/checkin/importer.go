package checkin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ibaifernandez/gymtracker/internal/importcsv"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"
)

// TemplateColumns is the canonical check-in import template, in file order.
var TemplateColumns = []string{
	"log_date",
	"sleep_hours",
	"steps",
	"weight_kg",
	"waist_cm",
	"hip_cm",
	"creatine_yn",
	"alcohol_units",
}

var headerAliases = map[string]string{
	"log_date":      "log_date",
	"date":          "log_date",
	"fecha":         "log_date",
	"sleep_hours":   "sleep_hours",
	"sleep":         "sleep_hours",
	"sueno_horas":   "sleep_hours",
	"sueno":         "sleep_hours",
	"sleep_quality": "sleep_quality",
	"quality":       "sleep_quality",
	"calidad_sueno": "sleep_quality",
	"calidad":       "sleep_quality",
	"steps":         "steps",
	"pasos":         "steps",
	"weight_kg":     "weight_kg",
	"peso_kg":       "weight_kg",
	"peso":          "weight_kg",
	"waist_cm":      "waist_cm",
	"cintura_cm":    "waist_cm",
	"cintura":       "waist_cm",
	"hip_cm":        "hip_cm",
	"cadera_cm":     "hip_cm",
	"cadera":        "hip_cm",
	"alcohol_units": "alcohol_units",
	"alcohol":       "alcohol_units",
	"creatine_yn":   "creatine_yn",
	"creatina_yn":   "creatine_yn",
	"creatina":      "creatine_yn",
}

func canonicalHeader(name string) string {
	key := importcsv.NormalizeHeaderName(name)
	if canonical, ok := headerAliases[key]; ok {
		return canonical
	}
	return key
}

const (
	StatusValid    = "valid"
	StatusImported = "imported"
	StatusConflict = "conflict"
	StatusInvalid  = "invalid"
)

type RowResult struct {
	RowNumber int     `json:"row_number"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason"`
	Row       CheckIn `json:"row"`
}

type PreviewSummary struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Conflict int `json:"conflict"`
	Invalid  int `json:"invalid"`
}

type PreviewResult struct {
	Summary PreviewSummary `json:"summary"`
	Preview []RowResult    `json:"preview"`
}

type ApplySummary struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Conflict int `json:"conflict"`
	Invalid  int `json:"invalid"`
}

type ApplyResult struct {
	Summary ApplySummary `json:"summary"`
	Results []RowResult  `json:"results"`
}

// ApplyRow is one row submitted back by the caller after a preview:
// the preview's row number plus its field values.
type ApplyRow struct {
	RowNumber int            `json:"row_number"`
	Row       map[string]any `json:"row"`
}

type importerRepo interface {
	ExistingDates(ctx context.Context) (map[string]bool, error)
	Insert(ctx context.Context, c CheckIn) error
}

// Importer classifies and persists check-in CSV imports. Rows that
// collide with an already-persisted date are conflicts, never silent
// overwrites: the user resolves those through the ordinary edit path.
type Importer struct {
	repo importerRepo
}

func NewImporter(repo importerRepo) *Importer {
	return &Importer{
		repo: repo,
	}
}

// parseRow validates one mapped CSV row into a CheckIn. Row-level
// problems are collected, not aborted on.
func parseRow(fields map[string]string) (CheckIn, []string) {
	var c CheckIn
	var errs []string

	c.LogDate = strings.TrimSpace(fields["log_date"])
	if !pkg.ValidISODate(c.LogDate) {
		errs = append(errs, "log_date invalida (formato AAAA-MM-DD)")
	}

	var parseErr string
	if c.SleepHours, parseErr = importcsv.ParseFloat(fields["sleep_hours"]); parseErr != "" {
		errs = append(errs, "sleep_hours "+parseErr)
	}

	if c.SleepQuality, parseErr = importcsv.ParseInt(fields["sleep_quality"]); parseErr != "" {
		errs = append(errs, "sleep_quality "+parseErr)
	} else if c.SleepQuality != nil && (*c.SleepQuality < 1 || *c.SleepQuality > 10) {
		errs = append(errs, "sleep_quality fuera de rango (1-10)")
	}

	if c.Steps, parseErr = importcsv.ParseInt(fields["steps"]); parseErr != "" {
		errs = append(errs, "steps "+parseErr)
	} else if c.Steps != nil && *c.Steps < 0 {
		errs = append(errs, "steps no puede ser negativo")
	}

	if c.WeightKg, parseErr = importcsv.ParseFloat(fields["weight_kg"]); parseErr != "" {
		errs = append(errs, "weight_kg "+parseErr)
	}
	if c.WaistCm, parseErr = importcsv.ParseFloat(fields["waist_cm"]); parseErr != "" {
		errs = append(errs, "waist_cm "+parseErr)
	}
	if c.HipCm, parseErr = importcsv.ParseFloat(fields["hip_cm"]); parseErr != "" {
		errs = append(errs, "hip_cm "+parseErr)
	}

	alcohol, parseErr := importcsv.ParseInt(fields["alcohol_units"])
	if parseErr != "" {
		errs = append(errs, "alcohol_units "+parseErr)
	}
	if alcohol != nil {
		c.AlcoholUnits = *alcohol
	}
	if c.AlcoholUnits < 0 {
		errs = append(errs, "alcohol_units no puede ser negativo")
	}

	creatineRaw := strings.TrimSpace(fields["creatine_yn"])
	if creatineYN := importcsv.YNOrEmpty(creatineRaw); creatineYN != "" {
		c.CreatineYN = &creatineYN
	} else if creatineRaw != "" {
		errs = append(errs, "creatine_yn debe ser Y o N")
	}

	return c, errs
}

// Preview parses and classifies an uploaded CSV without persisting
// anything. Pure apart from the existing-dates lookup.
func (im *Importer) Preview(ctx context.Context, text string) (_ *PreviewResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "checkin.import.preview")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := importcsv.ParseRows(text, canonicalHeader, TemplateColumns)
	if err != nil {
		return nil, err
	}

	existingDates, err := im.repo.ExistingDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("existing dates: %w", err)
	}

	result := &PreviewResult{Preview: make([]RowResult, 0, len(rows))}
	seenDates := make(map[string]bool)

	for _, row := range rows {
		result.Summary.Total++
		c, rowErrs := parseRow(row.Fields)

		status := StatusValid
		reasons := rowErrs
		switch {
		case len(rowErrs) > 0:
			status = StatusInvalid
		case seenDates[c.LogDate]:
			status = StatusInvalid
			reasons = append(reasons, "fecha duplicada dentro del CSV")
		case existingDates[c.LogDate]:
			status = StatusConflict
			reasons = append(reasons, "la fecha ya existe en la base local")
		}
		if c.LogDate != "" {
			seenDates[c.LogDate] = true
		}

		switch status {
		case StatusValid:
			result.Summary.Valid++
		case StatusConflict:
			result.Summary.Conflict++
		default:
			result.Summary.Invalid++
		}
		result.Preview = append(result.Preview, RowResult{
			RowNumber: row.LineNumber,
			Status:    status,
			Reason:    strings.Join(reasons, "; "),
			Row:       c,
		})
	}

	return result, nil
}

// Apply persists the subset of rows the user chose to commit. Every row
// is re-validated and conflicts are re-detected: a conflicting date is
// rejected per-row, and the storage unique constraint backstops races.
func (im *Importer) Apply(ctx context.Context, applyRows []ApplyRow) (_ *ApplyResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "checkin.import.apply")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	existingDates, err := im.repo.ExistingDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("existing dates: %w", err)
	}

	result := &ApplyResult{Results: make([]RowResult, 0, len(applyRows))}
	result.Summary.Total = len(applyRows)
	seenDates := make(map[string]bool)

	for i, applyRow := range applyRows {
		lineNo := applyRow.RowNumber
		if lineNo == 0 {
			lineNo = i + 1
		}

		c, rowErrs := parseRow(stringifyFields(applyRow.Row))

		status := StatusImported
		reasons := rowErrs
		switch {
		case len(rowErrs) > 0:
			status = StatusInvalid
		case seenDates[c.LogDate]:
			status = StatusInvalid
			reasons = append(reasons, "fecha duplicada dentro del bloque importado")
		case existingDates[c.LogDate]:
			status = StatusConflict
			reasons = append(reasons, "la fecha ya existe y no se sobrescribe")
		}

		if status == StatusImported {
			switch insertErr := im.repo.Insert(ctx, c); {
			case insertErr == nil:
				existingDates[c.LogDate] = true
			case pkg.IsUniqueViolationError(insertErr):
				status = StatusConflict
				reasons = append(reasons, "la fecha ya existe y no se sobrescribe")
			default:
				return nil, fmt.Errorf("insert check-in %s: %w", c.LogDate, insertErr)
			}
		}

		if c.LogDate != "" {
			seenDates[c.LogDate] = true
		}

		switch status {
		case StatusImported:
			result.Summary.Imported++
		case StatusConflict:
			result.Summary.Conflict++
		default:
			result.Summary.Invalid++
		}
		result.Results = append(result.Results, RowResult{
			RowNumber: lineNo,
			Status:    status,
			Reason:    strings.Join(reasons, "; "),
			Row:       c,
		})
	}

	return result, nil
}

// stringifyFields renders a JSON row payload back into cell strings so
// apply runs the exact same validation as preview.
func stringifyFields(row map[string]any) map[string]string {
	fields := make(map[string]string, len(row))
	for k, v := range row {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			fields[k] = fmt.Sprintf("%v", val)
		}
	}
	return fields
}
