// Package summary computes the rolling/range check-in aggregates: per
// metric means, coverage, baseline comparison and the in-window trend
// with its natural-language reading.
package summary

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/checkin"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"
)

// summaryDayChoices are the rolling window lengths the UI offers.
var summaryDayChoices = map[int]bool{7: true, 15: true, 30: true, 60: true, 90: true}

const defaultSummaryDays = 7

// NormalizeSummaryDays snaps a requested rolling window onto one of the
// supported lengths.
func NormalizeSummaryDays(days int) int {
	if summaryDayChoices[days] {
		return days
	}
	return defaultSummaryDays
}

type Coverage struct {
	CurrentCount   int `json:"current_count"`
	CurrentTarget  int `json:"current_target"`
	BaselineCount  int `json:"baseline_count"`
	BaselineTarget int `json:"baseline_target"`
}

type Trend struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	DeltaWeight *float64 `json:"delta_weight"`
	DeltaSleep  *float64 `json:"delta_sleep"`
	DeltaSteps  *float64 `json:"delta_steps"`
	DeltaWHR    *float64 `json:"delta_whr"`
	Text        string   `json:"text"`
	Tone        string   `json:"tone"`
}

type Relative struct {
	BaselineLabel string   `json:"baseline_label"`
	SleepDelta    *float64 `json:"sleep_delta"`
	StepsDelta    *float64 `json:"steps_delta"`
	WeightDelta   *float64 `json:"weight_delta"`
	WHRDelta      *float64 `json:"whr_delta"`
}

type SeriesPoint struct {
	LogDate    string   `json:"log_date"`
	SleepHours *float64 `json:"sleep_hours"`
	Steps      *int     `json:"steps"`
	WeightKg   *float64 `json:"weight_kg"`
	WHR        *float64 `json:"whr"`
}

type Series struct {
	Points []SeriesPoint `json:"points"`
	Count  int           `json:"count"`
}

type Summary struct {
	AvgSleep    *float64 `json:"avg_sleep"`
	AvgSteps    *float64 `json:"avg_steps"`
	AvgWeight   *float64 `json:"avg_weight"`
	AvgWHR      *float64 `json:"avg_whr"`
	WindowDays  int      `json:"window_days"`
	Mode        string   `json:"mode"`
	PeriodLabel string   `json:"period_label"`
	DateFrom    string   `json:"date_from"`
	DateTo      string   `json:"date_to"`
	Coverage    Coverage `json:"coverage"`
	Trend       Trend    `json:"trend"`
	Relative    Relative `json:"relative"`
	Series      Series   `json:"series"`
}

type rowsReader interface {
	ListRange(ctx context.Context, from, to string) ([]checkin.CheckIn, error)
}

// Engine fetches check-in rows and aggregates them. All math runs on
// full-precision floats; rounding is the caller's concern.
type Engine struct {
	checkins rowsReader
	now      func() time.Time
}

func NewEngine(checkins rowsReader) *Engine {
	return &Engine{
		checkins: checkins,
		now:      time.Now,
	}
}

// Fetch computes the summary of an explicit [dateFrom, dateTo] range
// when both bounds are valid and ordered, or of the rolling window of
// the given length ending today otherwise. The baseline is the
// immediately preceding window of identical length.
func (e *Engine) Fetch(ctx context.Context, dateFrom, dateTo string, rollingDays int) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "summary.fetch")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rollingDays = NormalizeSummaryDays(rollingDays)
	useRange := pkg.ValidISODate(dateFrom) && pkg.ValidISODate(dateTo) && dateFrom <= dateTo

	summary := &Summary{WindowDays: rollingDays}
	var from, to, prevFrom, prevTo string
	if useRange {
		from, to = dateFrom, dateTo
		spanDays := pkg.DaysBetweenISO(from, to)
		prevTo = pkg.AddDaysISO(from, -1)
		prevFrom = pkg.AddDaysISO(prevTo, -(spanDays - 1))
		summary.Mode = "range"
		summary.Coverage.CurrentTarget = spanDays
		summary.Coverage.BaselineTarget = spanDays
	} else {
		to = pkg.FormatISODate(e.now())
		from = pkg.AddDaysISO(to, -(rollingDays - 1))
		prevTo = pkg.AddDaysISO(to, -rollingDays)
		prevFrom = pkg.AddDaysISO(prevTo, -(rollingDays - 1))
		summary.Mode = fmt.Sprintf("rolling_%dd", rollingDays)
		summary.Coverage.CurrentTarget = rollingDays
		summary.Coverage.BaselineTarget = rollingDays
	}
	summary.DateFrom = from
	summary.DateTo = to
	summary.PeriodLabel = fmt.Sprintf("%s -> %s", from, to)

	rows, err := e.checkins.ListRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list current rows: %w", err)
	}
	previousRows, err := e.checkins.ListRange(ctx, prevFrom, prevTo)
	if err != nil {
		return nil, fmt.Errorf("list baseline rows: %w", err)
	}

	summary.AvgSleep = avgOf(rows, func(c checkin.CheckIn) *float64 { return c.SleepHours })
	summary.AvgSteps = avgOf(rows, stepsOf)
	summary.AvgWeight = avgOf(rows, func(c checkin.CheckIn) *float64 { return c.WeightKg })
	summary.AvgWHR = avgOf(rows, whrOf)

	summary.Coverage.CurrentCount = len(rows)
	summary.Coverage.BaselineCount = len(previousRows)

	summary.Relative = Relative{
		SleepDelta:  diff(summary.AvgSleep, avgOf(previousRows, func(c checkin.CheckIn) *float64 { return c.SleepHours })),
		StepsDelta:  diff(summary.AvgSteps, avgOf(previousRows, stepsOf)),
		WeightDelta: diff(summary.AvgWeight, avgOf(previousRows, func(c checkin.CheckIn) *float64 { return c.WeightKg })),
		WHRDelta:    diff(summary.AvgWHR, avgOf(previousRows, whrOf)),
	}
	if len(previousRows) > 0 {
		summary.Relative.BaselineLabel = fmt.Sprintf("%s -> %s", prevFrom, prevTo)
	}

	summary.Trend = computeTrend(rows)
	summary.Series = buildSeries(rows)

	return summary, nil
}

func whrOf(c checkin.CheckIn) *float64 {
	return c.WHR()
}

func stepsOf(c checkin.CheckIn) *float64 {
	if c.Steps == nil {
		return nil
	}
	v := float64(*c.Steps)
	return &v
}

func avgOf(rows []checkin.CheckIn, value func(checkin.CheckIn) *float64) *float64 {
	var sum float64
	var n int
	for _, row := range rows {
		if v := value(row); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func diff(curr, prev *float64) *float64 {
	if curr == nil || prev == nil {
		return nil
	}
	d := *curr - *prev
	return &d
}

type metricPoint struct {
	logDate string
	value   float64
}

func metricPoints(rows []checkin.CheckIn, value func(checkin.CheckIn) *float64) []metricPoint {
	points := make([]metricPoint, 0, len(rows))
	for _, row := range rows {
		if v := value(row); v != nil {
			points = append(points, metricPoint{logDate: row.LogDate, value: *v})
		}
	}
	return points
}

// computeTrend compares the first and last non-null point of each metric
// inside the window. The trend span covers the dates that actually
// contributed.
func computeTrend(rows []checkin.CheckIn) Trend {
	var trend Trend
	var trendDates []string

	firstLastDelta := func(points []metricPoint) *float64 {
		if len(points) < 2 {
			return nil
		}
		first, last := points[0], points[len(points)-1]
		trendDates = append(trendDates, first.logDate, last.logDate)
		delta := last.value - first.value
		return &delta
	}

	trend.DeltaWeight = firstLastDelta(metricPoints(rows, func(c checkin.CheckIn) *float64 { return c.WeightKg }))
	trend.DeltaSleep = firstLastDelta(metricPoints(rows, func(c checkin.CheckIn) *float64 { return c.SleepHours }))
	trend.DeltaSteps = firstLastDelta(metricPoints(rows, stepsOf))
	trend.DeltaWHR = firstLastDelta(metricPoints(rows, whrOf))

	for _, date := range trendDates {
		if trend.From == "" || date < trend.From {
			trend.From = date
		}
		if date > trend.To {
			trend.To = date
		}
	}

	trend.Text, trend.Tone = trendMessage(trend.DeltaWeight, trend.DeltaWHR)
	return trend
}

// trendMessage reads the weight/WHR delta pair into a short verdict.
func trendMessage(weightDelta, whrDelta *float64) (string, string) {
	if weightDelta == nil || whrDelta == nil {
		return "Aun no hay datos suficientes para sacar una conclusion clara.", "muted"
	}

	wd, hd := *weightDelta, *whrDelta
	weightStable := math.Abs(wd) <= 0.2
	whrStable := math.Abs(hd) <= 0.005

	switch {
	case weightStable && whrStable:
		return "Todo va estable: casi sin cambios en peso ni cintura/cadera.", "muted"
	case wd < 0 && hd < 0:
		return "Buena señal: bajan el peso y la relacion cintura/cadera.", "good"
	case wd > 0 && hd < 0:
		return "Buena señal: sube algo el peso, pero mejora la cintura/cadera.", "good"
	case wd < 0 && hd > 0:
		return "Señal mixta: bajas peso, pero la cintura/cadera empeora un poco.", "warn"
	case wd > 0 && hd > 0:
		return "Ojo: suben peso y cintura/cadera a la vez.", "warn"
	case wd > 0 && whrStable:
		return "Sube el peso, con cintura/cadera bastante estable.", "muted"
	case wd < 0 && whrStable:
		return "Baja el peso, con cintura/cadera bastante estable.", "muted"
	case weightStable && hd < 0:
		return "Peso estable y cintura/cadera mejorando.", "good"
	case weightStable && hd > 0:
		return "Peso estable, pero cintura/cadera empeora: vigila la tendencia.", "warn"
	default:
		return "Tendencia mixta: interpretala junto con entreno, dieta y descanso.", "muted"
	}
}

func buildSeries(rows []checkin.CheckIn) Series {
	points := make([]SeriesPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, SeriesPoint{
			LogDate:    row.LogDate,
			SleepHours: row.SleepHours,
			Steps:      row.Steps,
			WeightKg:   row.WeightKg,
			WHR:        row.WHR(),
		})
	}
	return Series{Points: points, Count: len(points)}
}
