package supplements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"
)

type historyRepo interface {
	ListLogRange(ctx context.Context, from, to string) ([]logRow, error)
	MaxLogDate(ctx context.Context) (string, error)
}

// Service rolls logged days up into the adherence history view.
type Service struct {
	repo historyRepo
	now  func() time.Time
}

func NewService(repo historyRepo) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// History returns one rollup per logged day of a calendar window,
// newest first. Days without log rows are skipped.
func (s *Service) History(ctx context.Context, days int) (_ []HistoryItem, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "supplements.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	days = pkg.NormalizeWindowDays(days, 15, 1, 180)
	maxDate, err := s.repo.MaxLogDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("max log date: %w", err)
	}
	from, to := pkg.CalendarWindow(maxDate, days, s.now())

	rows, err := s.repo.ListLogRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list log rows: %w", err)
	}

	items := make([]HistoryItem, 0)
	var current *HistoryItem
	var detailParts, notesParts []string

	flush := func() {
		if current == nil {
			return
		}
		finishHistoryItem(current, detailParts, notesParts)
		items = append(items, *current)
		current = nil
	}

	// rows arrive newest date first, names sorted within a date
	for _, row := range rows {
		if current == nil || current.LogDate != row.LogDate {
			flush()
			current = &HistoryItem{LogDate: row.LogDate}
			detailParts = detailParts[:0]
			notesParts = notesParts[:0]
		}

		target := max(row.DosesPerDay, 0)
		taken := max(row.DosesTaken, 0)
		name := strings.TrimSpace(row.Name)
		if name == "" {
			name = "Suplemento"
		}

		current.TargetDoses += target
		current.TakenDoses += taken
		detailParts = append(detailParts, fmt.Sprintf("%s %d/%d", name, taken, target))
		if notes := strings.TrimSpace(row.Notes); notes != "" {
			notesParts = append(notesParts, notes)
		}
	}
	flush()

	return items, nil
}

func finishHistoryItem(item *HistoryItem, detailParts, notesParts []string) {
	item.Status = "muted"
	item.AdherenceLabel = "Sin objetivo"

	if item.TargetDoses > 0 {
		pct := float64(item.TakenDoses) / float64(item.TargetDoses) * 100.0
		item.AdherencePct = &pct

		baseRatio := min(float64(item.TakenDoses)/float64(item.TargetDoses), 1.0)
		basePct := baseRatio * 100.0
		item.AdherenceBasePct = &basePct
		item.ExtraDoses = max(item.TakenDoses-item.TargetDoses, 0)

		switch {
		case item.TakenDoses >= item.TargetDoses:
			item.Status = "good"
			item.AdherenceLabel = "100%"
			if item.ExtraDoses > 0 {
				item.AdherenceLabel = fmt.Sprintf("100%% (+%d extra)", item.ExtraDoses)
			}
		case baseRatio >= 0.6:
			item.Status = "warn"
			item.AdherenceLabel = fmt.Sprintf("%.0f%%", basePct)
		default:
			item.Status = "bad"
			item.AdherenceLabel = fmt.Sprintf("%.0f%%", basePct)
		}
	}

	item.Details = strings.Join(detailParts, " · ")

	var unique []string
	for _, n := range notesParts {
		duplicate := false
		for _, seen := range unique {
			if seen == n {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, n)
		}
	}
	item.Notes = strings.Join(unique, " | ")
}
