// Package supplements tracks the supplement catalog and the per-day
// dose log built on it.
package supplements

import (
	"github.com/ibaifernandez/gymtracker/pkg"
)

const (
	nameMaxLen  = 80
	notesMaxLen = 240

	minDosesPerDay = 1
	maxDosesPerDay = 12
	maxDosesTaken  = 24
)

// Supplement is one catalog row. ActiveYN gates whether the supplement
// shows up pre-listed on new day logs.
type Supplement struct {
	SupplementID int    `json:"supplement_id"`
	Name         string `json:"name"`
	DosesPerDay  int    `json:"doses_per_day"`
	ActiveYN     string `json:"active_yn"`
	Notes        string `json:"notes"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// DayEntry is one supplement of a day view: the catalog target joined
// with what was actually taken.
type DayEntry struct {
	SupplementID int    `json:"supplement_id"`
	Name         string `json:"name"`
	DosesPerDay  int    `json:"doses_per_day"`
	ActiveYN     string `json:"active_yn"`
	DosesTaken   int    `json:"doses_taken"`
	Notes        string `json:"notes"`
}

type DayTotals struct {
	TargetDoses  int      `json:"target_doses"`
	TakenDoses   int      `json:"taken_doses"`
	AdherencePct *float64 `json:"adherence_pct"`
}

type Day struct {
	LogDate string     `json:"log_date"`
	HasLogs bool       `json:"has_logs"`
	Entries []DayEntry `json:"entries"`
	Totals  DayTotals  `json:"totals"`
}

// LogEntry is one supplement row of a day replace request.
type LogEntry struct {
	SupplementID int
	DosesTaken   int
	Notes        string
}

// HistoryItem is one logged day rolled up across its supplements.
type HistoryItem struct {
	LogDate          string   `json:"log_date"`
	TargetDoses      int      `json:"target_doses"`
	TakenDoses       int      `json:"taken_doses"`
	AdherencePct     *float64 `json:"adherence_pct"`
	AdherenceBasePct *float64 `json:"adherence_base_pct"`
	AdherenceLabel   string   `json:"adherence_label"`
	ExtraDoses       int      `json:"extra_doses"`
	Status           string   `json:"status"`
	Details          string   `json:"details"`
	Notes            string   `json:"notes"`
}

// NormalizeName collapses inner whitespace and clips to the catalog
// limit.
func NormalizeName(name string) string {
	return pkg.ClipText(name, nameMaxLen)
}
