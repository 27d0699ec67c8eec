// Package workout holds the logged (actual) training sessions, as
// opposed to the planned ones: what really happened on a date, with the
// lifts and their top sets.
package workout

import (
	"fmt"
	"strings"

	"github.com/ibaifernandez/gymtracker/pkg"
)

const (
	SessionTypeClase = "clase"
	SessionTypePesas = "pesas"

	exerciseNameMaxLen = 80
)

// Exercise is one logged lift of a session. Deltas are filled on read,
// against the previous chronological instance of the same exercise name.
type Exercise struct {
	ExerciseID   int      `json:"exercise_id,omitempty"`
	ExerciseName string   `json:"exercise_name"`
	SetOrder     int      `json:"set_order"`
	WeightKg     *float64 `json:"weight_kg"`
	Reps         *int     `json:"reps"`
	RPE          *float64 `json:"rpe"`
	TopsetText   string   `json:"topset_text"`
	DeltaWeight  *float64 `json:"delta_weight"`
	DeltaReps    *int     `json:"delta_reps"`
}

// Session is one logged training session. A date can hold several,
// ordered by SessionOrder.
type Session struct {
	SessionID     int        `json:"session_id"`
	LogDate       string     `json:"log_date"`
	SessionOrder  int        `json:"session_order"`
	SessionDoneYN *string    `json:"session_done_yn"`
	SessionType   string     `json:"session_type"`
	ClassDone     string     `json:"class_done"`
	RPESession    *int       `json:"rpe_session"`
	Notes         string     `json:"notes"`
	Exercises     []Exercise `json:"exercises"`
	ExercisesText string     `json:"exercises_text,omitempty"`
}

// NormalizeExerciseName collapses whitespace and clips to the column limit.
func NormalizeExerciseName(v string) string {
	return pkg.ClipText(v, exerciseNameMaxLen)
}

// NormalizeSessionType maps any input onto clase|pesas. The legacy
// "mixta" counts as a weights session; anything unknown as a class.
func NormalizeSessionType(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case SessionTypePesas, "mixta":
		return SessionTypePesas
	default:
		return SessionTypeClase
	}
}

// BuildTopsetText renders the compact top-set summary, e.g.
// "80kg · 5 reps · RPE 8.5". Empty when no metric is present.
func BuildTopsetText(weight *float64, reps *int, rpe *float64) string {
	var parts []string
	if weight != nil {
		parts = append(parts, fmt.Sprintf("%gkg", *weight))
	}
	if reps != nil {
		parts = append(parts, fmt.Sprintf("%d reps", *reps))
	}
	if rpe != nil {
		parts = append(parts, fmt.Sprintf("RPE %g", *rpe))
	}
	return strings.Join(parts, " · ")
}
