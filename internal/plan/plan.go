// Package plan holds the "planned" side of the planned-vs-actual module:
// diet and workout targets imported from CSV, plus the per-day adherence
// scores rating how closely reality matched the plan.
package plan

import "time"

const (
	SessionTypeClase = "clase"
	SessionTypePesas = "pesas"
)

// DietDay is the declared diet target for one calendar date. Macro
// targets are optional, the five meal texts are not.
type DietDay struct {
	LogDate            string   `json:"log_date"`
	CaloriesTargetKcal *float64 `json:"calories_target_kcal"`
	ProteinTargetG     *float64 `json:"protein_target_g"`
	CarbsTargetG       *float64 `json:"carbs_target_g"`
	FatTargetG         *float64 `json:"fat_target_g"`
	Breakfast          string   `json:"breakfast"`
	Snack1             string   `json:"snack_1"`
	Lunch              string   `json:"lunch"`
	Snack2             string   `json:"snack_2"`
	Dinner             string   `json:"dinner"`
	Notes              string   `json:"notes"`
	SourceTag          string   `json:"source_tag,omitempty"`
	UpdatedAt          string   `json:"updated_at,omitempty"`
}

// WorkoutSession is one planned session of a date. PlanSessionID is
// derived at import time ("S01", "S02"...) from row order within the
// date, never supplied by the user.
type WorkoutSession struct {
	LogDate             string            `json:"log_date"`
	PlanSessionID       string            `json:"plan_session_id"`
	SessionOrder        int               `json:"session_order,omitempty"`
	SessionType         string            `json:"session_type"`
	Warmup              string            `json:"warmup"`
	ClassSessions       string            `json:"class_sessions"`
	Cardio              string            `json:"cardio"`
	MobilityCooldown    string            `json:"mobility_cooldown"`
	AdditionalExercises string            `json:"additional_exercises"`
	Notes               string            `json:"notes"`
	SourceTag           string            `json:"source_tag,omitempty"`
	Exercises           []WorkoutExercise `json:"exercises"`
}

type WorkoutExercise struct {
	ExerciseOrder         int      `json:"exercise_order"`
	ExerciseName          string   `json:"exercise_name"`
	TargetSets            *int     `json:"target_sets"`
	TargetRepsMin         *int     `json:"target_reps_min"`
	TargetRepsMax         *int     `json:"target_reps_max"`
	TargetWeightKg        *float64 `json:"target_weight_kg"`
	TargetRPE             *float64 `json:"target_rpe"`
	IntensityTarget       string   `json:"intensity_target"`
	ProgressionWeightRule string   `json:"progression_weight_rule"`
	ProgressionRepsRule   string   `json:"progression_reps_rule"`
}

// Adherence is the post-hoc rating of one date: each score is 1, 0.5, 0
// or absent, independently of the other.
type Adherence struct {
	LogDate      string    `json:"log_date"`
	DietScore    *float64  `json:"diet_score"`
	WorkoutScore *float64  `json:"workout_score"`
	Notes        string    `json:"notes"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TotalScore is the mean of the scores that are present, or nil when
// neither is.
func TotalScore(dietScore, workoutScore *float64) *float64 {
	var sum float64
	var n int
	if dietScore != nil {
		sum += *dietScore
		n++
	}
	if workoutScore != nil {
		sum += *workoutScore
		n++
	}
	if n == 0 {
		return nil
	}
	total := sum / float64(n)
	return &total
}

// ValidScore reports whether v is one of the allowed score values.
func ValidScore(v float64) bool {
	return v == 0 || v == 0.5 || v == 1
}

// ScoreLabel derives the display state of a score: without a plan the
// score is not meaningfully comparable at all.
func ScoreLabel(score *float64, hasPlan bool) string {
	if !hasPlan {
		return "Sin plan"
	}
	if score == nil {
		return "Pendiente"
	}
	switch {
	case *score >= 0.75:
		return "Cumplida"
	case *score >= 0.25:
		return "Parcial"
	default:
		return "No cumplida"
	}
}
