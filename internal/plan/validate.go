package plan

import (
	"fmt"
	"strings"

	"github.com/ibaifernandez/gymtracker/internal/importcsv"
	"github.com/ibaifernandez/gymtracker/pkg"
)

// Per-column limits of the plan templates. Reason strings are reported
// verbatim to the user, in the same wording the UI already groups on.
const (
	mealTextMaxLen        = 600
	sessionTextMaxLen     = 700
	exerciseNameMaxLen    = 90
	intensityMaxLen       = 140
	progressionRuleMaxLen = 240
)

var dietMacroCaps = []struct {
	field string
	max   float64
	set   func(*DietDay, *float64)
}{
	{"calories_target_kcal", 12000, func(d *DietDay, v *float64) { d.CaloriesTargetKcal = v }},
	{"protein_target_g", 800, func(d *DietDay, v *float64) { d.ProteinTargetG = v }},
	{"carbs_target_g", 1500, func(d *DietDay, v *float64) { d.CarbsTargetG = v }},
	{"fat_target_g", 500, func(d *DietDay, v *float64) { d.FatTargetG = v }},
}

// parseDietRow validates one diet-plan CSV row. Macro targets are
// optional; the five meal texts must be present.
func parseDietRow(fields map[string]string) (DietDay, []string) {
	var day DietDay
	var errs []string

	day.LogDate = strings.TrimSpace(fields["log_date"])
	if !pkg.ValidISODate(day.LogDate) {
		errs = append(errs, "date invalida (formato AAAA-MM-DD)")
	}

	for _, macro := range dietMacroCaps {
		val, parseErr := importcsv.ParseFloat(fields[macro.field])
		if parseErr != "" {
			errs = append(errs, macro.field+" invalido")
			continue
		}
		if val != nil && (*val < 0 || *val > macro.max) {
			errs = append(errs, macro.field+" fuera de rango")
			continue
		}
		macro.set(&day, val)
	}

	day.Breakfast = pkg.ClipText(fields["breakfast"], mealTextMaxLen)
	day.Snack1 = pkg.ClipText(fields["snack_1"], mealTextMaxLen)
	day.Lunch = pkg.ClipText(fields["lunch"], mealTextMaxLen)
	day.Snack2 = pkg.ClipText(fields["snack_2"], mealTextMaxLen)
	day.Dinner = pkg.ClipText(fields["dinner"], mealTextMaxLen)
	day.Notes = pkg.ClipText(fields["notes"], mealTextMaxLen)

	for _, meal := range []struct{ field, value string }{
		{"breakfast", day.Breakfast},
		{"snack_1", day.Snack1},
		{"lunch", day.Lunch},
		{"snack_2", day.Snack2},
		{"dinner", day.Dinner},
	} {
		if meal.value == "" {
			errs = append(errs, meal.field+" no puede estar vacio")
		}
	}

	return day, errs
}

// parseWorkoutRow validates one workout-plan CSV row into a session and
// its exercise slots. The legacy session type "mixta" is accepted but
// coerced to "pesas" with a warning.
func parseWorkoutRow(fields map[string]string) (WorkoutSession, []string, []string) {
	var session WorkoutSession
	var errs, warnings []string

	session.LogDate = strings.TrimSpace(fields["log_date"])
	if !pkg.ValidISODate(session.LogDate) {
		errs = append(errs, "date invalida (formato AAAA-MM-DD)")
	}

	switch rawType := strings.ToLower(strings.TrimSpace(fields["session_type"])); rawType {
	case SessionTypeClase, SessionTypePesas:
		session.SessionType = rawType
	case "mixta":
		session.SessionType = SessionTypePesas
		warnings = append(warnings, "session_type 'mixta' se interpreta como pesas")
	default:
		errs = append(errs, "session_type debe ser clase o pesas")
		session.SessionType = SessionTypeClase
	}

	session.Warmup = pkg.ClipText(fields["warmup"], sessionTextMaxLen)
	session.ClassSessions = pkg.ClipText(fields["class_sessions"], sessionTextMaxLen)
	session.Cardio = pkg.ClipText(fields["cardio"], sessionTextMaxLen)
	session.MobilityCooldown = pkg.ClipText(fields["mobility_cooldown"], sessionTextMaxLen)
	session.AdditionalExercises = pkg.ClipText(fields["additional_exercises"], sessionTextMaxLen)
	session.Notes = pkg.ClipText(fields["notes"], sessionTextMaxLen)

	session.Exercises = make([]WorkoutExercise, 0, ExerciseSlots)
	for slot := 1; slot <= ExerciseSlots; slot++ {
		exercise, slotErrs, empty := parseExerciseSlot(slot, fields)
		if empty {
			continue
		}
		if len(slotErrs) > 0 {
			errs = append(errs, fmt.Sprintf("exercise_%d: %s", slot, strings.Join(slotErrs, "; ")))
			continue
		}
		session.Exercises = append(session.Exercises, exercise)
	}

	if session.SessionType == SessionTypeClase && len(session.Exercises) > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"session_type clase: se ignoraron %d ejercicios (solo aplican a pesas)",
			len(session.Exercises),
		))
		session.Exercises = session.Exercises[:0]
	}

	return session, errs, warnings
}

// parseExerciseSlot validates one exercise_{slot}_* column group. A slot
// is either fully empty or carries a name; numeric sub-fields without a
// name make the whole row invalid.
func parseExerciseSlot(slot int, fields map[string]string) (WorkoutExercise, []string, bool) {
	prefix := fmt.Sprintf("exercise_%d_", slot)

	empty := true
	for _, suffix := range exerciseSlotSuffixes {
		if strings.TrimSpace(fields[prefix+suffix]) != "" {
			empty = false
			break
		}
	}
	if empty {
		return WorkoutExercise{}, nil, true
	}

	exercise := WorkoutExercise{ExerciseOrder: slot}
	var errs []string

	exercise.ExerciseName = pkg.ClipText(fields[prefix+"name"], exerciseNameMaxLen)
	if exercise.ExerciseName == "" {
		errs = append(errs, "name obligatorio")
	}

	var parseErr string
	if exercise.TargetSets, parseErr = importcsv.ParseInt(fields[prefix+"sets"]); parseErr != "" {
		errs = append(errs, "sets invalido")
	} else if exercise.TargetSets != nil && (*exercise.TargetSets < 1 || *exercise.TargetSets > 12) {
		errs = append(errs, "sets fuera de rango (1-12)")
	}

	if exercise.TargetRepsMin, parseErr = importcsv.ParseInt(fields[prefix+"reps_min"]); parseErr != "" {
		errs = append(errs, "reps_min invalido")
	} else if exercise.TargetRepsMin != nil && (*exercise.TargetRepsMin < 1 || *exercise.TargetRepsMin > 100) {
		errs = append(errs, "reps_min fuera de rango (1-100)")
	}

	if exercise.TargetRepsMax, parseErr = importcsv.ParseInt(fields[prefix+"reps_max"]); parseErr != "" {
		errs = append(errs, "reps_max invalido")
	} else if exercise.TargetRepsMax != nil && (*exercise.TargetRepsMax < 1 || *exercise.TargetRepsMax > 100) {
		errs = append(errs, "reps_max fuera de rango (1-100)")
	}

	if exercise.TargetRepsMin != nil && exercise.TargetRepsMax != nil &&
		*exercise.TargetRepsMin > *exercise.TargetRepsMax {
		errs = append(errs, "reps_min no puede ser mayor que reps_max")
	}

	if exercise.TargetWeightKg, parseErr = importcsv.ParseFloat(fields[prefix+"weight_kg"]); parseErr != "" {
		errs = append(errs, "weight_kg invalido")
	} else if exercise.TargetWeightKg != nil && (*exercise.TargetWeightKg < 0 || *exercise.TargetWeightKg > 1000) {
		errs = append(errs, "weight_kg fuera de rango")
	}

	if exercise.TargetRPE, parseErr = importcsv.ParseFloat(fields[prefix+"rpe"]); parseErr != "" {
		errs = append(errs, "rpe invalido")
	} else if exercise.TargetRPE != nil && (*exercise.TargetRPE < 1 || *exercise.TargetRPE > 10) {
		errs = append(errs, "rpe fuera de rango (1-10)")
	}

	exercise.IntensityTarget = pkg.ClipText(fields[prefix+"intensity_target"], intensityMaxLen)
	exercise.ProgressionWeightRule = pkg.ClipText(fields[prefix+"progression_weight_rule"], progressionRuleMaxLen)
	exercise.ProgressionRepsRule = pkg.ClipText(fields[prefix+"progression_reps_rule"], progressionRuleMaxLen)

	return exercise, errs, false
}
