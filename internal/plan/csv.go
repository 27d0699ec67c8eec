package plan

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ibaifernandez/gymtracker/internal/importcsv"
)

const ExerciseSlots = 6

// DietTemplateColumns is the canonical diet-plan template, in file order.
var DietTemplateColumns = []string{
	"log_date",
	"calories_target_kcal",
	"protein_target_g",
	"carbs_target_g",
	"fat_target_g",
	"breakfast",
	"snack_1",
	"lunch",
	"snack_2",
	"dinner",
	"notes",
}

var workoutBaseColumns = []string{
	"log_date",
	"session_type",
	"warmup",
	"class_sessions",
	"cardio",
	"mobility_cooldown",
	"additional_exercises",
	"notes",
}

var exerciseSlotSuffixes = []string{
	"name",
	"sets",
	"reps_min",
	"reps_max",
	"weight_kg",
	"rpe",
	"intensity_target",
	"progression_weight_rule",
	"progression_reps_rule",
}

// WorkoutTemplateColumns is the canonical workout-plan template: the base
// session columns followed by the six exercise slots.
var WorkoutTemplateColumns = buildWorkoutTemplateColumns()

func buildWorkoutTemplateColumns() []string {
	cols := make([]string, 0, len(workoutBaseColumns)+ExerciseSlots*len(exerciseSlotSuffixes))
	cols = append(cols, workoutBaseColumns...)
	for slot := 1; slot <= ExerciseSlots; slot++ {
		for _, suffix := range exerciseSlotSuffixes {
			cols = append(cols, fmt.Sprintf("exercise_%d_%s", slot, suffix))
		}
	}
	return cols
}

var dietHeaderAliases = map[string]string{
	"date":                 "log_date",
	"log_date":             "log_date",
	"fecha":                "log_date",
	"calories_target_kcal": "calories_target_kcal",
	"kcal_target":          "calories_target_kcal",
	"protein_target_g":     "protein_target_g",
	"carbs_target_g":       "carbs_target_g",
	"fat_target_g":         "fat_target_g",
	"breakfast":            "breakfast",
	"snack_1":              "snack_1",
	"snack1":               "snack_1",
	"lunch":                "lunch",
	"snack_2":              "snack_2",
	"snack2":               "snack_2",
	"dinner":               "dinner",
	"notes":                "notes",
}

var workoutHeaderAliases = map[string]string{
	"date":                 "log_date",
	"log_date":             "log_date",
	"fecha":                "log_date",
	"session_type":         "session_type",
	"tipo_sesion":          "session_type",
	"warmup":               "warmup",
	"class_sessions":       "class_sessions",
	"sessions_class":       "class_sessions",
	"cardio":               "cardio",
	"mobility_cooldown":    "mobility_cooldown",
	"additional_exercises": "additional_exercises",
	"notes":                "notes",
}

var exerciseSuffixAliases = map[string]string{
	"name":                    "name",
	"exercise_name":           "name",
	"sets":                    "sets",
	"target_sets":             "sets",
	"reps_min":                "reps_min",
	"target_reps_min":         "reps_min",
	"reps_max":                "reps_max",
	"target_reps_max":         "reps_max",
	"weight_kg":               "weight_kg",
	"target_weight_kg":        "weight_kg",
	"weight":                  "weight_kg",
	"rpe":                     "rpe",
	"target_rpe":              "rpe",
	"intensity_target":        "intensity_target",
	"intensity":               "intensity_target",
	"progression_weight_rule": "progression_weight_rule",
	"progression_weight":      "progression_weight_rule",
	"progression_reps_rule":   "progression_reps_rule",
	"progression_reps":        "progression_reps_rule",
}

var exerciseHeaderRe = regexp.MustCompile(`^(?:exercise|ex)_?(\d+)_?([a-z0-9_]+)$`)

func canonicalDietHeader(name string) string {
	key := importcsv.NormalizeHeaderName(name)
	if canonical, ok := dietHeaderAliases[key]; ok {
		return canonical
	}
	return key
}

func canonicalWorkoutHeader(name string) string {
	key := importcsv.NormalizeHeaderName(name)
	if canonical, ok := workoutHeaderAliases[key]; ok {
		return canonical
	}

	m := exerciseHeaderRe.FindStringSubmatch(key)
	if m == nil {
		return key
	}
	slot, err := strconv.Atoi(m[1])
	if err != nil || slot < 1 || slot > ExerciseSlots {
		return key
	}
	suffix, ok := exerciseSuffixAliases[m[2]]
	if !ok {
		return key
	}
	return fmt.Sprintf("exercise_%d_%s", slot, suffix)
}
