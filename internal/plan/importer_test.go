package plan

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dietCSV renders a diet-plan CSV with the full template header.
func dietCSV(rows ...map[string]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(DietTemplateColumns, ","))
	b.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, 0, len(DietTemplateColumns))
		for _, col := range DietTemplateColumns {
			cells = append(cells, row[col])
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}

// workoutCSV renders a workout-plan CSV with the full template header.
func workoutCSV(rows ...map[string]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(WorkoutTemplateColumns, ","))
	b.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, 0, len(WorkoutTemplateColumns))
		for _, col := range WorkoutTemplateColumns {
			cells = append(cells, row[col])
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func dietRow(date string) map[string]string {
	return map[string]string{
		"log_date":             date,
		"calories_target_kcal": "2200",
		"protein_target_g":     "160",
		"breakfast":            "avena",
		"snack_1":              "fruta",
		"lunch":                "arroz con pollo",
		"snack_2":              "yogur",
		"dinner":               "pescado",
	}
}

func pesasRow(date, exerciseName string) map[string]string {
	return map[string]string{
		"log_date":            date,
		"session_type":        "pesas",
		"warmup":              "5 min bici",
		"exercise_1_name":     exerciseName,
		"exercise_1_sets":     "4",
		"exercise_1_reps_min": "6",
		"exercise_1_reps_max": "8",
	}
}

func TestImportDiet(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	rowOK := dietRow("2026-02-02")
	rowDup := dietRow("2026-02-02")
	rowBad := dietRow("2026-02-03")
	rowBad["lunch"] = ""

	result, err := importer.ImportDiet(context.Background(), dietCSV(rowOK, rowDup, rowBad), "")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Imported)
	assert.Equal(t, 2, result.Summary.Invalid)
	assert.Equal(t, 0, result.Summary.Warned)

	require.Len(t, result.Results, 3)
	assert.Equal(t, StatusImported, result.Results[0].Status)
	assert.Equal(t, StatusInvalid, result.Results[1].Status)
	assert.Equal(t, "date duplicada dentro del CSV", result.Results[1].Reason)
	assert.Equal(t, StatusInvalid, result.Results[2].Status)
	assert.Equal(t, "lunch no puede estar vacio", result.Results[2].Reason)

	require.Len(t, repo.DietDays, 1)
	saved := repo.DietDays["2026-02-02"]
	assert.Equal(t, "manual", saved.SourceTag)
	require.NotNil(t, saved.CaloriesTargetKcal)
	assert.InDelta(t, 2200, *saved.CaloriesTargetKcal, 0.0001)
	assert.Nil(t, saved.CarbsTargetG)
}

func TestImportDiet_MacroCaps(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	rowOverCap := dietRow("2026-02-02")
	rowOverCap["calories_target_kcal"] = "20000"
	rowNotANumber := dietRow("2026-02-03")
	rowNotANumber["protein_target_g"] = "mucha"

	result, err := importer.ImportDiet(context.Background(), dietCSV(rowOverCap, rowNotANumber), "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.Invalid)
	assert.Equal(t, "calories_target_kcal fuera de rango", result.Results[0].Reason)
	assert.Equal(t, "protein_target_g invalido", result.Results[1].Reason)
	assert.Empty(t, repo.DietDays)
}

func TestImportDiet_ReimportOverwrites(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	first := dietRow("2026-02-02")
	_, err := importer.ImportDiet(context.Background(), dietCSV(first), "bloque-1")
	require.NoError(t, err)

	second := dietRow("2026-02-02")
	second["dinner"] = "tortilla"
	_, err = importer.ImportDiet(context.Background(), dietCSV(second), "bloque-2")
	require.NoError(t, err)

	require.Len(t, repo.DietDays, 1)
	saved := repo.DietDays["2026-02-02"]
	assert.Equal(t, "tortilla", saved.Dinner)
	assert.Equal(t, "bloque-2", saved.SourceTag)
}

func TestImportWorkout_SetsValidation(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	cases := map[string]string{
		"3-4":  "exercise_1: sets invalido",
		"3x10": "exercise_1: sets invalido",
		"3.5":  "exercise_1: sets invalido",
		"0":    "exercise_1: sets fuera de rango (1-12)",
		"13":   "exercise_1: sets fuera de rango (1-12)",
	}
	for sets, wantReason := range cases {
		row := pesasRow("2026-02-02", "press banca")
		row["exercise_1_sets"] = sets

		result, err := importer.ImportWorkout(context.Background(), workoutCSV(row), "")
		require.NoError(t, err)

		require.Len(t, result.Results, 1, "sets=%s", sets)
		assert.Equal(t, StatusInvalid, result.Results[0].Status, "sets=%s", sets)
		assert.Equal(t, wantReason, result.Results[0].Reason, "sets=%s", sets)
	}
	assert.Empty(t, repo.Sessions)
}

func TestImportWorkout_RepsOrdering(t *testing.T) {
	importer := NewImporter(NewRepoMock())

	row := pesasRow("2026-02-02", "sentadilla")
	row["exercise_1_reps_min"] = "10"
	row["exercise_1_reps_max"] = "8"

	result, err := importer.ImportWorkout(context.Background(), workoutCSV(row), "")
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Equal(t, StatusInvalid, result.Results[0].Status)
	assert.Equal(t, "exercise_1: reps_min no puede ser mayor que reps_max", result.Results[0].Reason)
}

func TestImportWorkout_ExerciseWithoutName(t *testing.T) {
	importer := NewImporter(NewRepoMock())

	row := pesasRow("2026-02-02", "press banca")
	row["exercise_2_sets"] = "3"

	result, err := importer.ImportWorkout(context.Background(), workoutCSV(row), "")
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Equal(t, StatusInvalid, result.Results[0].Status)
	assert.Equal(t, "exercise_2: name obligatorio", result.Results[0].Reason)
}

func TestImportWorkout_ClaseDropsExercises(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	weights := pesasRow("2026-02-02", "press banca")
	class := map[string]string{
		"log_date":        "2026-02-02",
		"session_type":    "CLASE",
		"class_sessions":  "spinning 45min",
		"exercise_1_name": "colado",
		"exercise_1_sets": "3",
	}

	result, err := importer.ImportWorkout(context.Background(), workoutCSV(weights, class), "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.Imported)
	assert.Equal(t, 1, result.Summary.Warned)
	assert.Equal(t, "session_type clase: se ignoraron 1 ejercicios (solo aplican a pesas)", result.Results[1].Reason)

	s01 := repo.Sessions[workoutSessionKey{"2026-02-02", "S01"}]
	require.Len(t, s01.Exercises, 1)
	assert.Equal(t, "press banca", s01.Exercises[0].ExerciseName)

	s02 := repo.Sessions[workoutSessionKey{"2026-02-02", "S02"}]
	assert.Equal(t, SessionTypeClase, s02.SessionType)
	assert.Empty(t, s02.Exercises)
}

func TestImportWorkout_OrdinalsSkipInvalidRows(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	first := pesasRow("2026-02-02", "press banca")
	broken := pesasRow("2026-02-02", "remo")
	broken["session_type"] = "cardio"
	second := pesasRow("2026-02-02", "dominadas")

	result, err := importer.ImportWorkout(context.Background(), workoutCSV(first, broken, second), "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.Imported)
	assert.Equal(t, 1, result.Summary.Invalid)
	assert.Equal(t, "session_type debe ser clase o pesas", result.Results[1].Reason)

	assert.Equal(t, "S01", result.Results[0].Row.PlanSessionID)
	assert.Equal(t, "S02", result.Results[2].Row.PlanSessionID)
	require.Len(t, repo.Sessions, 2)
	_, hasS03 := repo.Sessions[workoutSessionKey{"2026-02-02", "S03"}]
	assert.False(t, hasS03)
}

func TestImportWorkout_DuplicateRow(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	row := pesasRow("2026-02-02", "press banca")

	result, err := importer.ImportWorkout(context.Background(), workoutCSV(row, row), "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.Imported)
	assert.Equal(t, 1, result.Summary.Invalid)
	assert.Equal(t, "fila duplicada dentro del CSV", result.Results[1].Reason)
	require.Len(t, repo.Sessions, 1)
}

func TestImportWorkout_MixtaCoerced(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	row := pesasRow("2026-02-02", "press banca")
	row["session_type"] = "mixta"

	result, err := importer.ImportWorkout(context.Background(), workoutCSV(row), "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.Imported)
	assert.Equal(t, 1, result.Summary.Warned)
	assert.Equal(t, "session_type 'mixta' se interpreta como pesas", result.Results[0].Reason)
	assert.Equal(t, SessionTypePesas, repo.Sessions[workoutSessionKey{"2026-02-02", "S01"}].SessionType)
}

func TestImportWorkout_ReimportReplacesDay(t *testing.T) {
	repo := NewRepoMock()
	importer := NewImporter(repo)

	_, err := importer.ImportWorkout(
		context.Background(),
		workoutCSV(pesasRow("2026-02-02", "press banca"), pesasRow("2026-02-02", "remo")),
		"",
	)
	require.NoError(t, err)
	require.Len(t, repo.Sessions, 2)

	_, err = importer.ImportWorkout(
		context.Background(),
		workoutCSV(pesasRow("2026-02-02", "sentadilla")),
		"",
	)
	require.NoError(t, err)

	require.Len(t, repo.Sessions, 1)
	saved := repo.Sessions[workoutSessionKey{"2026-02-02", "S01"}]
	require.Len(t, saved.Exercises, 1)
	assert.Equal(t, "sentadilla", saved.Exercises[0].ExerciseName)
}

func TestImportWorkout_MissingColumns(t *testing.T) {
	importer := NewImporter(NewRepoMock())

	_, err := importer.ImportWorkout(context.Background(), "log_date,session_type\n2026-02-02,pesas\n", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Faltan columnas obligatorias")
}
