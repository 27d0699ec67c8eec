package checkin

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importHeader = "log_date,sleep_hours,steps,weight_kg,waist_cm,hip_cm,creatine_yn,alcohol_units"

func TestImporter_Preview(t *testing.T) {
	existing := CheckIn{LogDate: "2026-02-10"}
	importer := NewImporter(NewRepoMock(existing))

	csv := strings.Join([]string{
		importHeader,
		"2026-02-11,7.5,9000,71.2,80,100,Y,0",
		"2026-02-10,8,10000,71.0,80,100,N,1",
		"2026-02-11,6,8000,,,,Y,0",
		"bad-date,7,9000,70,80,100,Y,0",
		"2026-02-12,7,-10,70,80,100,X,0",
	}, "\n")

	result, err := importer.Preview(context.Background(), csv)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Valid)
	assert.Equal(t, 1, result.Summary.Conflict)
	assert.Equal(t, 3, result.Summary.Invalid)

	require.Len(t, result.Preview, 5)
	assert.Equal(t, StatusValid, result.Preview[0].Status)
	require.NotNil(t, result.Preview[0].Row.SleepHours)
	assert.InDelta(t, 7.5, *result.Preview[0].Row.SleepHours, 0.0001)

	assert.Equal(t, StatusConflict, result.Preview[1].Status)
	assert.Equal(t, "la fecha ya existe en la base local", result.Preview[1].Reason)

	assert.Equal(t, StatusInvalid, result.Preview[2].Status)
	assert.Equal(t, "fecha duplicada dentro del CSV", result.Preview[2].Reason)

	assert.Equal(t, StatusInvalid, result.Preview[3].Status)
	assert.Contains(t, result.Preview[3].Reason, "log_date invalida")

	assert.Equal(t, StatusInvalid, result.Preview[4].Status)
	assert.Contains(t, result.Preview[4].Reason, "steps no puede ser negativo")
	assert.Contains(t, result.Preview[4].Reason, "creatine_yn debe ser Y o N")
}

func TestImporter_Preview_DelimiterAndHintRows(t *testing.T) {
	importer := NewImporter(NewRepoMock())

	csv := strings.Join([]string{
		strings.ReplaceAll(importHeader, ",", ";"),
		"#TYPE_HINT;fecha;horas;;;;;",
		"",
		"2026-02-11;7,5;9000;71,2;80;100;Y;0",
	}, "\n")

	result, err := importer.Preview(context.Background(), csv)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Valid)
	require.NotNil(t, result.Preview[0].Row.WeightKg)
	assert.InDelta(t, 71.2, *result.Preview[0].Row.WeightKg, 0.0001)
}

func TestImporter_Preview_MissingColumns(t *testing.T) {
	importer := NewImporter(NewRepoMock())

	_, err := importer.Preview(context.Background(), "log_date,sleep_hours\n2026-02-11,7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Faltan columnas obligatorias")
	assert.Contains(t, err.Error(), "steps")
}

func TestImporter_Apply(t *testing.T) {
	repo := NewRepoMock(CheckIn{LogDate: "2026-02-10"})
	importer := NewImporter(repo)

	result, err := importer.Apply(context.Background(), []ApplyRow{
		{RowNumber: 2, Row: map[string]any{
			"log_date": "2026-02-11", "sleep_hours": 7.5, "steps": 9000.0,
			"weight_kg": 71.2, "waist_cm": 80.0, "hip_cm": 100.0,
			"creatine_yn": "Y", "alcohol_units": 0.0,
		}},
		{RowNumber: 3, Row: map[string]any{"log_date": "2026-02-10", "sleep_hours": 8.0}},
		{RowNumber: 4, Row: map[string]any{"log_date": "2026-02-11", "sleep_hours": 6.0}},
		{RowNumber: 5, Row: map[string]any{"log_date": "nope"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Imported)
	assert.Equal(t, 1, result.Summary.Conflict)
	assert.Equal(t, 2, result.Summary.Invalid)

	assert.Equal(t, StatusImported, result.Results[0].Status)
	assert.Equal(t, StatusConflict, result.Results[1].Status)
	assert.Equal(t, "la fecha ya existe y no se sobrescribe", result.Results[1].Reason)
	assert.Equal(t, StatusInvalid, result.Results[2].Status)
	assert.Equal(t, "fecha duplicada dentro del bloque importado", result.Results[2].Reason)
	assert.Equal(t, StatusInvalid, result.Results[3].Status)

	saved, ok := repo.CheckIns["2026-02-11"]
	require.True(t, ok)
	require.NotNil(t, saved.Steps)
	assert.Equal(t, 9000, *saved.Steps)

	// conflicting date kept its original content
	kept := repo.CheckIns["2026-02-10"]
	assert.Nil(t, kept.SleepHours)
}

func TestCheckIn_WHR(t *testing.T) {
	waist, hip := 80.0, 100.0
	c := CheckIn{WaistCm: &waist, HipCm: &hip}
	require.NotNil(t, c.WHR())
	assert.InDelta(t, 0.8, *c.WHR(), 0.0001)

	zeroHip := 0.0
	c = CheckIn{WaistCm: &waist, HipCm: &zeroHip}
	assert.Nil(t, c.WHR())

	c = CheckIn{WaistCm: &waist}
	assert.Nil(t, c.WHR())
}
