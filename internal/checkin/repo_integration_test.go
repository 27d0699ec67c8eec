//go:build integration_test || all_tests

package checkin

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/db"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deleteAll(ctx context.Context, repo *Repo) (int64, error) {
	tag, err := repo.db.Exec(ctx, `DELETE FROM checkin_log`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func testRepoSetup(t *testing.T) (*Repo, func()) {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         "5432",
		DBName:         "gymtracker",
		TracingEnabled: false,
	})
	require.NoError(t, err)

	return NewRepo(dbPool), func() {
		dbPool.Close()
	}
}

func fakeCheckIn(logDate string) CheckIn {
	sleep := gofakeit.Float64Range(4, 10)
	steps := gofakeit.Number(1000, 25000)
	weight := gofakeit.Float64Range(60, 95)
	waist := gofakeit.Float64Range(70, 100)
	hip := gofakeit.Float64Range(85, 110)
	return CheckIn{
		LogDate:      logDate,
		SleepHours:   &sleep,
		Steps:        &steps,
		WeightKg:     &weight,
		WaistCm:      &waist,
		HipCm:        &hip,
		AlcoholUnits: gofakeit.Number(0, 3),
	}
}

func TestRepo_UpsertGetDelete(t *testing.T) {
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	ctx := context.Background()
	deleted, err := deleteAll(ctx, repo)
	require.NoError(t, err)
	t.Logf("test setup, deleted check-ins: %d", deleted)

	c := fakeCheckIn("2026-03-02")
	require.NoError(t, repo.Upsert(ctx, c))

	exists, err := repo.Exists(ctx, c.LogDate)
	require.NoError(t, err)
	assert.True(t, exists)

	retrieved, err := repo.Get(ctx, c.LogDate)
	require.NoError(t, err)
	require.NotNil(t, retrieved.WeightKg)
	assert.InDelta(t, *c.WeightKg, *retrieved.WeightKg, 0.0001)
	require.NotNil(t, retrieved.Steps)
	assert.Equal(t, *c.Steps, *retrieved.Steps)

	// upsert on the same date overwrites
	newWeight := gofakeit.Float64Range(60, 95)
	c.WeightKg = &newWeight
	require.NoError(t, repo.Upsert(ctx, c))
	retrieved, err = repo.Get(ctx, c.LogDate)
	require.NoError(t, err)
	assert.InDelta(t, newWeight, *retrieved.WeightKg, 0.0001)

	require.NoError(t, repo.Delete(ctx, c.LogDate))
	assert.ErrorIs(t, repo.Delete(ctx, c.LogDate), ErrCheckinNotFound)

	_, err = repo.Get(ctx, c.LogDate)
	assert.ErrorIs(t, err, ErrCheckinNotFound)
}

func TestRepo_ListRangeAndWindow(t *testing.T) {
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	ctx := context.Background()
	_, err := deleteAll(ctx, repo)
	require.NoError(t, err)

	today := pkg.FormatISODate(time.Now())
	dates := []string{
		pkg.AddDaysISO(today, -40),
		pkg.AddDaysISO(today, -5),
		pkg.AddDaysISO(today, -1),
		today,
	}
	for _, date := range dates {
		require.NoError(t, repo.Upsert(ctx, fakeCheckIn(date)))
	}

	ranged, err := repo.ListRange(ctx, dates[1], today)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	// oldest first
	assert.Equal(t, dates[1], ranged[0].LogDate)
	assert.Equal(t, today, ranged[2].LogDate)

	windowed, err := repo.ListWindow(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, windowed, 3)

	maxDate, err := repo.MaxLogDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, today, maxDate)

	existing, err := repo.ExistingDates(ctx)
	require.NoError(t, err)
	assert.Len(t, existing, 4)
	assert.True(t, existing[today])
}
