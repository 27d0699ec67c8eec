package supplements

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(repo *repoMock) *Service {
	service := NewService(repo)
	service.now = func() time.Time {
		return time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	}
	return service
}

func seedCatalog() []Supplement {
	return []Supplement{
		{SupplementID: 1, Name: "Creatina", DosesPerDay: 1, ActiveYN: "Y"},
		{SupplementID: 2, Name: "Omega 3", DosesPerDay: 2, ActiveYN: "Y"},
	}
}

func TestService_History_Labels(t *testing.T) {
	repo := NewRepoMock(seedCatalog()...)
	ctx := context.Background()

	// full day plus an extra dose
	require.NoError(t, repo.ReplaceDay(ctx, "2026-02-10", []LogEntry{
		{SupplementID: 1, DosesTaken: 2},
		{SupplementID: 2, DosesTaken: 2},
	}))
	// partial day above the warn cutoff
	require.NoError(t, repo.ReplaceDay(ctx, "2026-02-09", []LogEntry{
		{SupplementID: 1, DosesTaken: 1, Notes: "con el desayuno"},
		{SupplementID: 2, DosesTaken: 1, Notes: "con el desayuno"},
	}))
	// barely anything
	require.NoError(t, repo.ReplaceDay(ctx, "2026-02-08", []LogEntry{
		{SupplementID: 1, DosesTaken: 1},
		{SupplementID: 2, DosesTaken: 0},
	}))

	items, err := newTestService(repo).History(ctx, 15)
	require.NoError(t, err)
	require.Len(t, items, 3)

	full := items[0]
	assert.Equal(t, "2026-02-10", full.LogDate)
	assert.Equal(t, 3, full.TargetDoses)
	assert.Equal(t, 4, full.TakenDoses)
	assert.Equal(t, "good", full.Status)
	assert.Equal(t, "100% (+1 extra)", full.AdherenceLabel)
	assert.Equal(t, 1, full.ExtraDoses)
	assert.Equal(t, "Creatina 2/1 · Omega 3 2/2", full.Details)

	partial := items[1]
	assert.Equal(t, "warn", partial.Status)
	assert.Equal(t, "67%", partial.AdherenceLabel)
	require.NotNil(t, partial.AdherencePct)
	assert.InDelta(t, 66.67, *partial.AdherencePct, 0.01)
	// repeated notes collapse to one
	assert.Equal(t, "con el desayuno", partial.Notes)

	low := items[2]
	assert.Equal(t, "bad", low.Status)
	assert.Equal(t, "33%", low.AdherenceLabel)
}

func TestService_History_NoTarget(t *testing.T) {
	repo := NewRepoMock(Supplement{SupplementID: 1, Name: "Melatonina", DosesPerDay: 0, ActiveYN: "Y"})
	ctx := context.Background()
	require.NoError(t, repo.ReplaceDay(ctx, "2026-02-10", []LogEntry{{SupplementID: 1, DosesTaken: 1}}))

	items, err := newTestService(repo).History(ctx, 15)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "muted", items[0].Status)
	assert.Equal(t, "Sin objetivo", items[0].AdherenceLabel)
	assert.Nil(t, items[0].AdherencePct)
	assert.Equal(t, "Melatonina 1/0", items[0].Details)
}

func TestService_History_WindowSkipsOldDays(t *testing.T) {
	repo := NewRepoMock(seedCatalog()...)
	ctx := context.Background()
	require.NoError(t, repo.ReplaceDay(ctx, "2025-11-01", []LogEntry{{SupplementID: 1, DosesTaken: 1}}))
	require.NoError(t, repo.ReplaceDay(ctx, "2026-02-10", []LogEntry{{SupplementID: 1, DosesTaken: 1}}))

	items, err := newTestService(repo).History(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2026-02-10", items[0].LogDate)
}

func TestService_History_Empty(t *testing.T) {
	items, err := newTestService(NewRepoMock(seedCatalog()...)).History(context.Background(), 15)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Omega 3", NormalizeName("  Omega   3  "))
	assert.Equal(t, "", NormalizeName("   "))
}
