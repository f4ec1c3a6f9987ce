package schedule

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racebase/harvester/pkg/errors"
)

func testConfig() Config {
	return Config{
		Regions:       []string{"ARA", "BFC", "BRE"},
		WindowMonths:  3,
		RegionsPerRun: 1,
		MonthsPerRun:  2,
		Cooldown:      30 * 24 * time.Hour,
	}
}

func TestMonths(t *testing.T) {
	now := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"2025-11", "2025-12", "2026-01"}, Months(now, 3))
}

func TestUnitSpan(t *testing.T) {
	from, to, err := Unit{Region: "ARA", Month: "2025-11"}.Span()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), to)

	_, _, err = Unit{Month: "november"}.Span()
	assert.Error(t, err)
}

func TestNextWorkUnitsFreshCycle(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	p := NewProgress()

	units, err := NextWorkUnits(p, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, []Unit{
		{Region: "ARA", Month: "2025-11"},
		{Region: "ARA", Month: "2025-12"},
	}, units)
	assert.Equal(t, "ARA", p.CurrentRegion)
	assert.Equal(t, "2025-11", p.CurrentMonth)
}

func TestCycleResumesWhereItStopped(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	p := NewProgress()

	units, err := NextWorkUnits(p, cfg, now)
	require.NoError(t, err)
	for _, u := range units {
		MarkCompleted(p, u)
	}
	Advance(p, cfg, now)

	// The first region still owes the last window month.
	assert.Equal(t, "ARA", p.CurrentRegion)
	assert.Equal(t, "2026-01", p.CurrentMonth)

	units, err = NextWorkUnits(p, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, []Unit{{Region: "ARA", Month: "2026-01"}}, units)
	for _, u := range units {
		MarkCompleted(p, u)
	}
	Advance(p, cfg, now)

	assert.Equal(t, "BFC", p.CurrentRegion)
	assert.Equal(t, "2025-11", p.CurrentMonth)
}

func TestCycleCompletionAndCooldown(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	p := NewProgress()

	for i := 0; i < 20; i++ {
		units, err := NextWorkUnits(p, cfg, now)
		require.NoError(t, err)
		if len(units) == 0 {
			break
		}
		for _, u := range units {
			MarkCompleted(p, u)
		}
		Advance(p, cfg, now)
	}
	require.NotNil(t, p.LastFullCycleCompletedAt)
	assert.Equal(t, 9, p.Counters.UnitsCompleted)

	// Ten days into a thirty-day cooldown the planner yields nothing.
	tenDaysLater := now.Add(10 * 24 * time.Hour)
	units, err := NextWorkUnits(p, cfg, tenDaysLater)
	assert.Empty(t, units)
	assert.True(t, errors.Is(err, errors.ErrCooldown))

	// Past the cooldown a fresh cycle starts from the first region.
	later := now.Add(31 * 24 * time.Hour)
	units, err = NextWorkUnits(p, cfg, later)
	require.NoError(t, err)
	require.NotEmpty(t, units)
	assert.Equal(t, "ARA", units[0].Region)
	assert.Equal(t, "2025-12", units[0].Month)
	assert.Equal(t, 0, p.Counters.UnitsCompleted)
	assert.Nil(t, p.LastFullCycleCompletedAt)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	p := NewProgress()
	unit := Unit{Region: "ARA", Month: "2025-11"}
	MarkCompleted(p, unit)
	MarkCompleted(p, unit)
	assert.Equal(t, []string{"2025-11"}, p.Completed["ARA"])
	assert.Equal(t, 1, p.Counters.UnitsCompleted)
}

func TestWindowSlideSnapsStaleCursor(t *testing.T) {
	cfg := testConfig()
	p := NewProgress()
	p.CurrentRegion = "BFC"
	p.CurrentMonth = "2025-08" // window has moved past this month

	now := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	units, err := NextWorkUnits(p, cfg, now)
	require.NoError(t, err)
	require.NotEmpty(t, units)
	assert.Equal(t, "BFC", units[0].Region)
	assert.Equal(t, "2025-11", units[0].Month)
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "progress.yaml"))

	// Missing file yields a fresh state.
	p, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, p.Completed)

	completedAt := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	p.CurrentRegion = "BFC"
	p.CurrentMonth = "2025-12"
	p.Completed["ARA"] = []string{"2025-11", "2025-12"}
	p.LastFullCycleCompletedAt = &completedAt
	p.Counters = Counters{UnitsCompleted: 2, RecordsScraped: 40, ProposalsCreated: 7, ProposalsSuppressed: 3}
	require.NoError(t, store.Save(p))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "BFC", loaded.CurrentRegion)
	assert.Equal(t, "2025-12", loaded.CurrentMonth)
	assert.Equal(t, []string{"2025-11", "2025-12"}, loaded.Completed["ARA"])
	require.NotNil(t, loaded.LastFullCycleCompletedAt)
	assert.True(t, completedAt.Equal(*loaded.LastFullCycleCompletedAt))
	assert.Equal(t, p.Counters, loaded.Counters)
}
