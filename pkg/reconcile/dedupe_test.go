package reconcile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/scrape"
)

func TestHashIgnoresConfidenceAndOrder(t *testing.T) {
	start := time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC)

	a := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"startDate":      {New: start, Confidence: 0.95},
			"calendarStatus": {New: "CONFIRMED", Confidence: 0.95},
		},
		RaceAdds: []catalogs.RaceCreation{
			{Name: "10 km", Distance: intp(10000), StartTime: start, Category: scrape.CategoryRunning, Confidence: 0.95},
			{Name: "Semi", Distance: intp(21100), StartTime: start, Category: scrape.CategoryRunning, Confidence: 0.95},
		},
	}
	b := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"calendarStatus": {New: "CONFIRMED", Confidence: 0.4},
			"startDate":      {New: start.In(Zone("ARA")), Confidence: 0.4},
		},
		RaceAdds: []catalogs.RaceCreation{
			{Name: "Semi", Distance: intp(21100), StartTime: start, Category: scrape.CategoryRunning, Confidence: 0.4},
			{Name: "10 km", Distance: intp(10000), StartTime: start, Category: scrape.CategoryRunning, Confidence: 0.4},
		},
	}

	assert.Equal(t, Hash(a), Hash(b))

	c := a
	c.Fields = map[string]catalogs.FieldChange{
		"startDate":      {New: start.Add(time.Hour), Confidence: 0.95},
		"calendarStatus": {New: "CONFIRMED", Confidence: 0.95},
	}
	assert.NotEqual(t, Hash(a), Hash(c))
}

func TestFilterNewSuppressesIdenticalPending(t *testing.T) {
	d := NewDeduper()
	changes := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"registrantsNumber": {New: 120, Confidence: 0.95},
		},
	}
	pending := []*catalogs.Proposal{
		{ID: "proposal-1", Status: "pending", ContentHash: Hash(changes), Changes: changes},
	}

	_, suppressed := d.FilterNew("edition:1", changes, &catalogs.Edition{}, pending)
	assert.True(t, suppressed)
}

func TestFilterNewDropsFieldAlreadyQueued(t *testing.T) {
	d := NewDeduper()

	// registrantsNumber=120 is already queued in a pending proposal even
	// though the catalog itself still holds no value. Only the organizer
	// email survives.
	pending := []*catalogs.Proposal{
		{
			ID:     "proposal-1",
			Status: "pending",
			Changes: catalogs.Changes{
				Fields: map[string]catalogs.FieldChange{
					"registrantsNumber": {New: 120, Confidence: 0.9},
				},
			},
		},
	}
	changes := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"registrantsNumber": {New: 120, Confidence: 0.95},
			"organizer.email":   {New: "orga@example.fr", Confidence: 0.95},
		},
	}

	filtered, suppressed := d.FilterNew("edition:1", changes, &catalogs.Edition{}, pending)
	require.False(t, suppressed)
	assert.NotContains(t, filtered.Fields, "registrantsNumber")
	assert.Contains(t, filtered.Fields, "organizer.email")
}

func TestFilterNewDropsDateQueuedThroughStorage(t *testing.T) {
	paris := Zone("ARA")
	d := NewDeduper()
	start := time.Date(2026, 4, 12, 9, 0, 0, 0, paris)

	// Pending proposals come back from the database as a decoded JSON
	// document, so the queued date is a zoned string rather than a
	// time.Time. The same instant scraped again must still be dropped.
	queued := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"startDate": {New: start, Confidence: 0.9},
		},
	}
	raw, err := json.Marshal(queued)
	require.NoError(t, err)
	var stored catalogs.Changes
	require.NoError(t, json.Unmarshal(raw, &stored))

	pending := []*catalogs.Proposal{
		{ID: "proposal-1", Status: "pending", Changes: stored},
	}
	changes := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"startDate":       {New: start.UTC(), Confidence: 0.95},
			"organizer.email": {New: "orga@example.fr", Confidence: 0.95},
		},
	}

	filtered, suppressed := d.FilterNew("edition:1", changes, &catalogs.Edition{}, pending)
	require.False(t, suppressed)
	assert.NotContains(t, filtered.Fields, "startDate")
	assert.Contains(t, filtered.Fields, "organizer.email")
}

func TestFilterNewDropsFieldMatchingCatalog(t *testing.T) {
	d := NewDeduper()
	edition := &catalogs.Edition{
		CalendarStatus:    catalogs.CalendarStatusConfirmed,
		RegistrantsNumber: intp(120),
	}
	changes := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"registrantsNumber": {New: 120, Confidence: 0.95},
			"calendarStatus":    {New: "CONFIRMED", Confidence: 0.95},
		},
	}

	_, suppressed := d.FilterNew("edition:1", changes, edition, nil)
	assert.True(t, suppressed)
}

func TestFilterNewPerRunCache(t *testing.T) {
	d := NewDeduper()
	changes := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"organizer.email": {New: "orga@example.fr", Confidence: 0.95},
		},
	}

	filtered, suppressed := d.FilterNew("edition:1", changes, &catalogs.Edition{}, nil)
	require.False(t, suppressed)
	assert.Contains(t, filtered.Fields, "organizer.email")

	// Same content for the same target within the run is suppressed
	// even though no pending proposal exists yet.
	_, suppressed = d.FilterNew("edition:1", changes, &catalogs.Edition{}, nil)
	assert.True(t, suppressed)

	// A different target is unaffected.
	_, suppressed = d.FilterNew("edition:2", changes, &catalogs.Edition{}, nil)
	assert.False(t, suppressed)
}

func TestFilterNewRaceUpdates(t *testing.T) {
	paris := Zone("ARA")
	d := NewDeduper()
	repaired := time.Date(2026, 4, 19, 9, 30, 0, 0, paris)

	pending := []*catalogs.Proposal{
		{
			ID:     "proposal-1",
			Status: "pending",
			Changes: catalogs.Changes{
				RaceUpdates: []catalogs.RaceUpdate{
					{RaceID: "race-1", Fields: map[string]catalogs.FieldChange{
						"startTime": {New: repaired, Confidence: 0.9},
					}},
				},
			},
		},
	}
	changes := catalogs.Changes{
		RaceUpdates: []catalogs.RaceUpdate{
			{RaceID: "race-1", Fields: map[string]catalogs.FieldChange{
				// Same instant in a different zone is still queued.
				"startTime": {New: repaired.UTC(), Confidence: 0.95},
				"elevation": {New: 950, Confidence: 0.95},
			}},
		},
	}

	filtered, suppressed := d.FilterNew("edition:1", changes, &catalogs.Edition{}, pending)
	require.False(t, suppressed)
	require.Len(t, filtered.RaceUpdates, 1)
	assert.NotContains(t, filtered.RaceUpdates[0].Fields, "startTime")
	assert.Contains(t, filtered.RaceUpdates[0].Fields, "elevation")
}

func TestFilterNewDropsRaceAddAlreadyQueued(t *testing.T) {
	d := NewDeduper()
	start := time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC)

	pending := []*catalogs.Proposal{
		{
			ID:     "proposal-1",
			Status: "pending",
			Changes: catalogs.Changes{
				Fields: map[string]catalogs.FieldChange{
					"startDate": {New: start, Confidence: 0.9},
				},
				RaceAdds: []catalogs.RaceCreation{
					{Name: "10 km", Distance: intp(10000), StartTime: start, Category: scrape.CategoryRunning, Confidence: 0.9},
				},
			},
		},
	}
	// The overall hash differs because of the endDate field, but the
	// race addition itself is already queued and must not reappear.
	changes := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"endDate": {New: start.Add(24 * time.Hour), Confidence: 0.95},
		},
		RaceAdds: []catalogs.RaceCreation{
			{Name: "10 km", Distance: intp(10000), StartTime: start, Category: scrape.CategoryRunning, Confidence: 0.95},
		},
	}

	filtered, suppressed := d.FilterNew("edition:1", changes, &catalogs.Edition{}, pending)
	require.False(t, suppressed)
	assert.Empty(t, filtered.RaceAdds)
	assert.Contains(t, filtered.Fields, "endDate")
}

func TestFilterNewDropsDateRepairAlreadyQueued(t *testing.T) {
	paris := Zone("ARA")
	d := NewDeduper()
	old := time.Date(2026, 4, 12, 9, 0, 0, 0, paris)
	repaired := time.Date(2026, 4, 19, 9, 0, 0, 0, paris)

	pending := []*catalogs.Proposal{
		{
			ID:     "proposal-1",
			Status: "pending",
			Changes: catalogs.Changes{
				DateRepairs: []catalogs.RaceDateRepair{
					{RaceID: "race-1", Old: old, New: repaired},
				},
			},
		},
	}
	changes := catalogs.Changes{
		Fields: map[string]catalogs.FieldChange{
			"organizer.email": {New: "orga@example.fr", Confidence: 0.95},
		},
		DateRepairs: []catalogs.RaceDateRepair{
			// Same instant rendered in UTC is still the queued repair.
			{RaceID: "race-1", Old: old.UTC(), New: repaired.UTC()},
		},
	}

	filtered, suppressed := d.FilterNew("edition:1", changes, &catalogs.Edition{}, pending)
	require.False(t, suppressed)
	assert.Empty(t, filtered.DateRepairs)
	assert.Contains(t, filtered.Fields, "organizer.email")
}
