package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/scrape"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func candidate(id, name, city, department string, start time.Time) catalogs.Candidate {
	return catalogs.Candidate{
		Event: catalogs.Event{
			ID:         "event-" + id,
			Name:       name,
			City:       city,
			Department: department,
		},
		Edition: catalogs.Edition{
			ID:        "edition-" + id,
			EventID:   "event-" + id,
			StartDate: start,
		},
	}
}

func record(name, city, department string, date time.Time) scrape.Competition {
	return scrape.Competition{
		Name:       name,
		City:       city,
		Department: department,
		Date:       date,
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "trail de la raye", Normalize("Trail De La Raye"))
	assert.Equal(t, "sainte helene", Normalize("Sainte-Hélène"))
	assert.Equal(t, "course a pied 10km", Normalize("  Course à pied (10km) "))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("Trail de la Raye", "TRAIL DE LA RAYE"), 1e-9)
	assert.InDelta(t, 1.0, Similarity("Hélène", "helene"), 1e-9)
	assert.Greater(t, Similarity("Trail de la Raye", "Trail de la Roye"), 0.9)
	assert.Less(t, Similarity("Trail de la Raye", "Marathon de Lyon"), 0.5)
}

func TestMatchExactCandidate(t *testing.T) {
	m := New(DefaultConfig())
	rec := record("Trail De La Raye", "La Baume Cornillane", "26", day(2025, 11, 8))
	pool := []catalogs.Candidate{
		candidate("1", "Trail de la Raye", "La Baume Cornillane", "26", day(2025, 11, 8)),
	}

	out := m.Match(rec, pool)
	require.Equal(t, ExactMatch, out.Kind)
	assert.Equal(t, "edition-1", out.EditionID)
	assert.GreaterOrEqual(t, out.Confidence, 0.9)
	assert.LessOrEqual(t, out.Confidence, 1.0)
}

func TestMatchNoCandidatesIsNoMatch(t *testing.T) {
	m := New(DefaultConfig())
	rec := record("Trail De La Raye", "La Baume Cornillane", "26", day(2025, 11, 8))

	out := m.Match(rec, nil)
	assert.Equal(t, NoMatch, out.Kind)
	assert.Zero(t, out.TopScore)
	// No rival at all: full creation confidence.
	assert.InDelta(t, DefaultConfig().ConfidenceBase, out.Confidence, 1e-9)
}

func TestNearMissRivalLowersCreationConfidence(t *testing.T) {
	m := New(DefaultConfig())
	rec := record("Trail de la Raye", "La Baume Cornillane", "", day(2025, 11, 8))
	// Similar name, wrong city, no department: lands under threshold.
	pool := []catalogs.Candidate{
		candidate("1", "Trail de la Roye", "Valence", "07", day(2025, 12, 20)),
	}

	out := m.Match(rec, pool)
	require.Equal(t, NoMatch, out.Kind)
	assert.Greater(t, out.TopScore, 0.0)
	assert.Less(t, out.Confidence, DefaultConfig().ConfidenceBase)
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, "edition-1", out.Rejected[0].Candidate.Edition.ID)
}

func TestFeaturedEditionNeverSelected(t *testing.T) {
	m := New(DefaultConfig())
	rec := record("Trail de la Raye", "La Baume Cornillane", "26", day(2025, 11, 8))

	featured := candidate("1", "Trail de la Raye", "La Baume Cornillane", "26", day(2025, 11, 8))
	featured.Edition.Featured = true

	out := m.Match(rec, []catalogs.Candidate{featured})
	assert.Equal(t, NoMatch, out.Kind)
	assert.Empty(t, out.EditionID)
}

func TestTieBreakPrefersCloserDate(t *testing.T) {
	m := New(DefaultConfig())
	rec := record("Course des Remparts", "Crest", "26", day(2025, 11, 8))

	far := candidate("far", "Course des Remparts", "Crest", "26", day(2025, 11, 29))
	near := candidate("near", "Course des Remparts", "Crest", "26", day(2025, 11, 9))

	out := m.Match(rec, []catalogs.Candidate{far, near})
	require.NotEqual(t, NoMatch, out.Kind)
	assert.Equal(t, "edition-near", out.EditionID)
}

func TestCityMismatchReducesConfidence(t *testing.T) {
	m := New(DefaultConfig())
	rec := record("Course des Remparts", "Crest", "26", day(2025, 11, 8))

	same := m.Match(rec, []catalogs.Candidate{
		candidate("1", "Course des Remparts", "Crest", "26", day(2025, 11, 8)),
	})
	differ := m.Match(rec, []catalogs.Candidate{
		candidate("2", "Course des Remparts", "Valence", "26", day(2025, 11, 8)),
	})

	require.NotEqual(t, NoMatch, same.Kind)
	if differ.Kind == NoMatch {
		// Dropped under the floor entirely: still a reduction.
		assert.Less(t, differ.TopScore, same.TopScore)
		return
	}
	assert.Less(t, differ.Confidence, same.Confidence)
}

func TestRejectedListCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRejected = 2
	m := New(cfg)

	rec := record("Trail du Vercors", "Die", "", day(2025, 11, 8))
	pool := []catalogs.Candidate{
		candidate("1", "Trail des Gorges", "Saou", "26", day(2025, 11, 1)),
		candidate("2", "Trail des Cretes", "Aouste", "26", day(2025, 11, 2)),
		candidate("3", "Trail du Diois", "Luc", "26", day(2025, 11, 3)),
	}

	out := m.Match(rec, pool)
	assert.Equal(t, NoMatch, out.Kind)
	assert.Len(t, out.Rejected, 2)
}

func TestConfidenceAlwaysClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceBase = 0.99
	m := New(cfg)
	rec := record("Trail de la Raye", "La Baume Cornillane", "26", day(2025, 11, 8))
	out := m.Match(rec, []catalogs.Candidate{
		candidate("1", "Trail de la Raye", "La Baume Cornillane", "26", day(2025, 11, 8)),
	})
	assert.LessOrEqual(t, out.Confidence, 1.0)
	assert.GreaterOrEqual(t, out.Confidence, 0.0)
}
