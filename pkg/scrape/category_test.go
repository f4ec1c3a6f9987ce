package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		distance *int
		want     CategoryType
		subType  string
	}{
		{"Trail de la Raye", intPtr(14000), CategoryTrail, "SHORT"},
		{"Ultra des Cimes", intPtr(95000), CategoryTrail, "ULTRA"},
		{"Marathon de Lyon", intPtr(42195), CategoryRunning, "MARATHON"},
		{"Course des Remparts", intPtr(9800), CategoryRunning, "10K"},
		{"Semi de Valence", intPtr(21100), CategoryRunning, "HALF_MARATHON"},
		{"Marche Nordique du Lac", intPtr(8000), CategoryWalk, ""},
		{"Rando des Vignes", nil, CategoryWalk, ""},
		{"Triathlon M de Privas", nil, CategoryTriathlon, ""},
		{"Bike & Run des Collines", intPtr(12000), CategoryTriathlon, ""},
		{"VTT des Chataigniers", intPtr(30000), CategoryCycling, ""},
		{"Animation jeunes", nil, CategoryOther, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.name, tt.distance)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.subType, got.SubType)
		})
	}
}

func TestTrailKeywordBeatsRoadDistance(t *testing.T) {
	// A 10 km with "trail" in the name must not classify as road running.
	got := Classify("Trail des Collines 10 km", intPtr(10000))
	assert.Equal(t, CategoryTrail, got.Type)
}

func TestSubEventDayFallsBackToCompetitionDate(t *testing.T) {
	compDay := day(2025, 11, 8)
	sub := SubEvent{Name: "10 km"}
	assert.Equal(t, compDay, sub.Day(compDay))

	explicit := day(2025, 11, 9)
	sub.Date = &explicit
	assert.Equal(t, explicit, sub.Day(compDay))
}
