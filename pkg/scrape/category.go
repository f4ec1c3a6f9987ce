package scrape

import "strings"

// CategoryType is the primary classification of a sub-event.
type CategoryType string

// Primary categories inferred from sub-event names and distances.
const (
	CategoryRunning   CategoryType = "RUNNING"
	CategoryTrail     CategoryType = "TRAIL"
	CategoryWalk      CategoryType = "WALK"
	CategoryCycling   CategoryType = "CYCLING"
	CategoryTriathlon CategoryType = "TRIATHLON"
	CategoryOther     CategoryType = "OTHER"
)

// Category is a primary type plus an optional distance-derived sub-type.
type Category struct {
	Type    CategoryType
	SubType string
}

// keyword tables checked in order; the first hit wins. Trail before
// running so "trail des collines 10 km" does not classify as a road 10K.
var categoryKeywords = []struct {
	category CategoryType
	words    []string
}{
	{CategoryTriathlon, []string{"triathlon", "duathlon", "aquathlon", "swimrun", "bike and run", "bike & run"}},
	{CategoryCycling, []string{"cyclo", "vtt", "gravel", "velo", "vélo", "bike"}},
	{CategoryWalk, []string{"marche", "rando", "randonnee", "randonnée", "nordique", "walk"}},
	{CategoryTrail, []string{"trail", "ultra", "skyrace", "kv ", "km vertical", "montagne"}},
}

// running sub-types by distance band, meters.
var runningBands = []struct {
	maxMeters int
	subType   string
}{
	{6000, "5K"},
	{12000, "10K"},
	{18000, "15K"},
	{22000, "HALF_MARATHON"},
	{46000, "MARATHON"},
}

// Classify infers a sub-event category from its name and optional
// distance. Names are matched case-insensitively against keyword tables;
// anything unmatched with a distance is a road-running event, anything
// without either signal is OTHER.
func Classify(name string, distance *int) Category {
	lowered := strings.ToLower(name)

	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(lowered, w) {
				return Category{Type: entry.category, SubType: subTypeFor(entry.category, distance)}
			}
		}
	}

	if distance != nil {
		return Category{Type: CategoryRunning, SubType: subTypeFor(CategoryRunning, distance)}
	}
	return Category{Type: CategoryOther}
}

// subTypeFor derives the distance band sub-type where one applies.
func subTypeFor(t CategoryType, distance *int) string {
	if distance == nil {
		return ""
	}
	switch t {
	case CategoryRunning:
		for _, band := range runningBands {
			if *distance <= band.maxMeters {
				return band.subType
			}
		}
		return "ULTRA_ROAD"
	case CategoryTrail:
		switch {
		case *distance <= 21000:
			return "SHORT"
		case *distance <= 42000:
			return "MEDIUM"
		case *distance <= 80000:
			return "LONG"
		default:
			return "ULTRA"
		}
	default:
		return ""
	}
}
