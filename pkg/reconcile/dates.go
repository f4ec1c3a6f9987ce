// Package reconcile turns a matched scraped competition into field-level
// change proposals: timezone-aware date resolution, race alignment with
// a no-double-match guarantee, field diffing with confidence weights,
// and content-hash deduplication against pending proposals.
package reconcile

import (
	"time"

	"github.com/racebase/harvester/pkg/scrape"
)

// regionZones maps overseas ligue codes to their own zones. Everything
// else resolves to the metropolitan zone. DST arithmetic is delegated to
// the platform zone database, never done by hand.
var regionZones = map[string]string{
	"GUA": "America/Guadeloupe",
	"MAR": "America/Martinique",
	"GUY": "America/Cayenne",
	"REU": "Indian/Reunion",
	"MAY": "Indian/Mayotte",
	"N-C": "Pacific/Noumea",
	"P-F": "Pacific/Tahiti",
}

const metropolitanZone = "Europe/Paris"

// Zone resolves a region code to its IANA location.
func Zone(regionCode string) *time.Location {
	name, ok := regionZones[regionCode]
	if !ok {
		name = metropolitanZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if loc, err = time.LoadLocation(metropolitanZone); err != nil {
			return time.UTC
		}
	}
	return loc
}

// ResolveStart derives the competition's absolute start timestamp: the
// chronologically earliest calendar day across the competition date and
// all explicit sub-dates, at the first non-midnight clock time found in
// input order on that day, in the region's zone. With no usable clock
// time the result is local midnight of that day.
func ResolveStart(c scrape.Competition) time.Time {
	loc := Zone(c.Region)
	earliest := earliestDay(c)

	for _, sub := range c.SubEvents {
		if !sameDay(sub.Day(c.Date), earliest) {
			continue
		}
		if sub.Time != nil && !sub.Time.Midnight() {
			return at(earliest, *sub.Time, loc)
		}
	}
	return at(earliest, scrape.ClockTime{}, loc)
}

// ResolveEnd derives the absolute end timestamp analogously from the
// latest calendar day, taking the last non-midnight time in sequence.
func ResolveEnd(c scrape.Competition) time.Time {
	loc := Zone(c.Region)
	latest := latestDay(c)

	var clock scrape.ClockTime
	for _, sub := range c.SubEvents {
		if !sameDay(sub.Day(c.Date), latest) {
			continue
		}
		if sub.Time != nil && !sub.Time.Midnight() {
			clock = *sub.Time
		}
	}
	return at(latest, clock, loc)
}

// ResolveRaceStart derives the absolute start of one sub-event.
func ResolveRaceStart(c scrape.Competition, sub scrape.SubEvent) time.Time {
	loc := Zone(c.Region)
	clock := scrape.ClockTime{}
	if sub.Time != nil {
		clock = *sub.Time
	}
	return at(sub.Day(c.Date), clock, loc)
}

// ProposeTime applies the time reconciliation policy. A stored local
// midnight is a placeholder: any scraped value replaces it. A stored
// precise time is never downgraded to midnight by a bare date. Two
// precise times that differ at all produce an update.
func ProposeTime(existing, scraped time.Time, scrapedHasClock bool) (time.Time, bool) {
	if isLocalMidnight(existing) {
		return scraped, !scraped.Equal(existing)
	}
	if !scrapedHasClock {
		return existing, false
	}
	return scraped, !scraped.Equal(existing)
}

// earliestDay returns the earliest calendar day across the competition
// date and explicit sub-dates.
func earliestDay(c scrape.Competition) time.Time {
	earliest := c.Date
	for _, sub := range c.SubEvents {
		if sub.Date != nil && sub.Date.Before(earliest) {
			earliest = *sub.Date
		}
	}
	return earliest
}

// latestDay returns the latest calendar day.
func latestDay(c scrape.Competition) time.Time {
	latest := c.Date
	for _, sub := range c.SubEvents {
		if sub.Date != nil && sub.Date.After(latest) {
			latest = *sub.Date
		}
	}
	return latest
}

// at converts a day plus local wall-clock time into an absolute
// timestamp in loc.
func at(day time.Time, clock scrape.ClockTime, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour, clock.Minute, 0, 0, loc)
}

// sameDay compares calendar days ignoring any clock component.
func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// isLocalMidnight reports whether t is exactly 00:00 in its own zone.
func isLocalMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}
