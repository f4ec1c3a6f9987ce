package reconcile

import (
	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/logging"
	"github.com/racebase/harvester/pkg/scrape"
)

// RacePair binds a scraped sub-event to the catalog race it matched.
type RacePair struct {
	Scraped  scrape.SubEvent
	Existing catalogs.Race
}

// Alignment is the result of reconciling scraped sub-events against a
// catalog edition's races. No catalog race appears in more than one
// pair, and none appears both matched and unconsumed.
type Alignment struct {
	ToAdd      []scrape.SubEvent
	Matched    []RacePair
	Unconsumed []catalogs.Race
}

// AlignConfig holds the sub-event reconciler tunables.
type AlignConfig struct {
	// DistanceTolerancePct is the allowed deviation between scraped and
	// stored distance, as a percentage of the scraped distance.
	DistanceTolerancePct float64
}

// DefaultAlignConfig returns the reconciler defaults.
func DefaultAlignConfig() AlignConfig {
	return AlignConfig{DistanceTolerancePct: 10}
}

// AlignRaces matches scraped sub-events to existing catalog races in
// input order. Candidates must be distance-compatible; among those, a
// shared calendar day dominates a category match, so same-day entries of
// similar distance pair up even across category labels. Each catalog
// race is consumed at most once.
func AlignRaces(comp scrape.Competition, existing []catalogs.Race, cfg AlignConfig) Alignment {
	if cfg.DistanceTolerancePct <= 0 {
		cfg = DefaultAlignConfig()
	}

	var out Alignment
	loc := Zone(comp.Region)
	consumed := make([]bool, len(existing))

	for _, sub := range comp.SubEvents {
		category := scrape.Classify(sub.Name, sub.Distance)
		subDay := sub.Day(comp.Date)

		bestIdx := -1
		bestRank := -1
		for i, race := range existing {
			if consumed[i] {
				continue
			}
			if !distanceCompatible(sub.Distance, race.Distance, cfg.DistanceTolerancePct) {
				continue
			}

			// Rank: sharing the calendar day outweighs a category
			// match, which in turn beats bare distance compatibility.
			rank := 0
			dayMatches := sameDay(race.StartTime.In(loc), subDay)
			if dayMatches {
				rank += 2
			}
			if race.Category == category.Type {
				rank++
			} else if dayMatches {
				logging.Debug().
					Str("subEvent", sub.Name).
					Str("race", race.Name).
					Str("scrapedCategory", string(category.Type)).
					Str("raceCategory", string(race.Category)).
					Msg("Same-day override of category mismatch")
			}

			if rank > bestRank {
				bestRank = rank
				bestIdx = i
			}
		}

		if bestIdx >= 0 {
			consumed[bestIdx] = true
			out.Matched = append(out.Matched, RacePair{Scraped: sub, Existing: existing[bestIdx]})
		} else {
			out.ToAdd = append(out.ToAdd, sub)
		}
	}

	for i, race := range existing {
		if !consumed[i] {
			out.Unconsumed = append(out.Unconsumed, race)
		}
	}
	return out
}

// distanceCompatible reports whether a stored distance falls within the
// tolerance band around the scraped distance. Two absent distances are
// compatible; an absent distance on one side only is not.
func distanceCompatible(scraped, stored *int, tolerancePct float64) bool {
	if scraped == nil && stored == nil {
		return true
	}
	if scraped == nil || stored == nil {
		return false
	}
	diff := *scraped - *stored
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= float64(*scraped)*tolerancePct/100
}
