package reconcile

import (
	"strings"
	"time"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/match"
	"github.com/racebase/harvester/pkg/scrape"
)

// Config holds the diff builder tunables.
type Config struct {
	// DistanceTolerancePct is forwarded to the sub-event reconciler.
	DistanceTolerancePct float64

	// ElevationToleranceMeters is the absolute elevation delta below
	// which no update is proposed.
	ElevationToleranceMeters int

	// StartDateTolerance is the window within which the stored start
	// is considered in agreement with the scraped one.
	StartDateTolerance time.Duration
}

// DefaultConfig returns the diff builder defaults.
func DefaultConfig() Config {
	return Config{
		DistanceTolerancePct:     10,
		ElevationToleranceMeters: 30,
		StartDateTolerance:       time.Hour,
	}
}

// Builder compares matched catalog entities against scraped data and
// produces field-level changes with confidence weights.
type Builder struct {
	cfg Config
}

// NewBuilder creates a diff builder.
func NewBuilder(cfg Config) *Builder {
	if cfg.StartDateTolerance == 0 {
		cfg = DefaultConfig()
	}
	return &Builder{cfg: cfg}
}

// BuildUpdate diffs a scraped competition against the matched edition.
// Only fields that actually changed appear in the result; an edition
// already in agreement with the calendar yields empty changes and
// therefore no proposal.
func (b *Builder) BuildUpdate(rec scrape.Competition, out match.Outcome, edition *catalogs.Edition) catalogs.Changes {
	changes := catalogs.Changes{Fields: make(map[string]catalogs.FieldChange)}
	confidence := out.Confidence

	// Presence on the official calendar corroborates the edition.
	if edition.CalendarStatus != catalogs.CalendarStatusConfirmed {
		changes.Fields["calendarStatus"] = catalogs.FieldChange{
			Old:        string(edition.CalendarStatus),
			New:        string(catalogs.CalendarStatusConfirmed),
			Confidence: confidence,
		}
	}

	loc := Zone(rec.Region)
	start := ResolveStart(rec)
	if gap := absDuration(start.Sub(edition.StartDate)); gap > b.cfg.StartDateTolerance {
		// A bare scraped date never downgrades a stored precise time on
		// the same day to midnight.
		downgrade := isLocalMidnight(start.In(loc)) &&
			sameDay(start.In(loc), edition.StartDate.In(loc)) &&
			!isLocalMidnight(edition.StartDate.In(loc))
		if !downgrade {
			changes.Fields["startDate"] = catalogs.FieldChange{
				Old:        edition.StartDate,
				New:        start,
				Confidence: confidence,
			}
		}
	}

	end := ResolveEnd(rec)
	if !edition.EndDate.IsZero() {
		if gap := absDuration(end.Sub(edition.EndDate)); gap > b.cfg.StartDateTolerance {
			downgrade := isLocalMidnight(end.In(loc)) &&
				sameDay(end.In(loc), edition.EndDate.In(loc)) &&
				!isLocalMidnight(edition.EndDate.In(loc))
			if !downgrade {
				changes.Fields["endDate"] = catalogs.FieldChange{
					Old:        edition.EndDate,
					New:        end,
					Confidence: confidence,
				}
			}
		}
	}

	if rec.Registrants != nil {
		if edition.RegistrantsNumber == nil || *edition.RegistrantsNumber != *rec.Registrants {
			var old any
			if edition.RegistrantsNumber != nil {
				old = *edition.RegistrantsNumber
			}
			changes.Fields["registrantsNumber"] = catalogs.FieldChange{
				Old:        old,
				New:        *rec.Registrants,
				Confidence: confidence,
			}
		}
	}

	b.diffOrganizer(&changes, rec.Organizer, edition.Organizer, confidence)
	b.diffRaces(&changes, rec, edition, confidence)

	if len(changes.Fields) == 0 {
		changes.Fields = nil
	}
	return changes
}

// BuildCreation assembles the creation payload for an unmatched record.
func (b *Builder) BuildCreation(rec scrape.Competition, confidence float64) catalogs.Changes {
	changes := catalogs.Changes{Fields: make(map[string]catalogs.FieldChange)}

	set := func(key string, value any) {
		changes.Fields[key] = catalogs.FieldChange{New: value, Confidence: confidence}
	}

	set("name", rec.Name)
	set("city", rec.City)
	if rec.Department != "" {
		set("department", rec.Department)
	}
	if rec.Level != "" {
		set("level", rec.Level)
	}
	set("startDate", ResolveStart(rec))
	set("endDate", ResolveEnd(rec))
	if rec.Registrants != nil {
		set("registrantsNumber", *rec.Registrants)
	}
	if rec.Organizer != nil {
		if rec.Organizer.Name != "" {
			set("organizer.name", rec.Organizer.Name)
		}
		if rec.Organizer.Email != "" {
			set("organizer.email", rec.Organizer.Email)
		}
		if rec.Organizer.Phone != "" {
			set("organizer.phone", rec.Organizer.Phone)
		}
		if rec.Organizer.Website != "" {
			set("organizer.website", rec.Organizer.Website)
		}
	}

	for _, sub := range rec.SubEvents {
		changes.RaceAdds = append(changes.RaceAdds, b.raceCreation(rec, sub, confidence))
	}
	return changes
}

// diffOrganizer proposes non-empty scraped organizer fields that differ
// from the stored ones. Absent scraped fields never erase stored data.
func (b *Builder) diffOrganizer(changes *catalogs.Changes, scraped *scrape.Contact, stored *catalogs.Organizer, confidence float64) {
	if scraped == nil {
		return
	}

	current := catalogs.Organizer{}
	if stored != nil {
		current = *stored
	}

	diff := func(key, newValue, oldValue string) {
		if newValue == "" || newValue == oldValue {
			return
		}
		var old any
		if oldValue != "" {
			old = oldValue
		}
		changes.Fields["organizer."+key] = catalogs.FieldChange{
			Old:        old,
			New:        newValue,
			Confidence: confidence,
		}
	}

	diff("name", scraped.Name, current.Name)
	diff("email", scraped.Email, current.Email)
	diff("phone", scraped.Phone, current.Phone)
	diff("website", scraped.Website, current.Website)
}

// diffRaces aligns sub-events and emits race additions, updates and
// conflicting-date repairs.
func (b *Builder) diffRaces(changes *catalogs.Changes, rec scrape.Competition, edition *catalogs.Edition, confidence float64) {
	alignment := AlignRaces(rec, edition.Races, AlignConfig{DistanceTolerancePct: b.cfg.DistanceTolerancePct})

	for _, sub := range alignment.ToAdd {
		changes.RaceAdds = append(changes.RaceAdds, b.raceCreation(rec, sub, confidence))
	}

	for _, pair := range alignment.Matched {
		update := catalogs.RaceUpdate{RaceID: pair.Existing.ID, Fields: make(map[string]catalogs.FieldChange)}

		scrapedStart := ResolveRaceStart(rec, pair.Scraped)
		if proposed, ok := ProposeTime(pair.Existing.StartTime, scrapedStart, pair.Scraped.Time != nil); ok {
			update.Fields["startTime"] = catalogs.FieldChange{
				Old:        pair.Existing.StartTime,
				New:        proposed,
				Confidence: confidence,
			}
		}

		if pair.Scraped.Elevation != nil {
			old := 0
			if pair.Existing.Elevation != nil {
				old = *pair.Existing.Elevation
			}
			diff := *pair.Scraped.Elevation - old
			if diff < 0 {
				diff = -diff
			}
			if diff > b.cfg.ElevationToleranceMeters {
				var oldValue any
				if pair.Existing.Elevation != nil {
					oldValue = *pair.Existing.Elevation
				}
				update.Fields["elevation"] = catalogs.FieldChange{
					Old:        oldValue,
					New:        *pair.Scraped.Elevation,
					Confidence: confidence,
				}
			}
		}

		if len(update.Fields) > 0 {
			changes.RaceUpdates = append(changes.RaceUpdates, update)
		}
	}

	// Unconsumed races are never deleted here. A race whose day fell
	// outside the new competition span gets a date repair that keeps
	// its stored time-of-day.
	loc := Zone(rec.Region)
	startDay := earliestDay(rec)
	endDay := latestDay(rec)
	for _, race := range alignment.Unconsumed {
		raceDay := race.StartTime.In(loc)
		if dayWithin(raceDay, startDay, endDay) {
			continue
		}
		repaired := time.Date(startDay.Year(), startDay.Month(), startDay.Day(),
			raceDay.Hour(), raceDay.Minute(), 0, 0, loc)
		changes.DateRepairs = append(changes.DateRepairs, catalogs.RaceDateRepair{
			RaceID: race.ID,
			Old:    race.StartTime,
			New:    repaired,
		})
	}
}

// raceCreation normalizes one scraped sub-event into a creation entry.
func (b *Builder) raceCreation(rec scrape.Competition, sub scrape.SubEvent, confidence float64) catalogs.RaceCreation {
	category := scrape.Classify(sub.Name, sub.Distance)

	creation := catalogs.RaceCreation{
		Name:       normalizeRaceName(sub.Name),
		Distance:   sub.Distance,
		StartTime:  ResolveRaceStart(rec, sub),
		Category:   category.Type,
		SubType:    category.SubType,
		Confidence: confidence,
	}
	// Elevation gain is meaningless for walks; keep it where it can
	// describe the course.
	if category.Type != scrape.CategoryWalk {
		creation.Elevation = sub.Elevation
	}
	return creation
}

// normalizeRaceName collapses runs of whitespace.
func normalizeRaceName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// dayWithin reports whether t's calendar day falls in [from, to].
func dayWithin(t, from, to time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(fromDay) && !day.After(toDay)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
