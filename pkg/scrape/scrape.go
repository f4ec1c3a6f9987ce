// Package scrape defines the data contracts produced by the federation
// calendar fetch/parse layer and the Source interface the harvester
// consumes. Records are immutable once fetched; optional fields are
// explicit pointers rather than zero-value sentinels, and the parse
// boundary guarantees the core never sees a malformed shape.
package scrape

import (
	"context"
	"time"
)

// Competition is one scraped calendar entry. The listing page yields the
// identity fields; FetchDetails enriches it with sub-events and organizer
// contact. A failed detail fetch leaves Partial set with listing data only.
type Competition struct {
	ExternalID  string
	Name        string
	City        string
	Region      string    // ligue code, e.g. "ARA"
	Department  string    // department code, e.g. "26"
	Date        time.Time // day granularity; clock component is always midnight UTC
	Level       string
	DetailURL   string
	Organizer   *Contact
	Registrants *int
	SubEvents   []SubEvent
	Partial     bool
}

// Contact holds organizer contact fields. Every field is optional; an
// absent organizer is a nil *Contact, never an empty struct.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Website string
}

// SubEvent is a single race within a competition.
type SubEvent struct {
	Name      string
	Distance  *int       // meters
	Elevation *int       // positive elevation gain, meters
	Time      *ClockTime // local wall-clock start time
	Date      *time.Time // explicit sub-date for multi-day competitions
}

// ClockTime is a local wall-clock time without a date or zone.
type ClockTime struct {
	Hour   int
	Minute int
}

// Midnight reports whether the clock time is exactly 00:00.
func (c ClockTime) Midnight() bool {
	return c.Hour == 0 && c.Minute == 0
}

// Day returns the calendar day the sub-event runs on, falling back to the
// competition day when no explicit sub-date was scraped.
func (s SubEvent) Day(competitionDate time.Time) time.Time {
	if s.Date != nil {
		return *s.Date
	}
	return competitionDate
}

// Source is the fetch/parse collaborator. Implementations handle
// pagination, selector extraction and transport concerns; the harvester
// only sees structured records.
type Source interface {
	// ListCompetitions returns all competitions for a region within the
	// date range, filtered to the given levels. Pagination is internal.
	ListCompetitions(ctx context.Context, region string, from, to time.Time, levels []string) ([]Competition, error)

	// FetchDetails enriches a listing record with sub-events and
	// organizer info. On transient failure it returns the input record
	// with Partial set rather than an error.
	FetchDetails(ctx context.Context, c Competition) (Competition, error)
}
