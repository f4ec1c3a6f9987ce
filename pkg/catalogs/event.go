package catalogs

import (
	"time"

	"github.com/racebase/harvester/pkg/scrape"
)

// CalendarStatus tracks how firmly an edition sits on the calendar.
type CalendarStatus string

// Calendar statuses.
const (
	CalendarStatusPending   CalendarStatus = "PENDING"
	CalendarStatusConfirmed CalendarStatus = "CONFIRMED"
	CalendarStatusCancelled CalendarStatus = "CANCELLED"
)

// Event is a recurring competition in the catalog.
type Event struct {
	ID         string
	Name       string
	City       string
	Department string
	Region     string
}

// Edition is one year's running of an event.
type Edition struct {
	ID                string
	EventID           string
	Year              int
	StartDate         time.Time
	EndDate           time.Time
	CalendarStatus    CalendarStatus
	RegistrantsNumber *int
	// Featured editions are curated by hand and never selected as
	// update targets by the harvester.
	Featured  bool
	Organizer *Organizer
	Races     []Race
	UpdatedAt time.Time
}

// Organizer is the optional organizer record attached to an edition.
type Organizer struct {
	Name    string
	Email   string
	Phone   string
	Website string
}

// Race is a single timed activity within an edition.
type Race struct {
	ID        string
	EditionID string
	Name      string
	Distance  *int      // meters
	Elevation *int      // meters
	StartTime time.Time // zone-aware
	Category  scrape.CategoryType
}
