package catalogs

import (
	"fmt"
	"time"

	"github.com/racebase/harvester/pkg/scrape"
)

// FieldChange is a single proposed field edit. Old is nil when the
// catalog holds no current value. Immutable once emitted.
type FieldChange struct {
	Old        any     `json:"old,omitempty" yaml:"old,omitempty"`
	New        any     `json:"new" yaml:"new"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// RaceCreation proposes adding a race the catalog doesn't know about.
type RaceCreation struct {
	Name       string              `json:"name" yaml:"name"`
	Distance   *int                `json:"distance,omitempty" yaml:"distance,omitempty"`
	Elevation  *int                `json:"elevation,omitempty" yaml:"elevation,omitempty"`
	StartTime  time.Time           `json:"startTime" yaml:"startTime"`
	Category   scrape.CategoryType `json:"category" yaml:"category"`
	SubType    string              `json:"subType,omitempty" yaml:"subType,omitempty"`
	Confidence float64             `json:"confidence" yaml:"confidence"`
}

// RaceUpdate proposes field edits on an existing race, keyed by its
// stable catalog id rather than input position.
type RaceUpdate struct {
	RaceID string                 `json:"raceId" yaml:"raceId"`
	Fields map[string]FieldChange `json:"fields" yaml:"fields"`
}

// RaceDateRepair flags a catalog race whose date conflicts with the new
// competition date. The race keeps any precise time-of-day it already
// carries; only the calendar day moves.
type RaceDateRepair struct {
	RaceID string    `json:"raceId" yaml:"raceId"`
	Old    time.Time `json:"old" yaml:"old"`
	New    time.Time `json:"new" yaml:"new"`
}

// Changes aggregates every proposed edit for one target.
type Changes struct {
	Fields      map[string]FieldChange `json:"fields,omitempty" yaml:"fields,omitempty"`
	RaceAdds    []RaceCreation         `json:"raceAdds,omitempty" yaml:"raceAdds,omitempty"`
	RaceUpdates []RaceUpdate           `json:"raceUpdates,omitempty" yaml:"raceUpdates,omitempty"`
	DateRepairs []RaceDateRepair       `json:"dateRepairs,omitempty" yaml:"dateRepairs,omitempty"`
}

// IsEmpty reports whether the changes carry nothing actionable.
func (c Changes) IsEmpty() bool {
	return len(c.Fields) == 0 && len(c.RaceAdds) == 0 && len(c.RaceUpdates) == 0 && len(c.DateRepairs) == 0
}

// RejectedCandidate summarizes a candidate that scored below threshold,
// kept for operator visibility.
type RejectedCandidate struct {
	EventID         string  `json:"eventId" yaml:"eventId"`
	EditionID       string  `json:"editionId" yaml:"editionId"`
	Name            string  `json:"name" yaml:"name"`
	City            string  `json:"city" yaml:"city"`
	Composite       float64 `json:"composite" yaml:"composite"`
	NameScore       float64 `json:"nameScore" yaml:"nameScore"`
	CityScore       float64 `json:"cityScore" yaml:"cityScore"`
	DateScore       float64 `json:"dateScore" yaml:"dateScore"`
	DepartmentMatch bool    `json:"departmentMatch" yaml:"departmentMatch"`
}

// Justification carries the provenance a reviewer needs to verify a
// proposal against the source site.
type Justification struct {
	SourceURL string              `json:"sourceUrl" yaml:"sourceUrl"`
	Method    string              `json:"method" yaml:"method"`
	Note      string              `json:"note,omitempty" yaml:"note,omitempty"`
	Rejected  []RejectedCandidate `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// Kind distinguishes creations from updates.
type Kind string

// Proposal kinds.
const (
	KindCreation Kind = "creation"
	KindUpdate   Kind = "update"
)

// Proposal is the harvester's only output: a reviewed-before-applied
// change request. Lifecycle (pending → approved/rejected) is owned by
// the proposal store, not by this core.
type Proposal struct {
	ID             string
	Kind           Kind
	EventID        string // empty for creations
	EditionID      string // empty for creations
	Changes        Changes
	Justifications []Justification
	ContentHash    string
	Status         string
	CreatedAt      time.Time
}

// Target returns the logical target key used for dedup and pending
// proposal lookups.
func (p *Proposal) Target() string {
	if p.Kind == KindUpdate {
		return "edition:" + p.EditionID
	}
	name, _ := p.Changes.Fields["name"]
	city, _ := p.Changes.Fields["city"]
	return fmt.Sprintf("creation:%v|%v", name.New, city.New)
}
