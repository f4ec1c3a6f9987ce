// Package catalogs defines the internal catalog's data contracts and the
// data-access interface the harvester consumes. The catalog itself lives
// behind this interface; the harvester never writes entities directly,
// it only reads candidates and queues proposals.
package catalogs

import (
	"context"
	"time"
)

// CandidateQuery narrows the candidate pool for matching. Date bounds the
// edition start date to a window around the scraped date; the remaining
// fields are hints the store may use to pre-filter.
type CandidateQuery struct {
	Name       string
	City       string
	Department string
	Date       time.Time
	Window     time.Duration
}

// Candidate pairs an event with one of its editions for scoring.
type Candidate struct {
	Event   Event
	Edition Edition
}

// Catalog is the data-access collaborator.
type Catalog interface {
	// Candidates returns editions whose start date falls within the
	// query window, with their owning events.
	Candidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)

	// Edition fetches a full edition by id, races included.
	Edition(ctx context.Context, id string) (*Edition, error)

	// PendingProposals lists queued proposals for a logical target.
	PendingProposals(ctx context.Context, target string) ([]*Proposal, error)

	// CreateProposal durably queues a proposal for review.
	CreateProposal(ctx context.Context, p *Proposal) error
}
