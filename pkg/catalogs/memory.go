package catalogs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/racebase/harvester/pkg/errors"
)

// Memory is an in-memory Catalog implementation used by tests and local
// dry runs. Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	events    map[string]Event
	editions  map[string]Edition
	proposals []*Proposal
	nextID    int
}

var _ Catalog = (*Memory)(nil)

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		events:   make(map[string]Event),
		editions: make(map[string]Edition),
	}
}

// AddEvent stores an event.
func (m *Memory) AddEvent(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

// AddEdition stores an edition under its event.
func (m *Memory) AddEdition(e Edition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editions[e.ID] = e
}

// Candidates returns event/edition pairs with a start date inside the
// query window. Name/city/department hints are ignored here; scoring
// happens in the matching engine.
func (m *Memory) Candidates(_ context.Context, q CandidateQuery) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := q.Window
	if window <= 0 {
		window = 60 * 24 * time.Hour
	}

	var out []Candidate
	for _, ed := range m.editions {
		gap := ed.StartDate.Sub(q.Date)
		if gap < 0 {
			gap = -gap
		}
		if gap > window {
			continue
		}
		ev, ok := m.events[ed.EventID]
		if !ok {
			continue
		}
		out = append(out, Candidate{Event: ev, Edition: ed})
	}
	return out, nil
}

// Edition fetches an edition by id.
func (m *Memory) Edition(_ context.Context, id string) (*Edition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ed, ok := m.editions[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := ed
	return &copied, nil
}

// PendingProposals lists pending proposals for a target.
func (m *Memory) PendingProposals(_ context.Context, target string) ([]*Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Proposal
	for _, p := range m.proposals {
		if p.Status == "pending" && p.Target() == target {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreateProposal queues a proposal.
func (m *Memory) CreateProposal(_ context.Context, p *Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p.ID = fmt.Sprintf("proposal-%d", m.nextID)
	p.Status = "pending"
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.proposals = append(m.proposals, p)
	return nil
}

// Proposals returns every queued proposal, for test assertions.
func (m *Memory) Proposals() []*Proposal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Proposal, len(m.proposals))
	copy(out, m.proposals)
	return out
}
