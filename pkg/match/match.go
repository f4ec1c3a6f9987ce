// Package match scores scraped competitions against catalog candidates
// and classifies the result as a typed outcome. "No match found" is a
// normal outcome carrying data, never an error.
package match

import (
	"sort"
	"time"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/scrape"
)

// Kind is the tagged variant of a match outcome.
type Kind int

// Outcome kinds.
const (
	NoMatch Kind = iota
	FuzzyMatch
	ExactMatch
)

// String returns a readable kind name.
func (k Kind) String() string {
	switch k {
	case FuzzyMatch:
		return "fuzzy"
	case ExactMatch:
		return "exact"
	default:
		return "none"
	}
}

// Config holds the matching engine's tunables.
type Config struct {
	// Threshold is the minimum composite score for a candidate to be
	// considered a match at all.
	Threshold float64

	// ConfidenceBase is the starting confidence for an accepted update,
	// adjusted by corroborating and contradicting evidence.
	ConfidenceBase float64

	// ConfidenceFloor is the absolute confidence required for an
	// outcome to be auto-actionable.
	ConfidenceFloor float64

	// DateWindow bounds how far a candidate edition's start date may
	// sit from the scraped date.
	DateWindow time.Duration

	// MaxRejected caps how many rejected candidates are retained for
	// operator visibility.
	MaxRejected int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:       0.75,
		ConfidenceBase:  0.95,
		ConfidenceFloor: 0.9,
		DateWindow:      60 * 24 * time.Hour,
		MaxRejected:     3,
	}
}

// Composite score weights. Department equality acts as a hard boost:
// it contributes its full weight or nothing.
const (
	weightName       = 0.50
	weightCity       = 0.20
	weightDepartment = 0.15
	weightDate       = 0.15
)

// exactBand is the composite score at which a fuzzy match is reported
// as exact. There is no separate exact algorithm.
const exactBand = 0.999

// Score is one candidate's sub-scores.
type Score struct {
	Candidate  catalogs.Candidate
	Composite  float64
	Name       float64
	City       float64
	Date       float64
	Department bool
	DateGap    time.Duration
}

// Outcome is the typed result of matching one scraped competition.
type Outcome struct {
	Kind       Kind
	EventID    string
	EditionID  string
	Confidence float64
	// TopScore carries the best composite seen even when the outcome is
	// NoMatch, for transparency in proposal metadata.
	TopScore float64
	Rejected []Score
}

// Matcher scores scraped records against candidate pools.
type Matcher struct {
	cfg Config
}

// New creates a Matcher with the given config.
func New(cfg Config) *Matcher {
	if cfg.Threshold == 0 {
		cfg = DefaultConfig()
	}
	return &Matcher{cfg: cfg}
}

// DateWindow returns the configured candidate date window, for callers
// assembling candidate queries.
func (m *Matcher) DateWindow() time.Duration {
	return m.cfg.DateWindow
}

// Match scores rec against the candidate pool and returns the outcome.
// Featured editions are filtered out before scoring: a curated entity is
// never an update target, so the record falls back to NoMatch behavior.
func (m *Matcher) Match(rec scrape.Competition, pool []catalogs.Candidate) Outcome {
	scores := make([]Score, 0, len(pool))
	for _, cand := range pool {
		if cand.Edition.Featured {
			continue
		}
		scores = append(scores, m.score(rec, cand))
	}

	// Tie-break order: composite, then date distance, then department.
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Composite != scores[j].Composite {
			return scores[i].Composite > scores[j].Composite
		}
		if scores[i].DateGap != scores[j].DateGap {
			return scores[i].DateGap < scores[j].DateGap
		}
		return scores[i].Department && !scores[j].Department
	})

	var top float64
	if len(scores) > 0 {
		top = scores[0].Composite
	}

	if len(scores) == 0 || scores[0].Composite < m.cfg.Threshold {
		return Outcome{
			Kind:       NoMatch,
			Confidence: m.creationConfidence(top),
			TopScore:   top,
			Rejected:   m.truncate(scores),
		}
	}

	best := scores[0]
	confidence := m.updateConfidence(rec, best)

	if confidence < m.cfg.ConfidenceFloor {
		// Not auto-actionable: surface the near-match to the operator
		// through rejected candidates and treat the record as unmatched.
		return Outcome{
			Kind:       NoMatch,
			Confidence: m.creationConfidence(top),
			TopScore:   top,
			Rejected:   m.truncate(scores),
		}
	}

	kind := FuzzyMatch
	if best.Composite >= exactBand {
		kind = ExactMatch
	}

	return Outcome{
		Kind:       kind,
		EventID:    best.Candidate.Event.ID,
		EditionID:  best.Candidate.Edition.ID,
		Confidence: confidence,
		TopScore:   top,
		Rejected:   m.truncate(scores[1:]),
	}
}

// score computes one candidate's sub-scores and composite.
func (m *Matcher) score(rec scrape.Competition, cand catalogs.Candidate) Score {
	s := Score{Candidate: cand}

	s.Name = Similarity(rec.Name, cand.Event.Name)
	s.City = Similarity(rec.City, cand.Event.City)
	s.Department = rec.Department != "" && rec.Department == cand.Event.Department

	gap := cand.Edition.StartDate.Sub(rec.Date)
	if gap < 0 {
		gap = -gap
	}
	s.DateGap = gap
	if gap <= m.cfg.DateWindow {
		s.Date = 1 - float64(gap)/float64(m.cfg.DateWindow)
	}

	s.Composite = weightName*s.Name + weightCity*s.City + weightDate*s.Date
	if s.Department {
		s.Composite += weightDepartment
	}
	return s
}

// updateConfidence derives the confidence of an accepted update from the
// base, reduced by each contradicting signal and raised by corroboration.
// Always clamped to [0,1].
func (m *Matcher) updateConfidence(rec scrape.Competition, best Score) float64 {
	confidence := m.cfg.ConfidenceBase

	if best.Name >= exactBand {
		confidence *= 1.05
	}
	if best.City < 0.85 {
		// City disagrees despite the name match.
		confidence *= 0.8
	}
	if best.DateGap > 7*24*time.Hour {
		confidence *= 0.9
	}
	if rec.Department == "" || !best.Department {
		confidence *= 0.9
	}

	return clamp01(confidence)
}

// creationConfidence applies the inverse policy for NoMatch outcomes:
// no strong rival raises confidence that the record is genuinely new,
// while a near-miss rival lowers it since it hints at a duplicate.
func (m *Matcher) creationConfidence(topRival float64) float64 {
	if topRival <= 0 {
		return clamp01(m.cfg.ConfidenceBase)
	}
	confidence := m.cfg.ConfidenceBase * (1 - topRival)
	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > m.cfg.ConfidenceBase {
		confidence = m.cfg.ConfidenceBase
	}
	return clamp01(confidence)
}

// truncate caps the rejected candidate list at MaxRejected.
func (m *Matcher) truncate(scores []Score) []Score {
	if len(scores) > m.cfg.MaxRejected {
		scores = scores[:m.cfg.MaxRejected]
	}
	out := make([]Score, len(scores))
	copy(out, scores)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Summaries converts rejected scores into proposal metadata records.
func Summaries(scores []Score) []catalogs.RejectedCandidate {
	out := make([]catalogs.RejectedCandidate, 0, len(scores))
	for _, s := range scores {
		out = append(out, catalogs.RejectedCandidate{
			EventID:         s.Candidate.Event.ID,
			EditionID:       s.Candidate.Edition.ID,
			Name:            s.Candidate.Event.Name,
			City:            s.Candidate.Event.City,
			Composite:       s.Composite,
			NameScore:       s.Name,
			CityScore:       s.City,
			DateScore:       s.Date,
			DepartmentMatch: s.Department,
		})
	}
	return out
}
