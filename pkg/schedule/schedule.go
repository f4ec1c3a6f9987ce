// Package schedule plans resumable harvesting cycles. A cycle walks a
// fixed region order through a sliding month window in small work units,
// persisting progress after every unit so an interrupted process resumes
// exactly where it stopped instead of restarting from the first region.
package schedule

import (
	"fmt"
	"time"

	"github.com/racebase/harvester/pkg/errors"
)

const monthLayout = "2006-01"

// Config holds the cycle planner tunables.
type Config struct {
	// Regions is the fixed traversal order. A cycle is complete when
	// every region has covered the whole month window.
	Regions []string

	// WindowMonths is the width of the sliding window, starting at the
	// current month.
	WindowMonths int

	// RegionsPerRun and MonthsPerRun bound how much one invocation
	// bites off.
	RegionsPerRun int
	MonthsPerRun  int

	// Cooldown is the idle period after a completed cycle before the
	// next one may start.
	Cooldown time.Duration
}

// DefaultConfig returns the planner defaults.
func DefaultConfig() Config {
	return Config{
		WindowMonths:  6,
		RegionsPerRun: 1,
		MonthsPerRun:  2,
		Cooldown:      14 * 24 * time.Hour,
	}
}

// Counters accumulates per-cycle activity totals.
type Counters struct {
	UnitsCompleted      int `yaml:"unitsCompleted"`
	RecordsScraped      int `yaml:"recordsScraped"`
	ProposalsCreated    int `yaml:"proposalsCreated"`
	ProposalsSuppressed int `yaml:"proposalsSuppressed"`
}

// Progress is the durable cycle state. It survives process restarts via
// the Store and is the single source of truth for where the cycle
// stands.
type Progress struct {
	CurrentRegion string `yaml:"currentRegion"`
	CurrentMonth  string `yaml:"currentMonth"`

	// Completed maps region code to the month tokens already harvested
	// in the current cycle.
	Completed map[string][]string `yaml:"completed"`

	LastFullCycleCompletedAt *time.Time `yaml:"lastFullCycleCompletedAt,omitempty"`
	Counters                 Counters   `yaml:"counters"`
}

// NewProgress returns an empty cycle state.
func NewProgress() *Progress {
	return &Progress{Completed: make(map[string][]string)}
}

// Unit is one region-month harvesting step.
type Unit struct {
	Region string
	Month  string
}

// Span returns the unit's [from, to) date range in UTC days.
func (u Unit) Span() (time.Time, time.Time, error) {
	from, err := time.Parse(monthLayout, u.Month)
	if err != nil {
		return time.Time{}, time.Time{}, &errors.ParseError{Field: "month", Value: u.Month, Message: err.Error()}
	}
	return from, from.AddDate(0, 1, 0), nil
}

// Months returns the n month tokens of the window starting at now's
// month. Tokens are zero-padded so lexicographic order is chronological.
func Months(now time.Time, n int) []string {
	out := make([]string, 0, n)
	cursor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, cursor.Format(monthLayout))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out
}

// NextWorkUnits plans the next batch. During cooldown it returns
// ErrCooldown; once the cooldown has elapsed the progress is reset and a
// fresh cycle begins. When every region has covered the window the cycle
// completion timestamp is stamped and no units are returned.
func NextWorkUnits(p *Progress, cfg Config, now time.Time) ([]Unit, error) {
	if p.LastFullCycleCompletedAt != nil {
		restartAt := p.LastFullCycleCompletedAt.Add(cfg.Cooldown)
		if now.Before(restartAt) {
			return nil, fmt.Errorf("cycle cooldown until %s: %w", restartAt.Format(time.RFC3339), errors.ErrCooldown)
		}
		reset(p)
	}

	window := Months(now, cfg.WindowMonths)

	// Snap stale cursors back into the current traversal. A cursor can
	// go stale when the month window slides under a long pause or when
	// the configured region list changes between runs.
	ri := indexOf(cfg.Regions, p.CurrentRegion)
	if ri < 0 {
		ri = 0
	}
	mi := indexOf(window, p.CurrentMonth)
	if mi < 0 {
		mi = 0
	}

	var regions []string
	for i := ri; i < len(cfg.Regions) && len(regions) < cfg.RegionsPerRun; i++ {
		if !regionComplete(p, cfg.Regions[i], window) {
			regions = append(regions, cfg.Regions[i])
		}
	}
	if len(regions) == 0 {
		// Also catches regions completed out of cursor order.
		for _, region := range cfg.Regions {
			if !regionComplete(p, region, window) {
				regions = append(regions, region)
				if len(regions) == cfg.RegionsPerRun {
					break
				}
			}
		}
	}
	if len(regions) == 0 {
		completedAt := now
		p.LastFullCycleCompletedAt = &completedAt
		return nil, nil
	}

	var units []Unit
	picked := 0
	for i := mi; i < len(window)+mi && picked < cfg.MonthsPerRun; i++ {
		month := window[i%len(window)]
		needed := false
		for _, region := range regions {
			if !monthCompleted(p, region, month) {
				units = append(units, Unit{Region: region, Month: month})
				needed = true
			}
		}
		if needed {
			picked++
		}
	}

	if len(units) > 0 {
		p.CurrentRegion = units[0].Region
		p.CurrentMonth = units[0].Month
	}
	return units, nil
}

// MarkCompleted records one finished unit. Idempotent.
func MarkCompleted(p *Progress, unit Unit) {
	if monthCompleted(p, unit.Region, unit.Month) {
		return
	}
	if p.Completed == nil {
		p.Completed = make(map[string][]string)
	}
	p.Completed[unit.Region] = append(p.Completed[unit.Region], unit.Month)
	p.Counters.UnitsCompleted++
}

// Advance moves the cursor to the next pending unit so the following
// invocation resumes there. When nothing is pending it stamps the cycle
// as complete.
func Advance(p *Progress, cfg Config, now time.Time) {
	window := Months(now, cfg.WindowMonths)

	ri := indexOf(cfg.Regions, p.CurrentRegion)
	if ri < 0 {
		ri = 0
	}

	// The current region finishes its window before the cursor moves
	// on, so interrupted cycles stay contiguous per region.
	for i := ri; i < len(cfg.Regions); i++ {
		for _, month := range window {
			if !monthCompleted(p, cfg.Regions[i], month) {
				p.CurrentRegion = cfg.Regions[i]
				p.CurrentMonth = month
				return
			}
		}
	}
	for _, region := range cfg.Regions {
		for _, month := range window {
			if !monthCompleted(p, region, month) {
				p.CurrentRegion = region
				p.CurrentMonth = month
				return
			}
		}
	}

	completedAt := now
	p.LastFullCycleCompletedAt = &completedAt
}

// reset begins a fresh cycle while keeping nothing from the previous
// one but the zeroed counters.
func reset(p *Progress) {
	p.CurrentRegion = ""
	p.CurrentMonth = ""
	p.Completed = make(map[string][]string)
	p.LastFullCycleCompletedAt = nil
	p.Counters = Counters{}
}

func regionComplete(p *Progress, region string, window []string) bool {
	for _, month := range window {
		if !monthCompleted(p, region, month) {
			return false
		}
	}
	return true
}

func monthCompleted(p *Progress, region, month string) bool {
	for _, done := range p.Completed[region] {
		if done == month {
			return true
		}
	}
	return false
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}
