// Package harvester keeps an internal sporting-event catalog aligned
// with an official federation calendar. A run scrapes one slice of the
// calendar, matches the scraped records against catalog entities, and
// queues confidence-scored change proposals for human review. Nothing is
// ever written to catalog entities directly.
//
// Example usage:
//
//	h, err := harvester.New(
//	    harvester.WithSource(ffa.New()),
//	    harvester.WithCatalog(store),
//	    harvester.WithProgressFile("progress.yaml"),
//	)
//	if err != nil {
//	    return err
//	}
//	summary, err := h.Run(ctx)
package harvester

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/errors"
	"github.com/racebase/harvester/pkg/logging"
	"github.com/racebase/harvester/pkg/match"
	"github.com/racebase/harvester/pkg/reconcile"
	"github.com/racebase/harvester/pkg/schedule"
	"github.com/racebase/harvester/pkg/scrape"
)

// Harvester runs resumable harvesting cycles.
type Harvester interface {
	// Run executes the next batch of work units and persists progress
	// after each one. During the post-cycle cooldown it returns
	// ErrCooldown with an empty summary.
	Run(ctx context.Context) (*RunSummary, error)

	// Status reports the persisted cycle state without doing any work.
	Status() (*schedule.Progress, error)
}

// RunSummary totals one Run invocation.
type RunSummary struct {
	Units               int
	Records             int
	PartialDetails      int
	ProposalsCreated    int
	ProposalsSuppressed int
	ErrorsSkipped       int
}

// client is the concrete Harvester.
type client struct {
	source   scrape.Source
	catalog  catalogs.Catalog
	progress *schedule.Store

	scheduleCfg schedule.Config
	levels      []string
	delay       time.Duration

	matcher *match.Matcher
	differ  *reconcile.Builder

	now    func() time.Time
	logger zerolog.Logger
}

// New creates a Harvester. A source and a catalog are required; every
// other collaborator has a default.
func New(opts ...Option) (Harvester, error) {
	c := &client{
		scheduleCfg: schedule.DefaultConfig(),
		matcher:     match.New(match.DefaultConfig()),
		differ:      reconcile.NewBuilder(reconcile.DefaultConfig()),
		delay:       2 * time.Second,
		now:         time.Now,
		logger:      logging.With().Str("component", "harvester").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.source == nil {
		return nil, &errors.ConfigError{Component: "source", Message: "a calendar source is required"}
	}
	if c.catalog == nil {
		return nil, &errors.ConfigError{Component: "catalog", Message: "a catalog is required"}
	}
	if c.progress == nil {
		c.progress = schedule.NewStore("harvester-progress.yaml")
	}
	if len(c.scheduleCfg.Regions) == 0 {
		return nil, &errors.ConfigError{Component: "schedule", Message: "at least one region is required"}
	}
	return c, nil
}

// Status loads the persisted progress.
func (c *client) Status() (*schedule.Progress, error) {
	return c.progress.Load()
}
