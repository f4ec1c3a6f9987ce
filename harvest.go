package harvester

import (
	"context"
	"math/rand"
	"time"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/errors"
	"github.com/racebase/harvester/pkg/match"
	"github.com/racebase/harvester/pkg/reconcile"
	"github.com/racebase/harvester/pkg/schedule"
	"github.com/racebase/harvester/pkg/scrape"
)

// Run executes the next batch of work units. Progress is persisted
// after every unit, so a crash or shutdown mid-run loses at most the
// unit in flight. A unit whose listing fetch fails is skipped and left
// unmarked; the next cycle pass retries it. Catalog unavailability
// aborts the run before any progress write, so no unit is recorded as
// done while its proposals may not have landed.
func (c *client) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	progress, err := c.progress.Load()
	if err != nil {
		return summary, err
	}

	units, err := schedule.NextWorkUnits(progress, c.scheduleCfg, c.now())
	if err != nil {
		return summary, err
	}
	if len(units) == 0 {
		// Cycle just completed; persist the stamp.
		if err := c.progress.Save(progress); err != nil {
			return summary, err
		}
		c.logger.Info().Msg("Cycle complete, entering cooldown")
		return summary, nil
	}

	deduper := reconcile.NewDeduper()

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := c.runUnit(ctx, unit, progress, deduper, summary); err != nil {
			return summary, err
		}
	}

	schedule.Advance(progress, c.scheduleCfg, c.now())
	if err := c.progress.Save(progress); err != nil {
		return summary, err
	}
	return summary, nil
}

// runUnit harvests one region-month slice and marks it completed.
func (c *client) runUnit(ctx context.Context, unit schedule.Unit, progress *schedule.Progress, deduper *reconcile.Deduper, summary *RunSummary) error {
	logger := c.logger.With().Str("region", unit.Region).Str("month", unit.Month).Logger()

	from, to, err := unit.Span()
	if err != nil {
		return err
	}

	comps, err := c.source.ListCompetitions(ctx, unit.Region, from, to, c.levels)
	if err != nil {
		// Leave the unit unmarked so a later pass retries it.
		logger.Warn().Err(err).Msg("Listing fetch failed, skipping unit")
		return nil
	}

	logger.Info().Int("competitions", len(comps)).Msg("Processing work unit")

	for _, comp := range comps {
		if err := c.pause(ctx); err != nil {
			return err
		}

		comp, err = c.source.FetchDetails(ctx, comp)
		if err != nil {
			return err
		}
		if comp.Partial {
			summary.PartialDetails++
		}

		if err := c.harvestOne(ctx, comp, progress, deduper, summary); err != nil {
			if errors.IsCatalogUnavailable(err) {
				return err
			}
			summary.ErrorsSkipped++
			logger.Error().Err(err).Str("competition", comp.ExternalID).Msg("Record failed, continuing")
		}
		summary.Records++
		progress.Counters.RecordsScraped++
	}

	schedule.MarkCompleted(progress, unit)
	summary.Units++
	return c.progress.Save(progress)
}

// harvestOne reconciles a single scraped competition into at most one
// proposal.
func (c *client) harvestOne(ctx context.Context, comp scrape.Competition, progress *schedule.Progress, deduper *reconcile.Deduper, summary *RunSummary) error {
	pool, err := c.catalog.Candidates(ctx, catalogs.CandidateQuery{
		Name:       comp.Name,
		City:       comp.City,
		Department: comp.Department,
		Date:       comp.Date,
		Window:     c.matcher.DateWindow(),
	})
	if err != nil {
		return err
	}

	outcome := c.matcher.Match(comp, pool)

	var (
		edition  *catalogs.Edition
		changes  catalogs.Changes
		proposal *catalogs.Proposal
	)

	switch outcome.Kind {
	case match.NoMatch:
		changes = c.differ.BuildCreation(comp, outcome.Confidence)
		proposal = &catalogs.Proposal{Kind: catalogs.KindCreation, Changes: changes}
	default:
		edition, err = c.catalog.Edition(ctx, outcome.EditionID)
		if err != nil {
			return err
		}
		changes = c.differ.BuildUpdate(comp, outcome, edition)
		if changes.IsEmpty() {
			return nil
		}
		proposal = &catalogs.Proposal{
			Kind:      catalogs.KindUpdate,
			EventID:   outcome.EventID,
			EditionID: outcome.EditionID,
			Changes:   changes,
		}
	}

	target := proposal.Target()
	pending, err := c.catalog.PendingProposals(ctx, target)
	if err != nil {
		return err
	}

	filtered, suppressed := deduper.FilterNew(target, changes, edition, pending)
	if suppressed {
		summary.ProposalsSuppressed++
		progress.Counters.ProposalsSuppressed++
		c.logger.Debug().Str("target", target).Msg("Proposal suppressed as duplicate")
		return nil
	}

	proposal.Changes = filtered
	proposal.ContentHash = reconcile.Hash(filtered)
	proposal.Justifications = []catalogs.Justification{
		{
			SourceURL: comp.DetailURL,
			Method:    outcome.Kind.String(),
			Rejected:  match.Summaries(outcome.Rejected),
		},
	}

	if err := c.catalog.CreateProposal(ctx, proposal); err != nil {
		return err
	}

	summary.ProposalsCreated++
	progress.Counters.ProposalsCreated++
	c.logger.Info().
		Str("target", target).
		Str("kind", string(proposal.Kind)).
		Float64("confidence", outcome.Confidence).
		Msg("Proposal queued")
	return nil
}

// pause waits the jittered inter-request delay or until the context is
// cancelled. Jitter is ±20% so request timing never forms a fixed beat.
func (c *client) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}

	var jitter time.Duration
	if span := int64(c.delay) * 2 / 5; span > 0 {
		jitter = time.Duration(rand.Int63n(span)) - c.delay/5
	}
	select {
	case <-time.After(c.delay + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
