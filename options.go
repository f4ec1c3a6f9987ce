package harvester

import (
	"time"

	"github.com/racebase/harvester/pkg/catalogs"
	"github.com/racebase/harvester/pkg/match"
	"github.com/racebase/harvester/pkg/reconcile"
	"github.com/racebase/harvester/pkg/schedule"
	"github.com/racebase/harvester/pkg/scrape"
)

// Option configures a Harvester.
type Option func(*client)

// WithSource sets the calendar source.
func WithSource(s scrape.Source) Option {
	return func(c *client) { c.source = s }
}

// WithCatalog sets the catalog data-access layer.
func WithCatalog(cat catalogs.Catalog) Option {
	return func(c *client) { c.catalog = cat }
}

// WithProgressStore sets the cycle progress store.
func WithProgressStore(s *schedule.Store) Option {
	return func(c *client) { c.progress = s }
}

// WithProgressFile persists cycle progress at the given path.
func WithProgressFile(path string) Option {
	return func(c *client) { c.progress = schedule.NewStore(path) }
}

// WithScheduleConfig sets the cycle planner tunables, including the
// region traversal order.
func WithScheduleConfig(cfg schedule.Config) Option {
	return func(c *client) { c.scheduleCfg = cfg }
}

// WithMatchConfig sets the matching engine tunables.
func WithMatchConfig(cfg match.Config) Option {
	return func(c *client) { c.matcher = match.New(cfg) }
}

// WithDiffConfig sets the diff builder tunables.
func WithDiffConfig(cfg reconcile.Config) Option {
	return func(c *client) { c.differ = reconcile.NewBuilder(cfg) }
}

// WithLevels restricts harvesting to the given competition levels.
func WithLevels(levels ...string) Option {
	return func(c *client) { c.levels = levels }
}

// WithDelay sets the base pause between detail fetches. The actual
// pause is jittered around this value. Zero disables pacing, which is
// only appropriate in tests.
func WithDelay(d time.Duration) Option {
	return func(c *client) { c.delay = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *client) { c.now = now }
}
