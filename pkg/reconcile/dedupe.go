package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/racebase/harvester/pkg/catalogs"
)

// Deduper suppresses changes the catalog already knows or another
// proposal already carries. It also keeps a per-run cache so one
// scheduler pass never emits two near-duplicate proposals for the same
// target before either reaches durable storage.
type Deduper struct {
	seen map[string]map[string]bool // target -> emitted hashes this run
}

// NewDeduper creates a dedup layer for one scheduler run.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]map[string]bool)}
}

// Normalize flattens a Changes map into a canonical key/value form:
// keys are deep-sorted, date-like values become absolute RFC3339 UTC
// strings, collections are order-insensitive, and volatile fields
// (confidence, timestamps) are stripped. Pure function of the input.
func Normalize(c catalogs.Changes) map[string]string {
	out := make(map[string]string)

	for key, fc := range c.Fields {
		out["field:"+key] = canonical(fc.New)
	}

	adds := make([]string, 0, len(c.RaceAdds))
	for _, add := range c.RaceAdds {
		adds = append(adds, raceAddEntry(add))
	}
	sort.Strings(adds)
	for i, add := range adds {
		out[fmt.Sprintf("raceAdd:%d", i)] = add
	}

	for _, update := range c.RaceUpdates {
		for key, fc := range update.Fields {
			out["race:"+update.RaceID+":"+key] = canonical(fc.New)
		}
	}

	for _, repair := range c.DateRepairs {
		out["repair:"+repair.RaceID] = canonical(repair.New)
	}

	return out
}

// Hash returns the content hash of normalized changes.
func Hash(c catalogs.Changes) string {
	normalized := Normalize(c)

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, normalized[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FilterNew drops changes already known to the catalog or already
// queued in a pending proposal for the same target. Every part of the
// map is evaluated independently: fields against current and pending
// values, race additions and date repairs by canonical content against
// the pending proposals. The second return value is true when the whole
// candidate proposal must be suppressed: identical content hash
// pending, nothing left after filtering, or a duplicate within the
// current run.
func (d *Deduper) FilterNew(target string, c catalogs.Changes, edition *catalogs.Edition, pending []*catalogs.Proposal) (catalogs.Changes, bool) {
	hash := Hash(c)
	for _, p := range pending {
		if p.ContentHash == hash {
			return catalogs.Changes{}, true
		}
	}

	current := currentValues(edition)
	pendingValues := pendingFieldValues(pending)
	pendingAdds := pendingRaceAdds(pending)

	var filtered catalogs.Changes
	for _, add := range c.RaceAdds {
		if pendingAdds[raceAddEntry(add)] {
			continue
		}
		filtered.RaceAdds = append(filtered.RaceAdds, add)
	}
	for _, repair := range c.DateRepairs {
		if queued, ok := pendingValues["repair:"+repair.RaceID]; ok && queued == canonical(repair.New) {
			continue
		}
		filtered.DateRepairs = append(filtered.DateRepairs, repair)
	}

	for key, fc := range c.Fields {
		canon := canonical(fc.New)
		if stored, ok := current[key]; ok && stored == canon {
			continue
		}
		if queued, ok := pendingValues["field:"+key]; ok && queued == canon {
			continue
		}
		if filtered.Fields == nil {
			filtered.Fields = make(map[string]catalogs.FieldChange)
		}
		filtered.Fields[key] = fc
	}

	for _, update := range c.RaceUpdates {
		kept := catalogs.RaceUpdate{RaceID: update.RaceID}
		for key, fc := range update.Fields {
			if queued, ok := pendingValues["race:"+update.RaceID+":"+key]; ok && queued == canonical(fc.New) {
				continue
			}
			if kept.Fields == nil {
				kept.Fields = make(map[string]catalogs.FieldChange)
			}
			kept.Fields[key] = fc
		}
		if len(kept.Fields) > 0 {
			filtered.RaceUpdates = append(filtered.RaceUpdates, kept)
		}
	}

	if filtered.IsEmpty() {
		return catalogs.Changes{}, true
	}

	finalHash := Hash(filtered)
	if d.seen[target][finalHash] {
		return catalogs.Changes{}, true
	}
	if d.seen[target] == nil {
		d.seen[target] = make(map[string]bool)
	}
	d.seen[target][finalHash] = true

	return filtered, false
}

// currentValues projects an edition onto the canonical field space used
// by update proposals. Nil for creations.
func currentValues(edition *catalogs.Edition) map[string]string {
	if edition == nil {
		return nil
	}

	out := map[string]string{
		"calendarStatus": string(edition.CalendarStatus),
		"startDate":      canonical(edition.StartDate),
		"endDate":        canonical(edition.EndDate),
	}
	if edition.RegistrantsNumber != nil {
		out["registrantsNumber"] = canonical(*edition.RegistrantsNumber)
	}
	if edition.Organizer != nil {
		out["organizer.name"] = edition.Organizer.Name
		out["organizer.email"] = edition.Organizer.Email
		out["organizer.phone"] = edition.Organizer.Phone
		out["organizer.website"] = edition.Organizer.Website
	}
	return out
}

// raceAddEntry renders a race addition in its canonical comparison
// form, independent of its position in the list. Confidence is
// volatile and excluded.
func raceAddEntry(add catalogs.RaceCreation) string {
	return strings.Join([]string{
		add.Name,
		canonical(add.Distance),
		canonical(add.Elevation),
		canonical(add.StartTime),
		string(add.Category),
	}, "|")
}

// pendingRaceAdds collects the canonical race additions already queued.
func pendingRaceAdds(pending []*catalogs.Proposal) map[string]bool {
	out := make(map[string]bool)
	for _, p := range pending {
		for _, add := range p.Changes.RaceAdds {
			out[raceAddEntry(add)] = true
		}
	}
	return out
}

// pendingFieldValues collects the canonical new values already queued,
// keyed in the same normalized space.
func pendingFieldValues(pending []*catalogs.Proposal) map[string]string {
	out := make(map[string]string)
	for _, p := range pending {
		for key, value := range Normalize(p.Changes) {
			out[key] = value
		}
	}
	return out
}

// canonical renders a value in its stable comparison form. Dates become
// RFC3339 in UTC so equal instants compare equal across zones.
func canonical(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case *time.Time:
		if value == nil {
			return ""
		}
		return value.UTC().Format(time.RFC3339)
	case *int:
		if value == nil {
			return ""
		}
		return fmt.Sprintf("%d", *value)
	case string:
		// Pending proposals read back from their stored JSON document
		// carry dates as zoned strings; the same instant must still
		// compare equal to a freshly computed time.Time.
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return ts.UTC().Format(time.RFC3339)
		}
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}
