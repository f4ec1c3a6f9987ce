// Package ffa scrapes the federation's public calendar site. It owns
// pagination, HTML selector extraction and transport concerns, and hands
// the harvester fully structured records.
package ffa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rs/zerolog"

	"github.com/racebase/harvester/pkg/errors"
	"github.com/racebase/harvester/pkg/logging"
	"github.com/racebase/harvester/pkg/scrape"
)

const (
	defaultBaseURL = "https://bases.athle.fr/asp.net/liste.aspx"

	// The calendar serves fixed-size result pages.
	pageSize = 50

	// Hard cap on pagination, in case the next-page marker misparses.
	maxPages = 40
)

// Source implements scrape.Source against the live calendar site.
type Source struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL overrides the calendar endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// New creates a calendar source.
func New(opts ...Option) *Source {
	s := &Source{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logging.With().Str("source", "ffa").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCompetitions walks the paginated calendar for one region and date
// range. Pagination stops at the last page marker or at a short page.
func (s *Source) ListCompetitions(ctx context.Context, region string, from, to time.Time, levels []string) ([]scrape.Competition, error) {
	var out []scrape.Competition

	for page := 0; page < maxPages; page++ {
		doc, err := s.get(ctx, s.listURL(region, from, to, levels, page))
		if err != nil {
			return nil, err
		}

		rows := parseListing(doc, region)
		out = append(out, rows...)

		if len(rows) < pageSize || !hasNextPage(doc) {
			break
		}
	}

	s.logger.Debug().
		Str("region", region).
		Time("from", from).
		Time("to", to).
		Int("competitions", len(out)).
		Msg("Listed competitions")
	return filterLevels(out, levels), nil
}

// FetchDetails enriches a listing record from its detail page. A failed
// fetch is not fatal: the record comes back with Partial set so the
// harvester can still reconcile the listing fields.
func (s *Source) FetchDetails(ctx context.Context, c scrape.Competition) (scrape.Competition, error) {
	if c.DetailURL == "" {
		c.Partial = true
		return c, nil
	}

	doc, err := s.get(ctx, s.resolve(c.DetailURL))
	if err != nil {
		if ctx.Err() != nil {
			return c, ctx.Err()
		}
		s.logger.Warn().
			Err(err).
			Str("competition", c.Name).
			Str("url", c.DetailURL).
			Msg("Detail fetch failed, keeping listing data")
		c.Partial = true
		return c, nil
	}

	return parseDetails(doc, c), nil
}

// get fetches and parses one HTML page.
func (s *Source) get(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.WrapFetch(u, err)
	}
	req.Header.Set("User-Agent", "racebase-harvester/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WrapFetch(u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetchError(u, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.NewFetchError(u, resp.StatusCode, err)
	}
	return doc, nil
}

// listURL builds the calendar query for one result page.
func (s *Source) listURL(region string, from, to time.Time, levels []string, page int) string {
	q := url.Values{}
	q.Set("frmbase", "calendrier")
	q.Set("frmmode", "1")
	q.Set("frmespace", "0")
	q.Set("frmligue", region)
	q.Set("frmsaison", strconv.Itoa(from.Year()))
	q.Set("frmdate_j1", from.Format("02/01/2006"))
	q.Set("frmdate_j2", to.Format("02/01/2006"))
	if len(levels) == 1 {
		q.Set("frmniveau", levels[0])
	}
	q.Set("frmposition", strconv.Itoa(page))
	return s.baseURL + "?" + q.Encode()
}

// resolve makes relative detail links absolute against the base URL.
func (s *Source) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// filterLevels keeps only the requested competition levels. An empty
// filter keeps everything, and the site-side level filter only applies
// when a single level is requested, so the client-side pass stays.
func filterLevels(comps []scrape.Competition, levels []string) []scrape.Competition {
	if len(levels) == 0 {
		return comps
	}
	allowed := make(map[string]bool, len(levels))
	for _, l := range levels {
		allowed[l] = true
	}
	out := comps[:0]
	for _, c := range comps {
		if allowed[c.Level] {
			out = append(out, c)
		}
	}
	return out
}
