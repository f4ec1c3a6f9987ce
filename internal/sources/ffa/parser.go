package ffa

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/racebase/harvester/pkg/scrape"
)

// Selector extraction is tolerant by construction: a malformed cell
// yields a nil optional field, never a partial struct or a parse abort,
// so one broken row cannot poison a whole listing page.

var (
	distanceRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(km|m)\b`)
	clockRe    = regexp.MustCompile(`(\d{1,2})\s*[hH:]\s*(\d{2})?`)
	numberRe   = regexp.MustCompile(`\d+`)
)

const frenchDateLayout = "02/01/2006"

// parseListing extracts the competition rows of one calendar results
// page. Rows missing a name or a parsable date are skipped.
func parseListing(doc *goquery.Document, region string) []scrape.Competition {
	var out []scrape.Competition

	doc.Find("table.liste tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}

		link := cells.Eq(1).Find("a").First()
		name := cleanText(link.Text())
		if name == "" {
			return
		}

		date, err := parseFrenchDate(cleanText(cells.Eq(0).Text()))
		if err != nil {
			return
		}

		href, _ := link.Attr("href")
		comp := scrape.Competition{
			ExternalID: externalID(href),
			Name:       name,
			City:       cleanText(cells.Eq(2).Text()),
			Department: cleanText(cells.Eq(3).Text()),
			Region:     region,
			Date:       date,
			Level:      cleanText(cells.Eq(4).Text()),
			DetailURL:  href,
		}
		out = append(out, comp)
	})

	return out
}

// hasNextPage reports whether the listing carries a forward pagination
// link.
func hasNextPage(doc *goquery.Document) bool {
	found := false
	doc.Find("a[href*='frmposition']").Each(func(_ int, link *goquery.Selection) {
		if strings.Contains(strings.ToLower(link.Text()), "suiv") {
			found = true
		}
	})
	return found
}

// parseDetails enriches a listing record from its detail page.
func parseDetails(doc *goquery.Document, c scrape.Competition) scrape.Competition {
	c.SubEvents = parseSubEvents(doc, c.Date)
	c.Organizer = parseOrganizer(doc)
	c.Registrants = parseRegistrants(doc)
	return c
}

// parseSubEvents reads the per-race table of a detail page.
func parseSubEvents(doc *goquery.Document, competitionDate time.Time) []scrape.SubEvent {
	var out []scrape.SubEvent

	doc.Find("table.epreuves tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		name := cleanText(cells.Eq(1).Text())
		if name == "" {
			return
		}

		sub := scrape.SubEvent{
			Name:     name,
			Time:     parseClock(cleanText(cells.Eq(0).Text())),
			Distance: parseDistance(name),
		}
		if cells.Length() > 2 {
			if d := parseDistance(cleanText(cells.Eq(2).Text())); d != nil {
				sub.Distance = d
			}
		}
		if cells.Length() > 3 {
			sub.Elevation = parseElevation(cleanText(cells.Eq(3).Text()))
		}
		if cells.Length() > 4 {
			if date, err := parseFrenchDate(cleanText(cells.Eq(4).Text())); err == nil && !date.Equal(competitionDate) {
				sub.Date = &date
			}
		}
		out = append(out, sub)
	})

	return out
}

// parseOrganizer reads the contact block. An empty block yields nil.
func parseOrganizer(doc *goquery.Document) *scrape.Contact {
	block := doc.Find("div.organisateur").First()
	if block.Length() == 0 {
		return nil
	}

	contact := scrape.Contact{
		Name:  cleanText(block.Find(".nom").Text()),
		Phone: cleanText(block.Find(".telephone").Text()),
	}
	if href, ok := block.Find("a[href^='mailto:']").Attr("href"); ok {
		contact.Email = strings.TrimPrefix(href, "mailto:")
	}
	if href, ok := block.Find("a[href^='http']").Attr("href"); ok {
		contact.Website = href
	}

	if contact == (scrape.Contact{}) {
		return nil
	}
	return &contact
}

// parseRegistrants reads the engaged-athletes counter if present.
func parseRegistrants(doc *goquery.Document) *int {
	text := cleanText(doc.Find(".engages").First().Text())
	if text == "" {
		return nil
	}
	m := numberRe.FindString(text)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// parseFrenchDate parses a day-granularity DD/MM/YYYY date. The result
// is midnight UTC; zone placement happens downstream where the region
// is known.
func parseFrenchDate(s string) (time.Time, error) {
	return time.Parse(frenchDateLayout, strings.TrimSpace(s))
}

// parseDistance extracts a course distance in meters from free text like
// "21,1 km" or "800 m". No distance found yields nil.
func parseDistance(s string) *int {
	m := distanceRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || value <= 0 {
		return nil
	}

	meters := int(math.Round(value))
	if strings.EqualFold(m[2], "km") {
		meters = int(math.Round(value * 1000))
	}
	return &meters
}

// parseElevation extracts a positive elevation gain in meters, written
// like "D+ 900m" or "900".
func parseElevation(s string) *int {
	m := numberRe.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// parseClock extracts a local wall-clock time written like "14h30",
// "9h" or "09:15". Unparsable text yields nil.
func parseClock(s string) *scrape.ClockTime {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return nil
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil || minute > 59 {
			return nil
		}
	}
	return &scrape.ClockTime{Hour: hour, Minute: minute}
}

// externalID pulls the stable competition id out of a detail link.
func externalID(href string) string {
	for _, key := range []string{"frmcompetition=", "competition="} {
		if idx := strings.Index(href, key); idx >= 0 {
			rest := href[idx+len(key):]
			if amp := strings.IndexByte(rest, '&'); amp >= 0 {
				rest = rest[:amp]
			}
			return rest
		}
	}
	return href
}

// cleanText collapses whitespace and strips non-breaking spaces.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
