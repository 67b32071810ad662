// Package extract turns retailer product pages into normalized comic records.
//
// Each supported site has its own Strategy. Strategies never branch on each
// other's markup; a new retailer is a new Strategy plus a dispatcher entry.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/comics-crawler/internal/comic"
)

// Strategy scrapes one site's product page markup.
type Strategy interface {
	// Site returns the identifier used in logs, metrics and crawl state.
	Site() string
	// Scrape parses html fetched from url into a record.
	Scrape(url, html string) (comic.Record, error)
}

// Clock returns the extraction timestamp.
type Clock interface {
	Now() time.Time
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// ErrNoProduct is wrapped by ExtractionError when the page has no product content at all.
var ErrNoProduct = errors.New("no product markup found")

// ExtractionError reports a page whose markup lacks the anchors a strategy needs.
type ExtractionError struct {
	Site string
	URL  string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.URL, e.Site, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func orSystemClock(c Clock) Clock {
	if c == nil {
		return clockFunc(func() time.Time { return time.Now().UTC() })
	}
	return c
}

// loadDocument parses html and checks that at least one of roots is present.
func loadDocument(site, url, html string, roots ...string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{Site: site, URL: url, Err: fmt.Errorf("parse html: %w", err)}
	}
	for _, root := range roots {
		if doc.Find(root).Length() > 0 {
			return doc, nil
		}
	}
	return nil, &ExtractionError{Site: site, URL: url, Err: ErrNoProduct}
}

// text returns the trimmed text of the first match of selector.
func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// attr returns the attribute of the first match of selector.
func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// cleanPublisher reduces labels such as "Editora: Panini; Selo: Marvel" to "Panini".
func cleanPublisher(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
