// Package sitemap reads sitemap index and URL set documents.
package sitemap

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Root element names of the two document shapes the crawler understands.
const (
	rootIndex  = "sitemapindex"
	rootURLSet = "urlset"
)

// ParseError reports an XML body that is malformed or not of the expected shape.
type ParseError struct {
	Expected string
	Found    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Expected, e.Err)
	}
	return fmt.Sprintf("parse %s: unexpected root element <%s>", e.Expected, e.Found)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseSitemapIndex returns the sub-sitemap locations of a sitemapindex document in document order.
// An empty body yields an empty slice.
func ParseSitemapIndex(body string) ([]string, error) {
	return parseLocs(body, rootIndex, "sitemap/loc")
}

// ParseURLSet returns the page locations of a urlset document in document order.
// An empty body yields an empty slice.
func ParseURLSet(body string) ([]string, error) {
	return parseLocs(body, rootURLSet, "url/loc")
}

func parseLocs(body, root, path string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return []string{}, nil
	}
	doc, err := xmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, &ParseError{Expected: root, Err: err}
	}
	top := xmlquery.FindOne(doc, "/*")
	if top == nil {
		return nil, &ParseError{Expected: root, Err: fmt.Errorf("document has no root element")}
	}
	if top.Data != root {
		return nil, &ParseError{Expected: root, Found: top.Data}
	}

	nodes := xmlquery.Find(top, path)
	locs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

// FilterByMarker keeps the locations that contain marker, preserving order.
// An empty marker keeps everything.
func FilterByMarker(locs []string, marker string) []string {
	if marker == "" {
		return append([]string(nil), locs...)
	}
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		if strings.Contains(loc, marker) {
			out = append(out, loc)
		}
	}
	return out
}
