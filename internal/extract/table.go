package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/comics-crawler/internal/textnorm"
)

// AttributeTable is a label/value block parsed from product markup.
// Keys are normalized by NormalizeLabel.
type AttributeTable struct {
	Scalars map[string]string
	Lists   map[string][]string
}

// TableSelectors locates the rows of an attribute table and the label and value cells within a row.
type TableSelectors struct {
	Row   string
	Label string
	Value string
}

// NormalizeLabel lower-cases and trims a label and strips a trailing colon.
func NormalizeLabel(label string) string {
	label = textnorm.CollapseSpace(label)
	label = strings.TrimSpace(strings.TrimSuffix(label, ":"))
	return strings.ToLower(label)
}

// ParseAttributeTable reads every row matched by sel.Row under root.
// Cells containing links are recorded as lists of link texts as well as scalars.
// Rows with an empty label are ignored; the first occurrence of a label wins.
func ParseAttributeTable(root *goquery.Selection, sel TableSelectors) AttributeTable {
	table := AttributeTable{
		Scalars: map[string]string{},
		Lists:   map[string][]string{},
	}
	root.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		key := NormalizeLabel(row.Find(sel.Label).First().Text())
		if key == "" {
			return
		}
		if _, seen := table.Scalars[key]; seen {
			return
		}
		cell := row.Find(sel.Value).First()
		table.Scalars[key] = textnorm.CollapseSpace(cell.Text())

		links := cell.Find("a")
		if links.Length() == 0 {
			return
		}
		values := make([]string, 0, links.Length())
		links.Each(func(_ int, a *goquery.Selection) {
			if v := textnorm.CollapseSpace(a.Text()); v != "" {
				values = append(values, v)
			}
		})
		if len(values) > 0 {
			table.Lists[key] = values
		}
	})
	return table
}

// Scalar returns the text of the cell labelled key.
func (t AttributeTable) Scalar(key string) string {
	return t.Scalars[key]
}

// List returns the link texts of the cell labelled key.
// A plain text cell is split on commas instead.
func (t AttributeTable) List(key string) []string {
	if values, ok := t.Lists[key]; ok {
		return append([]string(nil), values...)
	}
	raw, ok := t.Scalars[key]
	if !ok || raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Int returns the first number in the cell labelled key, or 0.
func (t AttributeTable) Int(key string) int {
	return textnorm.FirstNumber(t.Scalars[key])
}

// Has reports whether the table contains key.
func (t AttributeTable) Has(key string) bool {
	_, ok := t.Scalars[key]
	return ok
}
