// Package comic defines the normalized comic record produced by site extractors.
package comic

import "time"

// Offer is the commercial part of a listing.
type Offer struct {
	Price       float64 `json:"price"`
	OldPrice    float64 `json:"oldPrice,omitempty"`
	IsAvailable bool    `json:"isAvailable"`
}

// Record is one comic as extracted from a retailer product page.
//
// URL is the natural key: two records with the same URL describe the same comic.
type Record struct {
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
	URL       string `json:"url"`
	Offer     Offer  `json:"offer"`
	Synopsis  string `json:"synopsis"`
	ImageURL  string `json:"imageUrl,omitempty"`
	ISBN      string `json:"isbn,omitempty"`
	ISBN13    string `json:"isbn13,omitempty"`

	Pages          int      `json:"pages,omitempty"`
	Weight         string   `json:"weight,omitempty"`
	Dimensions     string   `json:"dimensions,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	SeriesType     []string `json:"seriesType,omitempty"`
	Color          []string `json:"color,omitempty"`
	Authors        []string `json:"authors,omitempty"`
	Formats        []string `json:"formats,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	NumberInSeries string   `json:"numberInSeries,omitempty"`
	Year           int      `json:"year,omitempty"`

	LastSuccessfulUpdateAt time.Time `json:"lastSuccessfulUpdateAt"`
}
