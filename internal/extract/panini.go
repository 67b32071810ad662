package extract

import (
	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/textnorm"
)

// SitePanini identifies the Panini Magento storefront.
const SitePanini = "panini"

// magentoSpecs is the "additional information" table both Magento stores render.
var magentoSpecs = TableSelectors{Row: "#product-attribute-specs-table tr", Label: "th", Value: "td"}

// Panini scrapes panini.com.br product pages. Panini only sells its own titles,
// so the publisher is constant.
type Panini struct {
	clock Clock
}

// NewPanini builds the Panini strategy.
func NewPanini(clock Clock) *Panini {
	return &Panini{clock: orSystemClock(clock)}
}

// Site implements Strategy.
func (*Panini) Site() string { return SitePanini }

// Scrape implements Strategy.
func (s *Panini) Scrape(url, html string) (comic.Record, error) {
	doc, err := loadDocument(SitePanini, url, html, "h1.page-title", ".product-info-main", ".price-box")
	if err != nil {
		return comic.Record{}, err
	}
	specs := ParseAttributeTable(doc.Selection, magentoSpecs)

	pages := textnorm.FirstNumber(text(doc, `[data-th="Quantidade de páginas"]`))
	if pages == 0 {
		pages = specs.Int("quantidade de páginas")
	}

	rec := comic.Record{
		Title:     text(doc, "h1.page-title"),
		Publisher: "Panini",
		URL:       url,
		Offer: comic.Offer{
			Price:       textnorm.NormalizePrice(text(doc, ".special-price .price, .price-container .price")),
			OldPrice:    textnorm.NormalizePrice(text(doc, ".old-price .price")),
			IsAvailable: doc.Find("#product-addtocart-button").Length() > 0,
		},
		Synopsis: textnorm.StripQuotes(text(doc, ".product.overview")),
		ImageURL: attr(doc, `meta[property="og:image"]`, "content"),
		Pages:    pages,
		Authors:  specs.List("autores"),
		Formats:  specs.List("formato"),

		LastSuccessfulUpdateAt: s.clock.Now(),
	}
	if len(rec.Authors) == 0 {
		rec.Authors = specs.List("autor")
	}

	isbn := textnorm.DigitsOnly(specs.Scalar("isbn"))
	if len(isbn) == 13 {
		rec.ISBN13 = isbn
	} else {
		rec.ISBN = isbn
	}
	return rec, nil
}
