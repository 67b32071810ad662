package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/textnorm"
)

// SiteComix identifies the Comix Magento storefront.
const SiteComix = "comix"

// Comix scrapes www.comix.com.br product pages.
type Comix struct {
	clock Clock
}

// NewComix builds the Comix strategy.
func NewComix(clock Clock) *Comix {
	return &Comix{clock: orSystemClock(clock)}
}

// Site implements Strategy.
func (*Comix) Site() string { return SiteComix }

// Scrape implements Strategy.
func (s *Comix) Scrape(url, html string) (comic.Record, error) {
	doc, err := loadDocument(SiteComix, url, html, "h1.page-title", ".product-info-main")
	if err != nil {
		return comic.Record{}, err
	}
	specs := ParseAttributeTable(doc.Selection, magentoSpecs)

	price := text(doc, ".special-price .price")
	if price == "" {
		price = text(doc, ".price-wrapper .price")
	}

	rec := comic.Record{
		Title:     text(doc, "h1.page-title"),
		Publisher: comixPublisher(doc),
		URL:       url,
		Offer: comic.Offer{
			Price:       textnorm.NormalizePrice(price),
			OldPrice:    textnorm.NormalizePrice(text(doc, ".old-price .price")),
			IsAvailable: doc.Find(".stock.unavailable").Length() == 0,
		},
		Synopsis: textnorm.StripQuotes(text(doc, ".product.attribute.description p")),
		ImageURL: attr(doc, "img.gallery-placeholder__image", "src"),
		Pages:    specs.Int("páginas"),
		Authors:  specs.List("autor"),
		Formats:  specs.List("formato"),
		Year:     specs.Int("ano"),

		LastSuccessfulUpdateAt: s.clock.Now(),
	}
	if rec.Publisher == "" {
		rec.Publisher = specs.Scalar("editora")
	}

	isbn := textnorm.DigitsOnly(specs.Scalar("isbn"))
	if len(isbn) == 13 {
		rec.ISBN13 = isbn
	} else {
		rec.ISBN = isbn
	}
	return rec, nil
}

func comixPublisher(doc *goquery.Document) string {
	var publisher string
	doc.Find("div.info-produto a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := strings.TrimSpace(a.Text())
		if !strings.Contains(label, "Editora") {
			return true
		}
		publisher = cleanPublisher(strings.TrimPrefix(label, "Editora"))
		return false
	})
	return publisher
}
