package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/textnorm"
)

// SiteComicBoom identifies the ComicBoom WooCommerce storefront.
const SiteComicBoom = "comicboom"

var comicBoomTable = TableSelectors{Row: ".shop_attributes tr", Label: "th", Value: "td"}

// ComicBoom scrapes comicboom.com.br product pages.
type ComicBoom struct {
	clock Clock
}

// NewComicBoom builds the ComicBoom strategy.
func NewComicBoom(clock Clock) *ComicBoom {
	return &ComicBoom{clock: orSystemClock(clock)}
}

// Site implements Strategy.
func (*ComicBoom) Site() string { return SiteComicBoom }

// Scrape implements Strategy.
func (s *ComicBoom) Scrape(url, html string) (comic.Record, error) {
	doc, err := loadDocument(SiteComicBoom, url, html,
		"h1.product-title", ".product-info", ".shop_attributes", ".woocommerce-Price-amount")
	if err != nil {
		return comic.Record{}, err
	}
	attrs := ParseAttributeTable(doc.Selection, comicBoomTable)

	rec := comic.Record{
		Title: text(doc, "h1.product-title"),
		URL:   url,
		Offer: comic.Offer{
			Price:       textnorm.NormalizePrice(comicBoomPrice(doc)),
			OldPrice:    textnorm.NormalizePrice(text(doc, ".product-info del .woocommerce-Price-amount.amount")),
			IsAvailable: doc.Find(".stock.in-stock").Length() > 0,
		},
		Synopsis: textnorm.StripQuotes(text(doc, "#bookDescription_feature_div")),
		ImageURL: attr(doc, "img.wp-post-image", "src"),

		Pages:          attrs.Int("páginas"),
		Weight:         attrs.Scalar("peso"),
		Dimensions:     attrs.Scalar("dimensões"),
		Categories:     attrs.List("categoria"),
		Tags:           attrs.List("tag"),
		SeriesType:     attrs.List("tipo de série"),
		Color:          attrs.List("cor"),
		Authors:        attrs.List("autor"),
		Formats:        attrs.List("formato"),
		Languages:      attrs.List("idioma"),
		NumberInSeries: attrs.Scalar("número"),
		Year:           attrs.Int("ano"),

		LastSuccessfulUpdateAt: s.clock.Now(),
	}

	rec.Publisher = cleanPublisher(text(doc, `a[id^="editor"]`))
	if rec.Publisher == "" {
		rec.Publisher = attrs.Scalar("editora")
	}

	isbn := textnorm.DigitsOnly(attrs.Scalar("isbn"))
	if isbn == "" {
		doc.Find(".shop_attributes tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			if strings.Contains(row.Text(), "ISBN") {
				isbn = textnorm.FindISBN13(row.Text())
			}
			return isbn == ""
		})
	}
	if len(isbn) == 13 {
		rec.ISBN13 = isbn
	} else {
		rec.ISBN = isbn
	}
	return rec, nil
}

// comicBoomPrice prefers the sale price and falls back to the first listed amount
// that is not struck through.
func comicBoomPrice(doc *goquery.Document) string {
	if price := text(doc, ".product-info ins .woocommerce-Price-amount.amount"); price != "" {
		return price
	}
	var price string
	doc.Find(".woocommerce-Price-amount.amount").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.ParentsFiltered("del").Length() > 0 {
			return true
		}
		price = s.Text()
		return false
	})
	return price
}
