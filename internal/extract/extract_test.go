package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/comics-crawler/internal/comic"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var scrapedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestComicBoomScrapeInStock(t *testing.T) {
	t.Parallel()

	strategy := NewComicBoom(fixedClock{now: scrapedAt})
	got, err := strategy.Scrape("https://example.com/comic", loadFixture(t, "comicboom_in_stock.html"))
	require.NoError(t, err)

	want := comic.Record{
		Title:     "Spiderman Comic Book",
		Publisher: "Marvel Comics",
		URL:       "https://example.com/comic",
		Offer: comic.Offer{
			Price:       9.99,
			OldPrice:    15.1,
			IsAvailable: true,
		},
		Pages:                  100,
		Synopsis:               "Example synopsis",
		ISBN13:                 "9781234567891",
		Weight:                 "100 g",
		Dimensions:             "16 x 24 cm",
		Categories:             []string{"Category 1", "Category 2"},
		Tags:                   []string{"Tag 1", "Tag 2"},
		SeriesType:             []string{"Type 1", "Type 2"},
		Color:                  []string{"Color 1", "Color 2"},
		Authors:                []string{"Author 1", "Author 2"},
		Formats:                []string{"Encadernado"},
		Languages:              []string{"Português"},
		NumberInSeries:         "1",
		Year:                   2022,
		ImageURL:               "example.jpg",
		LastSuccessfulUpdateAt: scrapedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Scrape() mismatch (-want +got):\n%s", diff)
	}
}

func TestComicBoomScrapeOutOfStock(t *testing.T) {
	t.Parallel()

	strategy := NewComicBoom(fixedClock{now: scrapedAt})
	got, err := strategy.Scrape("https://example.com/comic-not-available", loadFixture(t, "comicboom_out_of_stock.html"))
	require.NoError(t, err)

	want := comic.Record{
		Title: "Spiderman Comic Book",
		URL:   "https://example.com/comic-not-available",
		Offer: comic.Offer{
			Price:       9.99,
			IsAvailable: false,
		},
		Synopsis:               "Example synopsis",
		Dimensions:             "16 x 24 cm",
		ImageURL:               "example.jpg",
		LastSuccessfulUpdateAt: scrapedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Scrape() mismatch (-want +got):\n%s", diff)
	}
}

func TestPaniniScrape(t *testing.T) {
	t.Parallel()

	strategy := NewPanini(fixedClock{now: scrapedAt})
	got, err := strategy.Scrape("https://panini.com.br/batman-vol-01", loadFixture(t, "panini.html"))
	require.NoError(t, err)

	want := comic.Record{
		Title:     "Batman Vol. 01",
		Publisher: "Panini",
		URL:       "https://panini.com.br/batman-vol-01",
		Offer: comic.Offer{
			Price:       34.90,
			OldPrice:    44.90,
			IsAvailable: true,
		},
		Synopsis:               "O Cavaleiro das Trevas retorna.",
		ImageURL:               "https://panini.com.br/media/catalog/product/b/a/batman-01.jpg",
		ISBN13:                 "9786555123456",
		Pages:                  148,
		Authors:                []string{"Tom King", "David Finch"},
		Formats:                []string{"Brochura"},
		LastSuccessfulUpdateAt: scrapedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Scrape() mismatch (-want +got):\n%s", diff)
	}
}

func TestComixScrape(t *testing.T) {
	t.Parallel()

	strategy := NewComix(fixedClock{now: scrapedAt})
	got, err := strategy.Scrape("https://www.comix.com.br/sandman-1", loadFixture(t, "comix.html"))
	require.NoError(t, err)

	want := comic.Record{
		Title:     "Sandman: Edição Definitiva Vol. 1",
		Publisher: "Panini",
		URL:       "https://www.comix.com.br/sandman-1",
		Offer: comic.Offer{
			Price:       189.90,
			OldPrice:    210,
			IsAvailable: true,
		},
		Synopsis:               "A obra-prima de Neil Gaiman em edição definitiva.",
		ImageURL:               "https://www.comix.com.br/media/sandman-1.jpg",
		ISBN13:                 "9786559820000",
		Pages:                  616,
		Year:                   2021,
		LastSuccessfulUpdateAt: scrapedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Scrape() mismatch (-want +got):\n%s", diff)
	}
}

func TestScrapeIsDeterministic(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: scrapedAt}
	cases := []struct {
		strategy Strategy
		fixture  string
	}{
		{NewComicBoom(clock), "comicboom_in_stock.html"},
		{NewPanini(clock), "panini.html"},
		{NewComix(clock), "comix.html"},
	}
	for _, tc := range cases {
		t.Run(tc.strategy.Site(), func(t *testing.T) {
			t.Parallel()
			html := loadFixture(t, tc.fixture)
			first, err := tc.strategy.Scrape("https://example.com/p", html)
			require.NoError(t, err)
			second, err := tc.strategy.Scrape("https://example.com/p", html)
			require.NoError(t, err)
			require.Equal(t, first, second)
		})
	}
}

func TestScrapeWithoutProductMarkupFails(t *testing.T) {
	t.Parallel()

	html := loadFixture(t, "not_a_product.html")
	for _, strategy := range []Strategy{NewComicBoom(nil), NewPanini(nil), NewComix(nil)} {
		t.Run(strategy.Site(), func(t *testing.T) {
			t.Parallel()
			_, err := strategy.Scrape("https://example.com/down", html)
			require.Error(t, err)

			var extractErr *ExtractionError
			require.True(t, errors.As(err, &extractErr))
			require.Equal(t, strategy.Site(), extractErr.Site)
			require.Equal(t, "https://example.com/down", extractErr.URL)
			require.ErrorIs(t, err, ErrNoProduct)
		})
	}
}

func TestScrapeToleratesMissingSecondaryAttributes(t *testing.T) {
	t.Parallel()

	html := `<html><body><h1 class="product-title">Só título</h1></body></html>`
	got, err := NewComicBoom(fixedClock{now: scrapedAt}).Scrape("https://comicboom.com.br/p/x", html)
	require.NoError(t, err)
	require.Equal(t, "Só título", got.Title)
	require.Zero(t, got.Offer.Price)
	require.Empty(t, got.ISBN13)
	require.Nil(t, got.Authors)
}

func TestParseAttributeTable(t *testing.T) {
	t.Parallel()

	html := `<ul class="attrs">
		<li class="row"><span class="k">  PESO : </span><span class="v">250 g</span></li>
		<li class="row"><span class="k">Autor:</span><span class="v"><a>Alan Moore</a> e <a>Dave Gibbons</a></span></li>
		<li class="row"><span class="k">Idiomas:</span><span class="v">Português, Inglês</span></li>
		<li class="row"><span class="k"></span><span class="v">orphan</span></li>
		<li class="row"><span class="k">Peso:</span><span class="v">999 g</span></li>
	</ul>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	table := ParseAttributeTable(doc.Find(".attrs"), TableSelectors{Row: ".row", Label: ".k", Value: ".v"})

	require.Equal(t, "250 g", table.Scalar("peso"))
	require.Equal(t, []string{"Alan Moore", "Dave Gibbons"}, table.List("autor"))
	require.Equal(t, "Alan Moore e Dave Gibbons", table.Scalar("autor"))
	require.Equal(t, []string{"Português", "Inglês"}, table.List("idiomas"))
	require.Equal(t, 250, table.Int("peso"))
	require.False(t, table.Has(""))
	require.Nil(t, table.List("editora"))
	require.Len(t, table.Scalars, 3)
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tipo de série", NormalizeLabel("  Tipo   de Série: "))
	require.Equal(t, "isbn", NormalizeLabel("ISBN"))
	require.Equal(t, "", NormalizeLabel(" : "))
}
