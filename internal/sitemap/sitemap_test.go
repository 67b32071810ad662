package sitemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const indexXML = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://comicboom.com.br/wp-sitemap-posts-post-1.xml</loc></sitemap>
  <sitemap><loc>
    https://comicboom.com.br/wp-sitemap-posts-product-1.xml
  </loc></sitemap>
  <sitemap><loc>https://comicboom.com.br/wp-sitemap-posts-product-2.xml</loc></sitemap>
</sitemapindex>`

const urlSetXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://comicboom.com.br/produto/a/</loc><lastmod>2024-01-01</lastmod></url>
  <url><loc>https://comicboom.com.br/produto/b/</loc></url>
  <url><loc></loc></url>
  <url><loc>https://comicboom.com.br/produto/c/</loc></url>
</urlset>`

func TestParseSitemapIndex(t *testing.T) {
	t.Parallel()

	locs, err := ParseSitemapIndex(indexXML)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://comicboom.com.br/wp-sitemap-posts-post-1.xml",
		"https://comicboom.com.br/wp-sitemap-posts-product-1.xml",
		"https://comicboom.com.br/wp-sitemap-posts-product-2.xml",
	}, locs)
}

func TestParseURLSet(t *testing.T) {
	t.Parallel()

	locs, err := ParseURLSet(urlSetXML)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://comicboom.com.br/produto/a/",
		"https://comicboom.com.br/produto/b/",
		"https://comicboom.com.br/produto/c/",
	}, locs)
}

func TestParseWithoutNamespace(t *testing.T) {
	t.Parallel()

	locs, err := ParseURLSet(`<urlset><url><loc>https://panini.com.br/x</loc></url></urlset>`)
	require.NoError(t, err)
	require.Equal(t, []string{"https://panini.com.br/x"}, locs)
}

func TestEmptyBodyIsNotAnError(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "   \n\t"} {
		locs, err := ParseSitemapIndex(body)
		require.NoError(t, err)
		require.Empty(t, locs)
		require.NotNil(t, locs)

		locs, err = ParseURLSet(body)
		require.NoError(t, err)
		require.Empty(t, locs)
		require.NotNil(t, locs)
	}
}

func TestWrongShapeIsAParseError(t *testing.T) {
	t.Parallel()

	_, err := ParseSitemapIndex(urlSetXML)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "sitemapindex", parseErr.Expected)
	require.Equal(t, "urlset", parseErr.Found)

	_, err = ParseURLSet(indexXML)
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "sitemapindex", parseErr.Found)

	_, err = ParseURLSet(`<html><body>blocked</body></html>`)
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "html", parseErr.Found)
}

func TestMalformedXMLIsAParseError(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unclosed":   `<urlset><url><loc>https://a</loc></url>`,
		"mismatch":   `<urlset><url></loc></urlset>`,
		"plain text": `Service Unavailable`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseURLSet(body)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
		})
	}
}

func TestFilterByMarker(t *testing.T) {
	t.Parallel()

	locs, err := ParseSitemapIndex(indexXML)
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://comicboom.com.br/wp-sitemap-posts-product-1.xml",
		"https://comicboom.com.br/wp-sitemap-posts-product-2.xml",
	}, FilterByMarker(locs, "wp-sitemap-posts-product-"))
	require.Len(t, FilterByMarker(locs, ""), 3)
	require.Empty(t, FilterByMarker(locs, "nope"))
}
