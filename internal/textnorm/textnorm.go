// Package textnorm holds the pure string helpers shared by the site extractors.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	digitRun  = regexp.MustCompile(`\d+`)
	isbn13Run = regexp.MustCompile(`\d{13}`)
	spaceRun  = regexp.MustCompile(`\s+`)
)

// NormalizePrice converts a pt-BR currency string such as "R$ 1.234,56" into 1234.56.
// Empty or malformed input yields 0.
func NormalizePrice(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		case r == '.':
			// thousands separator
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0
	}
	// "1,2,3" style garbage leaves more than one decimal point.
	if strings.Count(cleaned, ".") > 1 {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// RemoveNonASCII strips encoding noise from scraped markup while keeping
// accented Latin letters, which Portuguese attribute labels depend on.
func RemoveNonASCII(text string) string {
	composed := norm.NFC.String(text)
	var b strings.Builder
	b.Grow(len(composed))
	for _, r := range composed {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
		case r < 0x80:
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.Is(unicode.Latin, r):
			b.WriteRune(r)
		case r == '“' || r == '”' || r == '‘' || r == '’' || r == '–' || r == '—':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitsOnly drops every non-digit rune.
func DigitsOnly(s string) string {
	return strings.Join(digitRun.FindAllString(s, -1), "")
}

// FirstNumber returns the first run of digits in s, or 0.
func FirstNumber(s string) int {
	match := digitRun.FindString(s)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// FindISBN13 returns the first 13-digit run in s.
func FindISBN13(s string) string {
	return isbn13Run.FindString(s)
}

// StripQuotes removes typographic double quotes.
func StripQuotes(s string) string {
	return strings.NewReplacer("“", "", "”", "").Replace(s)
}

// CollapseSpace trims s and folds internal whitespace runs into one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
