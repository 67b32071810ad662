package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

// Column order shared by insert, update and select.
var comicColumns = []string{
	"url",
	"title",
	"publisher",
	"price",
	"old_price",
	"available",
	"image",
	"synopsis",
	"isbn",
	"isbn13",
	"pages",
	"weight",
	"dimensions",
	"categories",
	"tags",
	"series_type",
	"color",
	"authors",
	"formats",
	"languages",
	"number_in_series",
	"year",
	"last_update",
}

// ComicStore implements store.ComicRepository on the comics table.
type ComicStore struct {
	pool Pool
}

// NewComicStore wraps pool.
func NewComicStore(pool Pool) (*ComicStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ComicStore{pool: pool}, nil
}

// Select returns the records matching filter ordered by URL.
func (s *ComicStore) Select(ctx context.Context, filter store.ComicFilter) ([]comic.Record, error) {
	where, args := whereClause(filter, 1)
	query := "SELECT " + strings.Join(comicColumns, ", ") + " FROM comics" + where + " ORDER BY url"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select comics: %w", err)
	}
	defer rows.Close()

	out := make([]comic.Record, 0)
	for rows.Next() {
		var rec comic.Record
		if err := rows.Scan(recordDest(&rec)...); err != nil {
			return nil, fmt.Errorf("scan comic: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comics: %w", err)
	}
	return out, nil
}

// Insert adds rec. A row that already exists for rec.URL is overwritten, so a
// concurrent upsert of the same page is not an error.
func (s *ComicStore) Insert(ctx context.Context, rec comic.Record) error {
	placeholders := make([]string, len(comicColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(comicColumns)-1)
	for _, col := range comicColumns[1:] {
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	query := "INSERT INTO comics (" + strings.Join(comicColumns, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (url) DO UPDATE SET " + strings.Join(updates, ", ")
	if _, err := s.pool.Exec(ctx, query, recordArgs(rec)...); err != nil {
		return fmt.Errorf("insert comic: %w", err)
	}
	return nil
}

// Update overwrites every row matching filter with rec.
func (s *ComicStore) Update(ctx context.Context, filter store.ComicFilter, rec comic.Record) error {
	if filter.IsZero() {
		return fmt.Errorf("update comics: empty filter")
	}
	assignments := make([]string, len(comicColumns))
	for i, col := range comicColumns {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args := recordArgs(rec)
	where, whereArgs := whereClause(filter, len(args)+1)
	query := "UPDATE comics SET " + strings.Join(assignments, ", ") + where

	tag, err := s.pool.Exec(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return fmt.Errorf("update comics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func whereClause(filter store.ComicFilter, next int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.URL != "" {
		conds = append(conds, fmt.Sprintf("url = $%d", next+len(args)))
		args = append(args, filter.URL)
	}
	if filter.ISBN13 != "" {
		conds = append(conds, fmt.Sprintf("isbn13 = $%d", next+len(args)))
		args = append(args, filter.ISBN13)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func recordArgs(rec comic.Record) []any {
	return []any{
		rec.URL,
		rec.Title,
		rec.Publisher,
		rec.Offer.Price,
		rec.Offer.OldPrice,
		rec.Offer.IsAvailable,
		rec.ImageURL,
		rec.Synopsis,
		rec.ISBN,
		rec.ISBN13,
		rec.Pages,
		rec.Weight,
		rec.Dimensions,
		nonNil(rec.Categories),
		nonNil(rec.Tags),
		nonNil(rec.SeriesType),
		nonNil(rec.Color),
		nonNil(rec.Authors),
		nonNil(rec.Formats),
		nonNil(rec.Languages),
		rec.NumberInSeries,
		rec.Year,
		rec.LastSuccessfulUpdateAt,
	}
}

func recordDest(rec *comic.Record) []any {
	return []any{
		&rec.URL,
		&rec.Title,
		&rec.Publisher,
		&rec.Offer.Price,
		&rec.Offer.OldPrice,
		&rec.Offer.IsAvailable,
		&rec.ImageURL,
		&rec.Synopsis,
		&rec.ISBN,
		&rec.ISBN13,
		&rec.Pages,
		&rec.Weight,
		&rec.Dimensions,
		&rec.Categories,
		&rec.Tags,
		&rec.SeriesType,
		&rec.Color,
		&rec.Authors,
		&rec.Formats,
		&rec.Languages,
		&rec.NumberInSeries,
		&rec.Year,
		&rec.LastSuccessfulUpdateAt,
	}
}

// nonNil keeps list columns NOT NULL.
func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
