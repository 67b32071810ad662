package store

import (
	"context"
	"fmt"

	"github.com/JakeFAU/comics-crawler/internal/comic"
)

// ComicFilter selects records. Empty fields are ignored; a zero Limit means no limit.
type ComicFilter struct {
	URL    string
	ISBN13 string
	Limit  int
}

// IsZero reports whether the filter has no predicates.
func (f ComicFilter) IsZero() bool {
	return f.URL == "" && f.ISBN13 == ""
}

// ComicRepository persists comic records.
type ComicRepository interface {
	Select(ctx context.Context, filter ComicFilter) ([]comic.Record, error)
	Insert(ctx context.Context, rec comic.Record) error
	// Update overwrites every record matching filter with rec.
	Update(ctx context.Context, filter ComicFilter, rec comic.Record) error
}

// Upsert updates the records matching filter, or inserts rec when none match.
// The select and the write are separate statements.
func Upsert(ctx context.Context, repo ComicRepository, filter ComicFilter, rec comic.Record) error {
	if filter.IsZero() {
		return fmt.Errorf("upsert comic: empty filter")
	}
	filter.Limit = 1
	existing, err := repo.Select(ctx, filter)
	if err != nil {
		return fmt.Errorf("select comic: %w", err)
	}
	if len(existing) > 0 {
		if err := repo.Update(ctx, filter, rec); err != nil {
			return fmt.Errorf("update comic: %w", err)
		}
		return nil
	}
	if err := repo.Insert(ctx, rec); err != nil {
		return fmt.Errorf("insert comic: %w", err)
	}
	return nil
}

// UpsertByURL upserts rec keyed by its URL.
func UpsertByURL(ctx context.Context, repo ComicRepository, rec comic.Record) error {
	return Upsert(ctx, repo, ComicFilter{URL: rec.URL}, rec)
}
