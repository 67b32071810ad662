package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

// ComicStore implements store.ComicRepository in memory, preserving insertion order.
type ComicStore struct {
	mu      sync.RWMutex
	records []comic.Record
}

// NewComicStore constructs an empty ComicStore.
func NewComicStore() *ComicStore {
	return &ComicStore{}
}

// Select returns copies of the records matching filter.
func (s *ComicStore) Select(_ context.Context, filter store.ComicFilter) ([]comic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]comic.Record, 0)
	for _, rec := range s.records {
		if !matches(filter, rec) {
			continue
		}
		out = append(out, cloneRecord(rec))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Insert appends rec.
func (s *ComicStore) Insert(_ context.Context, rec comic.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].URL == rec.URL {
			s.records[i] = cloneRecord(rec)
			return nil
		}
	}
	s.records = append(s.records, cloneRecord(rec))
	return nil
}

// Update replaces every record matching filter.
func (s *ComicStore) Update(_ context.Context, filter store.ComicFilter, rec comic.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := false
	for i := range s.records {
		if matches(filter, s.records[i]) {
			s.records[i] = cloneRecord(rec)
			updated = true
		}
	}
	if !updated {
		return store.ErrNotFound
	}
	return nil
}

func matches(filter store.ComicFilter, rec comic.Record) bool {
	if filter.URL != "" && rec.URL != filter.URL {
		return false
	}
	if filter.ISBN13 != "" && rec.ISBN13 != filter.ISBN13 {
		return false
	}
	return true
}

func cloneRecord(rec comic.Record) comic.Record {
	for _, list := range []*[]string{
		&rec.Categories, &rec.Tags, &rec.SeriesType, &rec.Color,
		&rec.Authors, &rec.Formats, &rec.Languages,
	} {
		if *list != nil {
			*list = append([]string(nil), (*list)...)
		}
	}
	return rec
}
