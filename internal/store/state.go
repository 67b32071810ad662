package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound signals that the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate signals that an insert collided with an existing key.
	ErrDuplicate = errors.New("record already exists")
)

// CrawlStatus is the lifecycle status of one sub-sitemap.
type CrawlStatus string

// Crawl statuses persisted in crawl_states.status.
const (
	StatusPending    CrawlStatus = "pending"
	StatusInProgress CrawlStatus = "in-progress"
	StatusCompleted  CrawlStatus = "completed"
	StatusFailed     CrawlStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s CrawlStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CrawlState is the resumability ledger row for one (site, sub-sitemap URL).
type CrawlState struct {
	ID          string      `json:"id"`
	Site        string      `json:"site"`
	URL         string      `json:"url"`
	Status      CrawlStatus `json:"status"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Error       string      `json:"error,omitempty"`
	// Count is the number of records delivered when the sitemap completed.
	Count     *int      `json:"count,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StateStore persists CrawlState rows. Rows are never deleted.
type StateStore interface {
	// Find returns the row for (site, url) or ErrNotFound.
	Find(ctx context.Context, site, url string) (CrawlState, error)
	// Get returns the row with id or ErrNotFound.
	Get(ctx context.Context, id string) (CrawlState, error)
	// Insert adds a row. A row already present for (site, url) yields ErrDuplicate.
	Insert(ctx context.Context, state CrawlState) error
	// Update overwrites the mutable columns of the row with state.ID.
	Update(ctx context.Context, state CrawlState) error
	// List returns rows ordered by URL. An empty site lists every site.
	List(ctx context.Context, site string) ([]CrawlState, error)
}
