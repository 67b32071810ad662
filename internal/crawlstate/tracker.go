// Package crawlstate tracks the per-sub-sitemap resumability ledger.
//
// Each sub-sitemap of a site owns one row that moves through
// pending -> in-progress -> completed|failed. A completed row makes later
// runs skip the sitemap; a failed row is retried on the next run.
package crawlstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid crawl state transition")

// IDGenerator yields unique row identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Extra carries the optional fields written alongside a transition.
// Zero values mean "use the default": now for timestamps, no count, no error.
type Extra struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Count       *int
	Error       string
}

// An in-progress row may be claimed again: a run that died before finishing leaves it behind.
var transitions = map[store.CrawlStatus][]store.CrawlStatus{
	store.StatusPending:    {store.StatusInProgress},
	store.StatusInProgress: {store.StatusInProgress, store.StatusCompleted, store.StatusFailed},
	store.StatusFailed:     {store.StatusInProgress},
}

// Allowed reports whether from -> to is a legal transition.
func Allowed(from, to store.CrawlStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Tracker reads and advances crawl states.
type Tracker struct {
	store  store.StateStore
	ids    IDGenerator
	clock  Clock
	logger *zap.Logger
}

// NewTracker wires a Tracker. A nil logger discards logs.
func NewTracker(st store.StateStore, ids IDGenerator, clock Clock, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: st, ids: ids, clock: clock, logger: logger}
}

// FindState returns the row for (site, url), or nil when none exists.
func (t *Tracker) FindState(ctx context.Context, site, url string) (*store.CrawlState, error) {
	state, err := t.store.Find(ctx, site, url)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find crawl state: %w", err)
	}
	return &state, nil
}

// CreateState inserts a pending row for (site, url).
func (t *Tracker) CreateState(ctx context.Context, site, url string) (store.CrawlState, error) {
	id, err := t.ids.NewID()
	if err != nil {
		return store.CrawlState{}, fmt.Errorf("create crawl state: %w", err)
	}
	now := t.clock.Now()
	state := store.CrawlState{
		ID:        id,
		Site:      site,
		URL:       url,
		Status:    store.StatusPending,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Insert(ctx, state); err != nil {
		return store.CrawlState{}, fmt.Errorf("create crawl state: %w", err)
	}
	return state, nil
}

// Ensure returns the existing row for (site, url), creating a pending one when absent.
// Losing a concurrent insert race is not an error: the winner's row is returned.
func (t *Tracker) Ensure(ctx context.Context, site, url string) (store.CrawlState, error) {
	existing, err := t.FindState(ctx, site, url)
	if err != nil {
		return store.CrawlState{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	state, err := t.CreateState(ctx, site, url)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return store.CrawlState{}, err
	}
	t.logger.Debug("crawl state created concurrently", zap.String("site", site), zap.String("sitemap", url))
	winner, err := t.store.Find(ctx, site, url)
	if err != nil {
		return store.CrawlState{}, fmt.Errorf("reload crawl state: %w", err)
	}
	return winner, nil
}

// Transition moves the row with id to status, applying extra.
func (t *Tracker) Transition(ctx context.Context, id string, status store.CrawlStatus, extra Extra) (store.CrawlState, error) {
	state, err := t.store.Get(ctx, id)
	if err != nil {
		return store.CrawlState{}, fmt.Errorf("load crawl state %s: %w", id, err)
	}
	if !Allowed(state.Status, status) {
		return store.CrawlState{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state.Status, status)
	}

	now := t.clock.Now()
	state.Status = status
	state.UpdatedAt = now
	switch status {
	case store.StatusInProgress:
		state.StartedAt = orNow(extra.StartedAt, now)
		state.CompletedAt = nil
		state.Count = nil
		state.Error = ""
	case store.StatusCompleted:
		completed := orNow(extra.CompletedAt, now)
		state.CompletedAt = &completed
		state.Count = extra.Count
		state.Error = ""
	case store.StatusFailed:
		state.Error = extra.Error
		state.Count = extra.Count
	}

	if err := t.store.Update(ctx, state); err != nil {
		return store.CrawlState{}, fmt.Errorf("update crawl state %s: %w", id, err)
	}
	t.logger.Debug("crawl state transition",
		zap.String("site", state.Site),
		zap.String("sitemap", state.URL),
		zap.String("status", string(status)),
	)
	return state, nil
}

// List returns the ledger for site, or every site when site is empty.
func (t *Tracker) List(ctx context.Context, site string) ([]store.CrawlState, error) {
	states, err := t.store.List(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("list crawl states: %w", err)
	}
	return states, nil
}

func orNow(ts, now time.Time) time.Time {
	if ts.IsZero() {
		return now
	}
	return ts
}
