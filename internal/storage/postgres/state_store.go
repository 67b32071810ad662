package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

const stateColumns = `id, site, url, status, started_at, completed_at, error, item_count, updated_at`

// StateStore implements store.StateStore on the crawl_states table.
type StateStore struct {
	pool Pool
}

// NewStateStore wraps pool.
func NewStateStore(pool Pool) (*StateStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &StateStore{pool: pool}, nil
}

// Find loads the row for (site, url).
func (s *StateStore) Find(ctx context.Context, site, url string) (store.CrawlState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+stateColumns+` FROM crawl_states WHERE site = $1 AND url = $2`,
		site, url,
	)
	return scanState(row)
}

// Get loads the row with id.
func (s *StateStore) Get(ctx context.Context, id string) (store.CrawlState, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+stateColumns+` FROM crawl_states WHERE id = $1`, id)
	return scanState(row)
}

// Insert adds a row. The unique (site, url) constraint turns a lost race into ErrDuplicate.
func (s *StateStore) Insert(ctx context.Context, state store.CrawlState) error {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO crawl_states (`+stateColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (site, url) DO NOTHING`,
		state.ID,
		state.Site,
		state.URL,
		string(state.Status),
		state.StartedAt,
		state.CompletedAt,
		state.Error,
		state.Count,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert crawl state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicate
	}
	return nil
}

// Update writes the mutable columns of the row with state.ID.
func (s *StateStore) Update(ctx context.Context, state store.CrawlState) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_states
SET status = $2, started_at = $3, completed_at = $4, error = $5, item_count = $6, updated_at = $7
WHERE id = $1`,
		state.ID,
		string(state.Status),
		state.StartedAt,
		state.CompletedAt,
		state.Error,
		state.Count,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update crawl state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List returns rows for site (all sites when empty) ordered by site and URL.
func (s *StateStore) List(ctx context.Context, site string) ([]store.CrawlState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stateColumns+` FROM crawl_states WHERE ($1 = '' OR site = $1) ORDER BY site, url`,
		site,
	)
	if err != nil {
		return nil, fmt.Errorf("list crawl states: %w", err)
	}
	defer rows.Close()

	out := make([]store.CrawlState, 0)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl states: %w", err)
	}
	return out, nil
}

func scanState(row pgx.Row) (store.CrawlState, error) {
	var (
		state       store.CrawlState
		status      string
		completedAt *time.Time
		count       *int
	)
	err := row.Scan(
		&state.ID,
		&state.Site,
		&state.URL,
		&status,
		&state.StartedAt,
		&completedAt,
		&state.Error,
		&count,
		&state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.CrawlState{}, store.ErrNotFound
	}
	if err != nil {
		return store.CrawlState{}, fmt.Errorf("scan crawl state: %w", err)
	}
	state.Status = store.CrawlStatus(status)
	state.CompletedAt = completedAt
	state.Count = count
	return state, nil
}
