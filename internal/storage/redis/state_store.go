// Package redis stores crawl states in Redis hashes.
//
// Layout under the key prefix:
//
//	{prefix}:state:{id}          hash of the row
//	{prefix}:key:{site}|{url}    id of the row for (site, url)
//	{prefix}:site:{site}         set of row ids for a site
//	{prefix}:sites               set of known sites
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

// DefaultPrefix namespaces every key written by StateStore.
const DefaultPrefix = "comics"

// StateStore implements store.StateStore on Redis.
type StateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewStateStore wraps client. An empty prefix uses DefaultPrefix.
func NewStateStore(client redis.UniversalClient, prefix string) *StateStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &StateStore{client: client, prefix: prefix}
}

func (s *StateStore) stateKey(id string) string { return s.prefix + ":state:" + id }
func (s *StateStore) indexKey(site, url string) string { return s.prefix + ":key:" + site + "|" + url }
func (s *StateStore) siteKey(site string) string { return s.prefix + ":site:" + site }
func (s *StateStore) sitesKey() string { return s.prefix + ":sites" }

// Find resolves (site, url) through the index key. An index whose row is
// missing is deleted and reported as ErrNotFound so the row can be recreated.
func (s *StateStore) Find(ctx context.Context, site, url string) (store.CrawlState, error) {
	index := s.indexKey(site, url)
	id, err := s.client.Get(ctx, index).Result()
	if errors.Is(err, redis.Nil) {
		return store.CrawlState{}, store.ErrNotFound
	}
	if err != nil {
		return store.CrawlState{}, fmt.Errorf("redis get index: %w", err)
	}
	state, err := s.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		if err := s.client.Del(ctx, index).Err(); err != nil {
			return store.CrawlState{}, fmt.Errorf("redis del dangling index: %w", err)
		}
		return store.CrawlState{}, store.ErrNotFound
	}
	return state, err
}

// Get loads the hash for id.
func (s *StateStore) Get(ctx context.Context, id string) (store.CrawlState, error) {
	fields, err := s.client.HGetAll(ctx, s.stateKey(id)).Result()
	if err != nil {
		return store.CrawlState{}, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return store.CrawlState{}, store.ErrNotFound
	}
	return decodeState(fields)
}

// Insert writes the index and the row in one MULTI/EXEC guarded by WATCH on
// the index key. Losing the key to another writer is ErrDuplicate.
func (s *StateStore) Insert(ctx context.Context, state store.CrawlState) error {
	index := s.indexKey(state.Site, state.URL)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, index).Result()
		if err != nil {
			return fmt.Errorf("redis exists: %w", err)
		}
		if exists > 0 {
			return store.ErrDuplicate
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, index, state.ID, 0)
			pipe.HSet(ctx, s.stateKey(state.ID), encodeState(state))
			pipe.SAdd(ctx, s.siteKey(state.Site), state.ID)
			pipe.SAdd(ctx, s.sitesKey(), state.Site)
			return nil
		})
		return err
	}, index)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, redis.TxFailedErr):
		return store.ErrDuplicate
	default:
		return fmt.Errorf("redis write state: %w", err)
	}
}

// Update rewrites the mutable fields of an existing row.
func (s *StateStore) Update(ctx context.Context, state store.CrawlState) error {
	current, err := s.Get(ctx, state.ID)
	if err != nil {
		return err
	}
	state.Site, state.URL = current.Site, current.URL
	if err := s.client.HSet(ctx, s.stateKey(state.ID), encodeState(state)).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// List returns the rows of site, or of every known site, ordered by site and URL.
func (s *StateStore) List(ctx context.Context, site string) ([]store.CrawlState, error) {
	sites := []string{site}
	if site == "" {
		var err error
		sites, err = s.client.SMembers(ctx, s.sitesKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis smembers sites: %w", err)
		}
	}

	out := make([]store.CrawlState, 0)
	for _, name := range sites {
		ids, err := s.client.SMembers(ctx, s.siteKey(name)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis smembers site: %w", err)
		}
		for _, id := range ids {
			state, err := s.Get(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

func encodeState(state store.CrawlState) map[string]any {
	fields := map[string]any{
		"id":           state.ID,
		"site":         state.Site,
		"url":          state.URL,
		"status":       string(state.Status),
		"started_at":   formatTime(state.StartedAt),
		"updated_at":   formatTime(state.UpdatedAt),
		"error":        state.Error,
		"completed_at": "",
		"count":        "",
	}
	if state.CompletedAt != nil {
		fields["completed_at"] = formatTime(*state.CompletedAt)
	}
	if state.Count != nil {
		fields["count"] = strconv.Itoa(*state.Count)
	}
	return fields
}

func decodeState(fields map[string]string) (store.CrawlState, error) {
	state := store.CrawlState{
		ID:     fields["id"],
		Site:   fields["site"],
		URL:    fields["url"],
		Status: store.CrawlStatus(fields["status"]),
		Error:  fields["error"],
	}
	var err error
	if state.StartedAt, err = parseTime(fields["started_at"]); err != nil {
		return store.CrawlState{}, fmt.Errorf("decode started_at: %w", err)
	}
	if state.UpdatedAt, err = parseTime(fields["updated_at"]); err != nil {
		return store.CrawlState{}, fmt.Errorf("decode updated_at: %w", err)
	}
	if raw := fields["completed_at"]; raw != "" {
		ts, err := parseTime(raw)
		if err != nil {
			return store.CrawlState{}, fmt.Errorf("decode completed_at: %w", err)
		}
		state.CompletedAt = &ts
	}
	if raw := fields["count"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return store.CrawlState{}, fmt.Errorf("decode count: %w", err)
		}
		state.Count = &n
	}
	return state, nil
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return ts, nil
}
