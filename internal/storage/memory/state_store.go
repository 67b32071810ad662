// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

// StateStore implements store.StateStore in memory.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]store.CrawlState
	byKey  map[stateKey]string
}

type stateKey struct {
	site string
	url  string
}

// NewStateStore constructs an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]store.CrawlState),
		byKey:  make(map[stateKey]string),
	}
}

// Find returns the row for (site, url).
func (s *StateStore) Find(_ context.Context, site, url string) (store.CrawlState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[stateKey{site: site, url: url}]
	if !ok {
		return store.CrawlState{}, store.ErrNotFound
	}
	return cloneState(s.states[id]), nil
}

// Get returns the row with id.
func (s *StateStore) Get(_ context.Context, id string) (store.CrawlState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[id]
	if !ok {
		return store.CrawlState{}, store.ErrNotFound
	}
	return cloneState(state), nil
}

// Insert adds a row, rejecting a second row for the same (site, url).
func (s *StateStore) Insert(_ context.Context, state store.CrawlState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stateKey{site: state.Site, url: state.URL}
	if _, exists := s.byKey[key]; exists {
		return store.ErrDuplicate
	}
	if _, exists := s.states[state.ID]; exists {
		return store.ErrDuplicate
	}
	s.states[state.ID] = cloneState(state)
	s.byKey[key] = state.ID
	return nil
}

// Update overwrites the row with state.ID.
func (s *StateStore) Update(_ context.Context, state store.CrawlState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.states[state.ID]
	if !ok {
		return store.ErrNotFound
	}
	state.Site, state.URL = current.Site, current.URL
	s.states[state.ID] = cloneState(state)
	return nil
}

// List returns rows for site, or all rows, ordered by site then URL.
func (s *StateStore) List(_ context.Context, site string) ([]store.CrawlState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.CrawlState, 0, len(s.states))
	for _, state := range s.states {
		if site != "" && state.Site != site {
			continue
		}
		out = append(out, cloneState(state))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

func cloneState(state store.CrawlState) store.CrawlState {
	if state.CompletedAt != nil {
		ts := *state.CompletedAt
		state.CompletedAt = &ts
	}
	if state.Count != nil {
		n := *state.Count
		state.Count = &n
	}
	return state
}
