package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

func TestEncodeDecodeState(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)
	completed := started.Add(time.Minute)
	count := 42
	state := store.CrawlState{
		ID:          "id-1",
		Site:        "comicboom",
		URL:         "https://c/1.xml",
		Status:      store.StatusCompleted,
		StartedAt:   started,
		CompletedAt: &completed,
		Count:       &count,
		UpdatedAt:   completed,
	}

	fields := map[string]string{}
	for k, v := range encodeState(state) {
		fields[k] = fmt.Sprint(v)
	}
	got, err := decodeState(fields)
	require.NoError(t, err)
	require.Equal(t, state, got)

	fields["count"] = "many"
	_, err = decodeState(fields)
	require.ErrorContains(t, err, "decode count")
}

func newTestStore(t *testing.T) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStateStore(client, "test"), mr
}

func TestStateStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	states, mr := newTestStore(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	row := store.CrawlState{ID: "id-1", Site: "comix", URL: "https://x/1.xml", Status: store.StatusPending, StartedAt: now, UpdatedAt: now}

	_, err := states.Find(ctx, row.Site, row.URL)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, states.Insert(ctx, row))
	require.ErrorIs(t, states.Insert(ctx, store.CrawlState{ID: "id-2", Site: row.Site, URL: row.URL}), store.ErrDuplicate)
	require.False(t, mr.Exists("test:state:id-2"))

	found, err := states.Find(ctx, row.Site, row.URL)
	require.NoError(t, err)
	require.Equal(t, row, found)

	count := 7
	found.Status = store.StatusCompleted
	found.Count = &count
	require.NoError(t, states.Update(ctx, found))

	other := store.CrawlState{ID: "id-3", Site: "comicboom", URL: "https://c/1.xml", Status: store.StatusPending, StartedAt: now, UpdatedAt: now}
	require.NoError(t, states.Insert(ctx, other))

	listed, err := states.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "comicboom", listed[0].Site)
	require.Equal(t, store.StatusCompleted, listed[1].Status)
	require.Equal(t, 7, *listed[1].Count)

	onlyComix, err := states.List(ctx, "comix")
	require.NoError(t, err)
	require.Len(t, onlyComix, 1)

	require.ErrorIs(t, states.Update(ctx, store.CrawlState{ID: "missing"}), store.ErrNotFound)
}

func TestStateStoreDropsDanglingIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	states, mr := newTestStore(t)
	index := "test:key:comix|https://x/1.xml"
	require.NoError(t, mr.Set(index, "ghost"))

	_, err := states.Find(ctx, "comix", "https://x/1.xml")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, mr.Exists(index))

	row := store.CrawlState{ID: "id-1", Site: "comix", URL: "https://x/1.xml", Status: store.StatusPending}
	require.NoError(t, states.Insert(ctx, row))
	found, err := states.Find(ctx, "comix", "https://x/1.xml")
	require.NoError(t, err)
	require.Equal(t, "id-1", found.ID)
}

func TestStateStoreConcurrentInsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	states, _ := newTestStore(t)

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = states.Insert(ctx, store.CrawlState{
				ID:     fmt.Sprintf("id-%d", i),
				Site:   "panini",
				URL:    "https://p/1.xml",
				Status: store.StatusPending,
			})
		}()
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, store.ErrDuplicate):
		default:
			t.Fatalf("unexpected insert error: %v", err)
		}
	}
	require.Equal(t, 1, won)

	listed, err := states.List(ctx, "panini")
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
