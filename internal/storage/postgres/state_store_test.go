package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/comics-crawler/internal/store"
)

var stateCols = []string{"id", "site", "url", "status", "started_at", "completed_at", "error", "item_count", "updated_at"}

func newStateStore(t *testing.T) (*StateStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	st, err := NewStateStore(mock)
	require.NoError(t, err)
	return st, mock
}

func TestStateStoreFind(t *testing.T) {
	t.Parallel()

	st, mock := newStateStore(t)
	started := time.Unix(1700000000, 0).UTC()
	completed := started.Add(time.Minute)
	count := 3

	mock.ExpectQuery(`SELECT (.+) FROM crawl_states WHERE site = \$1 AND url = \$2`).
		WithArgs("comicboom", "https://c/1.xml").
		WillReturnRows(pgxmock.NewRows(stateCols).
			AddRow("id-1", "comicboom", "https://c/1.xml", "completed", started, &completed, "", &count, completed))

	got, err := st.Find(context.Background(), "comicboom", "https://c/1.xml")
	require.NoError(t, err)
	require.Equal(t, store.CrawlState{
		ID:          "id-1",
		Site:        "comicboom",
		URL:         "https://c/1.xml",
		Status:      store.StatusCompleted,
		StartedAt:   started,
		CompletedAt: &completed,
		Count:       &count,
		UpdatedAt:   completed,
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateStoreFindMissing(t *testing.T) {
	t.Parallel()

	st, mock := newStateStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM crawl_states WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(stateCols))

	_, err := st.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateStoreInsert(t *testing.T) {
	t.Parallel()

	st, mock := newStateStore(t)
	now := time.Unix(1700000000, 0).UTC()
	state := store.CrawlState{ID: "id-1", Site: "comix", URL: "https://x/1.xml", Status: store.StatusPending, StartedAt: now, UpdatedAt: now}

	mock.ExpectExec(`INSERT INTO crawl_states`).
		WithArgs("id-1", "comix", "https://x/1.xml", "pending", now, (*time.Time)(nil), "", (*int)(nil), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO crawl_states`).
		WithArgs("id-1", "comix", "https://x/1.xml", "pending", now, (*time.Time)(nil), "", (*int)(nil), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, st.Insert(context.Background(), state))
	require.ErrorIs(t, st.Insert(context.Background(), state), store.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateStoreUpdate(t *testing.T) {
	t.Parallel()

	st, mock := newStateStore(t)
	now := time.Unix(1700000000, 0).UTC()
	state := store.CrawlState{ID: "id-1", Status: store.StatusFailed, StartedAt: now, Error: "boom", UpdatedAt: now}

	mock.ExpectExec(`UPDATE crawl_states`).
		WithArgs("id-1", "failed", now, (*time.Time)(nil), "boom", (*int)(nil), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE crawl_states`).
		WithArgs("id-1", "failed", now, (*time.Time)(nil), "boom", (*int)(nil), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`UPDATE crawl_states`).
		WithArgs("id-1", "failed", now, (*time.Time)(nil), "boom", (*int)(nil), now).
		WillReturnError(errors.New("conn reset"))

	require.NoError(t, st.Update(context.Background(), state))
	require.ErrorIs(t, st.Update(context.Background(), state), store.ErrNotFound)
	require.ErrorContains(t, st.Update(context.Background(), state), "conn reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateStoreList(t *testing.T) {
	t.Parallel()

	st, mock := newStateStore(t)
	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(`SELECT (.+) FROM crawl_states WHERE (.+) ORDER BY site, url`).
		WithArgs("comicboom").
		WillReturnRows(pgxmock.NewRows(stateCols).
			AddRow("id-1", "comicboom", "https://c/1.xml", "pending", now, nil, "", nil, now).
			AddRow("id-2", "comicboom", "https://c/2.xml", "failed", now, nil, "status 503", nil, now))

	got, err := st.List(context.Background(), "comicboom")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, store.StatusPending, got[0].Status)
	require.Nil(t, got[0].CompletedAt)
	require.Equal(t, "status 503", got[1].Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStateStoreRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewStateStore(nil)
	require.Error(t, err)
}
