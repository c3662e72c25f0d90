package audit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := NewStore(db)
	require.NoError(t, store.Migrate())
	return store
}

func TestStoreAppendAndGet(t *testing.T) {
	store := newTestStore(t)

	event := &EventRecord{
		ID:           "evt-1",
		TenantID:     "acme",
		EventType:    "workflow",
		Actor:        "alice",
		ResourceType: "frameworks",
		ResourceIDs:  JSONStringSlice{"42"},
		Action:       "submit-review",
		Outcome:      "success",
		StatusCode:   200,
		EventMetadata: JSONAny{
			"method": "POST",
		},
	}
	require.NoError(t, store.Append(event))

	got, err := store.GetByID("evt-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Actor)
	assert.Equal(t, JSONStringSlice{"42"}, got.ResourceIDs)
	assert.Equal(t, "POST", got.EventMetadata["method"])

	missing, err := store.GetByID("evt-nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreListFiltered(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	events := []*EventRecord{
		{ID: "e1", TenantID: "acme", EventType: "workflow", Actor: "alice", Action: "create", Outcome: "success", CreatedAt: base},
		{ID: "e2", TenantID: "acme", EventType: "workflow", Actor: "bob", Action: "submit-review", Outcome: "success", CreatedAt: base.Add(time.Minute)},
		{ID: "e3", TenantID: "globex", EventType: "workflow", Actor: "alice", Action: "create", Outcome: "denied", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, store.Append(e))
	}

	// Tenant filter.
	records, _, total, err := store.ListFiltered(ListFilter{TenantID: "acme"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, "e2", records[0].ID)

	// Actor filter crosses tenants when unscoped.
	records, _, total, err = store.ListFiltered(ListFilter{Actor: "alice"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// Outcome filter.
	records, _, total, err = store.ListFiltered(ListFilter{Outcome: "denied"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "e3", records[0].ID)
}

func TestStoreListFilteredPagination(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(&EventRecord{
			ID:        string(rune('a' + i)),
			TenantID:  "acme",
			EventType: "workflow",
			Actor:     "alice",
			Outcome:   "success",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page1, token, total, err := store.ListFiltered(ListFilter{TenantID: "acme"}, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	require.NotEmpty(t, token)

	page2, token2, _, err := store.ListFiltered(ListFilter{TenantID: "acme"}, 2, token)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEmpty(t, token2)

	page3, token3, _, err := store.ListFiltered(ListFilter{TenantID: "acme"}, 2, token2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Empty(t, token3)

	// No overlap between pages.
	seen := map[string]bool{}
	for _, page := range [][]EventRecord{page1, page2, page3} {
		for _, rec := range page {
			assert.False(t, seen[rec.ID], "event %s returned twice", rec.ID)
			seen[rec.ID] = true
		}
	}
}

func TestStoreDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)

	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, store.Append(&EventRecord{ID: "old", TenantID: "acme", EventType: "workflow", Actor: "alice", Outcome: "success", CreatedAt: old}))
	require.NoError(t, store.Append(&EventRecord{ID: "new", TenantID: "acme", EventType: "workflow", Actor: "alice", Outcome: "success", CreatedAt: time.Now()}))

	deleted, err := store.DeleteOlderThan(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := store.GetByID("new")
	require.NoError(t, err)
	assert.NotNil(t, remaining)

	gone, err := store.GetByID("old")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
