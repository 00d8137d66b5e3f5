package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/client/remote"
	"github.com/dmitrijs2005/tallysync/internal/client/store"
	"github.com/dmitrijs2005/tallysync/internal/client/syncer"
	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"github.com/dmitrijs2005/tallysync/internal/server/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteName(t *testing.T, repo *records.MemoryRepository, id string) string {
	t.Helper()
	got, err := repo.Get(context.Background(), "clients", id)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(got.Payload, &body))
	name, _ := body["name"].(string)
	return name
}

func TestSyncRoundTrip_DeleteThenReAdd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h, repo := newTestHandler(t, "")
	srv := httptest.NewServer(h)
	defer srv.Close()

	cs, err := models.NewCollectionSet([]models.CollectionSpec{
		{Name: "clients", Endpoint: srv.URL + "/api/v1/clients"},
	})
	require.NoError(t, err)
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "tally.db"), cs)
	require.NoError(t, err)
	defer st.Close()

	engine := syncer.NewEngine(st, []syncer.Target{{
		Collection: "clients",
		Submitter:  remote.NewHTTPSubmitter(srv.URL+"/api/v1/clients", time.Second, ""),
	}}, logging.Discard())

	_, err = st.Add(ctx, "clients", &models.Record{ID: "c1", Fields: map[string]any{"name": "OLD"}})
	require.NoError(t, err)
	_, err = st.Add(ctx, "clients", &models.Record{ID: "c2", Fields: map[string]any{"name": "OLD"}})
	require.NoError(t, err)
	require.Equal(t, 0, engine.SyncAll(ctx, nil).Remaining)

	// a deleted id cannot come back with revision 1 and a key the collector already holds
	require.NoError(t, st.Delete(ctx, "clients", "c1"))
	_, err = st.Add(ctx, "clients", &models.Record{ID: "c1", Fields: map[string]any{"name": "NEW"}})
	require.ErrorIs(t, err, common.ErrDuplicateID)

	_, err = st.Update(ctx, "clients", "c2", map[string]any{"name": "NEW"})
	require.NoError(t, err)

	rep := engine.SyncAll(ctx, nil)
	assert.Equal(t, 0, rep.Remaining)

	local, err := st.Get(ctx, "clients", "c2")
	require.NoError(t, err)
	assert.True(t, local.Synced)
	assert.Equal(t, "NEW", remoteName(t, repo, "c2"))

	// deletes are not propagated
	assert.Equal(t, "OLD", remoteName(t, repo, "c1"))
}
