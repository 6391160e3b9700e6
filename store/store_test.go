package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/effective-security/agenttools/store"
	"github.com/effective-security/agenttools/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshotStore(t *testing.T, st store.SnapshotStore) {
	ctx := context.Background()

	ids, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = st.Load(ctx, "ol1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.EqualError(t, err, "snapshot ol1 not found")

	assert.EqualError(t, st.Save(ctx, "", &tools.Snapshot{Name: "HelloWorld"}), "invalid snapshot ID")
	assert.EqualError(t, st.Save(ctx, "x", nil), "snapshot is required")
	_, err = st.Load(ctx, "")
	assert.EqualError(t, err, "invalid snapshot ID")

	ol, err := tools.NewSnapshot("OpenLibrary", map[string]any{"base_url": "https://openlibrary.org"})
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, "ol1", ol))
	require.NoError(t, st.Save(ctx, "hello", &tools.Snapshot{Name: "HelloWorld"}))

	got, err := st.Load(ctx, "ol1")
	require.NoError(t, err)
	assert.Equal(t, "OpenLibrary", got.Name)
	assert.Equal(t, json.RawMessage(`{"base_url":"https://openlibrary.org"}`), got.Options)

	got, err = st.Load(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "HelloWorld", got.Name)
	assert.Empty(t, got.Options)

	ids, err = st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "ol1"}, ids)

	// replace
	ol2, err := tools.NewSnapshot("OpenLibrary", map[string]any{"base_url": "http://localhost:8080"})
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, "ol1", ol2))
	got, err = st.Load(ctx, "ol1")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"base_url":"http://localhost:8080"}`), got.Options)

	require.NoError(t, st.Delete(ctx, "ol1"))
	require.NoError(t, st.Delete(ctx, "ol1"))
	_, err = st.Load(ctx, "ol1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ids, err = st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, ids)
}
