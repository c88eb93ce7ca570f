package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsledger/backend/internal/store"
)

func TestReadMissingRecord(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Read(context.Background(), store.Parts)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWriteAllPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.WriteAll(ctx, map[string][]byte{
		store.Parts: []byte(`[{"number":"P100"}]`),
		store.Sales: []byte(`[]`),
	}))
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, journal))
	assert.ErrorIs(t, err, os.ErrNotExist, "journal is removed after commit")

	reopened, err := New(dir)
	require.NoError(t, err)
	payload, err := reopened.Read(ctx, store.Parts)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"number":"P100"}]`, string(payload))
}

func TestRecoverFinishesJournaledCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, store.Parts, []byte(`"old"`)))

	// Simulate a crash after the journal was written but before renames.
	require.NoError(t, os.WriteFile(s.pendingPath(store.Parts), []byte(`"new parts"`), 0o644))
	require.NoError(t, os.WriteFile(s.pendingPath(store.Customers), []byte(`"new customers"`), 0o644))
	require.NoError(t, os.WriteFile(s.journalPath(), []byte(`["parts","customers"]`), 0o644))

	recovered, err := New(dir)
	require.NoError(t, err)

	payload, err := recovered.Read(ctx, store.Parts)
	require.NoError(t, err)
	assert.Equal(t, `"new parts"`, string(payload))
	payload, err = recovered.Read(ctx, store.Customers)
	require.NoError(t, err)
	assert.Equal(t, `"new customers"`, string(payload))
}

func TestRecoverDiscardsUndecidedCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, store.Parts, []byte(`"old"`)))
	require.NoError(t, os.WriteFile(s.pendingPath(store.Parts), []byte(`"half written"`), 0o644))

	recovered, err := New(dir)
	require.NoError(t, err)

	payload, err := recovered.Read(ctx, store.Parts)
	require.NoError(t, err)
	assert.Equal(t, `"old"`, string(payload))
	_, err = os.Stat(recovered.pendingPath(store.Parts))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIncrementPersistsCounter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	for want := int64(1); want <= 3; want++ {
		got, err := s.Increment(ctx, store.PurchaseOrderSequence)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	reopened, err := New(dir)
	require.NoError(t, err)
	got, err := reopened.Increment(ctx, store.PurchaseOrderSequence)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestIncrementRejectsCorruptCounter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.PurchaseOrderSequence+counterExt), []byte("abc"), 0o644))

	s, err := New(dir)
	require.NoError(t, err)
	_, err = s.Increment(context.Background(), store.PurchaseOrderSequence)
	assert.Error(t, err)
}

func TestRejectsPathLikeNames(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	err = s.Write(context.Background(), "../escape", []byte(`1`))
	assert.Error(t, err)
}
