// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/zktender/database/plugin/blob/badger"
	"github.com/blinklabs-io/zktender/database/types"
)

func newStore(t *testing.T, opts ...badger.BlobStoreBadgerOptionFunc) *badger.BlobStoreBadger {
	t.Helper()
	store, err := badger.New(opts...)
	require.NoError(t, err)
	require.NoError(t, store.Start())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("pl-key"), []byte("payload")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, []byte("pl-key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), val)
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("pl-key")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("pl-key"))
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestFinishedTxnRejected(t *testing.T) {
	store := newStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, txn.Rollback())
	err := store.Set(txn, []byte("k"), []byte("v"))
	assert.Error(t, err)
	// Finishing twice is a no-op
	assert.NoError(t, txn.Commit())
}

func TestForeignTxnRejected(t *testing.T) {
	a := newStore(t)
	b := newStore(t)
	txn := a.NewTransaction(true)
	defer txn.Rollback() //nolint:errcheck
	assert.Error(t, b.Set(txn, []byte("k"), []byte("v")))
	_, err := b.Get(nil, []byte("k"))
	assert.ErrorIs(t, err, types.ErrNilTxn)
}

func TestIteratorPrefix(t *testing.T) {
	store := newStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, types.PayloadBlobKey("zk1", "SUB-1"), []byte("a")))
	require.NoError(t, store.Set(txn, types.PayloadBlobKey("zk1", "SUB-2"), []byte("b")))
	require.NoError(t, store.Set(txn, types.PayloadBlobKey("zk10", "SUB-3"), []byte("c")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	prefix := types.PayloadBlobKeyPrefixForTender("zk1")
	it := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix})
	defer it.Close()
	var vals []string
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		require.NoError(t, err)
		vals = append(vals, string(v))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a", "b"}, vals)
}

func TestIteratorInvalidTxn(t *testing.T) {
	store := newStore(t)
	it := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, it.Valid())
	assert.ErrorIs(t, it.Err(), types.ErrNilTxn)
}

func TestCommitTimestamp(t *testing.T) {
	store := newStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(txn, 1_760_000_000_000))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1_760_000_000_000), ts)

	assert.ErrorIs(t, store.SetCommitTimestamp(nil, 1), types.ErrNilTxn)
}

func TestDiskStoreWithMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	dataDir := t.TempDir()
	store := newStore(
		t,
		badger.WithDataDir(dataDir),
		badger.WithBlockCacheSize(1<<20),
		badger.WithIndexCacheSize(1<<20),
		badger.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		badger.WithPromRegistry(registry),
	)
	assert.DirExists(t, dataDir+"/blob")
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("value")))
	require.NoError(t, txn.Commit())
	count, err := testutil.GatherAndCount(registry, "database_blob_ops_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCacheSizeLimit(t *testing.T) {
	_, err := badger.New(badger.WithBlockCacheSize(1 << 41))
	assert.Error(t, err)
}
