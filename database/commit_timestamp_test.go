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

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCommitTimestampMismatch(t *testing.T) {
	db, err := New(&Config{})
	require.NoError(t, err)
	defer db.Close()

	// No metadata timestamp yet
	require.NoError(t, db.checkCommitTimestamp())

	require.NoError(t, db.Metadata().SetCommitTimestamp(nil, 1000))
	err = db.checkCommitTimestamp()
	var tsErr CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, int64(1000), tsErr.MetadataTimestamp)
	assert.Equal(t, int64(0), tsErr.BlobTimestamp)

	txn := NewBlobOnlyTxn(db, true)
	require.NoError(t, db.Blob().SetCommitTimestamp(txn.Blob(), 1000))
	require.NoError(t, txn.Commit())
	assert.NoError(t, db.checkCommitTimestamp())
}

func TestRecoverCommitTimestamp(t *testing.T) {
	db, err := New(&Config{})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Metadata().SetCommitTimestamp(nil, 2000))
	require.Error(t, db.checkCommitTimestamp())
	require.NoError(t, db.RecoverCommitTimestamp())
	ts, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ts)
}

func TestReadOnlyTxnCommitReleases(t *testing.T) {
	db, err := New(&Config{})
	require.NoError(t, err)
	defer db.Close()
	txn := db.Transaction(false)
	require.NoError(t, txn.Commit())
	// Released transactions do not block the single in-memory connection
	_, err = db.Tenders(nil)
	assert.NoError(t, err)
}
