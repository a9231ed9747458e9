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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/zktender/database/types"
)

// txnScope selects the stores a transaction spans
type txnScope uint8

const (
	scopeBlob txnScope = 1 << iota
	scopeMetadata
)

// Txn spans the metadata store holding tender records and the blob store
// holding sealed payloads. A read-write Txn stamps both stores with the same
// commit timestamp so a crash between the two commits is detected on open
type Txn struct {
	db          *Database
	blob        types.Txn
	metadataTxn types.Txn
	mu          sync.Mutex
	done        bool
	readWrite   bool
}

// NewTxn opens a transaction over both stores
func NewTxn(db *Database, readWrite bool) *Txn {
	return newTxn(db, readWrite, scopeBlob|scopeMetadata)
}

// NewBlobOnlyTxn opens a transaction over the payload store only. It does not
// touch the commit timestamp
func NewBlobOnlyTxn(db *Database, readWrite bool) *Txn {
	return newTxn(db, readWrite, scopeBlob)
}

func newTxn(db *Database, readWrite bool, scope txnScope) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil && scope&scopeBlob != 0 {
		t.blob = bs.NewTransaction(readWrite)
	}
	if ms := db.Metadata(); ms != nil && scope&scopeMetadata != 0 {
		t.metadataTxn = ms.Transaction()
		if t.metadataTxn == nil {
			db.logger.Warn(
				"metadata store returned no transaction",
				"read_write", readWrite,
			)
		}
	}
	return t
}

// Metadata returns the metadata store transaction, or nil
func (t *Txn) Metadata() types.Txn {
	return t.metadataTxn
}

// Blob returns the payload store transaction, or nil
func (t *Txn) Blob() types.Txn {
	return t.blob
}

// Do runs fn and commits. An error from fn rolls back both stores
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				rbErr,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Commit writes the commit timestamp, then commits the payload store before
// the metadata store. A metadata failure after the payload commit leaves
// orphaned payloads and a timestamp mismatch for RecoverCommitTimestamp
func (t *Txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.done:
		return nil
	case !t.readWrite:
		return t.rollback()
	case t.blob == nil && t.metadataTxn == nil:
		t.done = true
		return types.ErrNoStoreAvailable
	}
	defer func() { t.done = true }()
	if t.blob != nil && t.metadataTxn != nil {
		if err := t.db.updateCommitTimestamp(t, time.Now().UnixMilli()); err != nil {
			_ = t.blob.Rollback()
			_ = t.metadataTxn.Rollback()
			return fmt.Errorf("failed to update commit timestamp: %w", err)
		}
	}
	if t.blob != nil {
		if err := t.blob.Commit(); err != nil {
			if t.metadataTxn != nil {
				_ = t.metadataTxn.Rollback()
			}
			return fmt.Errorf("payload commit failed: %w", err)
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Commit(); err != nil {
			t.db.logger.Error(
				"partial commit: payloads committed, tender records failed",
				"error", err,
			)
			_ = t.metadataTxn.Rollback()
			return fmt.Errorf(
				"partial commit: metadata commit failed after payload commit: %w",
				err,
			)
		}
	}
	return nil
}

// Rollback discards both stores' changes
func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	var errs []error
	if t.blob != nil {
		if err := t.blob.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("payload rollback: %w", err))
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Release ends a read transaction, logging rather than returning any error so
// it can be deferred
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
