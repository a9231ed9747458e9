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

package gcs

import (
	"errors"
	"math/big"

	zksops "github.com/blinklabs-io/zktender/database/sops"
	"github.com/blinklabs-io/zktender/database/types"
)

// GetCommitTimestamp returns the SOPS-encrypted commit timestamp, or 0 if
// none has been written yet
func (b *BlobStoreGCS) GetCommitTimestamp() (int64, error) {
	txn := b.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	ciphertext, err := b.Get(txn, []byte(types.CommitTimestampBlobKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		b.logger.Error("failed to read commit timestamp", "error", err)
		return 0, err
	}

	plaintext, err := zksops.Decrypt(ciphertext)
	if err != nil {
		b.logger.Error("failed to decrypt commit timestamp", "error", err)
		return 0, err
	}

	return new(big.Int).SetBytes(plaintext).Int64(), nil
}

func (b *BlobStoreGCS) SetCommitTimestamp(
	txn types.Txn,
	timestamp int64,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	raw := new(big.Int).SetInt64(timestamp).Bytes()

	ciphertext, err := zksops.Encrypt(raw)
	if err != nil {
		b.logger.Error("failed to encrypt commit timestamp", "error", err)
		return err
	}
	if err := b.Set(txn, []byte(types.CommitTimestampBlobKey), ciphertext); err != nil {
		return err
	}
	b.logger.Debug("commit timestamp written", "timestamp", timestamp)
	return nil
}
