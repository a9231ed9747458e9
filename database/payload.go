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

	"github.com/blinklabs-io/zktender/database/models"
	zksops "github.com/blinklabs-io/zktender/database/sops"
	"github.com/blinklabs-io/zktender/database/types"
)

// PayloadRef identifies a stored proposal payload
type PayloadRef struct {
	Key       []byte
	Size      int
	Encrypted bool
}

// SetPayload stores the opaque proposal payload for a submission in the blob
// store. Payloads are encrypted with SOPS when a master key is configured
func (d *Database) SetPayload(
	tenderID string,
	submissionID string,
	payload []byte,
	txn *Txn,
) (PayloadRef, error) {
	if txn == nil || txn.Blob() == nil {
		return PayloadRef{}, types.ErrNilTxn
	}
	ref := PayloadRef{
		Key:  types.PayloadBlobKey(tenderID, submissionID),
		Size: len(payload),
	}
	data := payload
	if zksops.Enabled() {
		ciphertext, err := zksops.Encrypt(payload)
		if err != nil {
			return PayloadRef{}, fmt.Errorf("encrypt payload: %w", err)
		}
		data = ciphertext
		ref.Encrypted = true
	}
	if err := d.blob.Set(txn.Blob(), ref.Key, data); err != nil {
		return PayloadRef{}, err
	}
	return ref, nil
}

// Payload returns the plaintext payload stored for a commitment, or nil if the
// commitment has no payload
func (d *Database) Payload(
	commitment *models.Commitment,
	txn *Txn,
) ([]byte, error) {
	if len(commitment.PayloadKey) == 0 {
		return nil, nil
	}
	if txn == nil {
		txn = NewBlobOnlyTxn(d, false)
		defer txn.Release()
	}
	data, err := d.blob.Get(txn.Blob(), commitment.PayloadKey)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !commitment.PayloadEncrypted {
		return data, nil
	}
	plaintext, err := zksops.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}
	return plaintext, nil
}

// PayloadCount returns the number of payloads stored for a tender
func (d *Database) PayloadCount(tenderID string) (int, error) {
	txn := NewBlobOnlyTxn(d, false)
	defer txn.Release()
	prefix := types.PayloadBlobKeyPrefixForTender(tenderID)
	it := d.blob.NewIterator(
		txn.Blob(),
		types.BlobIteratorOptions{Prefix: prefix},
	)
	defer it.Close()
	count := 0
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
