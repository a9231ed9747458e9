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

package zkcrypto

import (
	"encoding/binary"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

const MiMCName = "mimc"

// chunkSize keeps every chunk below the bn254 scalar field modulus
const chunkSize = 31

// MiMC implements Suite with the MiMC hash over the bn254 scalar field
type MiMC struct{}

func NewMiMC() *MiMC {
	return &MiMC{}
}

func (m *MiMC) Name() string {
	return MiMCName
}

// ComputeCommitment returns MiMC(nullifier, secret, context)
func (m *MiMC) ComputeCommitment(nullifier, secret, context []byte) ([]byte, error) {
	return mimcHash(nullifier, secret, context)
}

// DeriveNullifier returns MiMC(secret, scope)
func (m *MiMC) DeriveNullifier(secret, scope []byte) ([]byte, error) {
	return mimcHash(secret, scope)
}

// VerifyProof accepts any non-empty proof
func (m *MiMC) VerifyProof(digest, proof []byte, disclosure []byte) error {
	return verifyNonEmpty(proof)
}

// mimcHash absorbs each input as a length element followed by its bytes in
// left-padded chunks, so distinct input lists never share an encoding
func mimcHash(inputs ...[]byte) ([]byte, error) {
	h := mimc.NewMiMC()
	for _, input := range inputs {
		if err := writeLength(h, len(input)); err != nil {
			return nil, err
		}
		for start := 0; start < len(input); start += chunkSize {
			end := min(start+chunkSize, len(input))
			if err := writeElement(h, input[start:end]); err != nil {
				return nil, err
			}
		}
	}
	return h.Sum(nil), nil
}

func writeLength(h hash.Hash, n int) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n)) //nolint:gosec // lengths are non-negative
	return writeElement(h, buf[:])
}

func writeElement(h hash.Hash, chunk []byte) error {
	var block [mimc.BlockSize]byte
	copy(block[mimc.BlockSize-len(chunk):], chunk)
	_, err := h.Write(block[:])
	return err
}
