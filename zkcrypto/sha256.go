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
	"crypto/sha256"
	"encoding/binary"
)

const SHA256Name = "sha256"

// SHA256 implements Suite with plain SHA-256 and is intended for tests
type SHA256 struct{}

func NewSHA256() *SHA256 {
	return &SHA256{}
}

func (s *SHA256) Name() string {
	return SHA256Name
}

func (s *SHA256) ComputeCommitment(nullifier, secret, context []byte) ([]byte, error) {
	return shaHash(nullifier, secret, context), nil
}

func (s *SHA256) DeriveNullifier(secret, scope []byte) ([]byte, error) {
	return shaHash(secret, scope), nil
}

func (s *SHA256) VerifyProof(digest, proof []byte, disclosure []byte) error {
	return verifyNonEmpty(proof)
}

func shaHash(inputs ...[]byte) []byte {
	h := sha256.New()
	var lenBuf [8]byte
	for _, input := range inputs {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(input)))
		h.Write(lenBuf[:])
		h.Write(input)
	}
	return h.Sum(nil)
}
