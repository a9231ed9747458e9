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

// Package zkcrypto defines the commitment, nullifier and proof capabilities
// used by the tender engine, along with a MiMC implementation over the bn254
// scalar field and a SHA-256 implementation for tests.
package zkcrypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyProof    = errors.New("proof is empty")
	ErrUnknownSuite  = errors.New("unknown crypto suite")
	ErrInvalidHexStr = errors.New("invalid hex string")
)

// CommitmentScheme binds a nullifier and secret under a context. Results
// must be deterministic
type CommitmentScheme interface {
	ComputeCommitment(nullifier, secret, context []byte) ([]byte, error)
}

// NullifierDeriver derives a one-time token from a secret. Results must be
// deterministic per (secret, scope)
type NullifierDeriver interface {
	DeriveNullifier(secret, scope []byte) ([]byte, error)
}

// ProofVerifier checks a reveal proof against a commitment digest
type ProofVerifier interface {
	VerifyProof(digest, proof []byte, disclosure []byte) error
}

// Suite bundles the three capabilities
type Suite interface {
	CommitmentScheme
	NullifierDeriver
	ProofVerifier
	Name() string
}

// Lookup returns the suite registered under name
func Lookup(name string) (Suite, error) {
	switch strings.ToLower(name) {
	case "", MiMCName:
		return NewMiMC(), nil
	case SHA256Name:
		return NewSHA256(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSuite, name)
}

// EncodeHex returns b as a 0x-prefixed lowercase hex string
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex decodes a hex string with or without the 0x prefix
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHexStr, err)
	}
	return b, nil
}

// TokenBytes returns the bytes behind an API token. Hex tokens are decoded
// and anything else is taken as raw bytes
func TokenBytes(token string) []byte {
	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		if b, err := DecodeHex(token); err == nil {
			return b
		}
	}
	return []byte(token)
}

// verifyNonEmpty is the placeholder proof check shared by the bundled suites
func verifyNonEmpty(proof []byte) error {
	if len(proof) == 0 {
		return ErrEmptyProof
	}
	return nil
}
