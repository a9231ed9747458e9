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

package types

import (
	"slices"
)

const (
	PayloadBlobKeyPrefix         = "pl"
	CommitTimestampBlobKey       = "metadata_commit_timestamp"
	payloadBlobKeySeparator byte = 0x00
)

// PayloadBlobKey returns the blob key holding the opaque commitment payload
// for a submission within a tender instance
func PayloadBlobKey(tenderID string, submissionID string) []byte {
	return slices.Concat(
		[]byte(PayloadBlobKeyPrefix),
		[]byte(tenderID),
		[]byte{payloadBlobKeySeparator},
		[]byte(submissionID),
	)
}

// PayloadBlobKeyPrefixForTender returns the key prefix covering every payload
// stored for a tender instance
func PayloadBlobKeyPrefixForTender(tenderID string) []byte {
	return slices.Concat(
		[]byte(PayloadBlobKeyPrefix),
		[]byte(tenderID),
		[]byte{payloadBlobKeySeparator},
	)
}
