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

package models

import "time"

// Nullifier namespaces
const (
	NullifierNamespaceCommit  = "commit"
	NullifierNamespaceVote    = "vote"
	NullifierNamespaceComment = "comment"
)

// Nullifier is a one-time-use token. The unique index is the only
// replay guard: inserts race on it rather than on a prior lookup
type Nullifier struct {
	ID        uint   `gorm:"primarykey"`
	TenderID  string `gorm:"size:64;uniqueIndex:idx_nullifier_unique,priority:1;not null"`
	Namespace string `gorm:"size:16;uniqueIndex:idx_nullifier_unique,priority:2;not null"`
	Token     string `gorm:"size:255;uniqueIndex:idx_nullifier_unique,priority:3;not null"`
	CreatedAt time.Time
}

func (Nullifier) TableName() string {
	return "nullifier"
}
