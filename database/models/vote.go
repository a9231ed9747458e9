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

// Vote types
const (
	VoteTypeSupport = "support"
	VoteTypeConcern = "concern"
)

// Vote is an anonymous stake-weighted vote on a submission
type Vote struct {
	ID              uint    `gorm:"primarykey"`
	TenderID        string  `gorm:"size:64;index:idx_vote_submission,priority:1;not null"`
	SubmissionID    string  `gorm:"size:64;index:idx_vote_submission,priority:2;not null"`
	CommitmentToken string  `gorm:"size:255"`
	Nullifier       string  `gorm:"size:255;not null"`
	VoteType        string  `gorm:"size:16;not null"`
	Stake           float64 `gorm:"not null"`
	Unrevealed      bool    `gorm:"not null;default:false"`
	CreatedAt       time.Time
}

func (Vote) TableName() string {
	return "vote"
}

// Comment is an anonymous comment on a submission
type Comment struct {
	ID           uint    `gorm:"primarykey"`
	TenderID     string  `gorm:"size:64;index:idx_comment_submission,priority:1;not null"`
	SubmissionID string  `gorm:"size:64;index:idx_comment_submission,priority:2;not null"`
	Body         string  `gorm:"not null"`
	Nullifier    string  `gorm:"size:255;not null"`
	CommenterRef string  `gorm:"size:255"`
	Stake        float64 `gorm:"not null"`
	CreatedAt    time.Time
}

func (Comment) TableName() string {
	return "comment"
}

// VotingStats is the per-submission aggregate over Vote. It is never stored
type VotingStats struct {
	SubmissionID string  `json:"submission_id"`
	Total        uint64  `json:"total_votes"`
	Support      uint64  `json:"support_votes"`
	Concern      uint64  `json:"concern_votes"`
	TotalStake   float64 `json:"total_stake"`
}
