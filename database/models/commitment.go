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

import (
	"time"

	"github.com/blinklabs-io/zktender/database/types"
)

// Commitment status values. Status only moves forward in this order
const (
	CommitmentStatusCommitted = "committed"
	CommitmentStatusRevealed  = "revealed"
	CommitmentStatusEvaluated = "evaluated"
)

// Commitment is the opaque record published during the submission phase
type Commitment struct {
	ID               uint   `gorm:"primarykey"`
	TenderID         string `gorm:"size:64;uniqueIndex:idx_commitment_submission,priority:1;uniqueIndex:idx_commitment_nullifier,priority:1;not null"`
	SubmissionID     string `gorm:"size:64;uniqueIndex:idx_commitment_submission,priority:2;not null"`
	Digest           string `gorm:"size:255;not null"`
	Nullifier        string `gorm:"size:255;uniqueIndex:idx_commitment_nullifier,priority:2;not null"`
	SubmitterRef     string `gorm:"size:255"`
	PayloadKey       []byte
	PayloadSize      int
	PayloadEncrypted bool
	Status           string    `gorm:"size:16;index;not null"`
	SubmittedAt      time.Time `gorm:"index;not null"`
	RevealedAt       *time.Time
}

func (Commitment) TableName() string {
	return "commitment"
}

// RevealedProposal holds the disclosed proposal fields for a commitment
type RevealedProposal struct {
	ID                     uint   `gorm:"primarykey"`
	TenderID               string `gorm:"size:64;uniqueIndex:idx_revealed_submission,priority:1;not null"`
	SubmissionID           string `gorm:"size:64;uniqueIndex:idx_revealed_submission,priority:2;not null"`
	CompanyName            string `gorm:"size:255"`
	ProjectTitle           string `gorm:"size:255"`
	Location               string `gorm:"size:255"`
	Budget                 float64
	FeasibilityScore       float64
	InnovationScore        float64
	PlannedStartDate       string `gorm:"size:32"`
	PlannedEndDate         string `gorm:"size:32"`
	MaterialPlan           string
	ConstructionPlan       string
	SustainabilityMeasures string
	CommunityEngagement    string
	PastProjects           string
	AttachmentURLs         types.StringList `gorm:"type:text"`
	RevealProof            string
	RevealedAt             time.Time `gorm:"not null"`
}

func (RevealedProposal) TableName() string {
	return "revealed_proposal"
}
