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

package tender

import (
	"time"

	"github.com/blinklabs-io/zktender/database/models"
)

// CommitRequest carries a sealed proposal. An empty Digest is computed from
// the nullifier, payload and tender ID with the configured commitment scheme
type CommitRequest struct {
	Digest       string
	Nullifier    string
	SubmitterRef string
	Payload      []byte
}

// Disclosure is the proposal content made public at reveal
type Disclosure struct {
	CompanyName            string   `json:"company_name"`
	ProjectTitle           string   `json:"project_title"`
	Location               string   `json:"location"`
	Budget                 float64  `json:"budget"`
	FeasibilityScore       float64  `json:"feasibility_score"`
	InnovationScore        float64  `json:"innovation_score"`
	PlannedStartDate       string   `json:"planned_start_date"`
	PlannedEndDate         string   `json:"planned_end_date"`
	MaterialPlan           string   `json:"material_plan"`
	ConstructionPlan       string   `json:"construction_plan"`
	SustainabilityMeasures string   `json:"sustainability_measures"`
	CommunityEngagement    string   `json:"community_engagement"`
	PastProjects           string   `json:"past_projects"`
	AttachmentURLs         []string `json:"attachment_urls"`
}

// VoteRequest casts a support or concern vote. A zero Stake selects the
// configured default
type VoteRequest struct {
	SubmissionID    string
	Nullifier       string
	Type            string
	Stake           float64
	CommitmentToken string
}

// CommentRequest posts a public comment. A zero Stake selects the configured
// default
type CommentRequest struct {
	SubmissionID string
	Nullifier    string
	Text         string
	CommenterRef string
	Stake        float64
}

// TenderSpec describes a tender instance to provision
type TenderSpec struct {
	ID             string
	Name           string
	Description    string
	Phase          Phase
	SubmissionDate *time.Time
	RevealDate     *time.Time
	VotingDate     *time.Time
	FinalDate      *time.Time
}

// CommitmentSummary is the public view of a commitment
type CommitmentSummary struct {
	SubmissionID  string
	DigestPreview string
	SubmittedAt   time.Time
	Status        string
	Comments      uint64
}

// PublicState is the externally visible state of a tender instance.
// RevealedProposals is always empty during the submission phase
type PublicState struct {
	TenderID          string
	Name              string
	Description       string
	Phase             Phase
	Status            string
	SubmissionDate    *time.Time
	RevealDate        *time.Time
	VotingDate        *time.Time
	FinalDate         *time.Time
	TotalSubmissions  uint64
	Commitments       []CommitmentSummary
	RevealedProposals []models.RevealedProposal
}

// SubmissionStats is the vote tally of a single submission
type SubmissionStats struct {
	SubmissionID string
	Total        uint64
	Support      uint64
	Concern      uint64
	TotalStake   float64
	FlagRate     float64
	SupportRate  float64
	Comments     uint64
}

const digestPreviewLen = 16

func digestPreview(digest string) string {
	if len(digest) > digestPreviewLen {
		digest = digest[:digestPreviewLen]
	}
	return digest + "..."
}
