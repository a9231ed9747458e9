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

package api

import (
	"time"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/tender"
)

// ErrorResponse is the error body returned by every route
type ErrorResponse struct {
	StatusCode     int      `json:"status_code"`
	Error          string   `json:"error"`
	Message        string   `json:"message"`
	CurrentPhase   string   `json:"current_phase,omitempty"`
	RequiredPhases []string `json:"required_phases,omitempty"`
}

// RootResponse is returned by GET /
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Instances     []string  `json:"instances"`
	OracleEnabled bool      `json:"oracle_enabled"`
}

// InstanceResponse describes one tender instance
type InstanceResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Phase              string     `json:"phase"`
	Status             string     `json:"status"`
	SubmissionDeadline *time.Time `json:"submission_deadline"`
	RevealDeadline     *time.Time `json:"reveal_deadline"`
	VotingDeadline     *time.Time `json:"voting_deadline"`
	FinalDeadline      *time.Time `json:"final_deadline"`
	TotalSubmissions   uint64     `json:"total_submissions"`
}

func newInstanceResponse(t *models.Tender) InstanceResponse {
	return InstanceResponse{
		ID:                 t.ID,
		Name:               t.Name,
		Description:        t.Description,
		Phase:              t.Phase,
		Status:             tender.Phase(t.Phase).Label(),
		SubmissionDeadline: t.SubmissionDate,
		RevealDeadline:     t.RevealDate,
		VotingDeadline:     t.VotingDate,
		FinalDeadline:      t.FinalDate,
		TotalSubmissions:   t.TotalSubmissions,
	}
}

// CommitmentResponse is the public view of a commitment
type CommitmentResponse struct {
	SubmissionID   string    `json:"submission_id"`
	CommitmentHash string    `json:"commitment_hash"`
	SubmittedAt    time.Time `json:"submission_timestamp"`
	Status         string    `json:"status"`
	Comments       uint64    `json:"comment_count"`
}

// RevealedProposalResponse holds the disclosed fields of a proposal
type RevealedProposalResponse struct {
	SubmissionID           string    `json:"submission_id"`
	CompanyName            string    `json:"company_name"`
	ProjectTitle           string    `json:"project_title"`
	Location               string    `json:"location"`
	Budget                 float64   `json:"budget"`
	FeasibilityScore       float64   `json:"feasibility_score"`
	InnovationScore        float64   `json:"innovation_score"`
	PlannedStartDate       string    `json:"planned_start_date"`
	PlannedEndDate         string    `json:"planned_end_date"`
	MaterialPlan           string    `json:"material_plan"`
	ConstructionPlan       string    `json:"construction_plan"`
	SustainabilityMeasures string    `json:"sustainability_measures"`
	CommunityEngagement    string    `json:"community_engagement"`
	PastProjects           string    `json:"past_projects"`
	AttachmentURLs         []string  `json:"attachment_urls"`
	RevealedAt             time.Time `json:"reveal_timestamp"`
}

func newRevealedProposalResponse(
	p models.RevealedProposal,
) RevealedProposalResponse {
	urls := []string(p.AttachmentURLs)
	if urls == nil {
		urls = []string{}
	}
	return RevealedProposalResponse{
		SubmissionID:           p.SubmissionID,
		CompanyName:            p.CompanyName,
		ProjectTitle:           p.ProjectTitle,
		Location:               p.Location,
		Budget:                 p.Budget,
		FeasibilityScore:       p.FeasibilityScore,
		InnovationScore:        p.InnovationScore,
		PlannedStartDate:       p.PlannedStartDate,
		PlannedEndDate:         p.PlannedEndDate,
		MaterialPlan:           p.MaterialPlan,
		ConstructionPlan:       p.ConstructionPlan,
		SustainabilityMeasures: p.SustainabilityMeasures,
		CommunityEngagement:    p.CommunityEngagement,
		PastProjects:           p.PastProjects,
		AttachmentURLs:         urls,
		RevealedAt:             p.RevealedAt,
	}
}

// StateResponse is the public state of a tender instance
type StateResponse struct {
	Instance           string                     `json:"instance"`
	Name               string                     `json:"name"`
	Description        string                     `json:"description"`
	Phase              string                     `json:"phase"`
	Status             string                     `json:"status"`
	SubmissionDeadline *time.Time                 `json:"submission_deadline"`
	RevealDeadline     *time.Time                 `json:"reveal_deadline"`
	VotingDeadline     *time.Time                 `json:"voting_deadline"`
	FinalDeadline      *time.Time                 `json:"final_deadline"`
	TotalSubmissions   uint64                     `json:"total_submissions"`
	Commitments        []CommitmentResponse       `json:"commitments"`
	RevealedProposals  []RevealedProposalResponse `json:"revealed_proposals"`
}

func newStateResponse(state *tender.PublicState) StateResponse {
	ret := StateResponse{
		Instance:           state.TenderID,
		Name:               state.Name,
		Description:        state.Description,
		Phase:              string(state.Phase),
		Status:             state.Status,
		SubmissionDeadline: state.SubmissionDate,
		RevealDeadline:     state.RevealDate,
		VotingDeadline:     state.VotingDate,
		FinalDeadline:      state.FinalDate,
		TotalSubmissions:   state.TotalSubmissions,
		Commitments:        make([]CommitmentResponse, 0, len(state.Commitments)),
		RevealedProposals: make(
			[]RevealedProposalResponse,
			0,
			len(state.RevealedProposals),
		),
	}
	for _, c := range state.Commitments {
		ret.Commitments = append(ret.Commitments, CommitmentResponse{
			SubmissionID:   c.SubmissionID,
			CommitmentHash: c.DigestPreview,
			SubmittedAt:    c.SubmittedAt,
			Status:         c.Status,
			Comments:       c.Comments,
		})
	}
	for _, p := range state.RevealedProposals {
		ret.RevealedProposals = append(
			ret.RevealedProposals,
			newRevealedProposalResponse(p),
		)
	}
	return ret
}

// PhaseRequest is the body of POST .../phase
type PhaseRequest struct {
	NewPhase string `json:"new_phase"`
	Reason   string `json:"reason"`
}

// PhaseResponse reports the outcome of a phase change
type PhaseResponse struct {
	Instance      string `json:"instance"`
	PreviousPhase string `json:"previous_phase"`
	NewPhase      string `json:"new_phase"`
	Status        string `json:"status"`
}

// PhaseTransitionResponse is one audited phase change
type PhaseTransitionResponse struct {
	FromPhase string    `json:"from_phase"`
	ToPhase   string    `json:"to_phase"`
	Forward   bool      `json:"forward"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"timestamp"`
}

// CommitBody is the body of POST .../proposals
type CommitBody struct {
	CommitmentHash        string `json:"commitment_hash"`
	NullifierHash         string `json:"nullifier_hash"`
	WalletAddress         string `json:"wallet_address"`
	EncryptedProposalData string `json:"encrypted_proposal_data"`
}

// CommitResponse is returned after a commitment is stored
type CommitResponse struct {
	Instance     string `json:"instance"`
	SubmissionID string `json:"submission_id"`
	Message      string `json:"message"`
}

// RevealBody is the body of POST .../reveal
type RevealBody struct {
	RevealProof  string            `json:"zk_reveal_proof"`
	RevealedData tender.Disclosure `json:"revealed_data"`
}

// RevealResponse is returned after a proposal is disclosed
type RevealResponse struct {
	Instance     string `json:"instance"`
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
}

// VoteBody is the body of POST .../votes
type VoteBody struct {
	Nullifier      string  `json:"nullifier"`
	VoteType       string  `json:"vote_type"`
	Stake          float64 `json:"stake"`
	VoteCommitment string  `json:"vote_commitment"`
}

// VoteResponse is returned after a vote is recorded
type VoteResponse struct {
	Instance     string `json:"instance"`
	SubmissionID string `json:"submission_id"`
	VoteID       uint   `json:"vote_id"`
}

// CommentBody is the body of POST .../comments
type CommentBody struct {
	Nullifier        string  `json:"nullifier"`
	CommentText      string  `json:"comment_text"`
	CommenterAddress string  `json:"commenter_address"`
	Stake            float64 `json:"stake"`
}

// CommentResponse is returned after a comment is recorded
type CommentResponse struct {
	Instance     string `json:"instance"`
	SubmissionID string `json:"submission_id"`
	CommentID    uint   `json:"comment_id"`
}

// CommentItem is one comment in a comment list
type CommentItem struct {
	ID           uint      `json:"id"`
	SubmissionID string    `json:"submission_id"`
	CommentText  string    `json:"comment_text"`
	Stake        float64   `json:"stake"`
	CreatedAt    time.Time `json:"timestamp"`
}

// StatsItem is the vote tally of one submission
type StatsItem struct {
	SubmissionID string  `json:"submission_id"`
	TotalVotes   uint64  `json:"total_votes"`
	SupportVotes uint64  `json:"support_votes"`
	ConcernVotes uint64  `json:"concern_votes"`
	TotalStake   float64 `json:"total_stake"`
	FlagRate     float64 `json:"flag_rate"`
	SupportRate  float64 `json:"support_rate"`
	Comments     uint64  `json:"comment_count"`
}
