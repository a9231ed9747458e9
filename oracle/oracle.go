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

// Package oracle scores tender proposals. An Oracle returns raw JSON for a
// prompt, and the Adapter validates that untrusted output, clamps it into
// range, and substitutes a deterministic fallback when the oracle is
// unavailable or misbehaves.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrOracleUnavailable is returned by an Oracle that cannot be reached or is
// not configured
var ErrOracleUnavailable = errors.New("scoring oracle unavailable")

// ErrMalformedResponse is used when an oracle reply carries no usable score
var ErrMalformedResponse = errors.New("malformed oracle response")

const (
	RecommendationApprove      = "approve"
	RecommendationReject       = "reject"
	RecommendationManualReview = "manual_review"
)

// Prompt is a single chat-completions request
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Oracle produces a JSON object for a prompt
type Oracle interface {
	Score(ctx context.Context, prompt Prompt) (json.RawMessage, error)
}

// Proposal is the view of a submission handed to the oracle. Before reveal
// only the anonymized fields are populated
type Proposal struct {
	SubmissionID     string
	ProjectTitle     string
	CompanyName      string
	Location         string
	Budget           float64
	FeasibilityScore float64
	InnovationScore  float64
	SubmittedAt      time.Time
	Revealed         bool
}

// Stats is the public voting outcome for a submission
type Stats struct {
	Total   uint64
	Support uint64
	Concern uint64
}

// FlagRate returns concern/total, or 0 with no votes
func (s Stats) FlagRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Concern) / float64(s.Total)
}

// SupportRate returns support/total, or 0 with no votes
func (s Stats) SupportRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Support) / float64(s.Total)
}

// Flagged reports whether the public flag rate exceeds FlagThreshold
func (s Stats) Flagged() bool {
	return s.FlagRate() > FlagThreshold
}

// Evaluation is the pre-vote assessment of a proposal
type Evaluation struct {
	Score          float64
	Strengths      []string
	Weaknesses     []string
	Summary        string
	AIPowered      bool
	Model          string
	FallbackReason string
}

// FinalEvaluation is the post-vote assessment of a proposal
type FinalEvaluation struct {
	FinalScore       float64
	RiskAssessment   string
	BiasDetection    string
	LegalCompliance  string
	PublicVoteImpact string
	Recommendation   string
	Confidence       float64
	AuditTrigger     bool
	Summary          string
	TotalVotes       uint64
	FlagRate         float64
	SupportRate      float64
	ModelVersion     string
	AIPowered        bool
	FallbackReason   string
}
