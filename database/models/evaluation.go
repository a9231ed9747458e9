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

// Final recommendation values
const (
	RecommendationApprove      = "approve"
	RecommendationReject       = "reject"
	RecommendationManualReview = "manual_review"
)

// Evaluation is a pre-vote score. Each evaluation appends a new record
type Evaluation struct {
	ID             uint             `gorm:"primarykey"                                                   json:"id"`
	TenderID       string           `gorm:"size:64;index:idx_evaluation_submission,priority:1;not null" json:"tender_id"`
	SubmissionID   string           `gorm:"size:64;index:idx_evaluation_submission,priority:2;not null" json:"submission_id"`
	Score          float64          `gorm:"not null"                                                     json:"score"`
	Strengths      types.StringList `gorm:"type:text"                                                    json:"strengths"`
	Weaknesses     types.StringList `gorm:"type:text"                                                    json:"weaknesses"`
	Summary        string           `                                                                    json:"summary"`
	AIPowered      bool             `gorm:"not null"                                                     json:"ai_powered"`
	Model          string           `gorm:"size:64"                                                      json:"model"`
	FallbackReason string           `                                                                    json:"fallback_reason,omitempty"`
	CreatedAt      time.Time        `                                                                    json:"created_at"`
}

func (Evaluation) TableName() string {
	return "evaluation"
}

// FinalEvaluation is the post-vote recommendation, one per submission
type FinalEvaluation struct {
	ID                uint      `gorm:"primarykey"                                                 json:"id"`
	TenderID          string    `gorm:"size:64;uniqueIndex:idx_final_submission,priority:1;not null" json:"tender_id"`
	SubmissionID      string    `gorm:"size:64;uniqueIndex:idx_final_submission,priority:2;not null" json:"submission_id"`
	FinalScore        float64   `gorm:"not null"                                                   json:"final_score"`
	RiskAssessment    string    `                                                                  json:"risk_assessment"`
	BiasDetection     string    `                                                                  json:"bias_detection_results"`
	LegalCompliance   string    `                                                                  json:"legal_compliance_status"`
	PublicVoteImpact  string    `                                                                  json:"public_vote_impact"`
	Recommendation    string    `gorm:"size:16;not null"                                           json:"recommendation"`
	Confidence        float64   `gorm:"not null"                                                   json:"confidence"`
	AuditTrigger      bool      `gorm:"not null"                                                   json:"audit_trigger"`
	Summary           string    `                                                                  json:"final_summary"`
	TotalVotes        uint64    `                                                                  json:"total_votes"`
	FlagRate          float64   `                                                                  json:"flag_rate"`
	PublicSupportRate float64   `                                                                  json:"public_support_rate"`
	ModelVersion      string    `gorm:"size:64"                                                    json:"ai_model_version"`
	AIPowered         bool      `gorm:"not null"                                                   json:"ai_powered"`
	FallbackReason    string    `                                                                  json:"fallback_reason,omitempty"`
	CreatedAt         time.Time `                                                                  json:"created_at"`
}

func (FinalEvaluation) TableName() string {
	return "final_evaluation"
}
