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
	"context"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/tender"
)

// TenderEngine is the interface that the API server uses to drive tender
// instances. It is satisfied by *tender.Engine and decouples the HTTP layer
// for testing
type TenderEngine interface {
	Tenders(ctx context.Context) ([]models.Tender, error)
	Tender(ctx context.Context, tenderID string) (*models.Tender, error)
	PublicState(ctx context.Context, tenderID string) (*tender.PublicState, error)
	PhaseHistory(ctx context.Context, tenderID string) ([]models.PhaseTransition, error)
	AdvancePhase(ctx context.Context, tenderID string, target string, reason string) (tender.Phase, error)

	Commit(ctx context.Context, tenderID string, req tender.CommitRequest) (string, error)
	Reveal(ctx context.Context, tenderID string, submissionID string, proof string, disclosure tender.Disclosure) error
	Payload(ctx context.Context, tenderID string, submissionID string) ([]byte, error)

	Vote(ctx context.Context, tenderID string, req tender.VoteRequest) (uint, error)
	Comment(ctx context.Context, tenderID string, req tender.CommentRequest) (uint, error)
	Comments(ctx context.Context, tenderID string, submissionID string) ([]models.Comment, error)
	VotingStats(ctx context.Context, tenderID string, submissionID string) ([]tender.SubmissionStats, error)

	Evaluate(ctx context.Context, tenderID string, submissionID string) (*models.Evaluation, error)
	FinalEvaluate(ctx context.Context, tenderID string, submissionID string) (*models.FinalEvaluation, error)
	Evaluations(ctx context.Context, tenderID string) ([]models.Evaluation, error)
	FinalEvaluations(ctx context.Context, tenderID string) ([]models.FinalEvaluation, error)
}

var _ TenderEngine = (*tender.Engine)(nil)
