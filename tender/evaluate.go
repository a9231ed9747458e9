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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/zktender/database"
	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/database/types"
	"github.com/blinklabs-io/zktender/oracle"
)

// proposalFor builds the oracle view of a submission. Company details are
// only included when full disclosure is requested
func (e *Engine) proposalFor(
	tenderID string,
	commitment *models.Commitment,
	fullDisclosure bool,
) (oracle.Proposal, error) {
	ret := oracle.Proposal{
		SubmissionID: commitment.SubmissionID,
		SubmittedAt:  commitment.SubmittedAt,
	}
	revealed, err := e.db.RevealedProposal(tenderID, commitment.SubmissionID, nil)
	if err != nil {
		return ret, fmt.Errorf("load revealed proposal: %w", err)
	}
	if revealed == nil {
		return ret, nil
	}
	ret.Revealed = true
	ret.ProjectTitle = revealed.ProjectTitle
	ret.Budget = revealed.Budget
	ret.FeasibilityScore = revealed.FeasibilityScore
	ret.InnovationScore = revealed.InnovationScore
	if fullDisclosure {
		ret.CompanyName = revealed.CompanyName
		ret.Location = revealed.Location
	}
	return ret, nil
}

// Evaluate scores a submission with the oracle and stores the result. Each
// call appends a new evaluation
func (e *Engine) Evaluate(
	ctx context.Context,
	tenderID string,
	submissionID string,
) (*models.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := e.loadTender(tenderID, nil); err != nil {
		return nil, err
	}
	commitment, err := e.loadCommitment(tenderID, submissionID, nil)
	if err != nil {
		return nil, err
	}
	proposal, err := e.proposalFor(tenderID, commitment, false)
	if err != nil {
		return nil, err
	}
	// No lock or transaction is held while the oracle runs
	start := time.Now()
	result := e.config.Oracle.Evaluate(ctx, proposal)
	e.metrics.oracleLatency.WithLabelValues("evaluate").
		Observe(time.Since(start).Seconds())
	if !result.AIPowered {
		e.metrics.oracleFallbacks.WithLabelValues("evaluate").Inc()
	}
	evaluation := &models.Evaluation{
		TenderID:       tenderID,
		SubmissionID:   submissionID,
		Score:          result.Score,
		Strengths:      types.StringList(result.Strengths),
		Weaknesses:     types.StringList(result.Weaknesses),
		Summary:        result.Summary,
		AIPowered:      result.AIPowered,
		Model:          result.Model,
		FallbackReason: result.FallbackReason,
		CreatedAt:      e.config.Now(),
	}
	err = e.update(tenderID, func(txn *database.Txn) error {
		if err := e.db.AddEvaluation(evaluation, txn); err != nil {
			return fmt.Errorf("add evaluation: %w", err)
		}
		return nil
	})
	e.metrics.observe("evaluate", err)
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"proposal evaluated",
		"tender_id", tenderID,
		"submission_id", submissionID,
		"score", evaluation.Score,
		"ai_powered", evaluation.AIPowered,
	)
	e.publish(EvaluatedEventType, EvaluatedEvent{
		TenderID:     tenderID,
		SubmissionID: submissionID,
		Score:        evaluation.Score,
		AIPowered:    evaluation.AIPowered,
	})
	return evaluation, nil
}

// FinalEvaluate produces the post-vote recommendation for a submission. A
// submission can only be finally evaluated once
func (e *Engine) FinalEvaluate(
	ctx context.Context,
	tenderID string,
	submissionID string,
) (*models.FinalEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := e.loadTender(tenderID, nil); err != nil {
		return nil, err
	}
	commitment, err := e.loadCommitment(tenderID, submissionID, nil)
	if err != nil {
		return nil, err
	}
	existing, err := e.db.FinalEvaluation(tenderID, submissionID, nil)
	if err != nil {
		return nil, fmt.Errorf("load final evaluation: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyEvaluated
	}
	proposal, err := e.proposalFor(tenderID, commitment, true)
	if err != nil {
		return nil, err
	}
	rows, err := e.db.VotingStats(tenderID, submissionID, nil)
	if err != nil {
		return nil, fmt.Errorf("load voting stats: %w", err)
	}
	var stats oracle.Stats
	if len(rows) > 0 {
		stats = oracle.Stats{
			Total:   rows[0].Total,
			Support: rows[0].Support,
			Concern: rows[0].Concern,
		}
	}
	// No lock or transaction is held while the oracle runs
	start := time.Now()
	result := e.config.Oracle.FinalEvaluate(ctx, proposal, stats)
	e.metrics.oracleLatency.WithLabelValues("final").
		Observe(time.Since(start).Seconds())
	if !result.AIPowered {
		e.metrics.oracleFallbacks.WithLabelValues("final").Inc()
	}
	evaluation := &models.FinalEvaluation{
		TenderID:          tenderID,
		SubmissionID:      submissionID,
		FinalScore:        result.FinalScore,
		RiskAssessment:    result.RiskAssessment,
		BiasDetection:     result.BiasDetection,
		LegalCompliance:   result.LegalCompliance,
		PublicVoteImpact:  result.PublicVoteImpact,
		Recommendation:    result.Recommendation,
		Confidence:        result.Confidence,
		AuditTrigger:      result.AuditTrigger,
		Summary:           result.Summary,
		TotalVotes:        result.TotalVotes,
		FlagRate:          result.FlagRate,
		PublicSupportRate: result.SupportRate,
		ModelVersion:      result.ModelVersion,
		AIPowered:         result.AIPowered,
		FallbackReason:    result.FallbackReason,
		CreatedAt:         e.config.Now(),
	}
	err = e.update(tenderID, func(txn *database.Txn) error {
		if err := e.db.AddFinalEvaluation(evaluation, txn); err != nil {
			if errors.Is(err, types.ErrRecordExists) {
				return ErrAlreadyEvaluated
			}
			return fmt.Errorf("add final evaluation: %w", err)
		}
		err := e.db.AdvanceCommitmentStatus(
			tenderID,
			submissionID,
			models.CommitmentStatusRevealed,
			models.CommitmentStatusEvaluated,
			nil,
			txn,
		)
		// Unrevealed submissions keep their status
		if err != nil && !errors.Is(err, types.ErrStatusConflict) {
			return fmt.Errorf("advance commitment status: %w", err)
		}
		return nil
	})
	e.metrics.observe("final_evaluate", err)
	if err != nil {
		return nil, err
	}
	logFn := e.logger.Info
	if evaluation.AuditTrigger {
		logFn = e.logger.Warn
	}
	logFn(
		"final evaluation stored",
		"tender_id", tenderID,
		"submission_id", submissionID,
		"final_score", evaluation.FinalScore,
		"recommendation", evaluation.Recommendation,
		"audit_trigger", evaluation.AuditTrigger,
		"ai_powered", evaluation.AIPowered,
	)
	e.publish(EvaluatedEventType, EvaluatedEvent{
		TenderID:     tenderID,
		SubmissionID: submissionID,
		Final:        true,
		Score:        evaluation.FinalScore,
		AIPowered:    evaluation.AIPowered,
	})
	return evaluation, nil
}
