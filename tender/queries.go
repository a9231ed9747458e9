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

	"github.com/blinklabs-io/zktender/database"
	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/database/types"
)

// Tenders returns every provisioned tender instance
func (e *Engine) Tenders(ctx context.Context) ([]models.Tender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.db.Tenders(nil)
}

// Tender returns one tender instance
func (e *Engine) Tender(ctx context.Context, tenderID string) (*models.Tender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, _, err := e.loadTender(tenderID, nil)
	return t, err
}

// CreateTender provisions a new tender instance. The phase defaults to
// submission
func (e *Engine) CreateTender(
	ctx context.Context,
	spec TenderSpec,
) (*models.Tender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !tenderIDRegexp.MatchString(spec.ID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenderID, spec.ID)
	}
	phase := spec.Phase
	if phase == "" {
		phase = PhaseSubmission
	}
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	name := spec.Name
	if name == "" {
		name = spec.ID
	}
	t := &models.Tender{
		ID:             spec.ID,
		Name:           name,
		Description:    spec.Description,
		Phase:          string(phase),
		SubmissionDate: spec.SubmissionDate,
		RevealDate:     spec.RevealDate,
		VotingDate:     spec.VotingDate,
		FinalDate:      spec.FinalDate,
	}
	err := e.update(spec.ID, func(txn *database.Txn) error {
		if err := e.db.AddTender(t, txn); err != nil {
			if errors.Is(err, types.ErrRecordExists) {
				return ErrTenderExists
			}
			return fmt.Errorf("add tender: %w", err)
		}
		return nil
	})
	e.metrics.observe("create_tender", err)
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"tender created",
		"tender_id", t.ID,
		"phase", t.Phase,
	)
	return t, nil
}

// PublicState returns the public view of a tender instance
func (e *Engine) PublicState(
	ctx context.Context,
	tenderID string,
) (*PublicState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := e.db.Transaction(false)
	defer txn.Release()
	t, phase, err := e.loadTender(tenderID, txn)
	if err != nil {
		return nil, err
	}
	commitments, err := e.db.Commitments(tenderID, txn)
	if err != nil {
		return nil, fmt.Errorf("load commitments: %w", err)
	}
	commentCounts, err := e.db.CommentCounts(tenderID, txn)
	if err != nil {
		return nil, fmt.Errorf("load comment counts: %w", err)
	}
	ret := &PublicState{
		TenderID:          t.ID,
		Name:              t.Name,
		Description:       t.Description,
		Phase:             phase,
		Status:            phase.Label(),
		SubmissionDate:    t.SubmissionDate,
		RevealDate:        t.RevealDate,
		VotingDate:        t.VotingDate,
		FinalDate:         t.FinalDate,
		TotalSubmissions:  t.TotalSubmissions,
		Commitments:       make([]CommitmentSummary, 0, len(commitments)),
		RevealedProposals: []models.RevealedProposal{},
	}
	for _, c := range commitments {
		ret.Commitments = append(ret.Commitments, CommitmentSummary{
			SubmissionID:  c.SubmissionID,
			DigestPreview: digestPreview(c.Digest),
			SubmittedAt:   c.SubmittedAt,
			Status:        c.Status,
			Comments:      commentCounts[c.SubmissionID],
		})
	}
	if phase != PhaseSubmission {
		revealed, err := e.db.RevealedProposals(tenderID, txn)
		if err != nil {
			return nil, fmt.Errorf("load revealed proposals: %w", err)
		}
		ret.RevealedProposals = append(ret.RevealedProposals, revealed...)
	}
	return ret, nil
}

// VotingStats tallies votes per submission. An empty submissionID covers
// every submission of the tender, including those without votes
func (e *Engine) VotingStats(
	ctx context.Context,
	tenderID string,
	submissionID string,
) ([]SubmissionStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := e.db.Transaction(false)
	defer txn.Release()
	if _, _, err := e.loadTender(tenderID, txn); err != nil {
		return nil, err
	}
	var submissionIDs []string
	if submissionID != "" {
		if _, err := e.loadCommitment(tenderID, submissionID, txn); err != nil {
			return nil, err
		}
		submissionIDs = []string{submissionID}
	} else {
		commitments, err := e.db.Commitments(tenderID, txn)
		if err != nil {
			return nil, fmt.Errorf("load commitments: %w", err)
		}
		for _, c := range commitments {
			submissionIDs = append(submissionIDs, c.SubmissionID)
		}
	}
	rows, err := e.db.VotingStats(tenderID, submissionID, txn)
	if err != nil {
		return nil, fmt.Errorf("load voting stats: %w", err)
	}
	commentCounts, err := e.db.CommentCounts(tenderID, txn)
	if err != nil {
		return nil, fmt.Errorf("load comment counts: %w", err)
	}
	bySubmission := make(map[string]models.VotingStats, len(rows))
	for _, row := range rows {
		bySubmission[row.SubmissionID] = row
	}
	ret := make([]SubmissionStats, 0, len(submissionIDs))
	for _, id := range submissionIDs {
		ret = append(
			ret,
			newSubmissionStats(id, bySubmission[id], commentCounts[id]),
		)
	}
	return ret, nil
}

func newSubmissionStats(
	submissionID string,
	row models.VotingStats,
	comments uint64,
) SubmissionStats {
	ret := SubmissionStats{
		SubmissionID: submissionID,
		Total:        row.Total,
		Support:      row.Support,
		Concern:      row.Concern,
		TotalStake:   row.TotalStake,
		Comments:     comments,
	}
	if row.Total > 0 {
		ret.FlagRate = float64(row.Concern) / float64(row.Total)
		ret.SupportRate = float64(row.Support) / float64(row.Total)
	}
	return ret
}

// Comments returns the comments on a submission, oldest first
func (e *Engine) Comments(
	ctx context.Context,
	tenderID string,
	submissionID string,
) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := e.loadTender(tenderID, nil); err != nil {
		return nil, err
	}
	if _, err := e.loadCommitment(tenderID, submissionID, nil); err != nil {
		return nil, err
	}
	return e.db.Comments(tenderID, submissionID, nil)
}

// Evaluations returns every pre-vote evaluation of a tender
func (e *Engine) Evaluations(
	ctx context.Context,
	tenderID string,
) ([]models.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := e.loadTender(tenderID, nil); err != nil {
		return nil, err
	}
	return e.db.Evaluations(tenderID, nil)
}

// FinalEvaluations returns every final evaluation of a tender
func (e *Engine) FinalEvaluations(
	ctx context.Context,
	tenderID string,
) ([]models.FinalEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := e.loadTender(tenderID, nil); err != nil {
		return nil, err
	}
	return e.db.FinalEvaluations(tenderID, nil)
}

// PhaseHistory returns the audited phase transitions of a tender, oldest
// first
func (e *Engine) PhaseHistory(
	ctx context.Context,
	tenderID string,
) ([]models.PhaseTransition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := e.loadTender(tenderID, nil); err != nil {
		return nil, err
	}
	return e.db.PhaseTransitions(tenderID, nil)
}

// Payload returns the sealed payload stored with a commitment
func (e *Engine) Payload(
	ctx context.Context,
	tenderID string,
	submissionID string,
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commitment, err := e.loadCommitment(tenderID, submissionID, nil)
	if err != nil {
		return nil, err
	}
	return e.db.Payload(commitment, nil)
}
