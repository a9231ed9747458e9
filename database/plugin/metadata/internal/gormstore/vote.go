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

package gormstore

import (
	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/database/types"
)

// AddVote appends a vote record
func (s *Store) AddVote(vote *models.Vote, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(vote).Error
}

// GetVotes returns the votes cast on a submission in ledger order
func (s *Store) GetVotes(
	tenderID string,
	submissionID string,
	txn types.Txn,
) ([]models.Vote, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Vote
	result := db.Where(
		"tender_id = ? AND submission_id = ?",
		tenderID,
		submissionID,
	).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetVotingStats aggregates the vote ledger per submission. An empty
// submissionID covers every submission of the tender. Submissions without
// votes are absent from the result
func (s *Store) GetVotingStats(
	tenderID string,
	submissionID string,
	txn types.Txn,
) ([]models.VotingStats, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Model(&models.Vote{}).
		Select(
			"submission_id, "+
				"COUNT(*) AS total, "+
				"SUM(CASE WHEN vote_type = ? THEN 1 ELSE 0 END) AS support, "+
				"SUM(CASE WHEN vote_type = ? THEN 1 ELSE 0 END) AS concern, "+
				"COALESCE(SUM(stake), 0) AS total_stake",
			models.VoteTypeSupport,
			models.VoteTypeConcern,
		).
		Where("tender_id = ?", tenderID)
	if submissionID != "" {
		query = query.Where("submission_id = ?", submissionID)
	}
	var ret []models.VotingStats
	result := query.Group("submission_id").
		Order("submission_id").
		Scan(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddComment appends a comment record
func (s *Store) AddComment(comment *models.Comment, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(comment).Error
}

// GetComments returns the comments on a submission, oldest first
func (s *Store) GetComments(
	tenderID string,
	submissionID string,
	txn types.Txn,
) ([]models.Comment, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Comment
	result := db.Where(
		"tender_id = ? AND submission_id = ?",
		tenderID,
		submissionID,
	).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetCommentCounts returns the number of comments per submission
func (s *Store) GetCommentCounts(
	tenderID string,
	txn types.Txn,
) (map[string]uint64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		SubmissionID string
		Count        uint64
	}
	result := db.Model(&models.Comment{}).
		Select("submission_id, COUNT(*) AS count").
		Where("tender_id = ?", tenderID).
		Group("submission_id").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	ret := make(map[string]uint64, len(rows))
	for _, row := range rows {
		ret[row.SubmissionID] = row.Count
	}
	return ret, nil
}
