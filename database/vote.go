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

package database

import (
	"github.com/blinklabs-io/zktender/database/models"
)

func (d *Database) AddVote(vote *models.Vote, txn *Txn) error {
	return d.metadata.AddVote(vote, txn.metadata())
}

func (d *Database) Votes(
	tenderID string,
	submissionID string,
	txn *Txn,
) ([]models.Vote, error) {
	return d.metadata.GetVotes(tenderID, submissionID, txn.metadata())
}

// VotingStats aggregates votes per submission. An empty submissionID returns
// stats for every submission with at least one vote
func (d *Database) VotingStats(
	tenderID string,
	submissionID string,
	txn *Txn,
) ([]models.VotingStats, error) {
	return d.metadata.GetVotingStats(tenderID, submissionID, txn.metadata())
}

func (d *Database) AddComment(comment *models.Comment, txn *Txn) error {
	return d.metadata.AddComment(comment, txn.metadata())
}

func (d *Database) Comments(
	tenderID string,
	submissionID string,
	txn *Txn,
) ([]models.Comment, error) {
	return d.metadata.GetComments(tenderID, submissionID, txn.metadata())
}

// CommentCounts returns the number of comments per submission
func (d *Database) CommentCounts(
	tenderID string,
	txn *Txn,
) (map[string]uint64, error) {
	return d.metadata.GetCommentCounts(tenderID, txn.metadata())
}
