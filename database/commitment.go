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
	"time"

	"github.com/blinklabs-io/zktender/database/models"
)

func (d *Database) AddCommitment(commitment *models.Commitment, txn *Txn) error {
	return d.metadata.AddCommitment(commitment, txn.metadata())
}

// Commitment returns the commitment for a submission, or nil if there is none
func (d *Database) Commitment(
	tenderID string,
	submissionID string,
	txn *Txn,
) (*models.Commitment, error) {
	return d.metadata.GetCommitment(tenderID, submissionID, txn.metadata())
}

// Commitments returns all commitments for a tender in submission order
func (d *Database) Commitments(
	tenderID string,
	txn *Txn,
) ([]models.Commitment, error) {
	return d.metadata.GetCommitments(tenderID, txn.metadata())
}

// AdvanceCommitmentStatus moves a commitment from one status to the next. It
// returns types.ErrStatusConflict if the commitment is not in fromStatus
func (d *Database) AdvanceCommitmentStatus(
	tenderID string,
	submissionID string,
	fromStatus string,
	toStatus string,
	revealedAt *time.Time,
	txn *Txn,
) error {
	return d.metadata.SetCommitmentStatus(
		tenderID,
		submissionID,
		fromStatus,
		toStatus,
		revealedAt,
		txn.metadata(),
	)
}

func (d *Database) AddRevealedProposal(
	proposal *models.RevealedProposal,
	txn *Txn,
) error {
	return d.metadata.AddRevealedProposal(proposal, txn.metadata())
}

// RevealedProposal returns the disclosed proposal for a submission, or nil
// if it has not been revealed
func (d *Database) RevealedProposal(
	tenderID string,
	submissionID string,
	txn *Txn,
) (*models.RevealedProposal, error) {
	return d.metadata.GetRevealedProposal(tenderID, submissionID, txn.metadata())
}

func (d *Database) RevealedProposals(
	tenderID string,
	txn *Txn,
) ([]models.RevealedProposal, error) {
	return d.metadata.GetRevealedProposals(tenderID, txn.metadata())
}
