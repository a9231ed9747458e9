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
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/database/types"
)

// AddCommitment stores a new commitment. It returns types.ErrRecordExists if
// the submission ID or nullifier is already present for the tender
func (s *Store) AddCommitment(
	commitment *models.Commitment,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createUnique(db, commitment, types.ErrRecordExists)
}

// GetCommitment returns a commitment, or nil if it does not exist
func (s *Store) GetCommitment(
	tenderID string,
	submissionID string,
	txn types.Txn,
) (*models.Commitment, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.Commitment
	result := db.Where(
		"tender_id = ? AND submission_id = ?",
		tenderID,
		submissionID,
	).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// GetCommitments returns all commitments for a tender in submission order
func (s *Store) GetCommitments(
	tenderID string,
	txn types.Txn,
) ([]models.Commitment, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Commitment
	result := db.Where("tender_id = ?", tenderID).
		Order("submitted_at, id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetCommitmentStatus moves a commitment from one status to another. The
// update only applies while the current status equals fromStatus, and
// returns types.ErrStatusConflict otherwise
func (s *Store) SetCommitmentStatus(
	tenderID string,
	submissionID string,
	fromStatus string,
	toStatus string,
	revealedAt *time.Time,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"status": toStatus,
	}
	if revealedAt != nil {
		updates["revealed_at"] = *revealedAt
	}
	result := db.Model(&models.Commitment{}).
		Where(
			"tender_id = ? AND submission_id = ? AND status = ?",
			tenderID,
			submissionID,
			fromStatus,
		).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrStatusConflict
	}
	return nil
}

// AddRevealedProposal stores the disclosed proposal for a submission. It
// returns types.ErrRecordExists if one is already stored
func (s *Store) AddRevealedProposal(
	proposal *models.RevealedProposal,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createUnique(db, proposal, types.ErrRecordExists)
}

// GetRevealedProposal returns a revealed proposal, or nil if it does not exist
func (s *Store) GetRevealedProposal(
	tenderID string,
	submissionID string,
	txn types.Txn,
) (*models.RevealedProposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.RevealedProposal
	result := db.Where(
		"tender_id = ? AND submission_id = ?",
		tenderID,
		submissionID,
	).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// GetRevealedProposals returns all revealed proposals for a tender
func (s *Store) GetRevealedProposals(
	tenderID string,
	txn types.Txn,
) ([]models.RevealedProposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.RevealedProposal
	result := db.Where("tender_id = ?", tenderID).
		Order("revealed_at, id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
