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

	"gorm.io/gorm"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/database/types"
)

// GetTender returns a tender by ID, or nil if it does not exist
func (s *Store) GetTender(
	tenderID string,
	txn types.Txn,
) (*models.Tender, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.Tender
	result := db.Where("id = ?", tenderID).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// GetTenders returns all tenders ordered by ID
func (s *Store) GetTenders(txn types.Txn) ([]models.Tender, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Tender
	result := db.Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddTender creates a tender. It returns types.ErrRecordExists if the ID is
// taken
func (s *Store) AddTender(tender *models.Tender, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createUnique(db, tender, types.ErrRecordExists)
}

// SetTenderPhase updates the stored phase of a tender
func (s *Store) SetTenderPhase(
	tenderID string,
	phase string,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.Tender{}).
		Where("id = ?", tenderID).
		Update("phase", phase)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrTenderNotFound
	}
	return nil
}

// IncrementTenderSubmissions adds one to the submission counter of a tender
func (s *Store) IncrementTenderSubmissions(
	tenderID string,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.Tender{}).
		Where("id = ?", tenderID).
		Update("total_submissions", gorm.Expr("total_submissions + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrTenderNotFound
	}
	return nil
}

// AddPhaseTransition appends a phase audit record
func (s *Store) AddPhaseTransition(
	transition *models.PhaseTransition,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(transition).Error
}

// GetPhaseTransitions returns the phase audit log of a tender, oldest first
func (s *Store) GetPhaseTransitions(
	tenderID string,
	txn types.Txn,
) ([]models.PhaseTransition, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.PhaseTransition
	result := db.Where("tender_id = ?", tenderID).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddNullifier registers a nullifier token in a namespace. The insert relies
// on the unique index, so two concurrent callers with the same token cannot
// both succeed. It returns types.ErrNullifierUsed on a duplicate
func (s *Store) AddNullifier(
	tenderID string,
	namespace string,
	token string,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createUnique(
		db,
		&models.Nullifier{
			TenderID:  tenderID,
			Namespace: namespace,
			Token:     token,
		},
		types.ErrNullifierUsed,
	)
}
