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

// AddEvaluation appends a pre-vote evaluation
func (s *Store) AddEvaluation(
	evaluation *models.Evaluation,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(evaluation).Error
}

// GetEvaluations returns all pre-vote evaluations for a tender, newest first
func (s *Store) GetEvaluations(
	tenderID string,
	txn types.Txn,
) ([]models.Evaluation, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Evaluation
	result := db.Where("tender_id = ?", tenderID).
		Order("created_at DESC, id DESC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddFinalEvaluation stores the final evaluation of a submission. It returns
// types.ErrRecordExists if one is already stored
func (s *Store) AddFinalEvaluation(
	evaluation *models.FinalEvaluation,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return createUnique(db, evaluation, types.ErrRecordExists)
}

// GetFinalEvaluation returns the final evaluation of a submission, or nil
func (s *Store) GetFinalEvaluation(
	tenderID string,
	submissionID string,
	txn types.Txn,
) (*models.FinalEvaluation, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.FinalEvaluation
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

// GetFinalEvaluations returns all final evaluations for a tender, newest first
func (s *Store) GetFinalEvaluations(
	tenderID string,
	txn types.Txn,
) ([]models.FinalEvaluation, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.FinalEvaluation
	result := db.Where("tender_id = ?", tenderID).
		Order("created_at DESC, id DESC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
