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

func (d *Database) AddEvaluation(evaluation *models.Evaluation, txn *Txn) error {
	return d.metadata.AddEvaluation(evaluation, txn.metadata())
}

// Evaluations returns the preliminary evaluations for a tender, newest first
func (d *Database) Evaluations(
	tenderID string,
	txn *Txn,
) ([]models.Evaluation, error) {
	return d.metadata.GetEvaluations(tenderID, txn.metadata())
}

// AddFinalEvaluation stores the final evaluation for a submission. It returns
// types.ErrRecordExists if one was already stored
func (d *Database) AddFinalEvaluation(
	evaluation *models.FinalEvaluation,
	txn *Txn,
) error {
	return d.metadata.AddFinalEvaluation(evaluation, txn.metadata())
}

func (d *Database) FinalEvaluation(
	tenderID string,
	submissionID string,
	txn *Txn,
) (*models.FinalEvaluation, error) {
	return d.metadata.GetFinalEvaluation(tenderID, submissionID, txn.metadata())
}

func (d *Database) FinalEvaluations(
	tenderID string,
	txn *Txn,
) ([]models.FinalEvaluation, error) {
	return d.metadata.GetFinalEvaluations(tenderID, txn.metadata())
}
