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
	"github.com/blinklabs-io/zktender/database/types"
)

func (t *Txn) metadata() types.Txn {
	if t == nil {
		return nil
	}
	return t.metadataTxn
}

// Tender returns the tender with the given ID, or nil if it does not exist
func (d *Database) Tender(tenderID string, txn *Txn) (*models.Tender, error) {
	return d.metadata.GetTender(tenderID, txn.metadata())
}

// Tenders returns all tender instances ordered by ID
func (d *Database) Tenders(txn *Txn) ([]models.Tender, error) {
	return d.metadata.GetTenders(txn.metadata())
}

// AddTender creates a tender instance. It returns types.ErrRecordExists if
// the ID is taken
func (d *Database) AddTender(tender *models.Tender, txn *Txn) error {
	return d.metadata.AddTender(tender, txn.metadata())
}

func (d *Database) SetTenderPhase(tenderID string, phase string, txn *Txn) error {
	return d.metadata.SetTenderPhase(tenderID, phase, txn.metadata())
}

func (d *Database) IncrementTenderSubmissions(tenderID string, txn *Txn) error {
	return d.metadata.IncrementTenderSubmissions(tenderID, txn.metadata())
}

func (d *Database) AddPhaseTransition(
	transition *models.PhaseTransition,
	txn *Txn,
) error {
	return d.metadata.AddPhaseTransition(transition, txn.metadata())
}

// PhaseTransitions returns the audit log of phase changes for a tender,
// oldest first
func (d *Database) PhaseTransitions(
	tenderID string,
	txn *Txn,
) ([]models.PhaseTransition, error) {
	return d.metadata.GetPhaseTransitions(tenderID, txn.metadata())
}

// RegisterNullifier records a nullifier token in a namespace. It returns
// types.ErrNullifierUsed if the token was already registered
func (d *Database) RegisterNullifier(
	tenderID string,
	namespace string,
	token string,
	txn *Txn,
) error {
	return d.metadata.AddNullifier(tenderID, namespace, token, txn.metadata())
}
