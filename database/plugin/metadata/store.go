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

package metadata

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/database/plugin"
	"github.com/blinklabs-io/zktender/database/types"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(types.Txn, int64) error
	Transaction() types.Txn

	// Tenders
	GetTender(string, types.Txn) (*models.Tender, error)
	GetTenders(types.Txn) ([]models.Tender, error)
	AddTender(*models.Tender, types.Txn) error
	SetTenderPhase(
		string, // tenderID
		string, // phase
		types.Txn,
	) error
	IncrementTenderSubmissions(string, types.Txn) error
	AddPhaseTransition(*models.PhaseTransition, types.Txn) error
	GetPhaseTransitions(string, types.Txn) ([]models.PhaseTransition, error)

	// Nullifiers
	AddNullifier(
		string, // tenderID
		string, // namespace
		string, // token
		types.Txn,
	) error

	// Commitments and reveals
	AddCommitment(*models.Commitment, types.Txn) error
	GetCommitment(
		string, // tenderID
		string, // submissionID
		types.Txn,
	) (*models.Commitment, error)
	GetCommitments(string, types.Txn) ([]models.Commitment, error)
	SetCommitmentStatus(
		string, // tenderID
		string, // submissionID
		string, // fromStatus
		string, // toStatus
		*time.Time, // revealedAt
		types.Txn,
	) error
	AddRevealedProposal(*models.RevealedProposal, types.Txn) error
	GetRevealedProposal(
		string, // tenderID
		string, // submissionID
		types.Txn,
	) (*models.RevealedProposal, error)
	GetRevealedProposals(string, types.Txn) ([]models.RevealedProposal, error)

	// Votes and comments
	AddVote(*models.Vote, types.Txn) error
	GetVotes(
		string, // tenderID
		string, // submissionID
		types.Txn,
	) ([]models.Vote, error)
	GetVotingStats(
		string, // tenderID
		string, // submissionID, empty for all
		types.Txn,
	) ([]models.VotingStats, error)
	AddComment(*models.Comment, types.Txn) error
	GetComments(
		string, // tenderID
		string, // submissionID
		types.Txn,
	) ([]models.Comment, error)
	GetCommentCounts(string, types.Txn) (map[string]uint64, error)

	// Evaluations
	AddEvaluation(*models.Evaluation, types.Txn) error
	GetEvaluations(string, types.Txn) ([]models.Evaluation, error)
	AddFinalEvaluation(*models.FinalEvaluation, types.Txn) error
	GetFinalEvaluation(
		string, // tenderID
		string, // submissionID
		types.Txn,
	) (*models.FinalEvaluation, error)
	GetFinalEvaluations(string, types.Txn) ([]models.FinalEvaluation, error)
}

// observable is implemented by metadata plugins that accept a logger and
// metrics registry before Start
type observable interface {
	SetLogger(*slog.Logger)
	SetPromRegistry(prometheus.Registerer)
}

// New returns the started metadata plugin selected by name. An empty dataDir
// selects in-memory storage for plugins that support it
func New(
	pluginName string,
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	if err := plugin.SetPluginOption(
		plugin.PluginTypeMetadata,
		pluginName,
		"data-dir",
		dataDir,
	); err != nil {
		return nil, err
	}
	p := plugin.GetPlugin(plugin.PluginTypeMetadata, pluginName)
	if p == nil {
		return nil, fmt.Errorf("metadata plugin '%s' not found", pluginName)
	}
	if o, ok := p.(observable); ok {
		o.SetLogger(logger)
		o.SetPromRegistry(promRegistry)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start metadata plugin '%s': %w",
			pluginName,
			err,
		)
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
