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

// Package tender implements the commitment, reveal and voting lifecycle of
// public tender instances on top of the database layer.
package tender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/zktender/database"
	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/database/types"
	"github.com/blinklabs-io/zktender/event"
	"github.com/blinklabs-io/zktender/oracle"
	"github.com/blinklabs-io/zktender/zkcrypto"
)

const (
	DefaultVoteStake    = 1.0
	DefaultCommentStake = 0.5
)

var tenderIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type EngineConfig struct {
	Database     *database.Database
	Oracle       *oracle.Adapter
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Crypto       zkcrypto.Suite
	VoteStake    float64
	CommentStake float64
	// Clock override for tests
	Now func() time.Time
}

// Engine runs every tender instance stored in one database
type Engine struct {
	config  EngineConfig
	db      *database.Database
	logger  *slog.Logger
	metrics engineMetrics
	locksMu sync.Mutex
	locks   map[string]*tenderLock
}

// tenderLock serializes writes to one tender. Entries are dropped once no
// caller holds or waits on them
type tenderLock struct {
	sync.Mutex
	refs int
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Crypto == nil {
		cfg.Crypto = zkcrypto.NewMiMC()
	}
	if cfg.Oracle == nil {
		cfg.Oracle = oracle.NewAdapter(nil, oracle.WithLogger(cfg.Logger))
	}
	if cfg.VoteStake <= 0 {
		cfg.VoteStake = DefaultVoteStake
	}
	if cfg.CommentStake <= 0 {
		cfg.CommentStake = DefaultCommentStake
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	e := &Engine{
		config: cfg,
		db:     cfg.Database,
		logger: cfg.Logger.With("component", "tender"),
		locks:  make(map[string]*tenderLock),
	}
	e.metrics.init(cfg.PromRegistry)
	return e, nil
}

// lockTender acquires the write lock for a tender and returns its release
func (e *Engine) lockTender(tenderID string) func() {
	e.locksMu.Lock()
	l, ok := e.locks[tenderID]
	if !ok {
		l = &tenderLock{}
		e.locks[tenderID] = l
	}
	l.refs++
	e.locksMu.Unlock()
	l.Lock()
	return func() {
		l.Unlock()
		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, tenderID)
		}
		e.locksMu.Unlock()
	}
}

// update runs fn in a read-write transaction while holding the tender lock
func (e *Engine) update(tenderID string, fn func(*database.Txn) error) error {
	defer e.lockTender(tenderID)()
	return e.db.Transaction(true).Do(fn)
}

// loadTender reads the tender and its phase. This is the single phase read
// for an operation
func (e *Engine) loadTender(
	tenderID string,
	txn *database.Txn,
) (*models.Tender, Phase, error) {
	t, err := e.db.Tender(tenderID, txn)
	if err != nil {
		return nil, "", fmt.Errorf("load tender: %w", err)
	}
	if t == nil {
		return nil, "", ErrTenderNotFound
	}
	return t, Phase(t.Phase), nil
}

func (e *Engine) loadCommitment(
	tenderID string,
	submissionID string,
	txn *database.Txn,
) (*models.Commitment, error) {
	c, err := e.db.Commitment(tenderID, submissionID, txn)
	if err != nil {
		return nil, fmt.Errorf("load commitment: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (e *Engine) registerNullifier(
	tenderID string,
	namespace string,
	token string,
	txn *database.Txn,
) error {
	if err := e.db.RegisterNullifier(tenderID, namespace, token, txn); err != nil {
		if errors.Is(err, types.ErrNullifierUsed) {
			e.metrics.nullifierRejections.WithLabelValues(namespace).Inc()
			return ErrDuplicateNullifier
		}
		return fmt.Errorf("register nullifier: %w", err)
	}
	return nil
}

func newSubmissionID(now time.Time) string {
	return fmt.Sprintf(
		"SUB-%d-%s",
		now.UnixMilli(),
		uuid.NewString()[:8],
	)
}

// Commit stores a sealed proposal and returns its submission ID
func (e *Engine) Commit(
	ctx context.Context,
	tenderID string,
	req CommitRequest,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Nullifier == "" {
		return "", ErrEmptyNullifier
	}
	digest := req.Digest
	if digest == "" {
		d, err := e.config.Crypto.ComputeCommitment(
			zkcrypto.TokenBytes(req.Nullifier),
			req.Payload,
			[]byte(tenderID),
		)
		if err != nil {
			return "", fmt.Errorf("compute commitment: %w", err)
		}
		digest = zkcrypto.EncodeHex(d)
	}
	now := e.config.Now()
	submissionID := newSubmissionID(now)
	err := e.update(tenderID, func(txn *database.Txn) error {
		_, phase, err := e.loadTender(tenderID, txn)
		if err != nil {
			return err
		}
		if err := checkPhase(OpCommit, phase); err != nil {
			return err
		}
		if err := e.registerNullifier(
			tenderID,
			models.NullifierNamespaceCommit,
			req.Nullifier,
			txn,
		); err != nil {
			return err
		}
		commitment := &models.Commitment{
			TenderID:     tenderID,
			SubmissionID: submissionID,
			Digest:       digest,
			Nullifier:    req.Nullifier,
			SubmitterRef: req.SubmitterRef,
			Status:       models.CommitmentStatusCommitted,
			SubmittedAt:  now,
		}
		if len(req.Payload) > 0 {
			ref, err := e.db.SetPayload(tenderID, submissionID, req.Payload, txn)
			if err != nil {
				return fmt.Errorf("store payload: %w", err)
			}
			commitment.PayloadKey = ref.Key
			commitment.PayloadSize = ref.Size
			commitment.PayloadEncrypted = ref.Encrypted
		}
		if err := e.db.AddCommitment(commitment, txn); err != nil {
			if errors.Is(err, types.ErrRecordExists) {
				return ErrDuplicateNullifier
			}
			return fmt.Errorf("add commitment: %w", err)
		}
		return e.db.IncrementTenderSubmissions(tenderID, txn)
	})
	e.metrics.observe(OpCommit, err)
	if err != nil {
		return "", err
	}
	e.logger.Info(
		"proposal committed",
		"tender_id", tenderID,
		"submission_id", submissionID,
		"digest", digestPreview(digest),
	)
	e.publish(CommittedEventType, CommittedEvent{
		TenderID:     tenderID,
		SubmissionID: submissionID,
		Digest:       digest,
	})
	return submissionID, nil
}

// Reveal discloses a committed proposal
func (e *Engine) Reveal(
	ctx context.Context,
	tenderID string,
	submissionID string,
	proof string,
	disclosure Disclosure,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := e.config.Now()
	err := e.update(tenderID, func(txn *database.Txn) error {
		_, phase, err := e.loadTender(tenderID, txn)
		if err != nil {
			return err
		}
		if err := checkPhase(OpReveal, phase); err != nil {
			return err
		}
		commitment, err := e.loadCommitment(tenderID, submissionID, txn)
		if err != nil {
			return err
		}
		if commitment.Status != models.CommitmentStatusCommitted {
			return ErrAlreadyRevealed
		}
		if err := e.verifyProof(commitment, proof, disclosure); err != nil {
			return err
		}
		proposal := &models.RevealedProposal{
			TenderID:               tenderID,
			SubmissionID:           submissionID,
			CompanyName:            disclosure.CompanyName,
			ProjectTitle:           disclosure.ProjectTitle,
			Location:               disclosure.Location,
			Budget:                 disclosure.Budget,
			FeasibilityScore:       disclosure.FeasibilityScore,
			InnovationScore:        disclosure.InnovationScore,
			PlannedStartDate:       disclosure.PlannedStartDate,
			PlannedEndDate:         disclosure.PlannedEndDate,
			MaterialPlan:           disclosure.MaterialPlan,
			ConstructionPlan:       disclosure.ConstructionPlan,
			SustainabilityMeasures: disclosure.SustainabilityMeasures,
			CommunityEngagement:    disclosure.CommunityEngagement,
			PastProjects:           disclosure.PastProjects,
			AttachmentURLs:         types.StringList(disclosure.AttachmentURLs),
			RevealProof:            proof,
			RevealedAt:             now,
		}
		if err := e.db.AddRevealedProposal(proposal, txn); err != nil {
			if errors.Is(err, types.ErrRecordExists) {
				return ErrAlreadyRevealed
			}
			return fmt.Errorf("add revealed proposal: %w", err)
		}
		if err := e.db.AdvanceCommitmentStatus(
			tenderID,
			submissionID,
			models.CommitmentStatusCommitted,
			models.CommitmentStatusRevealed,
			&now,
			txn,
		); err != nil {
			if errors.Is(err, types.ErrStatusConflict) {
				return ErrAlreadyRevealed
			}
			return fmt.Errorf("advance commitment status: %w", err)
		}
		return nil
	})
	e.metrics.observe(OpReveal, err)
	if err != nil {
		return err
	}
	e.logger.Info(
		"proposal revealed",
		"tender_id", tenderID,
		"submission_id", submissionID,
	)
	e.publish(RevealedEventType, RevealedEvent{
		TenderID:     tenderID,
		SubmissionID: submissionID,
	})
	return nil
}

func (e *Engine) verifyProof(
	commitment *models.Commitment,
	proof string,
	disclosure Disclosure,
) error {
	disclosureBytes, err := json.Marshal(disclosure)
	if err != nil {
		return fmt.Errorf("encode disclosure: %w", err)
	}
	if err := e.config.Crypto.VerifyProof(
		zkcrypto.TokenBytes(commitment.Digest),
		zkcrypto.TokenBytes(proof),
		disclosureBytes,
	); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	return nil
}

// Vote records a public vote and returns its ID. Votes on submissions that
// are not yet revealed are accepted and marked as such
func (e *Engine) Vote(
	ctx context.Context,
	tenderID string,
	req VoteRequest,
) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if req.Nullifier == "" {
		return 0, ErrEmptyNullifier
	}
	if req.Type != models.VoteTypeSupport && req.Type != models.VoteTypeConcern {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVoteType, req.Type)
	}
	stake, err := e.stake(req.Stake, e.config.VoteStake)
	if err != nil {
		return 0, err
	}
	vote := &models.Vote{
		TenderID:        tenderID,
		SubmissionID:    req.SubmissionID,
		CommitmentToken: req.CommitmentToken,
		Nullifier:       req.Nullifier,
		VoteType:        req.Type,
		Stake:           stake,
		CreatedAt:       e.config.Now(),
	}
	err = e.update(tenderID, func(txn *database.Txn) error {
		_, phase, err := e.loadTender(tenderID, txn)
		if err != nil {
			return err
		}
		if err := checkPhase(OpVote, phase); err != nil {
			return err
		}
		commitment, err := e.loadCommitment(tenderID, req.SubmissionID, txn)
		if err != nil {
			return err
		}
		vote.Unrevealed = commitment.Status == models.CommitmentStatusCommitted
		if err := e.registerNullifier(
			tenderID,
			models.NullifierNamespaceVote,
			req.Nullifier,
			txn,
		); err != nil {
			return err
		}
		if err := e.db.AddVote(vote, txn); err != nil {
			return fmt.Errorf("add vote: %w", err)
		}
		return nil
	})
	e.metrics.observe(OpVote, err)
	if err != nil {
		return 0, err
	}
	if vote.Unrevealed {
		e.logger.Warn(
			"vote recorded for unrevealed submission",
			"tender_id", tenderID,
			"submission_id", req.SubmissionID,
		)
	}
	e.publish(VotedEventType, VotedEvent{
		TenderID:     tenderID,
		SubmissionID: req.SubmissionID,
		VoteType:     vote.VoteType,
		Stake:        vote.Stake,
		Unrevealed:   vote.Unrevealed,
	})
	return vote.ID, nil
}

// Comment records a public comment and returns its ID
func (e *Engine) Comment(
	ctx context.Context,
	tenderID string,
	req CommentRequest,
) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if req.Nullifier == "" {
		return 0, ErrEmptyNullifier
	}
	if req.Text == "" {
		return 0, ErrEmptyComment
	}
	stake, err := e.stake(req.Stake, e.config.CommentStake)
	if err != nil {
		return 0, err
	}
	comment := &models.Comment{
		TenderID:     tenderID,
		SubmissionID: req.SubmissionID,
		Body:         req.Text,
		Nullifier:    req.Nullifier,
		CommenterRef: req.CommenterRef,
		Stake:        stake,
		CreatedAt:    e.config.Now(),
	}
	err = e.update(tenderID, func(txn *database.Txn) error {
		_, phase, err := e.loadTender(tenderID, txn)
		if err != nil {
			return err
		}
		if err := checkPhase(OpComment, phase); err != nil {
			return err
		}
		if _, err := e.loadCommitment(tenderID, req.SubmissionID, txn); err != nil {
			return err
		}
		if err := e.registerNullifier(
			tenderID,
			models.NullifierNamespaceComment,
			req.Nullifier,
			txn,
		); err != nil {
			return err
		}
		if err := e.db.AddComment(comment, txn); err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
		return nil
	})
	e.metrics.observe(OpComment, err)
	if err != nil {
		return 0, err
	}
	e.publish(CommentedEventType, CommentedEvent{
		TenderID:     tenderID,
		SubmissionID: req.SubmissionID,
		CommentID:    comment.ID,
	})
	return comment.ID, nil
}

func (e *Engine) stake(requested float64, def float64) (float64, error) {
	switch {
	case requested == 0:
		return def, nil
	case requested < 0, math.IsNaN(requested), math.IsInf(requested, 0):
		return 0, ErrInvalidStake
	}
	return requested, nil
}

// AdvancePhase moves a tender to the target phase and returns the phase it
// left. Moving to the current phase is a no-op. Backward moves are allowed but
// audited as anomalies
func (e *Engine) AdvancePhase(
	ctx context.Context,
	tenderID string,
	target string,
	reason string,
) (Phase, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	to, err := ParsePhase(target)
	if err != nil {
		return "", err
	}
	var from Phase
	var changed bool
	err = e.update(tenderID, func(txn *database.Txn) error {
		var err error
		_, from, err = e.loadTender(tenderID, txn)
		if err != nil {
			return err
		}
		if from == to {
			return nil
		}
		changed = true
		if err := e.db.SetTenderPhase(tenderID, string(to), txn); err != nil {
			return fmt.Errorf("set phase: %w", err)
		}
		return e.db.AddPhaseTransition(
			&models.PhaseTransition{
				TenderID:  tenderID,
				FromPhase: string(from),
				ToPhase:   string(to),
				Forward:   from.Before(to),
				Reason:    reason,
				CreatedAt: e.config.Now(),
			},
			txn,
		)
	})
	e.metrics.observe("advance_phase", err)
	if err != nil {
		return "", err
	}
	if !changed {
		return from, nil
	}
	forward := from.Before(to)
	if forward {
		e.metrics.phaseTransitions.WithLabelValues("forward").Inc()
		e.logger.Info(
			"phase advanced",
			"tender_id", tenderID,
			"from", from,
			"to", to,
		)
	} else {
		e.metrics.phaseTransitions.WithLabelValues("backward").Inc()
		e.logger.Warn(
			"backward phase transition",
			"tender_id", tenderID,
			"from", from,
			"to", to,
			"reason", reason,
		)
	}
	e.publish(PhaseEventType, PhaseEvent{
		TenderID: tenderID,
		From:     from,
		To:       to,
		Forward:  forward,
		Reason:   reason,
	})
	return from, nil
}
