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

package tender_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/zktender/database"
	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/event"
	"github.com/blinklabs-io/zktender/oracle"
	"github.com/blinklabs-io/zktender/tender"
	"github.com/blinklabs-io/zktender/zkcrypto"
)

type testEnv struct {
	engine *tender.Engine
	db     *database.Database
	bus    *event.EventBus
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T, o oracle.Oracle) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		bus.Stop()
		assert.NoError(t, db.Close())
	})
	reg := prometheus.NewRegistry()
	e, err := tender.NewEngine(tender.EngineConfig{
		Database:     db,
		EventBus:     bus,
		PromRegistry: reg,
		Crypto:       zkcrypto.NewSHA256(),
		Oracle:       oracle.NewAdapter(o),
	})
	require.NoError(t, err)
	return &testEnv{engine: e, db: db, bus: bus, reg: reg}
}

func (env *testEnv) createTender(t *testing.T, id string, phase tender.Phase) {
	t.Helper()
	_, err := env.engine.CreateTender(
		context.Background(),
		tender.TenderSpec{ID: id, Name: "Tender " + id, Phase: phase},
	)
	require.NoError(t, err)
}

func (env *testEnv) commit(t *testing.T, tenderID string, nullifier string) string {
	t.Helper()
	id, err := env.engine.Commit(
		context.Background(),
		tenderID,
		tender.CommitRequest{
			Nullifier: nullifier,
			Payload:   []byte("sealed " + nullifier),
		},
	)
	require.NoError(t, err)
	return id
}

func (env *testEnv) advance(t *testing.T, tenderID string, phase tender.Phase) {
	t.Helper()
	_, err := env.engine.AdvancePhase(
		context.Background(),
		tenderID,
		string(phase),
		"test",
	)
	require.NoError(t, err)
}

func (env *testEnv) vote(
	t *testing.T,
	tenderID string,
	submissionID string,
	nullifier string,
	voteType string,
) {
	t.Helper()
	_, err := env.engine.Vote(
		context.Background(),
		tenderID,
		tender.VoteRequest{
			SubmissionID: submissionID,
			Nullifier:    nullifier,
			Type:         voteType,
		},
	)
	require.NoError(t, err)
}

func metricValue(
	t *testing.T,
	reg *prometheus.Registry,
	name string,
	labels map[string]string,
) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

var testDisclosure = tender.Disclosure{
	CompanyName:      "Acme Builders",
	ProjectTitle:     "Harbor Bridge",
	Location:         "District 1",
	Budget:           1250000,
	FeasibilityScore: 85,
	InnovationScore:  78,
	AttachmentURLs:   []string{"https://example.com/plan.pdf"},
}

var submissionIDRegexp = regexp.MustCompile(`^SUB-\d+-[0-9a-f]{8}$`)

func TestCommitAndPublicState(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id, err := env.engine.Commit(
		context.Background(),
		"zk1",
		tender.CommitRequest{
			Digest:       "0xabcdef0123456789abcdef",
			Nullifier:    "0x01",
			SubmitterRef: "0xsubmitter",
		},
	)
	require.NoError(t, err)
	assert.Regexp(t, submissionIDRegexp, id)

	state, err := env.engine.PublicState(context.Background(), "zk1")
	require.NoError(t, err)
	assert.Equal(t, tender.PhaseSubmission, state.Phase)
	assert.Equal(t, "Open for Submissions", state.Status)
	assert.Equal(t, uint64(1), state.TotalSubmissions)
	require.Len(t, state.Commitments, 1)
	assert.Equal(t, id, state.Commitments[0].SubmissionID)
	assert.Equal(t, "0xabcdef01234567...", state.Commitments[0].DigestPreview)
	assert.Equal(t, models.CommitmentStatusCommitted, state.Commitments[0].Status)
	assert.NotNil(t, state.RevealedProposals)
	assert.Empty(t, state.RevealedProposals)
}

func TestCommitComputesDigestAndStoresPayload(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id := env.commit(t, "zk1", "0xbeef")

	expected, err := zkcrypto.NewSHA256().ComputeCommitment(
		[]byte{0xbe, 0xef},
		[]byte("sealed 0xbeef"),
		[]byte("zk1"),
	)
	require.NoError(t, err)
	c, err := env.db.Commitment("zk1", id, nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, zkcrypto.EncodeHex(expected), c.Digest)

	payload, err := env.engine.Payload(context.Background(), "zk1", id)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed 0xbeef"), payload)
}

func TestCommitDuplicateNullifier(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	env.commit(t, "zk1", "0x01")

	_, err := env.engine.Commit(
		context.Background(),
		"zk1",
		tender.CommitRequest{Nullifier: "0x01", Payload: []byte("again")},
	)
	require.ErrorIs(t, err, tender.ErrDuplicateNullifier)

	state, err := env.engine.PublicState(context.Background(), "zk1")
	require.NoError(t, err)
	assert.Len(t, state.Commitments, 1)
	assert.Equal(t, uint64(1), state.TotalSubmissions)
	// The rejected commit left no payload behind
	count, err := env.db.PayloadCount("zk1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.InDelta(
		t,
		1,
		metricValue(t, env.reg, "zktender_nullifier_rejections_total", map[string]string{"namespace": "commit"}),
		0,
	)

	// The same nullifier is independent across tenders
	env.createTender(t, "zk2", tender.PhaseSubmission)
	env.commit(t, "zk2", "0x01")
}

func TestCommitValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	_, err := env.engine.Commit(context.Background(), "zk1", tender.CommitRequest{})
	require.ErrorIs(t, err, tender.ErrEmptyNullifier)
	_, err = env.engine.Commit(
		context.Background(),
		"missing",
		tender.CommitRequest{Nullifier: "0x01"},
	)
	require.ErrorIs(t, err, tender.ErrTenderNotFound)
}

func TestPhaseGating(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id := env.commit(t, "zk1", "0x01")
	ctx := context.Background()

	_, err := env.engine.Vote(ctx, "zk1", tender.VoteRequest{SubmissionID: id, Nullifier: "v1", Type: "support"})
	var pve *tender.PhaseViolationError
	require.ErrorAs(t, err, &pve)
	assert.Equal(t, tender.PhaseSubmission, pve.Current)
	assert.Equal(t, []tender.Phase{tender.PhaseVoting, tender.PhaseFinal}, pve.Required)
	assert.ErrorIs(t, err, tender.ErrPhaseViolation)

	err = env.engine.Reveal(ctx, "zk1", id, "proof", testDisclosure)
	require.ErrorIs(t, err, tender.ErrPhaseViolation)

	env.advance(t, "zk1", tender.PhaseReveal)
	_, err = env.engine.Commit(ctx, "zk1", tender.CommitRequest{Nullifier: "0x02"})
	require.ErrorAs(t, err, &pve)
	assert.Equal(t, tender.PhaseReveal, pve.Current)
	assert.Equal(t, []tender.Phase{tender.PhaseSubmission}, pve.Required)
	_, err = env.engine.Comment(ctx, "zk1", tender.CommentRequest{SubmissionID: id, Nullifier: "c1", Text: "hi"})
	require.ErrorIs(t, err, tender.ErrPhaseViolation)

	env.advance(t, "zk1", tender.PhaseVoting)
	err = env.engine.Reveal(ctx, "zk1", id, "proof", testDisclosure)
	require.ErrorAs(t, err, &pve)
	assert.Equal(t, tender.PhaseVoting, pve.Current)

	// A rejected vote does not consume its nullifier
	_, err = env.engine.Vote(ctx, "zk1", tender.VoteRequest{SubmissionID: id, Nullifier: "v1", Type: "support"})
	require.NoError(t, err)
}

func TestRevealLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id1 := env.commit(t, "zk1", "0x01")
	id2 := env.commit(t, "zk1", "0x02")
	env.advance(t, "zk1", tender.PhaseReveal)
	ctx := context.Background()

	require.NoError(t, env.engine.Reveal(ctx, "zk1", id1, "0x1234", testDisclosure))
	err := env.engine.Reveal(ctx, "zk1", id1, "0x1234", testDisclosure)
	require.ErrorIs(t, err, tender.ErrAlreadyRevealed)
	err = env.engine.Reveal(ctx, "zk1", "SUB-0-deadbeef", "0x1234", testDisclosure)
	require.ErrorIs(t, err, tender.ErrNotFound)
	err = env.engine.Reveal(ctx, "zk1", id2, "", testDisclosure)
	require.ErrorIs(t, err, tender.ErrInvalidProof)

	state, err := env.engine.PublicState(ctx, "zk1")
	require.NoError(t, err)
	assert.Equal(t, "Reveal Phase Active", state.Status)
	require.Len(t, state.RevealedProposals, 1)
	revealed := state.RevealedProposals[0]
	assert.Equal(t, id1, revealed.SubmissionID)
	assert.Equal(t, "Acme Builders", revealed.CompanyName)
	assert.Equal(t, []string{"https://example.com/plan.pdf"}, []string(revealed.AttachmentURLs))
	assert.Equal(t, "0x1234", revealed.RevealProof)
	statuses := map[string]string{}
	for _, c := range state.Commitments {
		statuses[c.SubmissionID] = c.Status
	}
	assert.Equal(t, models.CommitmentStatusRevealed, statuses[id1])
	assert.Equal(t, models.CommitmentStatusCommitted, statuses[id2])

	c, err := env.db.Commitment("zk1", id1, nil)
	require.NoError(t, err)
	require.NotNil(t, c.RevealedAt)
}

func TestVoteAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	revealedID := env.commit(t, "zk1", "0x01")
	hiddenID := env.commit(t, "zk1", "0x02")
	quietID := env.commit(t, "zk1", "0x03")
	env.advance(t, "zk1", tender.PhaseReveal)
	ctx := context.Background()
	require.NoError(t, env.engine.Reveal(ctx, "zk1", revealedID, "proof", testDisclosure))
	env.advance(t, "zk1", tender.PhaseVoting)

	env.vote(t, "zk1", revealedID, "v1", models.VoteTypeSupport)
	env.vote(t, "zk1", revealedID, "v2", models.VoteTypeSupport)
	env.vote(t, "zk1", revealedID, "v3", models.VoteTypeConcern)
	_, err := env.engine.Vote(ctx, "zk1", tender.VoteRequest{
		SubmissionID: revealedID,
		Nullifier:    "v4",
		Type:         models.VoteTypeSupport,
		Stake:        3,
	})
	require.NoError(t, err)
	env.vote(t, "zk1", hiddenID, "v5", models.VoteTypeConcern)

	testDefs := []struct {
		name string
		req  tender.VoteRequest
		err  error
	}{
		{name: "duplicate nullifier", req: tender.VoteRequest{SubmissionID: revealedID, Nullifier: "v1", Type: "support"}, err: tender.ErrDuplicateNullifier},
		{name: "bad type", req: tender.VoteRequest{SubmissionID: revealedID, Nullifier: "v9", Type: "maybe"}, err: tender.ErrInvalidVoteType},
		{name: "negative stake", req: tender.VoteRequest{SubmissionID: revealedID, Nullifier: "v9", Type: "support", Stake: -1}, err: tender.ErrInvalidStake},
		{name: "NaN stake", req: tender.VoteRequest{SubmissionID: revealedID, Nullifier: "v9", Type: "support", Stake: math.NaN()}, err: tender.ErrInvalidStake},
		{name: "infinite stake", req: tender.VoteRequest{SubmissionID: revealedID, Nullifier: "v9", Type: "support", Stake: math.Inf(1)}, err: tender.ErrInvalidStake},
		{name: "negative infinite stake", req: tender.VoteRequest{SubmissionID: revealedID, Nullifier: "v9", Type: "support", Stake: math.Inf(-1)}, err: tender.ErrInvalidStake},
		{name: "unknown submission", req: tender.VoteRequest{SubmissionID: "SUB-0-00000000", Nullifier: "v9", Type: "support"}, err: tender.ErrNotFound},
		{name: "missing nullifier", req: tender.VoteRequest{SubmissionID: revealedID, Type: "support"}, err: tender.ErrEmptyNullifier},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := env.engine.Vote(ctx, "zk1", testDef.req)
			require.ErrorIs(t, err, testDef.err)
		})
	}

	votes, err := env.db.Votes("zk1", hiddenID, nil)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.True(t, votes[0].Unrevealed)
	assert.InDelta(t, tender.DefaultVoteStake, votes[0].Stake, 0)

	stats, err := env.engine.VotingStats(ctx, "zk1", "")
	require.NoError(t, err)
	require.Len(t, stats, 3)
	byID := map[string]tender.SubmissionStats{}
	for _, s := range stats {
		byID[s.SubmissionID] = s
	}
	assert.Equal(t, uint64(4), byID[revealedID].Total)
	assert.Equal(t, uint64(3), byID[revealedID].Support)
	assert.Equal(t, uint64(1), byID[revealedID].Concern)
	assert.InDelta(t, 6.0, byID[revealedID].TotalStake, 0.0001)
	assert.InDelta(t, 0.25, byID[revealedID].FlagRate, 0.0001)
	assert.InDelta(t, 0.75, byID[revealedID].SupportRate, 0.0001)
	assert.Equal(t, uint64(0), byID[quietID].Total)
	assert.InDelta(t, 0.0, byID[quietID].FlagRate, 0)

	single, err := env.engine.VotingStats(ctx, "zk1", hiddenID)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.InDelta(t, 1.0, single[0].FlagRate, 0)

	_, err = env.engine.VotingStats(ctx, "zk1", "SUB-0-00000000")
	require.ErrorIs(t, err, tender.ErrNotFound)
	_, err = env.engine.VotingStats(ctx, "nope", "")
	require.ErrorIs(t, err, tender.ErrTenderNotFound)
}

func TestCommentsAndNullifierNamespaces(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id := env.commit(t, "zk1", "0xaa")
	env.advance(t, "zk1", tender.PhaseVoting)
	ctx := context.Background()

	// One token may be used once per namespace
	env.vote(t, "zk1", id, "0xaa", models.VoteTypeSupport)
	commentID, err := env.engine.Comment(ctx, "zk1", tender.CommentRequest{
		SubmissionID: id,
		Nullifier:    "0xaa",
		Text:         "Looks solid",
	})
	require.NoError(t, err)
	assert.NotZero(t, commentID)

	_, err = env.engine.Comment(ctx, "zk1", tender.CommentRequest{
		SubmissionID: id,
		Nullifier:    "0xaa",
		Text:         "Again",
	})
	require.ErrorIs(t, err, tender.ErrDuplicateNullifier)
	_, err = env.engine.Comment(ctx, "zk1", tender.CommentRequest{
		SubmissionID: id,
		Nullifier:    "0xbb",
	})
	require.ErrorIs(t, err, tender.ErrEmptyComment)
	_, err = env.engine.Comment(ctx, "zk1", tender.CommentRequest{
		SubmissionID: id,
		Nullifier:    "0xcc",
		Text:         "Huge",
		Stake:        math.Inf(1),
	})
	require.ErrorIs(t, err, tender.ErrInvalidStake)

	comments, err := env.engine.Comments(ctx, "zk1", id)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Looks solid", comments[0].Body)
	assert.InDelta(t, tender.DefaultCommentStake, comments[0].Stake, 0)

	state, err := env.engine.PublicState(ctx, "zk1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.Commitments[0].Comments)

	_, err = env.engine.Comments(ctx, "zk1", "SUB-0-00000000")
	require.ErrorIs(t, err, tender.ErrNotFound)
}

func TestAdvancePhase(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	ctx := context.Background()
	_, phaseCh := env.bus.Subscribe(tender.PhaseEventType)

	_, err := env.engine.AdvancePhase(ctx, "zk1", "evaluation", "")
	require.ErrorIs(t, err, tender.ErrInvalidPhase)
	_, err = env.engine.AdvancePhase(ctx, "nope", "reveal", "")
	require.ErrorIs(t, err, tender.ErrTenderNotFound)

	from, err := env.engine.AdvancePhase(ctx, "zk1", "submission", "")
	require.NoError(t, err)
	assert.Equal(t, tender.PhaseSubmission, from)

	from, err = env.engine.AdvancePhase(ctx, "zk1", "VOTING", "deadline")
	require.NoError(t, err)
	assert.Equal(t, tender.PhaseSubmission, from)
	from, err = env.engine.AdvancePhase(ctx, "zk1", "reveal", "operator correction")
	require.NoError(t, err)
	assert.Equal(t, tender.PhaseVoting, from)

	history, err := env.engine.PhaseHistory(ctx, "zk1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "submission", history[0].FromPhase)
	assert.Equal(t, "voting", history[0].ToPhase)
	assert.True(t, history[0].Forward)
	assert.Equal(t, "deadline", history[0].Reason)
	assert.Equal(t, "voting", history[1].FromPhase)
	assert.Equal(t, "reveal", history[1].ToPhase)
	assert.False(t, history[1].Forward)

	assert.InDelta(t, 1, metricValue(t, env.reg, "zktender_phase_transitions_total", map[string]string{"direction": "backward"}), 0)
	assert.InDelta(t, 1, metricValue(t, env.reg, "zktender_phase_transitions_total", map[string]string{"direction": "forward"}), 0)

	for _, forward := range []bool{true, false} {
		select {
		case evt := <-phaseCh:
			pe, ok := evt.Data.(tender.PhaseEvent)
			require.True(t, ok)
			assert.Equal(t, forward, pe.Forward)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for phase event")
		}
	}

	tdr, err := env.engine.Tender(ctx, "zk1")
	require.NoError(t, err)
	assert.Equal(t, "reveal", tdr.Phase)
}

func TestEvaluateFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id := env.commit(t, "zk1", "0x01")
	ctx := context.Background()

	first, err := env.engine.Evaluate(ctx, "zk1", id)
	require.NoError(t, err)
	assert.False(t, first.AIPowered)
	assert.GreaterOrEqual(t, first.Score, 70.0)
	assert.LessOrEqual(t, first.Score, 94.0)
	assert.Len(t, first.Strengths, 3)
	assert.Len(t, first.Weaknesses, 2)

	second, err := env.engine.Evaluate(ctx, "zk1", id)
	require.NoError(t, err)
	assert.InDelta(t, first.Score, second.Score, 0)

	evals, err := env.engine.Evaluations(ctx, "zk1")
	require.NoError(t, err)
	assert.Len(t, evals, 2)
	assert.InDelta(t, 2, metricValue(t, env.reg, "zktender_oracle_fallbacks_total", map[string]string{"kind": "evaluate"}), 0)

	_, err = env.engine.Evaluate(ctx, "zk1", "SUB-0-00000000")
	require.ErrorIs(t, err, tender.ErrNotFound)
}

func TestFinalEvaluateFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	flaggedID := env.commit(t, "zk1", "0x01")
	quietID := env.commit(t, "zk1", "0x02")
	env.advance(t, "zk1", tender.PhaseReveal)
	ctx := context.Background()
	require.NoError(t, env.engine.Reveal(ctx, "zk1", flaggedID, "proof", testDisclosure))
	env.advance(t, "zk1", tender.PhaseVoting)
	for i := range 10 {
		voteType := models.VoteTypeConcern
		if i < 2 {
			voteType = models.VoteTypeSupport
		}
		env.vote(t, "zk1", flaggedID, fmt.Sprintf("v%d", i), voteType)
	}
	env.advance(t, "zk1", tender.PhaseFinal)

	flagged, err := env.engine.FinalEvaluate(ctx, "zk1", flaggedID)
	require.NoError(t, err)
	assert.False(t, flagged.AIPowered)
	assert.Equal(t, models.RecommendationManualReview, flagged.Recommendation)
	assert.True(t, flagged.AuditTrigger)
	assert.InDelta(t, 0.8, flagged.FlagRate, 0.0001)
	assert.Equal(t, uint64(10), flagged.TotalVotes)
	assert.Equal(t, oracle.FallbackModelVersion, flagged.ModelVersion)

	c, err := env.db.Commitment("zk1", flaggedID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.CommitmentStatusEvaluated, c.Status)

	_, err = env.engine.FinalEvaluate(ctx, "zk1", flaggedID)
	require.ErrorIs(t, err, tender.ErrAlreadyEvaluated)

	quiet, err := env.engine.FinalEvaluate(ctx, "zk1", quietID)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationApprove, quiet.Recommendation)
	assert.False(t, quiet.AuditTrigger)
	assert.InDelta(t, 0.0, quiet.FlagRate, 0)
	// Unrevealed submissions are not promoted
	c, err = env.db.Commitment("zk1", quietID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.CommitmentStatusCommitted, c.Status)

	finals, err := env.engine.FinalEvaluations(ctx, "zk1")
	require.NoError(t, err)
	assert.Len(t, finals, 2)
}

type recordingOracle struct {
	mu       sync.Mutex
	prompts  []oracle.Prompt
	response string
}

func (r *recordingOracle) Score(
	_ context.Context,
	prompt oracle.Prompt,
) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	if r.response == "" {
		return nil, errors.New("no response configured")
	}
	return json.RawMessage(r.response), nil
}

func TestEvaluateDisclosure(t *testing.T) {
	o := &recordingOracle{
		response: `{"score":91,"final_score":88,"recommendation":"approve","strengths":["a","b","c"],"weaknesses":["x","y"]}`,
	}
	env := newTestEnv(t, o)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id := env.commit(t, "zk1", "0x01")
	env.advance(t, "zk1", tender.PhaseReveal)
	ctx := context.Background()
	require.NoError(t, env.engine.Reveal(ctx, "zk1", id, "proof", testDisclosure))

	eval, err := env.engine.Evaluate(ctx, "zk1", id)
	require.NoError(t, err)
	assert.True(t, eval.AIPowered)
	assert.InDelta(t, 91.0, eval.Score, 0)

	final, err := env.engine.FinalEvaluate(ctx, "zk1", id)
	require.NoError(t, err)
	assert.True(t, final.AIPowered)
	assert.InDelta(t, 88.0, final.FinalScore, 0)

	require.Len(t, o.prompts, 2)
	assert.Contains(t, o.prompts[0].User, "Harbor Bridge")
	assert.NotContains(t, o.prompts[0].User, "Acme Builders")
	assert.Contains(t, o.prompts[1].User, "Acme Builders")
}

func TestEventsPublished(t *testing.T) {
	env := newTestEnv(t, nil)
	_, allCh := env.bus.Subscribe(event.EventTypeAll)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id := env.commit(t, "zk1", "0x01")
	select {
	case evt := <-allCh:
		assert.Equal(t, tender.CommittedEventType, evt.Type)
		ce, ok := evt.Data.(tender.CommittedEvent)
		require.True(t, ok)
		assert.Equal(t, id, ce.SubmissionID)
		assert.True(t, strings.HasPrefix(ce.Digest, "0x"))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for commit event")
	}
}

func TestCreateTender(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	created, err := env.engine.CreateTender(ctx, tender.TenderSpec{ID: "zk9"})
	require.NoError(t, err)
	assert.Equal(t, "submission", created.Phase)
	assert.Equal(t, "zk9", created.Name)

	_, err = env.engine.CreateTender(ctx, tender.TenderSpec{ID: "zk9"})
	require.ErrorIs(t, err, tender.ErrTenderExists)
	_, err = env.engine.CreateTender(ctx, tender.TenderSpec{ID: "bad id"})
	require.ErrorIs(t, err, tender.ErrInvalidTenderID)
	_, err = env.engine.CreateTender(ctx, tender.TenderSpec{ID: "zk8", Phase: "closed"})
	require.ErrorIs(t, err, tender.ErrInvalidPhase)

	tenders, err := env.engine.Tenders(ctx)
	require.NoError(t, err)
	require.Len(t, tenders, 1)
	_, err = env.engine.Tender(ctx, "zk8")
	require.ErrorIs(t, err, tender.ErrTenderNotFound)
}

func TestConcurrentVotesSameNullifier(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	id := env.commit(t, "zk1", "0x01")
	env.advance(t, "zk1", tender.PhaseVoting)
	defer goleak.VerifyNone(
		t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreAnyFunction("database/sql.(*DB).connectionOpener"),
	)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.engine.Vote(
				context.Background(),
				"zk1",
				tender.VoteRequest{SubmissionID: id, Nullifier: "0xdup", Type: "support"},
			)
		}()
	}
	wg.Wait()
	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, tender.ErrDuplicateNullifier):
			dup++
		default:
			t.Fatalf("unexpected error: %s", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
}

func TestConcurrentCommitsRacePhaseAdvance(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTender(t, "zk1", tender.PhaseSubmission)
	defer goleak.VerifyNone(
		t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreAnyFunction("database/sql.(*DB).connectionOpener"),
	)

	const workers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Commit(
				context.Background(),
				"zk1",
				tender.CommitRequest{Nullifier: fmt.Sprintf("0x%02x", i)},
			)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, tender.ErrPhaseViolation) {
				t.Errorf("unexpected error: %s", err)
			}
		}()
		if i == workers/2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.engine.AdvancePhase(context.Background(), "zk1", "reveal", "")
				if err != nil {
					t.Errorf("unexpected error: %s", err)
				}
			}()
		}
	}
	wg.Wait()
	state, err := env.engine.PublicState(context.Background(), "zk1")
	require.NoError(t, err)
	assert.Len(t, state.Commitments, accepted)
	assert.Equal(t, uint64(accepted), state.TotalSubmissions)
	assert.Equal(t, tender.PhaseReveal, state.Phase)
}

func TestSeedDemoTenders(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for _, spec := range tender.DemoTenders {
		require.NoError(t, env.engine.Seed(ctx, spec))
	}
	tenders, err := env.engine.Tenders(ctx)
	require.NoError(t, err)
	require.Len(t, tenders, 4)
	phases := map[string]string{}
	for _, tdr := range tenders {
		phases[tdr.ID] = tdr.Phase
	}
	assert.Equal(t, map[string]string{
		"zk1": "final",
		"zk2": "submission",
		"zk3": "submission",
		"zk4": "voting",
	}, phases)

	finals, err := env.engine.FinalEvaluations(ctx, "zk1")
	require.NoError(t, err)
	require.Len(t, finals, 2)
	recs := []string{finals[0].Recommendation, finals[1].Recommendation}
	assert.ElementsMatch(t, []string{models.RecommendationApprove, models.RecommendationManualReview}, recs)

	state, err := env.engine.PublicState(ctx, "zk2")
	require.NoError(t, err)
	assert.Len(t, state.Commitments, 2)
	assert.Empty(t, state.RevealedProposals)

	stats, err := env.engine.VotingStats(ctx, "zk4", "")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, uint64(5), stats[0].Total)

	err = env.engine.Seed(ctx, tender.DemoTenders[0])
	require.ErrorIs(t, err, tender.ErrTenderExists)
}
