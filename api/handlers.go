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

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/internal/version"
	"github.com/blinklabs-io/zktender/tender"
)

// writePage writes one page of a list along with the pagination headers
func writePage[T any](
	w http.ResponseWriter,
	r *http.Request,
	items []T,
) {
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	SetPaginationHeaders(w, len(items), params)
	writeJSON(w, http.StatusOK, paginate(items, params))
}

func (s *Server) handleRoot(
	w http.ResponseWriter,
	r *http.Request,
) {
	// The catch-all pattern also matches unknown paths
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "zktender",
		Version: version.GetVersionString(),
	})
}

func (s *Server) handleHealth(
	w http.ResponseWriter,
	r *http.Request,
) {
	tenders, err := s.engine.Tenders(r.Context())
	if err != nil {
		s.logger.Error(
			"health check failed",
			"request_id", RequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:        "unhealthy",
			Timestamp:     time.Now().UTC(),
			Instances:     []string{},
			OracleEnabled: s.config.OracleEnabled,
		})
		return
	}
	instances := make([]string, 0, len(tenders))
	for _, t := range tenders {
		instances = append(instances, t.ID)
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		Instances:     instances,
		OracleEnabled: s.config.OracleEnabled,
	})
}

func (s *Server) handleInstances(
	w http.ResponseWriter,
	r *http.Request,
) {
	tenders, err := s.engine.Tenders(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	ret := make([]InstanceResponse, 0, len(tenders))
	for i := range tenders {
		ret = append(ret, newInstanceResponse(&tenders[i]))
	}
	writePage(w, r, ret)
}

func (s *Server) handleInstance(
	w http.ResponseWriter,
	r *http.Request,
) {
	t, err := s.engine.Tender(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstanceResponse(t))
}

func (s *Server) handleState(
	w http.ResponseWriter,
	r *http.Request,
) {
	state, err := s.engine.PublicState(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(state))
}

func (s *Server) handlePhaseHistory(
	w http.ResponseWriter,
	r *http.Request,
) {
	history, err := s.engine.PhaseHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	ret := make([]PhaseTransitionResponse, 0, len(history))
	for _, h := range history {
		ret = append(ret, PhaseTransitionResponse{
			FromPhase: h.FromPhase,
			ToPhase:   h.ToPhase,
			Forward:   h.Forward,
			Reason:    h.Reason,
			CreatedAt: h.CreatedAt,
		})
	}
	writePage(w, r, ret)
}

func (s *Server) handleAdvancePhase(
	w http.ResponseWriter,
	r *http.Request,
) {
	tenderID := r.PathValue("id")
	var body PhaseRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	from, err := s.engine.AdvancePhase(
		r.Context(),
		tenderID,
		body.NewPhase,
		body.Reason,
	)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	// The engine accepted the name, so this cannot fail
	to, _ := tender.ParsePhase(body.NewPhase)
	writeJSON(w, http.StatusOK, PhaseResponse{
		Instance:      tenderID,
		PreviousPhase: string(from),
		NewPhase:      string(to),
		Status:        to.Label(),
	})
}

func (s *Server) handleCommit(
	w http.ResponseWriter,
	r *http.Request,
) {
	tenderID := r.PathValue("id")
	var body CommitBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	submissionID, err := s.engine.Commit(
		r.Context(),
		tenderID,
		tender.CommitRequest{
			Digest:       body.CommitmentHash,
			Nullifier:    body.NullifierHash,
			SubmitterRef: body.WalletAddress,
			Payload:      []byte(body.EncryptedProposalData),
		},
	)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommitResponse{
		Instance:     tenderID,
		SubmissionID: submissionID,
		Message:      "Proposal commitment recorded successfully",
	})
}

func (s *Server) handleReveal(
	w http.ResponseWriter,
	r *http.Request,
) {
	tenderID := r.PathValue("id")
	submissionID := r.PathValue("sid")
	var body RevealBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if err := s.engine.Reveal(
		r.Context(),
		tenderID,
		submissionID,
		body.RevealProof,
		body.RevealedData,
	); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RevealResponse{
		Instance:     tenderID,
		SubmissionID: submissionID,
		Status:       models.CommitmentStatusRevealed,
	})
}

func (s *Server) handlePayload(
	w http.ResponseWriter,
	r *http.Request,
) {
	payload, err := s.engine.Payload(
		r.Context(),
		r.PathValue("id"),
		r.PathValue("sid"),
	)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(payload)
}

func (s *Server) handleVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	tenderID := r.PathValue("id")
	submissionID := r.PathValue("sid")
	var body VoteBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	voteID, err := s.engine.Vote(r.Context(), tenderID, tender.VoteRequest{
		SubmissionID:    submissionID,
		Nullifier:       body.Nullifier,
		Type:            body.VoteType,
		Stake:           body.Stake,
		CommitmentToken: body.VoteCommitment,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, VoteResponse{
		Instance:     tenderID,
		SubmissionID: submissionID,
		VoteID:       voteID,
	})
}

func (s *Server) handleComment(
	w http.ResponseWriter,
	r *http.Request,
) {
	tenderID := r.PathValue("id")
	submissionID := r.PathValue("sid")
	var body CommentBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	commentID, err := s.engine.Comment(r.Context(), tenderID, tender.CommentRequest{
		SubmissionID: submissionID,
		Nullifier:    body.Nullifier,
		Text:         body.CommentText,
		CommenterRef: body.CommenterAddress,
		Stake:        body.Stake,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommentResponse{
		Instance:     tenderID,
		SubmissionID: submissionID,
		CommentID:    commentID,
	})
}

func (s *Server) handleComments(
	w http.ResponseWriter,
	r *http.Request,
) {
	comments, err := s.engine.Comments(
		r.Context(),
		r.PathValue("id"),
		r.PathValue("sid"),
	)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	ret := make([]CommentItem, 0, len(comments))
	for _, c := range comments {
		ret = append(ret, CommentItem{
			ID:           c.ID,
			SubmissionID: c.SubmissionID,
			CommentText:  c.Body,
			Stake:        c.Stake,
			CreatedAt:    c.CreatedAt,
		})
	}
	writePage(w, r, ret)
}

func (s *Server) handleStats(
	w http.ResponseWriter,
	r *http.Request,
) {
	stats, err := s.engine.VotingStats(
		r.Context(),
		r.PathValue("id"),
		r.URL.Query().Get("submission"),
	)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	ret := make([]StatsItem, 0, len(stats))
	for _, st := range stats {
		ret = append(ret, StatsItem{
			SubmissionID: st.SubmissionID,
			TotalVotes:   st.Total,
			SupportVotes: st.Support,
			ConcernVotes: st.Concern,
			TotalStake:   st.TotalStake,
			FlagRate:     st.FlagRate,
			SupportRate:  st.SupportRate,
			Comments:     st.Comments,
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleEvaluate(
	w http.ResponseWriter,
	r *http.Request,
) {
	evaluation, err := s.engine.Evaluate(
		r.Context(),
		r.PathValue("id"),
		r.PathValue("sid"),
	)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, evaluation)
}

func (s *Server) handleFinalEvaluate(
	w http.ResponseWriter,
	r *http.Request,
) {
	evaluation, err := s.engine.FinalEvaluate(
		r.Context(),
		r.PathValue("id"),
		r.PathValue("sid"),
	)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, evaluation)
}

func (s *Server) handleEvaluations(
	w http.ResponseWriter,
	r *http.Request,
) {
	evaluations, err := s.engine.Evaluations(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writePage(w, r, evaluations)
}

func (s *Server) handleFinalEvaluations(
	w http.ResponseWriter,
	r *http.Request,
) {
	evaluations, err := s.engine.FinalEvaluations(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writePage(w, r, evaluations)
}
