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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/zktender/database/models"
	"github.com/blinklabs-io/zktender/tender"
)

// mockEngine implements TenderEngine for testing. Methods not overridden
// here panic through the nil embedded interface
type mockEngine struct {
	TenderEngine
	tenders   []models.Tender
	commitID  string
	err       error
	lastVote  tender.VoteRequest
	lastPhase string
}

func (m *mockEngine) Tenders(context.Context) ([]models.Tender, error) {
	return m.tenders, m.err
}

func (m *mockEngine) Tender(_ context.Context, id string) (*models.Tender, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.tenders {
		if m.tenders[i].ID == id {
			return &m.tenders[i], nil
		}
	}
	return nil, tender.ErrTenderNotFound
}

func (m *mockEngine) Commit(
	context.Context,
	string,
	tender.CommitRequest,
) (string, error) {
	return m.commitID, m.err
}

func (m *mockEngine) Vote(
	_ context.Context,
	_ string,
	req tender.VoteRequest,
) (uint, error) {
	m.lastVote = req
	return 7, m.err
}

func (m *mockEngine) AdvancePhase(
	_ context.Context,
	_ string,
	target string,
	_ string,
) (tender.Phase, error) {
	m.lastPhase = target
	return tender.PhaseSubmission, m.err
}

func newTestServer(engine TenderEngine, cfg ServerConfig) *Server {
	return New(cfg, engine, nil)
}

func doRequest(
	t *testing.T,
	h http.Handler,
	method string,
	target string,
	body string,
) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret), rec.Body.String())
	return ret
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := newTestServer(&mockEngine{}, ServerConfig{ListenAddress: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	err := s.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.Empty(t, s.Addr())
	cancel()
}

func TestStartContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := newTestServer(&mockEngine{}, ServerConfig{ListenAddress: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	require.Eventually(
		t,
		func() bool { return s.Addr() == "" },
		5*time.Second,
		10*time.Millisecond,
	)
}

func TestServeHTTP(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	engine := &mockEngine{
		tenders: []models.Tender{{ID: "zk1"}},
	}
	s := newTestServer(engine, ServerConfig{
		ListenAddress:  "127.0.0.1:0",
		MaxConnections: 2,
	})
	require.NoError(t, s.Start(context.Background()))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(stopCtx))
	}()

	client := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   5 * time.Second,
	}
	resp, err := client.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestHandleRootAndHealth(t *testing.T) {
	engine := &mockEngine{
		tenders: []models.Tender{{ID: "zk1"}, {ID: "zk2"}},
	}
	s := newTestServer(engine, ServerConfig{OracleEnabled: true})

	rec := doRequest(t, s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	root := decodeBody[RootResponse](t, rec)
	assert.Equal(t, "zktender", root.Name)

	rec = doRequest(t, s.Handler(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, []string{"zk1", "zk2"}, health.Instances)
	assert.True(t, health.OracleEnabled)

	engine.err = errors.New("database is gone")
	rec = doRequest(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEngineErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "duplicate nullifier", err: tender.ErrDuplicateNullifier, status: http.StatusConflict},
		{name: "already revealed", err: tender.ErrAlreadyRevealed, status: http.StatusConflict},
		{name: "already evaluated", err: tender.ErrAlreadyEvaluated, status: http.StatusConflict},
		{name: "submission not found", err: tender.ErrNotFound, status: http.StatusNotFound},
		{name: "tender not found", err: tender.ErrTenderNotFound, status: http.StatusNotFound},
		{name: "invalid phase", err: tender.ErrInvalidPhase, status: http.StatusBadRequest},
		{name: "invalid proof", err: tender.ErrInvalidProof, status: http.StatusBadRequest},
		{name: "empty nullifier", err: tender.ErrEmptyNullifier, status: http.StatusBadRequest},
		{name: "wrapped", err: errors.Join(errors.New("ctx"), tender.ErrInvalidStake), status: http.StatusBadRequest},
		{name: "unexpected", err: errors.New("disk on fire"), status: http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := newTestServer(&mockEngine{err: test.err}, ServerConfig{RateLimit: -1})
			rec := doRequest(
				t,
				s.Handler(),
				http.MethodPost,
				"/api/v1/instances/zk1/proposals",
				`{"nullifier_hash":"0x01"}`,
			)
			assert.Equal(t, test.status, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, test.status, resp.StatusCode)
			if test.status == http.StatusInternalServerError {
				assert.NotContains(t, resp.Message, "disk on fire")
			}
		})
	}
}

func TestPhaseViolationResponse(t *testing.T) {
	s := newTestServer(
		&mockEngine{
			err: &tender.PhaseViolationError{
				Operation: tender.OpVote,
				Current:   tender.PhaseReveal,
				Required:  []tender.Phase{tender.PhaseVoting, tender.PhaseFinal},
			},
		},
		ServerConfig{},
	)
	rec := doRequest(
		t,
		s.Handler(),
		http.MethodPost,
		"/api/v1/instances/zk1/proposals/SUB-1-abcdef12/votes",
		`{"nullifier":"0x02","vote_type":"support"}`,
	)
	require.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "reveal", resp.CurrentPhase)
	assert.Equal(t, []string{"voting", "final"}, resp.RequiredPhases)
}

func TestStrictDecoding(t *testing.T) {
	engine := &mockEngine{commitID: "SUB-1-abcdef12"}
	s := newTestServer(engine, ServerConfig{RateLimit: -1})
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown field", body: `{"nullifier_hash":"0x01","extra":true}`},
		{name: "trailing data", body: `{"nullifier_hash":"0x01"}{}`},
		{name: "malformed", body: `{"nullifier_hash":`},
		{name: "wrong type", body: `{"nullifier_hash":5}`},
		{name: "too large", body: `{"encrypted_proposal_data":"` + strings.Repeat("a", maxBodyBytes) + `"}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := doRequest(
				t,
				s.Handler(),
				http.MethodPost,
				"/api/v1/instances/zk1/proposals",
				test.body,
			)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := doRequest(
		t,
		s.Handler(),
		http.MethodPost,
		"/api/v1/instances/zk1/proposals",
		`{"nullifier_hash":"0x01","encrypted_proposal_data":"sealed"}`,
	)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[CommitResponse](t, rec)
	assert.Equal(t, "SUB-1-abcdef12", resp.SubmissionID)
	assert.Equal(t, "zk1", resp.Instance)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(&mockEngine{}, ServerConfig{})

	rec := doRequest(t, s.Handler(), http.MethodGet, "/", "")
	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	require.NoError(t, err)

	supplied := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, supplied)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, supplied, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid\nforged")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid\nforged", rec.Header().Get(requestIDHeader))
}

func TestRateLimit(t *testing.T) {
	engine := &mockEngine{
		commitID: "SUB-1-abcdef12",
		tenders:  []models.Tender{{ID: "zk1", Phase: "submission"}},
	}
	s := newTestServer(engine, ServerConfig{RateLimit: 0.001, RateBurst: 2})
	post := func(remoteAddr string) int {
		req := httptest.NewRequest(
			http.MethodPost,
			"/api/v1/instances/zk1/proposals",
			strings.NewReader(`{"nullifier_hash":"0x01"}`),
		)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusCreated, post("10.0.0.1:1000"))
	assert.Equal(t, http.StatusCreated, post("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1:1002"))
	// Other clients have their own bucket
	assert.Equal(t, http.StatusCreated, post("10.0.0.2:1000"))

	// Read routes are not limited
	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/instances/zk1", nil)
		req.RemoteAddr = "10.0.0.1:1003"
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientLimiterPrune(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }
	for i := range maxTrackedClients {
		l.clients[uuid.NewString()] = &clientEntry{
			limiter:  nil,
			lastSeen: now.Add(-time.Duration(i%2) * 2 * clientIdleTimeout),
		}
	}
	assert.True(t, l.allow("192.0.2.1"))
	assert.Len(t, l.clients, maxTrackedClients/2+1)
}

func TestAdvancePhaseRoute(t *testing.T) {
	engine := &mockEngine{}
	s := newTestServer(engine, ServerConfig{})
	rec := doRequest(
		t,
		s.Handler(),
		http.MethodPost,
		"/api/v1/instances/zk1/phase",
		`{"new_phase":"Reveal","reason":"deadline"}`,
	)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[PhaseResponse](t, rec)
	assert.Equal(t, "submission", resp.PreviousPhase)
	assert.Equal(t, "reveal", resp.NewPhase)
	assert.Equal(t, "Reveal Phase Active", resp.Status)
	assert.Equal(t, "Reveal", engine.lastPhase)
}

func TestVoteRouteUsesPathSubmission(t *testing.T) {
	engine := &mockEngine{}
	s := newTestServer(engine, ServerConfig{})
	rec := doRequest(
		t,
		s.Handler(),
		http.MethodPost,
		"/api/v1/instances/zk1/proposals/SUB-1-abcdef12/votes",
		`{"nullifier":"0x02","vote_type":"concern","stake":2.5}`,
	)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "SUB-1-abcdef12", engine.lastVote.SubmissionID)
	assert.Equal(t, "concern", engine.lastVote.Type)
	assert.InDelta(t, 2.5, engine.lastVote.Stake, 0)
	resp := decodeBody[VoteResponse](t, rec)
	assert.Equal(t, uint(7), resp.VoteID)
}
