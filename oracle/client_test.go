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

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(
	t *testing.T,
	handler http.HandlerFunc,
) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	})
}

func TestClientScore(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Use t.Errorf (not require) because httptest handlers
		// run in a separate goroutine
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %s", err)
		}
		if req.Model != DefaultModel {
			t.Errorf("unexpected model %s", req.Model)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("unexpected response format %s", req.ResponseFormat.Type)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.MaxTokens != 800 {
			t.Errorf("unexpected max tokens %d", req.MaxTokens)
		}
		writeCompletion(w, `{"score": 91}`)
	})

	c := NewClient(server.URL+"/", "secret", WithRateLimit(0, 0))
	raw, err := c.Score(
		context.Background(),
		EvaluatePrompt(Proposal{SubmissionID: "SUB-1"}),
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 91}`, string(raw))
	assert.Equal(t, DefaultModel, c.Model())
}

func TestClientNoAPIKey(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	_, err := c.Score(context.Background(), Prompt{})
	require.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestClientErrorStatus(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	c := NewClient(server.URL, "secret", WithRateLimit(0, 0))
	_, err := c.Score(context.Background(), Prompt{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestClientInvalidContent(t *testing.T) {
	testDefs := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not json content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeCompletion(w, "I think it scores about 80")
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			server := newTestServer(t, testDef.handler)
			c := NewClient(server.URL, "secret", WithRateLimit(0, 0))
			_, err := c.Score(context.Background(), Prompt{})
			require.Error(t, err)
		})
	}
}

func TestClientCanceledContext(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, `{}`)
	})
	c := NewClient(server.URL, "secret", WithRateLimit(1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Score(ctx, Prompt{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAdapterWithClientFallsBackOnServerError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	a := NewAdapter(NewClient(server.URL, "secret", WithRateLimit(0, 0)))
	eval := a.Evaluate(context.Background(), Proposal{SubmissionID: "SUB-1"})
	assert.False(t, eval.AIPowered)
	assert.Contains(t, eval.FallbackReason, "unexpected status 500")
}

func TestAdapterWithClient(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(
			w,
			`{"score":83,"strengths":["a","b","c"],"weaknesses":["x","y"],"summary":"fine"}`,
		)
	})
	a := NewAdapter(
		NewClient(server.URL, "secret", WithModel("gpt-4o"), WithRateLimit(0, 0)),
	)
	eval := a.Evaluate(context.Background(), Proposal{SubmissionID: "SUB-1"})
	assert.True(t, eval.AIPowered)
	assert.Equal(t, "gpt-4o", eval.Model)
	assert.InDelta(t, 83.0, eval.Score, 0)
	assert.Equal(t, "fine", eval.Summary)
}
