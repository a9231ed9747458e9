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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	response string
	err      error
	prompts  []Prompt
}

func (f *fakeOracle) Score(
	_ context.Context,
	prompt Prompt,
) (json.RawMessage, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func (f *fakeOracle) Model() string {
	return "fake-model"
}

func TestEvaluateClampsOracleOutput(t *testing.T) {
	testDefs := []struct {
		name          string
		response      string
		expectedScore float64
		strengthsLen  int
		weaknessesLen int
	}{
		{
			name:          "over range",
			response:      `{"score":140,"strengths":["a","b","c","d","e","f"],"weaknesses":["x","y","z","w"],"summary":"ok"}`,
			expectedScore: 100,
			strengthsLen:  4,
			weaknessesLen: 3,
		},
		{
			name:          "under range",
			response:      `{"score":12,"strengths":["a","b","c"],"weaknesses":["x","y"],"summary":"ok"}`,
			expectedScore: 60,
			strengthsLen:  3,
			weaknessesLen: 2,
		},
		{
			name:          "string score",
			response:      `{"score":"88","strengths":["a","b","c"],"weaknesses":["x","y"]}`,
			expectedScore: 88,
			strengthsLen:  3,
			weaknessesLen: 2,
		},
		{
			name:          "short lists are topped up",
			response:      `{"score":80,"strengths":["a"],"weaknesses":[]}`,
			expectedScore: 80,
			strengthsLen:  3,
			weaknessesLen: 2,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			a := NewAdapter(&fakeOracle{response: testDef.response})
			eval := a.Evaluate(
				context.Background(),
				Proposal{SubmissionID: "SUB-1"},
			)
			assert.True(t, eval.AIPowered)
			assert.Equal(t, "fake-model", eval.Model)
			assert.InDelta(t, testDef.expectedScore, eval.Score, 0.0001)
			assert.Len(t, eval.Strengths, testDef.strengthsLen)
			assert.Len(t, eval.Weaknesses, testDef.weaknessesLen)
			assert.NotEmpty(t, eval.Summary)
		})
	}
}

func TestEvaluateMissingListsUseFallback(t *testing.T) {
	a := NewAdapter(&fakeOracle{response: `{"score":90,"strengths":"great"}`})
	eval := a.Evaluate(context.Background(), Proposal{SubmissionID: "SUB-1"})
	assert.True(t, eval.AIPowered)
	assert.Equal(t, fallbackStrengths, eval.Strengths)
	assert.Equal(t, fallbackWeaknesses, eval.Weaknesses)
}

func TestEvaluateFallback(t *testing.T) {
	testDefs := []struct {
		name   string
		oracle Oracle
	}{
		{name: "no oracle", oracle: nil},
		{name: "oracle error", oracle: &fakeOracle{err: errors.New("boom")}},
		{name: "malformed response", oracle: &fakeOracle{response: `[1,2]`}},
		{name: "null response", oracle: &fakeOracle{response: `null`}},
		{name: "empty object", oracle: &fakeOracle{response: `{}`}},
		{name: "unrelated object", oracle: &fakeOracle{response: `{"unrelated":1}`}},
		{
			name:   "missing score",
			oracle: &fakeOracle{response: `{"strengths":["a","b","c"],"weaknesses":["x","y"]}`},
		},
		{name: "non-numeric score", oracle: &fakeOracle{response: `{"score":"high"}`}},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			a := NewAdapter(testDef.oracle)
			p := Proposal{SubmissionID: "SUB-1700000000000-abcd1234"}
			eval := a.Evaluate(context.Background(), p)
			assert.False(t, eval.AIPowered)
			assert.Equal(t, FallbackModelVersion, eval.Model)
			assert.NotEmpty(t, eval.FallbackReason)
			assert.GreaterOrEqual(t, eval.Score, 70.0)
			assert.LessOrEqual(t, eval.Score, 94.0)
			assert.Equal(t, fallbackStrengths, eval.Strengths)
			assert.Equal(t, fallbackWeaknesses, eval.Weaknesses)
			// Deterministic per submission
			again := a.Evaluate(context.Background(), p)
			assert.InDelta(t, eval.Score, again.Score, 0)
		})
	}
}

func TestEvaluatePromptParameters(t *testing.T) {
	o := &fakeOracle{response: `{"score":80}`}
	a := NewAdapter(o)
	a.Evaluate(context.Background(), Proposal{
		SubmissionID: "SUB-1",
		ProjectTitle: "Bridge",
		Budget:       1250000,
	})
	require.Len(t, o.prompts, 1)
	assert.InDelta(t, 0.3, o.prompts[0].Temperature, 0)
	assert.Equal(t, 800, o.prompts[0].MaxTokens)
	assert.Contains(t, o.prompts[0].User, "Project Name: Bridge")
	assert.Contains(t, o.prompts[0].User, "$1,250,000")
	assert.Contains(t, o.prompts[0].System, "procurement evaluator")
}

func TestFinalEvaluateFallback(t *testing.T) {
	p := Proposal{SubmissionID: "SUB-1700000000000-abcd1234"}
	a := NewAdapter(nil)

	flagged := a.FinalEvaluate(
		context.Background(),
		p,
		Stats{Total: 10, Support: 2, Concern: 8},
	)
	assert.False(t, flagged.AIPowered)
	assert.Equal(t, RecommendationManualReview, flagged.Recommendation)
	assert.True(t, flagged.AuditTrigger)
	assert.InDelta(t, 0.75, flagged.Confidence, 0)
	assert.InDelta(t, 0.8, flagged.FlagRate, 0.0001)
	assert.InDelta(t, 0.2, flagged.SupportRate, 0.0001)
	assert.Equal(t, "MEDIUM - Public flags raised concerns", flagged.RiskAssessment)
	assert.Equal(t, "Public support: 20%, concern flags: 80%", flagged.PublicVoteImpact)
	assert.Equal(t, FallbackModelVersion, flagged.ModelVersion)

	clean := a.FinalEvaluate(
		context.Background(),
		p,
		Stats{Total: 10, Support: 10},
	)
	assert.Equal(t, RecommendationApprove, clean.Recommendation)
	assert.False(t, clean.AuditTrigger)
	assert.InDelta(t, 0.92, clean.Confidence, 0)
	assert.Equal(t, "LOW - No significant red flags", clean.RiskAssessment)
	assert.GreaterOrEqual(t, clean.FinalScore, 70.0)
	assert.LessOrEqual(t, clean.FinalScore, 99.0)
	assert.InDelta(t, clean.FinalScore-FlaggedPenalty, flagged.FinalScore, 0)
}

func TestFinalEvaluateMalformedOracleResponse(t *testing.T) {
	p := Proposal{SubmissionID: "SUB-1700000000000-abcd1234"}
	stats := Stats{Total: 10, Support: 10}
	expected := NewAdapter(nil).FinalEvaluate(context.Background(), p, stats)
	testDefs := []struct {
		name     string
		response string
	}{
		{name: "null", response: `null`},
		{name: "empty object", response: `{}`},
		{name: "unrelated object", response: `{"unrelated":1}`},
		{name: "missing final score", response: `{"recommendation":"approve"}`},
		{name: "non-numeric final score", response: `{"final_score":true}`},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			a := NewAdapter(&fakeOracle{response: testDef.response})
			eval := a.FinalEvaluate(context.Background(), p, stats)
			assert.False(t, eval.AIPowered)
			assert.Equal(t, FallbackModelVersion, eval.ModelVersion)
			assert.Contains(t, eval.FallbackReason, ErrMalformedResponse.Error())
			assert.InDelta(t, expected.FinalScore, eval.FinalScore, 0)
			assert.Equal(t, expected.Recommendation, eval.Recommendation)
		})
	}
}

func TestFinalEvaluateNoVotes(t *testing.T) {
	a := NewAdapter(nil)
	eval := a.FinalEvaluate(
		context.Background(),
		Proposal{SubmissionID: "SUB-1"},
		Stats{},
	)
	assert.InDelta(t, 0.0, eval.FlagRate, 0)
	assert.InDelta(t, 0.0, eval.SupportRate, 0)
	assert.Equal(t, RecommendationApprove, eval.Recommendation)
	assert.False(t, eval.AuditTrigger)
}

func TestFinalEvaluateMonotonicInConcern(t *testing.T) {
	a := NewAdapter(nil)
	p := Proposal{SubmissionID: "SUB-42"}
	prev := a.FinalEvaluate(context.Background(), p, Stats{Total: 20, Support: 20})
	for concern := uint64(1); concern <= 20; concern++ {
		cur := a.FinalEvaluate(
			context.Background(),
			p,
			Stats{Total: 20, Support: 20 - concern, Concern: concern},
		)
		assert.Greater(t, cur.FlagRate, prev.FlagRate)
		assert.LessOrEqual(t, cur.FinalScore, prev.FinalScore)
		prev = cur
	}
}

func TestFinalEvaluateOracle(t *testing.T) {
	testDefs := []struct {
		name                   string
		response               string
		stats                  Stats
		expectedScore          float64
		expectedRecommendation string
		expectedAudit          bool
	}{
		{
			name:                   "valid",
			response:               `{"final_score":87,"recommendation":"approve","risk_assessment":"LOW - fine"}`,
			stats:                  Stats{Total: 10, Support: 10},
			expectedScore:          87,
			expectedRecommendation: RecommendationApprove,
		},
		{
			name:                   "score clamped high",
			response:               `{"final_score":250,"recommendation":"reject"}`,
			stats:                  Stats{Total: 10, Support: 10},
			expectedScore:          100,
			expectedRecommendation: RecommendationReject,
		},
		{
			name:                   "score clamped low",
			response:               `{"final_score":-5,"recommendation":"approve"}`,
			stats:                  Stats{Total: 10, Support: 10},
			expectedScore:          0,
			expectedRecommendation: RecommendationApprove,
		},
		{
			name:                   "unknown recommendation",
			response:               `{"final_score":70,"recommendation":"ship it"}`,
			stats:                  Stats{Total: 10, Support: 10},
			expectedScore:          70,
			expectedRecommendation: RecommendationManualReview,
		},
		{
			name:                   "flagged forces audit",
			response:               `{"final_score":70,"recommendation":"approve","audit_trigger":false}`,
			stats:                  Stats{Total: 10, Support: 5, Concern: 5},
			expectedScore:          70,
			expectedRecommendation: RecommendationApprove,
			expectedAudit:          true,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			o := &fakeOracle{response: testDef.response}
			a := NewAdapter(o)
			eval := a.FinalEvaluate(
				context.Background(),
				Proposal{SubmissionID: "SUB-1", CompanyName: "Acme"},
				testDef.stats,
			)
			assert.True(t, eval.AIPowered)
			assert.Equal(t, "fake-model", eval.ModelVersion)
			assert.InDelta(t, testDef.expectedScore, eval.FinalScore, 0)
			assert.Equal(t, testDef.expectedRecommendation, eval.Recommendation)
			assert.Equal(t, testDef.expectedAudit, eval.AuditTrigger)
			require.Len(t, o.prompts, 1)
			assert.InDelta(t, 0.2, o.prompts[0].Temperature, 0)
			assert.Equal(t, 1000, o.prompts[0].MaxTokens)
			assert.Contains(t, o.prompts[0].User, "Company: Acme")
		})
	}
}

func TestStatsRates(t *testing.T) {
	s := Stats{Total: 10, Support: 9, Concern: 1}
	assert.False(t, s.Flagged())
	s = Stats{Total: 9, Support: 8, Concern: 1}
	assert.True(t, s.Flagged())
}
