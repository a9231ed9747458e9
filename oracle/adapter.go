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
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTimeout = 30 * time.Second
	tracerName     = "github.com/blinklabs-io/zktender/oracle"
)

// Adapter wraps an Oracle with validation and a deterministic fallback.
// Its methods never return an error
type Adapter struct {
	oracle  Oracle
	logger  *slog.Logger
	timeout time.Duration
}

type AdapterOption func(*Adapter)

// WithLogger specifies the logger used for fallback warnings
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithTimeout bounds each oracle call
func WithTimeout(timeout time.Duration) AdapterOption {
	return func(a *Adapter) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// NewAdapter returns an Adapter for the given oracle. A nil oracle always
// produces fallback results
func NewAdapter(o Oracle, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		oracle:  o,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	a.logger = a.logger.With("component", "oracle")
	return a
}

type evaluateResponse struct {
	Score      json.RawMessage `json:"score"`
	Strengths  json.RawMessage `json:"strengths"`
	Weaknesses json.RawMessage `json:"weaknesses"`
	Summary    string          `json:"summary"`
}

type finalResponse struct {
	FinalScore       json.RawMessage `json:"final_score"`
	RiskAssessment   string          `json:"risk_assessment"`
	BiasDetection    string          `json:"bias_detection_results"`
	LegalCompliance  string          `json:"legal_compliance_status"`
	PublicVoteImpact string          `json:"public_vote_impact"`
	Recommendation   string          `json:"recommendation"`
	FinalSummary     string          `json:"final_summary"`
	AuditTrigger     bool            `json:"audit_trigger"`
}

// Evaluate scores a proposal before voting
func (a *Adapter) Evaluate(ctx context.Context, p Proposal) Evaluation {
	raw, err := a.score(ctx, EvaluatePrompt(p))
	if err != nil {
		return a.fallbackEvaluation(p, err)
	}
	var resp evaluateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return a.fallbackEvaluation(
			p,
			fmt.Errorf("decode oracle response: %w", err),
		)
	}
	score, ok := parseScore(resp.Score)
	if !ok {
		return a.fallbackEvaluation(
			p,
			fmt.Errorf("%w: missing score", ErrMalformedResponse),
		)
	}
	ret := Evaluation{
		Score: clamp(
			score,
			evaluateScoreMin,
			evaluateScoreMax,
		),
		Strengths: boundList(
			resp.Strengths,
			fallbackStrengths,
			minStrengths,
			maxStrengths,
		),
		Weaknesses: boundList(
			resp.Weaknesses,
			fallbackWeaknesses,
			minWeaknesses,
			maxWeaknesses,
		),
		Summary:   resp.Summary,
		AIPowered: true,
		Model:     a.modelName(),
	}
	if ret.Summary == "" {
		ret.Summary = fmt.Sprintf(
			"Proposal %s demonstrates solid planning with good technical merit and feasibility.",
			p.SubmissionID,
		)
	}
	return ret
}

// FinalEvaluate scores a proposal after voting, taking the public outcome
// into account
func (a *Adapter) FinalEvaluate(
	ctx context.Context,
	p Proposal,
	stats Stats,
) FinalEvaluation {
	raw, err := a.score(ctx, FinalPrompt(p, stats))
	if err != nil {
		return a.fallbackFinalEvaluation(p, stats, err)
	}
	var resp finalResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return a.fallbackFinalEvaluation(
			p,
			stats,
			fmt.Errorf("decode oracle response: %w", err),
		)
	}
	score, ok := parseScore(resp.FinalScore)
	if !ok {
		return a.fallbackFinalEvaluation(
			p,
			stats,
			fmt.Errorf("%w: missing final_score", ErrMalformedResponse),
		)
	}
	flagged := stats.Flagged()
	ret := FinalEvaluation{
		FinalScore:       clamp(score, 0, 100),
		RiskAssessment:   orDefault(resp.RiskAssessment, "LOW - Standard assessment"),
		BiasDetection:    orDefault(resp.BiasDetection, "No conflicts of interest detected"),
		LegalCompliance:  orDefault(resp.LegalCompliance, "COMPLIANT - All documents verified"),
		PublicVoteImpact: orDefault(resp.PublicVoteImpact, fmt.Sprintf("%d votes received", stats.Total)),
		Recommendation:   normalizeRecommendation(resp.Recommendation, flagged),
		AuditTrigger:     resp.AuditTrigger || flagged,
		Summary:          orDefault(resp.FinalSummary, fmt.Sprintf("Final assessment complete for %s", p.SubmissionID)),
		TotalVotes:       stats.Total,
		FlagRate:         stats.FlagRate(),
		SupportRate:      stats.SupportRate(),
		ModelVersion:     a.modelName(),
		AIPowered:        true,
		Confidence:       confidenceUnflagged,
	}
	if flagged {
		ret.Confidence = confidenceFlagged
	}
	return ret
}

func (a *Adapter) score(ctx context.Context, prompt Prompt) (json.RawMessage, error) {
	if a.oracle == nil {
		return nil, ErrOracleUnavailable
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "oracle.Score")
	defer span.End()
	span.SetAttributes(
		attribute.String("oracle.model", a.modelName()),
		attribute.Int("oracle.max_tokens", prompt.MaxTokens),
	)
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	raw, err := a.oracle.Score(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return raw, err
}

func (a *Adapter) modelName() string {
	if m, ok := a.oracle.(interface{ Model() string }); ok {
		return m.Model()
	}
	return "oracle"
}

func (a *Adapter) fallbackEvaluation(p Proposal, err error) Evaluation {
	a.logger.Warn(
		"using fallback evaluation",
		"submission_id", p.SubmissionID,
		"error", err,
	)
	return fallbackEvaluation(p, err.Error())
}

func (a *Adapter) fallbackFinalEvaluation(
	p Proposal,
	stats Stats,
	err error,
) FinalEvaluation {
	a.logger.Warn(
		"using fallback final evaluation",
		"submission_id", p.SubmissionID,
		"error", err,
	)
	return fallbackFinalEvaluation(p, stats, err.Error())
}

// parseScore accepts a JSON number or numeric string. It reports false when
// the value is absent or not numeric
func parseScore(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}
	var str json.Number
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := str.Float64(); err == nil {
			return v, true
		}
	}
	return 0, false
}

// boundList decodes a string list, truncating it to maxLen and topping it up
// from def when shorter than minLen. Anything that is not a list yields def
func boundList(raw json.RawMessage, def []string, minLen, maxLen int) []string {
	var items []string
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return append([]string(nil), def...)
	}
	ret := make([]string, 0, maxLen)
	for _, item := range items {
		if item == "" {
			continue
		}
		ret = append(ret, item)
		if len(ret) == maxLen {
			break
		}
	}
	for _, item := range def {
		if len(ret) >= minLen {
			break
		}
		ret = append(ret, item)
	}
	return ret
}

func normalizeRecommendation(rec string, flagged bool) string {
	switch rec {
	case RecommendationApprove, RecommendationReject, RecommendationManualReview:
		return rec
	case "":
		if flagged {
			return RecommendationManualReview
		}
		return RecommendationApprove
	default:
		return RecommendationManualReview
	}
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
