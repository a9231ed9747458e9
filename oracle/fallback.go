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
	"fmt"
	"hash/fnv"
	"math"
)

const (
	FlagThreshold        = 0.10
	FlaggedPenalty       = 15
	FallbackModelVersion = "fallback_v2.1"

	evaluateScoreMin = 60
	evaluateScoreMax = 100
	maxStrengths     = 4
	maxWeaknesses    = 3
	minStrengths     = 3
	minWeaknesses    = 2

	fallbackEvaluateBase  = 70
	fallbackEvaluateRange = 25
	fallbackFinalBase     = 70
	fallbackFinalRange    = 30

	confidenceFlagged   = 0.75
	confidenceUnflagged = 0.92
)

var (
	fallbackStrengths = []string{
		"Well-structured proposal",
		"Realistic budget allocation",
		"Clear implementation timeline",
	}
	fallbackWeaknesses = []string{
		"Limited risk assessment",
		"Minimal stakeholder engagement plan",
	}
)

// seededScore maps a submission ID into [base, base+span)
func seededScore(submissionID string, salt string, base int, span int) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write([]byte(submissionID))
	return float64(base + int(h.Sum32()%uint32(span))) // #nosec G115
}

func fallbackEvaluation(p Proposal, reason string) Evaluation {
	return Evaluation{
		Score: seededScore(
			p.SubmissionID,
			"evaluate",
			fallbackEvaluateBase,
			fallbackEvaluateRange,
		),
		Strengths:  append([]string(nil), fallbackStrengths...),
		Weaknesses: append([]string(nil), fallbackWeaknesses...),
		Summary: fmt.Sprintf(
			"Proposal %s demonstrates solid planning with good technical merit and feasibility.",
			p.SubmissionID,
		),
		AIPowered:      false,
		Model:          FallbackModelVersion,
		FallbackReason: reason,
	}
}

func fallbackFinalEvaluation(
	p Proposal,
	stats Stats,
	reason string,
) FinalEvaluation {
	flagged := stats.Flagged()
	score := seededScore(
		p.SubmissionID,
		"final",
		fallbackFinalBase,
		fallbackFinalRange,
	)
	ret := FinalEvaluation{
		BiasDetection:    "No conflicts of interest detected in preliminary analysis",
		LegalCompliance:  "COMPLIANT - All documents verified, standard procurement rules followed",
		PublicVoteImpact: publicVoteImpact(stats),
		TotalVotes:       stats.Total,
		FlagRate:         stats.FlagRate(),
		SupportRate:      stats.SupportRate(),
		ModelVersion:     FallbackModelVersion,
		FallbackReason:   reason,
	}
	if flagged {
		ret.FinalScore = score - FlaggedPenalty
		ret.RiskAssessment = "MEDIUM - Public flags raised concerns"
		ret.Recommendation = RecommendationManualReview
		ret.AuditTrigger = true
		ret.Confidence = confidenceFlagged
		ret.Summary = fmt.Sprintf(
			"Final assessment incorporating %d public votes. Requires manual review due to public concerns.",
			stats.Total,
		)
	} else {
		ret.FinalScore = score
		ret.RiskAssessment = "LOW - No significant red flags"
		ret.Recommendation = RecommendationApprove
		ret.Confidence = confidenceUnflagged
		ret.Summary = fmt.Sprintf(
			"Final assessment incorporating %d public votes. Recommended for approval based on merit and public support.",
			stats.Total,
		)
	}
	return ret
}

func publicVoteImpact(stats Stats) string {
	return fmt.Sprintf(
		"Public support: %d%%, concern flags: %d%%",
		percent(stats.SupportRate()),
		percent(stats.FlagRate()),
	)
}

func percent(rate float64) int {
	return int(math.Round(rate * 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
