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
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	evaluateTemperature = 0.3
	evaluateMaxTokens   = 800
	finalTemperature    = 0.2
	finalMaxTokens      = 1000

	evaluateSystemPrompt = "You are an expert government procurement evaluator with 15+ years of experience in public tender analysis. You provide objective, unbiased assessments based on technical merit, financial prudence, and public value."
	finalSystemPrompt    = "You are a senior government procurement official conducting final tender evaluations. You have authority to make binding recommendations and must balance technical merit, public interest, legal compliance, and democratic input. Your evaluations directly impact public spending decisions."
)

var printer = message.NewPrinter(language.English)

// EvaluatePrompt builds the pre-vote rubric prompt
func EvaluatePrompt(p Proposal) Prompt {
	var sb strings.Builder
	sb.WriteString(
		"You are an expert government procurement evaluator. Analyze this anonymized proposal for a public tender and provide a comprehensive evaluation.\n\n",
	)
	sb.WriteString("PROPOSAL DATA:\n")
	printer.Fprintf(&sb, "- Project Name: %s\n", projectName(p))
	printer.Fprintf(
		&sb,
		"- Feasibility Score (self-assessed): %.0f/100\n",
		p.FeasibilityScore,
	)
	printer.Fprintf(&sb, "- Budget Estimate: $%.0f\n", p.Budget)
	printer.Fprintf(
		&sb,
		"- Innovation Rating (self-assessed): %.0f/100\n",
		p.InnovationScore,
	)
	if !p.SubmittedAt.IsZero() {
		printer.Fprintf(
			&sb,
			"- Submission Date: %s\n",
			p.SubmittedAt.UTC().Format(time.RFC3339),
		)
	}
	sb.WriteString(`
EVALUATION CRITERIA:
1. Technical feasibility and implementation approach
2. Budget reasonableness and cost-effectiveness
3. Innovation potential and technological advancement
4. Risk assessment and project management considerations
5. Overall value for public benefit

REQUIRED OUTPUT FORMAT (JSON):
{
  "score": [number between 60-100],
  "strengths": [array of 3-4 specific strengths],
  "weaknesses": [array of 2-3 areas for improvement],
  "summary": [2-3 sentence executive summary]
}

Provide objective, evidence-based evaluation focusing on merit and public value. Consider the self-assessed scores but evaluate independently based on the proposal details.`)
	return Prompt{
		System:      evaluateSystemPrompt,
		User:        sb.String(),
		Temperature: evaluateTemperature,
		MaxTokens:   evaluateMaxTokens,
	}
}

// FinalPrompt builds the post-vote prompt including the public voting outcome
func FinalPrompt(p Proposal, stats Stats) Prompt {
	var sb strings.Builder
	sb.WriteString(
		"You are conducting a FINAL EVALUATION for a government tender proposal that has completed the public voting phase. This evaluation will include full company disclosure and determine the final recommendation.\n\n",
	)
	sb.WriteString("PROPOSAL DATA:\n")
	printer.Fprintf(&sb, "- Project Name: %s\n", projectName(p))
	if p.CompanyName != "" {
		printer.Fprintf(&sb, "- Company: %s\n", p.CompanyName)
	}
	if p.Location != "" {
		printer.Fprintf(&sb, "- Location: %s\n", p.Location)
	}
	printer.Fprintf(&sb, "- Budget: $%.0f\n", p.Budget)
	printer.Fprintf(
		&sb,
		"- Initial Scores: Feasibility %.0f/100, Innovation %.0f/100\n\n",
		p.FeasibilityScore,
		p.InnovationScore,
	)
	sb.WriteString("PUBLIC VOTING RESULTS:\n")
	printer.Fprintf(&sb, "- Total Votes: %d\n", stats.Total)
	printer.Fprintf(
		&sb,
		"- Upvotes: %d (%d%% support)\n",
		stats.Support,
		percent(stats.SupportRate()),
	)
	printer.Fprintf(
		&sb,
		"- Flags: %d (%d%% concern rate)\n",
		stats.Concern,
		percent(stats.FlagRate()),
	)
	sb.WriteString(`
EVALUATION REQUIREMENTS:
1. Incorporate public feedback into assessment
2. Provide bias detection analysis
3. Assess legal compliance and risk factors
4. Generate final recommendation (approve/manual_review/reject)
5. Consider public transparency requirements

REQUIRED OUTPUT FORMAT (JSON):
{
  "final_score": [number 0-100, adjusted for public input],
  "risk_assessment": "[LOW/MEDIUM/HIGH] - [brief explanation]",
  "bias_detection_results": "[analysis of potential bias indicators]",
  "legal_compliance_status": "[COMPLIANT/NEEDS_REVIEW/NON_COMPLIANT] - [explanation]",
  "public_vote_impact": "[how public voting influenced the evaluation]",
  "recommendation": "[approve/manual_review/reject]",
  "final_summary": "[comprehensive 2-3 sentence conclusion]",
  "audit_trigger": [boolean - true if manual audit needed]
}

Consider that flag rates >10% indicate public concerns that should be investigated. High public support (>70%) with low flags is positive. Factor both technical merit and democratic input.`)
	return Prompt{
		System:      finalSystemPrompt,
		User:        sb.String(),
		Temperature: finalTemperature,
		MaxTokens:   finalMaxTokens,
	}
}

func projectName(p Proposal) string {
	if p.ProjectTitle != "" {
		return p.ProjectTitle
	}
	return p.SubmissionID
}
