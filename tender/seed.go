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

package tender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

func mustTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// DemoTenders are the instances provisioned by the seed command
var DemoTenders = []TenderSpec{
	{
		ID:             "zk1",
		Name:           "Metropolitan Infrastructure Tender",
		Description:    "Advanced urban development proposals",
		Phase:          PhaseFinal,
		SubmissionDate: mustTime("2024-12-15T12:00:00Z"),
		RevealDate:     mustTime("2024-12-20T12:00:00Z"),
		VotingDate:     mustTime("2024-12-25T12:00:00Z"),
		FinalDate:      mustTime("2025-01-01T12:00:00Z"),
	},
	{
		ID:             "zk2",
		Name:           "Smart City Innovation",
		Description:    "Next-generation digital infrastructure",
		Phase:          PhaseSubmission,
		SubmissionDate: mustTime("2025-07-15T12:00:00Z"),
		RevealDate:     mustTime("2025-07-20T12:00:00Z"),
		VotingDate:     mustTime("2025-07-25T12:00:00Z"),
		FinalDate:      mustTime("2025-08-01T12:00:00Z"),
	},
	{
		ID:             "zk3",
		Name:           "Sustainable Development",
		Description:    "Green technology and environmental solutions",
		Phase:          PhaseSubmission,
		SubmissionDate: mustTime("2025-08-15T12:00:00Z"),
		RevealDate:     mustTime("2025-08-20T12:00:00Z"),
		VotingDate:     mustTime("2025-08-25T12:00:00Z"),
		FinalDate:      mustTime("2025-09-01T12:00:00Z"),
	},
	{
		ID:             "zk4",
		Name:           "Transportation Network",
		Description:    "Modern transit and mobility solutions",
		Phase:          PhaseVoting,
		SubmissionDate: mustTime("2025-06-01T12:00:00Z"),
		RevealDate:     mustTime("2025-06-10T12:00:00Z"),
		VotingDate:     mustTime("2025-07-01T12:00:00Z"),
		FinalDate:      mustTime("2025-07-15T12:00:00Z"),
	},
}

func demoDisclosures(tenderID string) []Disclosure {
	upper := strings.ToUpper(tenderID)
	district := tenderID[len(tenderID)-1:]
	return []Disclosure{
		{
			CompanyName:            upper + " Construction Ltd.",
			ProjectTitle:           "Smart Infrastructure Project - " + upper,
			Location:               "District " + district + ", Metro Area",
			Budget:                 2500000,
			FeasibilityScore:       88,
			InnovationScore:        84,
			PlannedStartDate:       "2024-03-01",
			PlannedEndDate:         "2024-12-15",
			MaterialPlan:           "High-quality sustainable materials sourced locally. Focus on recycled steel, low-carbon concrete, and energy-efficient systems.",
			ConstructionPlan:       "Site preparation (Month 1-2), foundation work (Month 3-4), structural build (Month 5-8), systems installation (Month 9-10), final testing and commissioning (Month 11-12).",
			SustainabilityMeasures: "Green building certification target, 40% energy reduction through smart systems, rainwater harvesting and solar panel integration.",
			CommunityEngagement:    "Monthly town halls, local hiring preference (60% target) and a community advisory board.",
			PastProjects:           "Completed 12 similar infrastructure projects across the region over the past 8 years.",
		},
		{
			CompanyName:            upper + " Smart Solutions Inc.",
			ProjectTitle:           "Digital Transformation Initiative - " + upper,
			Location:               "Central " + district + " Hub",
			Budget:                 1800000,
			FeasibilityScore:       86,
			InnovationScore:        94,
			PlannedStartDate:       "2024-04-15",
			PlannedEndDate:         "2024-11-30",
			MaterialPlan:           "IoT sensors, fiber optic networks, edge computing hardware and cloud infrastructure components.",
			ConstructionPlan:       "Network assessment (Month 1), hardware procurement (Month 2), installation (Month 3-5), testing and optimization (Month 6), training and rollout (Month 7-8).",
			SustainabilityMeasures: "Energy-efficient hardware, e-waste recycling and smart energy management reducing the carbon footprint by 35%.",
			CommunityEngagement:    "Digital literacy workshops, public Wi-Fi expansion and partnerships with community colleges.",
			PastProjects:           "Led digital transformation for 8 municipalities with a 95% user satisfaction rate.",
		},
	}
}

// Seed provisions spec and drives it through the lifecycle with demo
// proposals and votes until it reaches its configured phase. Existing
// tenders are left untouched and reported with ErrTenderExists
func (e *Engine) Seed(ctx context.Context, spec TenderSpec) error {
	target := spec.Phase
	if target == "" {
		target = PhaseSubmission
	}
	spec.Phase = PhaseSubmission
	if _, err := e.CreateTender(ctx, spec); err != nil {
		return err
	}
	var submissionIDs []string
	for i := range demoDisclosures(spec.ID) {
		id, err := e.Commit(ctx, spec.ID, CommitRequest{
			Nullifier:    fmt.Sprintf("seed-%s-commit-%03d", spec.ID, i+1),
			SubmitterRef: fmt.Sprintf("seed-%s-submitter-%03d", spec.ID, i+1),
			Payload:      fmt.Appendf(nil, "sealed proposal %03d for %s", i+1, spec.ID),
		})
		if err != nil {
			return fmt.Errorf("seed commit: %w", err)
		}
		submissionIDs = append(submissionIDs, id)
	}
	if target == PhaseSubmission {
		return nil
	}
	if _, err := e.AdvancePhase(ctx, spec.ID, string(PhaseReveal), "seed"); err != nil {
		return err
	}
	for i, d := range demoDisclosures(spec.ID) {
		proof := fmt.Sprintf("seed-%s-reveal-proof-%03d", spec.ID, i+1)
		if err := e.Reveal(ctx, spec.ID, submissionIDs[i], proof, d); err != nil {
			return fmt.Errorf("seed reveal: %w", err)
		}
	}
	if target == PhaseReveal {
		return nil
	}
	if _, err := e.AdvancePhase(ctx, spec.ID, string(PhaseVoting), "seed"); err != nil {
		return err
	}
	// The second proposal draws enough concern to be publicly flagged
	votes := [][]string{
		{"support", "support", "support", "support", "support"},
		{"support", "support", "concern", "concern", "support"},
	}
	for i, voteTypes := range votes {
		for j, voteType := range voteTypes {
			_, err := e.Vote(ctx, spec.ID, VoteRequest{
				SubmissionID: submissionIDs[i],
				Nullifier:    fmt.Sprintf("seed-%s-vote-%03d-%03d", spec.ID, i+1, j+1),
				Type:         voteType,
			})
			if err != nil {
				return fmt.Errorf("seed vote: %w", err)
			}
		}
	}
	if target == PhaseVoting {
		return nil
	}
	if _, err := e.AdvancePhase(ctx, spec.ID, string(PhaseFinal), "seed"); err != nil {
		return err
	}
	for _, id := range submissionIDs {
		if _, err := e.FinalEvaluate(ctx, spec.ID, id); err != nil &&
			!errors.Is(err, ErrAlreadyEvaluated) {
			return fmt.Errorf("seed final evaluation: %w", err)
		}
	}
	return nil
}
