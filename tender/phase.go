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
	"fmt"
	"slices"
	"strings"
)

// Phase is the lifecycle stage of a tender instance
type Phase string

const (
	PhaseSubmission Phase = "submission"
	PhaseReveal     Phase = "reveal"
	PhaseVoting     Phase = "voting"
	PhaseFinal      Phase = "final"
)

// Phases lists every phase in lifecycle order
var Phases = []Phase{
	PhaseSubmission,
	PhaseReveal,
	PhaseVoting,
	PhaseFinal,
}

var phaseLabels = map[Phase]string{
	PhaseSubmission: "Open for Submissions",
	PhaseReveal:     "Reveal Phase Active",
	PhaseVoting:     "Public Voting in Progress",
	PhaseFinal:      "Complete - Results Available",
}

// Operations gated by phase
const (
	OpCommit  = "commit"
	OpReveal  = "reveal"
	OpVote    = "vote"
	OpComment = "comment"
)

var legalPhases = map[string][]Phase{
	OpCommit:  {PhaseSubmission},
	OpReveal:  {PhaseReveal},
	OpVote:    {PhaseVoting, PhaseFinal},
	OpComment: {PhaseVoting, PhaseFinal},
}

// ParsePhase validates a phase name
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
	return p, nil
}

func (p Phase) Valid() bool {
	return slices.Contains(Phases, p)
}

// Label returns the human readable status for the phase
func (p Phase) Label() string {
	return phaseLabels[p]
}

// Before reports whether p comes earlier in the lifecycle than other
func (p Phase) Before(other Phase) bool {
	return slices.Index(Phases, p) < slices.Index(Phases, other)
}

func (p Phase) String() string {
	return string(p)
}

// checkPhase returns a PhaseViolationError if op is not legal in current
func checkPhase(op string, current Phase) error {
	required := legalPhases[op]
	if slices.Contains(required, current) {
		return nil
	}
	return &PhaseViolationError{
		Operation: op,
		Current:   current,
		Required:  required,
	}
}
