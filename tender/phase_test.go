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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	testDefs := []struct {
		input    string
		expected Phase
		err      bool
	}{
		{input: "submission", expected: PhaseSubmission},
		{input: " Reveal ", expected: PhaseReveal},
		{input: "VOTING", expected: PhaseVoting},
		{input: "final", expected: PhaseFinal},
		{input: "evaluation", err: true},
		{input: "", err: true},
	}
	for _, testDef := range testDefs {
		p, err := ParsePhase(testDef.input)
		if testDef.err {
			require.ErrorIs(t, err, ErrInvalidPhase, "input %q", testDef.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, testDef.expected, p)
	}
}

func TestPhaseOrdering(t *testing.T) {
	assert.True(t, PhaseSubmission.Before(PhaseReveal))
	assert.True(t, PhaseReveal.Before(PhaseFinal))
	assert.False(t, PhaseFinal.Before(PhaseVoting))
	assert.False(t, PhaseVoting.Before(PhaseVoting))
	assert.Equal(t, "Public Voting in Progress", PhaseVoting.Label())
	assert.Equal(t, "Complete - Results Available", PhaseFinal.Label())
}

func TestCheckPhase(t *testing.T) {
	for _, op := range []string{OpCommit, OpReveal, OpVote, OpComment} {
		for _, phase := range Phases {
			err := checkPhase(op, phase)
			legal := false
			for _, p := range legalPhases[op] {
				if p == phase {
					legal = true
				}
			}
			if legal {
				assert.NoError(t, err, "%s in %s", op, phase)
				continue
			}
			require.Error(t, err, "%s in %s", op, phase)
			assert.True(t, errors.Is(err, ErrPhaseViolation))
		}
	}
	err := checkPhase(OpVote, PhaseReveal)
	assert.EqualError(
		t,
		err,
		"vote not allowed in phase reveal (requires voting or final)",
	)
}

func TestDigestPreview(t *testing.T) {
	assert.Equal(t, "0x12345678901234...", digestPreview("0x1234567890123456789"))
	assert.Equal(t, "0xabc...", digestPreview("0xabc"))
}
