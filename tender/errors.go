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
	"fmt"
	"strings"

	"github.com/blinklabs-io/zktender/database/types"
)

var (
	ErrDuplicateNullifier = fmt.Errorf("duplicate nullifier: %w", types.ErrNullifierUsed)
	ErrNotFound           = errors.New("submission not found")
	ErrAlreadyRevealed    = fmt.Errorf("submission already revealed: %w", types.ErrStatusConflict)
	ErrInvalidPhase       = errors.New("invalid phase")
	ErrAlreadyEvaluated   = fmt.Errorf("submission already has a final evaluation: %w", types.ErrRecordExists)
	ErrInvalidProof       = errors.New("invalid reveal proof")
	ErrTenderNotFound     = types.ErrTenderNotFound
	ErrTenderExists       = fmt.Errorf("tender already exists: %w", types.ErrRecordExists)
	ErrPhaseViolation     = errors.New("operation not allowed in current phase")
	ErrInvalidVoteType    = errors.New("invalid vote type")
	ErrInvalidStake       = errors.New("stake must be positive")
	ErrEmptyNullifier     = errors.New("nullifier is required")
	ErrEmptyComment       = errors.New("comment text is required")
	ErrInvalidTenderID    = errors.New("invalid tender ID")
)

// PhaseViolationError reports an operation attempted outside its legal phases
type PhaseViolationError struct {
	Operation string
	Current   Phase
	Required  []Phase
}

func (e *PhaseViolationError) Error() string {
	required := make([]string, 0, len(e.Required))
	for _, p := range e.Required {
		required = append(required, string(p))
	}
	return fmt.Sprintf(
		"%s not allowed in phase %s (requires %s)",
		e.Operation,
		e.Current,
		strings.Join(required, " or "),
	)
}

func (e *PhaseViolationError) Is(target error) bool {
	return target == ErrPhaseViolation
}
