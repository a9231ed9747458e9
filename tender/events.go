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
	"github.com/blinklabs-io/zktender/event"
)

const (
	CommittedEventType event.EventType = "tender.committed"
	RevealedEventType  event.EventType = "tender.revealed"
	VotedEventType     event.EventType = "tender.voted"
	CommentedEventType event.EventType = "tender.commented"
	PhaseEventType     event.EventType = "tender.phase"
	EvaluatedEventType event.EventType = "tender.evaluated"
)

// CommittedEvent is published after a commitment is stored
type CommittedEvent struct {
	TenderID     string
	SubmissionID string
	Digest       string
}

// RevealedEvent is published after a proposal is disclosed
type RevealedEvent struct {
	TenderID     string
	SubmissionID string
}

// VotedEvent is published after a vote is recorded
type VotedEvent struct {
	TenderID     string
	SubmissionID string
	VoteType     string
	Stake        float64
	Unrevealed   bool
}

// CommentedEvent is published after a comment is recorded
type CommentedEvent struct {
	TenderID     string
	SubmissionID string
	CommentID    uint
}

// PhaseEvent is published after a phase change. Forward is false for
// transitions that move the lifecycle backward
type PhaseEvent struct {
	TenderID string
	From     Phase
	To       Phase
	Forward  bool
	Reason   string
}

// EvaluatedEvent is published after an evaluation is stored
type EvaluatedEvent struct {
	TenderID     string
	SubmissionID string
	Final        bool
	Score        float64
	AIPowered    bool
}

func (e *Engine) publish(eventType event.EventType, data any) {
	if e.config.EventBus == nil {
		return
	}
	e.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}
