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

package models

import "time"

// Tender is a single tender instance with its durable phase
type Tender struct {
	ID               string `gorm:"primarykey;size:64"`
	Name             string `gorm:"size:255;not null"`
	Description      string
	Phase            string `gorm:"size:16;not null"`
	SubmissionDate   *time.Time
	RevealDate       *time.Time
	VotingDate       *time.Time
	FinalDate        *time.Time
	TotalSubmissions uint64 `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Tender) TableName() string {
	return "tender"
}

// PhaseTransition is an audit record for every phase change on a tender.
// Forward is false when the target phase does not follow the current one
type PhaseTransition struct {
	ID        uint      `gorm:"primarykey"`
	TenderID  string    `gorm:"size:64;index;not null"`
	FromPhase string    `gorm:"size:16;not null"`
	ToPhase   string    `gorm:"size:16;not null"`
	Forward   bool      `gorm:"not null"`
	Reason    string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"index"`
}

func (PhaseTransition) TableName() string {
	return "phase_transition"
}
