// Copyright 2024 AI SA Assistant Project
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

// Package handler implements the conversation steps that collect an order.
// Handlers hold no per-session state: each turn receives a TurnContext and
// returns the updated copy together with the reply.
package handler

import (
	"context"
	"slices"

	"github.com/your-org/order-assistant/internal/order"
)

// Handler names
const (
	OrchestratorName   = "Orchestrator"
	GenericHandlerName = "GenericHandler"
	BulkHandlerName    = "BulkHandler"
)

// Phase is a handler-specific position in the conversation
type Phase string

// Orchestrator phases
const (
	PhaseAwaitingRequest     Phase = "awaiting_request"
	PhaseAwaitingTitle       Phase = "awaiting_title"
	PhaseAwaitingDescription Phase = "awaiting_description"
	PhaseClassifying         Phase = "classifying"
	PhaseHandoffPending      Phase = "handoff_pending"
)

// OrderHandler phases
const (
	PhaseCollectingDetails    Phase = "collecting_details"
	PhaseAskingPreference     Phase = "asking_preference"
	PhaseCollectingPreference Phase = "collecting_preference"
	PhaseConfirming           Phase = "confirming"
)

// TurnContext is the state handed to the active handler on every turn
type TurnContext struct {
	SessionID string       `json:"session_id"`
	Handler   string       `json:"current_handler"`
	Phase     Phase        `json:"phase"`
	Order     order.Record `json:"order"`
	Hint      string       `json:"type_of_request,omitempty"`
	// Next requests a handoff; the router consumes and clears it
	Next string `json:"-"`
}

// Handler processes one user input
type Handler interface {
	Name() string
	// EntryPhase is installed when control is handed to this handler
	EntryPhase() Phase
	// Phases lists every phase the handler understands
	Phases() []Phase
	Process(ctx context.Context, input string, tc TurnContext) (string, TurnContext)
}

// Entrant is a handler whose entry phase needs no user input. The router
// runs Enter in the same turn as the handoff.
type Entrant interface {
	Handler
	Enter(ctx context.Context, tc TurnContext) (string, TurnContext)
}

// ValidPhase reports whether p belongs to h
func ValidPhase(h Handler, p Phase) bool {
	return slices.Contains(h.Phases(), p)
}
