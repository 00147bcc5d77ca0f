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

package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/order"
)

const (
	titlePrompt       = "Please provide a title for this order."
	descriptionPrompt = "Describe the request."
)

// Classifier labels an order description
type Classifier interface {
	Classify(ctx context.Context, description, hint string) order.Type
}

// Orchestrator collects the title and description, classifies the order and
// hands off to the matching OrderHandler
type Orchestrator struct {
	classifier Classifier
	logger     *zap.Logger
}

// NewOrchestrator creates the opening handler
func NewOrchestrator(classifier Classifier, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{classifier: classifier, logger: logger}
}

// Name returns the handler name
func (o *Orchestrator) Name() string {
	return OrchestratorName
}

// EntryPhase waits for a new request
func (o *Orchestrator) EntryPhase() Phase {
	return PhaseAwaitingRequest
}

// Phases lists the orchestrator phases
func (o *Orchestrator) Phases() []Phase {
	return []Phase{
		PhaseAwaitingRequest,
		PhaseAwaitingTitle,
		PhaseAwaitingDescription,
		PhaseClassifying,
		PhaseHandoffPending,
	}
}

// Process advances the orchestrator by one input
func (o *Orchestrator) Process(ctx context.Context, input string, tc TurnContext) (string, TurnContext) {
	tc.Handler = OrchestratorName

	switch tc.Phase {
	case PhaseAwaitingRequest:
		// The opening message describes what the user is after
		if tc.Hint == "" {
			tc.Hint = input
		}
		tc.Phase = PhaseAwaitingTitle
		return titlePrompt, tc

	case PhaseAwaitingTitle:
		tc.Order.Title = input
		tc.Phase = PhaseAwaitingDescription
		return descriptionPrompt, tc

	case PhaseAwaitingDescription:
		tc.Order.Description = input
		tc.Phase = PhaseClassifying

		orderType := o.classifier.Classify(ctx, input, tc.Hint)
		tc.Order.Type = orderType

		target := TargetFor(orderType)
		tc.Phase = PhaseHandoffPending
		tc.Next = target

		o.logger.Debug("Order classified",
			zap.String("order_type", string(orderType)),
			zap.String("target", target))

		return fmt.Sprintf("Classified as %s order. Handing off to %s...", orderType, target), tc

	default:
		tc.Order = order.Record{}
		tc.Phase = PhaseAwaitingTitle
		return titlePrompt, tc
	}
}

// TargetFor names the handler that collects orders of type t
func TargetFor(t order.Type) string {
	if t == order.Bulk {
		return BulkHandlerName
	}
	return GenericHandlerName
}
