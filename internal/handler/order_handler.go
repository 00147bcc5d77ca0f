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
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/metrics"
	"github.com/your-org/order-assistant/internal/order"
)

const (
	confirmPrompt = "Please confirm if this is correct (yes/no)."
	changesPrompt = "Let me know if you want to make any changes to the order."
	anythingElse  = "Is there anything else you'd like to order?"
)

// Profile holds the wording and defaults that distinguish order handlers
type Profile struct {
	Name            string
	DefaultQuantity int
	// DetailsPrompt is formatted with the quantity and product name
	DetailsPrompt      string
	PreferenceQuestion string
	PreferenceLabel    string
	SummaryHeading     string
	ConfirmedMessage   string
	FallbackMessage    string
}

// GenericProfile collects small and personal orders
var GenericProfile = Profile{
	Name:               GenericHandlerName,
	DefaultQuantity:    order.DefaultGenericQuantity,
	DetailsPrompt:      "Confirming order for %d %s. Any brand or vendor preference?",
	PreferenceQuestion: "Please specify the brand or vendor preference.",
	PreferenceLabel:    "Brand Preference",
	SummaryHeading:     "Here's the summary of your order:",
	ConfirmedMessage:   "Order confirmed and saved!",
	FallbackMessage:    "I'm here to help with your order. What would you like to order?",
}

// BulkProfile collects large and wholesale orders
var BulkProfile = Profile{
	Name:               BulkHandlerName,
	DefaultQuantity:    order.DefaultBulkQuantity,
	DetailsPrompt:      "Confirming bulk order of %d %s. Any supplier preference?",
	PreferenceQuestion: "Please specify the supplier preference.",
	PreferenceLabel:    "Supplier Preference",
	SummaryHeading:     "Here's the summary of your bulk order:",
	ConfirmedMessage:   "Bulk order confirmed and saved!",
	FallbackMessage:    "I'm here to help with your bulk order. What would you like to order?",
}

// OrderSaver persists confirmed orders
type OrderSaver interface {
	SaveOrder(ctx context.Context, sessionID string, record order.Record) (int64, error)
}

// OrderHandler fills in product details and a preference, then saves the
// order once the user confirms the summary
type OrderHandler struct {
	profile Profile
	saver   OrderSaver
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewOrderHandler creates a handler for the given profile
func NewOrderHandler(profile Profile, saver OrderSaver, m *metrics.Metrics, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{profile: profile, saver: saver, metrics: m, logger: logger}
}

// Name returns the profile name
func (h *OrderHandler) Name() string {
	return h.profile.Name
}

// EntryPhase starts with detail extraction
func (h *OrderHandler) EntryPhase() Phase {
	return PhaseCollectingDetails
}

// Phases lists the order handler phases
func (h *OrderHandler) Phases() []Phase {
	return []Phase{
		PhaseCollectingDetails,
		PhaseAskingPreference,
		PhaseCollectingPreference,
		PhaseConfirming,
	}
}

// Enter runs detail extraction, which needs no input
func (h *OrderHandler) Enter(ctx context.Context, tc TurnContext) (string, TurnContext) {
	tc.Phase = PhaseCollectingDetails
	return h.Process(ctx, "", tc)
}

// Process advances the handler by one input
func (h *OrderHandler) Process(ctx context.Context, input string, tc TurnContext) (string, TurnContext) {
	tc.Handler = h.profile.Name

	switch tc.Phase {
	case PhaseCollectingDetails:
		tc.Order.Apply(order.Extract(tc.Order.Description, h.profile.DefaultQuantity))
		tc.Phase = PhaseAskingPreference
		return fmt.Sprintf(h.profile.DetailsPrompt, tc.Order.Quantity, tc.Order.ProductName), tc

	case PhaseAskingPreference:
		if order.IsAffirmative(input) {
			tc.Phase = PhaseCollectingPreference
			return h.profile.PreferenceQuestion, tc
		}
		tc.Order.BrandPreference = order.NoPreference
		tc.Phase = PhaseConfirming
		return h.summary(tc.Order), tc

	case PhaseCollectingPreference:
		tc.Order.BrandPreference = input
		tc.Phase = PhaseConfirming
		return h.summary(tc.Order), tc

	case PhaseConfirming:
		if !order.IsConfirmation(input) {
			return changesPrompt, tc
		}
		return h.confirm(ctx, tc)

	default:
		tc.Phase = PhaseCollectingDetails
		return h.profile.FallbackMessage, tc
	}
}

func (h *OrderHandler) confirm(ctx context.Context, tc TurnContext) (string, TurnContext) {
	final, err := order.FormatFinalOutput(tc.Order.Canonical())
	if err != nil {
		return fmt.Sprintf("Error saving order: %v", err), tc
	}

	id, err := h.saver.SaveOrder(ctx, tc.SessionID, tc.Order)
	if err != nil {
		h.metrics.IncSaveFailure()
		h.logger.Error("Failed to save order",
			zap.String("handler", h.profile.Name),
			zap.Error(err))
		return fmt.Sprintf("Error saving order: %v", err), tc
	}

	h.metrics.IncOrderSaved(string(tc.Order.Type))
	h.logger.Info("Order saved",
		zap.Int64("order_id", id),
		zap.String("order_type", string(tc.Order.Type)))

	tc.Order = order.Record{}
	tc.Phase = PhaseCollectingDetails
	tc.Next = OrchestratorName

	return h.profile.ConfirmedMessage + "\n\n" + final + "\n\n" + anythingElse, tc
}

func (h *OrderHandler) summary(r order.Record) string {
	var b strings.Builder
	b.WriteString(h.profile.SummaryHeading)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Title: %s\n", r.Title)
	fmt.Fprintf(&b, "Description: %s\n", r.Description)
	fmt.Fprintf(&b, "Product: %s\n", r.ProductName)
	fmt.Fprintf(&b, "Quantity: %d\n", r.Quantity)
	fmt.Fprintf(&b, "%s: %s\n\n", h.profile.PreferenceLabel, r.BrandPreference)
	b.WriteString(confirmPrompt)
	return b.String()
}
