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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/order-assistant/internal/order"
)

type recordingSaver struct {
	err     error
	saved   []order.Record
	session string
}

func (r *recordingSaver) SaveOrder(_ context.Context, sessionID string, record order.Record) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.session = sessionID
	r.saved = append(r.saved, record)
	return int64(len(r.saved)), nil
}

func enteredContext(t *testing.T, h *OrderHandler, description string) (string, TurnContext) {
	t.Helper()
	tc := TurnContext{
		SessionID: "s1",
		Handler:   h.Name(),
		Order: order.Record{
			Title:       "Wooden Desk Order",
			Description: description,
			Type:        order.Generic,
		},
	}
	return h.Enter(context.Background(), tc)
}

func TestOrderHandlerGenericFlow(t *testing.T) {
	saver := &recordingSaver{}
	h := NewOrderHandler(GenericProfile, saver, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	reply, tc := enteredContext(t, h, "10 wooden desks for the new conference room.")
	assert.Equal(t, "Confirming order for 10 wooden desks. Any brand or vendor preference?", reply)
	assert.Equal(t, PhaseAskingPreference, tc.Phase)

	reply, tc = h.Process(ctx, "Yes", tc)
	assert.Equal(t, "Please specify the brand or vendor preference.", reply)
	assert.Equal(t, PhaseCollectingPreference, tc.Phase)

	reply, tc = h.Process(ctx, "UrbanCraft", tc)
	expectedSummary := strings.Join([]string{
		"Here's the summary of your order:",
		"",
		"Title: Wooden Desk Order",
		"Description: 10 wooden desks for the new conference room.",
		"Product: wooden desks",
		"Quantity: 10",
		"Brand Preference: UrbanCraft",
		"",
		"Please confirm if this is correct (yes/no).",
	}, "\n")
	assert.Equal(t, expectedSummary, reply)
	assert.Equal(t, PhaseConfirming, tc.Phase)

	reply, tc = h.Process(ctx, "Yes", tc)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, "s1", saver.session)
	assert.Equal(t, order.Record{
		Title:           "Wooden Desk Order",
		Description:     "10 wooden desks for the new conference room.",
		ProductName:     "wooden desks",
		Quantity:        10,
		BrandPreference: "UrbanCraft",
		Type:            order.Generic,
	}, saver.saved[0])

	assert.True(t, strings.HasPrefix(reply, "Order confirmed and saved!\n\n📋 **Final Output:**\n```json\n"))
	assert.True(t, strings.HasSuffix(reply, "```\n\nIs there anything else you'd like to order?"))

	canonical, found, err := order.FindCanonical(reply)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saver.saved[0].Canonical(), canonical)

	assert.True(t, tc.Order.IsEmpty())
	assert.Equal(t, PhaseCollectingDetails, tc.Phase)
	assert.Equal(t, OrchestratorName, tc.Next)
}

func TestOrderHandlerBulkDeclinesPreference(t *testing.T) {
	saver := &recordingSaver{}
	h := NewOrderHandler(BulkProfile, saver, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	reply, tc := enteredContext(t, h, "500 water bottles for marathon event")
	assert.Equal(t, "Confirming bulk order of 500 water bottles. Any supplier preference?", reply)

	reply, tc = h.Process(ctx, "no", tc)
	assert.True(t, strings.HasPrefix(reply, "Here's the summary of your bulk order:"))
	assert.Contains(t, reply, "Supplier Preference: None")
	assert.Equal(t, order.NoPreference, tc.Order.BrandPreference)

	reply, _ = h.Process(ctx, "ok", tc)
	assert.True(t, strings.HasPrefix(reply, "Bulk order confirmed and saved!"))
	require.Len(t, saver.saved, 1)
	assert.Equal(t, 500, saver.saved[0].Quantity)
}

func TestOrderHandlerDefaultQuantity(t *testing.T) {
	tests := []struct {
		profile  Profile
		expected int
	}{
		{GenericProfile, 1},
		{BulkProfile, 100},
	}

	for _, tt := range tests {
		t.Run(tt.profile.Name, func(t *testing.T) {
			h := NewOrderHandler(tt.profile, &recordingSaver{}, nil, nil)
			_, tc := enteredContext(t, h, "need some bottles")
			assert.Equal(t, tt.expected, tc.Order.Quantity)
			assert.Equal(t, "some bottles", tc.Order.ProductName)
		})
	}
}

func TestOrderHandlerNonConfirmation(t *testing.T) {
	saver := &recordingSaver{}
	h := NewOrderHandler(GenericProfile, saver, nil, nil)

	tc := TurnContext{Phase: PhaseConfirming, Order: order.Record{Title: "T", Quantity: 2}}
	reply, next := h.Process(context.Background(), "wait", tc)

	assert.Equal(t, "Let me know if you want to make any changes to the order.", reply)
	assert.Equal(t, PhaseConfirming, next.Phase)
	assert.Equal(t, tc.Order, next.Order)
	assert.Empty(t, next.Next)
	assert.Empty(t, saver.saved)
}

func TestOrderHandlerSaveFailureKeepsRecord(t *testing.T) {
	saver := &recordingSaver{err: errors.New("database is locked")}
	h := NewOrderHandler(GenericProfile, saver, nil, zaptest.NewLogger(t))

	tc := TurnContext{
		SessionID: "s1",
		Phase:     PhaseConfirming,
		Order:     order.Record{Title: "T", Description: "2 pens", ProductName: "2 pens", Quantity: 2, BrandPreference: "None"},
	}
	reply, next := h.Process(context.Background(), "yes", tc)

	assert.Equal(t, "Error saving order: database is locked", reply)
	assert.Equal(t, tc.Order, next.Order)
	assert.Equal(t, PhaseConfirming, next.Phase)
	assert.Empty(t, next.Next)
}

func TestOrderHandlerUnknownPhase(t *testing.T) {
	for _, profile := range []Profile{GenericProfile, BulkProfile} {
		h := NewOrderHandler(profile, &recordingSaver{}, nil, nil)
		reply, tc := h.Process(context.Background(), "hi", TurnContext{Phase: PhaseAwaitingTitle})

		assert.Equal(t, profile.FallbackMessage, reply)
		assert.Equal(t, PhaseCollectingDetails, tc.Phase)
		assert.Equal(t, profile.Name, tc.Handler)
	}
}
