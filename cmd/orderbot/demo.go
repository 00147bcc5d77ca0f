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

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/your-org/order-assistant/internal/conversation"
	"github.com/your-org/order-assistant/internal/order"
)

// scenario is a scripted conversation replayed by the demo command
type scenario struct {
	name      string
	sessionID string
	messages  []string
}

var demoScenarios = []scenario{
	{
		name:      "Generic order",
		sessionID: "demo-generic",
		messages: []string{
			"I need a couple of lamps",
			"Desk Lamp Order",
			"2 desk lamps for my home study",
			"Yes",
			"Lumina",
			"Yes",
		},
	},
	{
		name:      "Bulk order",
		sessionID: "demo-bulk",
		messages: []string{
			"We are organizing a marathon",
			"Marathon Water Supply",
			"500 water bottles for our marathon event",
			"no",
			"yes",
		},
	},
	{
		name:      "Restart mid-order",
		sessionID: "demo-restart",
		messages: []string{
			"Hello",
			"Office Chairs",
			"start over",
			"Team Chairs",
			"40 office chairs for the new team floor",
			"Yes",
			"ErgoWorks",
			"confirm",
		},
	},
}

func newDemoCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Replay scripted example conversations against the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, &quietLogging)
			if err != nil {
				return err
			}
			defer a.Close()

			manager := a.newManager(nil)
			for _, sc := range demoScenarios {
				if err := runScenario(cmd.Context(), cmd.OutOrStdout(), manager, sc); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// runScenario replays sc and fails when the conversation does not end in a
// saved order
func runScenario(ctx context.Context, w io.Writer, manager *conversation.Manager, sc scenario) error {
	router := manager.GetOrCreate(sc.sessionID)

	fmt.Fprintf(w, "%s\n", bold("=== "+sc.name+" ==="))
	fmt.Fprintf(w, "Provider: %s\n\n", providerLabel(router.ProviderInfo()))

	var (
		final order.Canonical
		saved bool
	)
	for _, message := range sc.messages {
		result := router.Process(ctx, message)

		fmt.Fprintf(w, "%s %s\n", bold("user>"), message)
		fmt.Fprintf(w, "%s %s\n", cyan(result.Context.Handler+">"), result.Reply)

		canonical, found, err := order.FindCanonical(result.Reply)
		if err != nil {
			return fmt.Errorf("%s: invalid final output: %w", sc.name, err)
		}
		if found {
			final, saved = canonical, true
		}
	}

	if !saved {
		return fmt.Errorf("%s: conversation ended without a saved order", sc.name)
	}

	rendered, err := final.Render()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n%s\n\n", green("Final output:"), rendered)
	return nil
}
