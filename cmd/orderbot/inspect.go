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
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/order-assistant/internal/config"
	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/store"
)

var quietLogging = config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}

func newOrdersCommand(opts *options) *cobra.Command {
	var (
		sessionID string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List stored orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID != "" && all {
				return fmt.Errorf("--session and --all are mutually exclusive")
			}

			a, err := newApp(cmd.Context(), opts, &quietLogging)
			if err != nil {
				return err
			}
			defer a.Close()

			var orders []store.Order
			if sessionID != "" {
				orders, err = a.gateway.OrdersBySession(cmd.Context(), sessionID)
			} else {
				orders, err = a.gateway.AllOrders(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to load orders: %w", err)
			}

			printOrders(cmd.OutOrStdout(), orders)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Only orders from this session")
	cmd.Flags().BoolVar(&all, "all", false, "Orders from every session (default when --session is not set)")
	return cmd
}

func newHistoryCommand(opts *options) *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the conversation log of a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, &quietLogging)
			if err != nil {
				return err
			}
			defer a.Close()

			if limit <= 0 || limit > a.cfg.History.Limit {
				limit = a.cfg.History.Limit
			}

			turns, err := a.gateway.ConversationHistory(cmd.Context(), sessionID, limit)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			printTurns(cmd.OutOrStdout(), turns)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultHistoryLimit, "Maximum number of turns")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newProviderCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "provider",
		Short: "Show completion provider configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, &quietLogging)
			if err != nil {
				return err
			}
			defer a.Close()

			printProviders(cmd.OutOrStdout(), a.registry, a.cfg.DefaultProvider())
			return nil
		},
	}
}

func printOrders(w io.Writer, orders []store.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSESSION\tTYPE\tTITLE\tPRODUCT\tQTY\tBRAND\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, o.SessionID, o.Type, o.Title, o.ProductName, o.Quantity, o.BrandPreference,
			o.CreatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d order(s)\n", len(orders))
}

// printTurns prints oldest first so the log reads like the conversation
func printTurns(w io.Writer, turns []store.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "No conversation history.")
		return
	}

	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		fmt.Fprintf(w, "%s  %s\n", gray(t.Timestamp.Local().Format(time.DateTime)), cyan(t.Handler))
		if t.UserInput != "" {
			fmt.Fprintf(w, "  you: %s\n", t.UserInput)
		}
		fmt.Fprintf(w, "  bot: %s\n", indent(t.Reply, "       "))
	}
}

func printProviders(w io.Writer, registry *openai.Registry, current openai.Provider) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tAPI KEY\tDEFAULT")
	for _, p := range openai.Providers() {
		info := registry.Info(p)
		key := "missing"
		if info.APIKeyConfigured {
			key = "configured"
		}
		def := ""
		if p == current {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Provider, info.Model, key, def)
	}
	_ = tw.Flush()
}

func indent(text, prefix string) string {
	return strings.ReplaceAll(text, "\n", "\n"+prefix)
}
