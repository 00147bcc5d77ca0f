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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/your-org/order-assistant/internal/config"
	"github.com/your-org/order-assistant/internal/conversation"
	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/order"
	"github.com/your-org/order-assistant/internal/store"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

const chatHelp = `Commands:
  /info              show the active completion provider
  /provider <name>   switch provider (openai, google, groq)
  /history [n]       show the last n turns of this session
  /reset             start a new order
  /help              show this help
  /quit              leave the chat
Type "start over" at any point to restart the order.`

func newChatCommand(opts *options) *cobra.Command {
	var (
		sessionID string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive order conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}
			if verbose {
				logCfg.Level = "debug"
			}

			a, err := newApp(cmd.Context(), opts, &logCfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = conversation.NewSessionID()
			}
			if !conversation.ValidateSessionID(sessionID) {
				return fmt.Errorf("invalid session ID %q", sessionID)
			}

			manager := a.newManager(nil)
			session := &chatSession{
				router:  manager.GetOrCreate(sessionID),
				gateway: a.gateway,
				out:     cmd.OutOrStdout(),
			}
			return session.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Resume or name a session (default: new random ID)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log classifier and storage activity to stderr")
	return cmd
}

// chatSession drives one router from a terminal
type chatSession struct {
	router  *conversation.Router
	gateway store.Gateway
	out     io.Writer
}

func (s *chatSession) run(ctx context.Context) error {
	homeDir, _ := os.UserHomeDir()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            bold("you> "),
		HistoryFile:       filepath.Join(homeDir, ".orderbot-history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "/quit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s.printBanner()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if !s.handleLine(ctx, line) {
			break
		}
	}

	fmt.Fprintln(s.out, gray("Goodbye!"))
	return nil
}

func (s *chatSession) printBanner() {
	info := s.router.ProviderInfo()
	fmt.Fprintln(s.out, bold("Order Assistant"))
	fmt.Fprintf(s.out, "Session %s · provider %s\n", s.router.SessionID(), providerLabel(info))
	fmt.Fprintln(s.out, gray("Type /help for commands."))
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "%s %s\n\n", cyan("bot>"), "Hi! What would you like to order today?")
}

// handleLine processes one input line. It returns false when the user quits.
func (s *chatSession) handleLine(ctx context.Context, line string) bool {
	line = conversation.SanitizeUserInput(line)
	if line == "" {
		return true
	}

	if strings.HasPrefix(line, "/") {
		return s.command(ctx, line)
	}
	switch strings.ToLower(line) {
	case "exit", "quit":
		return false
	}

	s.printResult(s.router.Process(ctx, line))
	return true
}

func (s *chatSession) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/info":
		fmt.Fprintf(s.out, "Provider: %s\n", providerLabel(s.router.ProviderInfo()))
		fmt.Fprintf(s.out, "Handler:  %s\n", s.router.CurrentHandlerName())
	case "/provider":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, red("usage: /provider <openai|google|groq>"))
			break
		}
		if err := s.router.SwitchProvider(fields[1]); err != nil {
			fmt.Fprintln(s.out, red(err.Error()))
			break
		}
		fmt.Fprintf(s.out, "Switched to %s\n", providerLabel(s.router.ProviderInfo()))
	case "/history":
		limit := 10
		if len(fields) > 1 {
			if _, err := fmt.Sscanf(fields[1], "%d", &limit); err != nil || limit <= 0 {
				fmt.Fprintln(s.out, red("usage: /history [n]"))
				break
			}
		}
		turns, err := s.gateway.ConversationHistory(ctx, s.router.SessionID(), limit)
		if err != nil {
			fmt.Fprintln(s.out, red(err.Error()))
			break
		}
		printTurns(s.out, turns)
	case "/reset":
		s.printResult(s.router.Reset())
	default:
		fmt.Fprintf(s.out, "%s %s\n", red("unknown command"), fields[0])
	}
	return true
}

func (s *chatSession) printResult(result conversation.Result) {
	fmt.Fprintf(s.out, "%s %s\n", cyan("bot>"), result.Reply)

	canonical, found, err := order.FindCanonical(result.Reply)
	switch {
	case err != nil:
		fmt.Fprintln(s.out, red("final output could not be parsed: "+err.Error()))
	case found:
		fmt.Fprintln(s.out, green(fmt.Sprintf("✓ Order %q saved (%d × %s)", canonical.Title, canonical.Quantity, canonical.ProductName)))
	}
	fmt.Fprintln(s.out, gray(fmt.Sprintf("[%s · %s]", result.Context.Handler, result.Context.Phase)))
	fmt.Fprintln(s.out)
}

func providerLabel(info openai.ProviderInfo) string {
	label := fmt.Sprintf("%s (%s)", info.Provider, info.Model)
	if !info.Available {
		return label + " " + yellow("keyword rules only")
	}
	return label
}
