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

// Package conversation routes user messages through the order handlers for
// each session, keeps many sessions side by side and exposes them over HTTP.
package conversation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/classifier"
	"github.com/your-org/order-assistant/internal/handler"
	"github.com/your-org/order-assistant/internal/metrics"
	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/order"
	"github.com/your-org/order-assistant/internal/store"
)

// ResetReply is returned when the user starts over
const ResetReply = "Starting fresh! Please provide a title for your order."

// Dependencies are shared by every router
type Dependencies struct {
	Gateway   store.Gateway
	Providers *openai.Registry
	// Backend, when set, is used instead of building a client from Providers
	Backend           classifier.Completer
	ClassifierOptions []classifier.Option
	Metrics           *metrics.Metrics
	Logger            *zap.Logger
}

// Result is the outcome of one user message
type Result struct {
	Reply   string
	Context handler.TurnContext
}

// Router owns one session: its active handler, its TurnContext and the
// handoff protocol between handlers. Turns are serialized.
type Router struct {
	mu         sync.Mutex
	sessionID  string
	tc         handler.TurnContext
	handlers   map[string]handler.Handler
	classifier *classifier.Classifier
	provider   openai.Provider
	deps       Dependencies
	logger     *zap.Logger
}

// NewRouter creates a session router starting at the Orchestrator
func NewRouter(sessionID string, provider openai.Provider, deps Dependencies) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gateway == nil {
		deps.Gateway = store.NewMemoryStore()
	}
	if provider == "" {
		provider = openai.ProviderOpenAI
	}
	logger := deps.Logger.With(zap.String("session_id", sessionID))

	opts := append([]classifier.Option{classifier.WithMetrics(deps.Metrics)}, deps.ClassifierOptions...)
	c := classifier.New(nil, logger, opts...)

	orchestrator := handler.NewOrchestrator(c, logger)
	generic := handler.NewOrderHandler(handler.GenericProfile, deps.Gateway, deps.Metrics, logger)
	bulk := handler.NewOrderHandler(handler.BulkProfile, deps.Gateway, deps.Metrics, logger)

	r := &Router{
		sessionID:  sessionID,
		classifier: c,
		deps:       deps,
		logger:     logger,
		handlers: map[string]handler.Handler{
			orchestrator.Name(): orchestrator,
			generic.Name():      generic,
			bulk.Name():         bulk,
		},
		tc: handler.TurnContext{
			SessionID: sessionID,
			Handler:   handler.OrchestratorName,
			Phase:     orchestrator.EntryPhase(),
		},
	}

	if deps.Backend != nil {
		r.provider = provider
		c.SetBackend(deps.Backend)
	} else {
		r.installProvider(provider)
	}
	return r
}

// SessionID returns the session identifier
func (r *Router) SessionID() string {
	return r.sessionID
}

// ProcessMessage handles one user message and returns the reply
func (r *Router) ProcessMessage(ctx context.Context, text string) string {
	return r.Process(ctx, text).Reply
}

// Process handles one user message and returns the reply with the context
// left after the turn
func (r *Router) Process(ctx context.Context, text string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.IsReset(text) {
		r.reset()
		return Result{Reply: ResetReply, Context: r.tc}
	}

	active, ok := r.handlers[r.tc.Handler]
	if !ok {
		r.logger.Error("Unknown active handler, returning to orchestrator", zap.String("handler", r.tc.Handler))
		active = r.handlers[handler.OrchestratorName]
		r.tc.Handler = active.Name()
		r.tc.Phase = active.EntryPhase()
	}

	reply, next := active.Process(ctx, text, r.tc)
	r.record(ctx, text, reply, active.Name())
	r.tc = next

	if target := r.tc.Next; target != "" {
		r.tc.Next = ""
		if entered, ok := r.handoff(ctx, active.Name(), target); ok && entered != "" {
			reply += "\n\n" + entered
		}
	}

	if current := r.handlers[r.tc.Handler]; current != nil && !handler.ValidPhase(current, r.tc.Phase) {
		r.logger.Warn("Handler left an unknown phase",
			zap.String("handler", r.tc.Handler),
			zap.String("phase", string(r.tc.Phase)))
	}

	return Result{Reply: reply, Context: r.tc}
}

// handoff installs target at its entry phase and runs its entry step when it
// needs no input. It returns the entry reply, if any.
func (r *Router) handoff(ctx context.Context, from, target string) (string, bool) {
	next, ok := r.handlers[target]
	if !ok {
		r.logger.Error("Ignoring handoff to unknown handler", zap.String("target", target))
		return "", false
	}

	r.deps.Metrics.IncHandoff(from, target)
	r.logger.Debug("Handing off", zap.String("from", from), zap.String("to", target))

	r.tc.Handler = target
	r.tc.Phase = next.EntryPhase()
	if target == handler.OrchestratorName {
		// The next message opens a new request
		r.tc.Hint = ""
	}

	entrant, ok := next.(handler.Entrant)
	if !ok {
		return "", true
	}

	reply, tc := entrant.Enter(ctx, r.tc)
	r.record(ctx, "", reply, target)
	tc.Next = ""
	r.tc = tc
	return reply, true
}

// record logs a handler step. Failures never break the turn.
func (r *Router) record(ctx context.Context, input, reply, handlerName string) {
	r.deps.Metrics.IncTurn(handlerName)
	if err := r.deps.Gateway.LogTurn(ctx, r.sessionID, input, reply, handlerName); err != nil {
		r.logger.Warn("Failed to log conversation turn",
			zap.String("handler", handlerName),
			zap.Error(err))
	}
}

// Reset discards the collected order and returns control to the
// Orchestrator, waiting for a title
func (r *Router) Reset() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	return Result{Reply: ResetReply, Context: r.tc}
}

func (r *Router) reset() {
	r.tc = handler.TurnContext{
		SessionID: r.sessionID,
		Handler:   handler.OrchestratorName,
		Phase:     handler.PhaseAwaitingTitle,
	}
	r.deps.Metrics.IncReset()
	r.logger.Info("Conversation reset")
}

// CurrentHandlerName returns the name of the active handler
func (r *Router) CurrentHandlerName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tc.Handler
}

// Context returns a copy of the current TurnContext
func (r *Router) Context() handler.TurnContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tc
}

// SetHint records the routing hint used by the next classification
func (r *Router) SetHint(hint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tc.Hint = hint
}

// SwitchProvider changes the completion backend used for classification.
// Phase, active handler and collected order are unchanged.
func (r *Router) SwitchProvider(name string) error {
	provider, err := openai.ParseProvider(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.installProvider(provider)
	return nil
}

// installProvider must be called with mu held or before the router is shared
func (r *Router) installProvider(provider openai.Provider) {
	r.provider = provider
	if r.deps.Providers == nil {
		r.classifier.SetBackend(nil)
		return
	}

	client, err := r.deps.Providers.Client(provider)
	if err != nil {
		r.logger.Warn("No completion backend for provider, using rule-based classification",
			zap.String("provider", string(provider)),
			zap.Error(err))
		r.classifier.SetBackend(nil)
		return
	}
	r.classifier.SetBackend(client)
}

// ProviderInfo describes the classification backend in use
func (r *Router) ProviderInfo() openai.ProviderInfo {
	r.mu.Lock()
	provider := r.provider
	r.mu.Unlock()

	var info openai.ProviderInfo
	if r.deps.Providers != nil {
		info = r.deps.Providers.Info(provider)
	} else {
		info = openai.ProviderInfo{Provider: string(provider), Model: openai.DefaultSettings(provider).Model}
	}
	info.Available = r.classifier.HasBackend()
	return info
}
