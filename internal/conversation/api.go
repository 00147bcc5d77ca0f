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

package conversation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/order-assistant/internal/handler"
	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/order"
	"github.com/your-org/order-assistant/internal/resilience"
	"github.com/your-org/order-assistant/internal/store"
)

// APIHandler serves sessions, messages and stored orders over HTTP
type APIHandler struct {
	manager      *Manager
	gateway      store.Gateway
	historyLimit int
	logger       *zap.Logger
}

// NewAPIHandler creates a new conversation API handler
func NewAPIHandler(manager *Manager, gateway store.Gateway, historyLimit int, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = store.DefaultHistoryLimit
	}
	return &APIHandler{
		manager:      manager,
		gateway:      gateway,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// RegisterRoutes registers the API routes with the Gin router
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", h.createSession)
		api.GET("/sessions/:id", h.getSession)
		api.POST("/sessions/:id/messages", h.postMessage)
		api.POST("/sessions/:id/reset", h.resetSession)
		api.GET("/sessions/:id/orders", h.sessionOrders)
		api.GET("/sessions/:id/history", h.sessionHistory)
		api.GET("/sessions/:id/provider", h.getProvider)
		api.PUT("/sessions/:id/provider", h.putProvider)
		api.GET("/orders", h.allOrders)
	}
}

// MessageRequest is the body of POST /sessions/:id/messages
type MessageRequest struct {
	Message       string `json:"message" binding:"required"`
	TypeOfRequest string `json:"type_of_request"`
}

// ProviderRequest is the body of PUT /sessions/:id/provider
type ProviderRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// TurnResponse describes the session after a turn
type TurnResponse struct {
	SessionID   string           `json:"session_id"`
	Reply       string           `json:"reply,omitempty"`
	Handler     string           `json:"handler"`
	Phase       handler.Phase    `json:"phase"`
	FinalOutput *order.Canonical `json:"final_output,omitempty"`
}

// SessionResponse is a snapshot of a session
type SessionResponse struct {
	SessionID string              `json:"session_id"`
	Context   handler.TurnContext `json:"context"`
	Provider  openai.ProviderInfo `json:"provider"`
}

func (h *APIHandler) respondError(c *gin.Context, err error) {
	resilience.WriteErrorResponse(c.Writer, err, c.GetHeader("X-Request-ID"), h.logger)
	c.Abort()
}

// storeError reports a failed store read as unavailable when the store no
// longer answers a ping
func (h *APIHandler) storeError(c *gin.Context, message string, err error) *resilience.ServiceError {
	if pingErr := h.gateway.Ping(c.Request.Context()); pingErr != nil {
		return resilience.NewServiceUnavailableError("Order store unavailable", errors.Join(err, pingErr))
	}
	return resilience.NewInternalError(message, err)
}

// session resolves the :id parameter to a live router
func (h *APIHandler) session(c *gin.Context) (*Router, bool) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return nil, false
	}

	router, err := h.manager.Get(sessionID)
	if err != nil {
		h.respondError(c, resilience.NewNotFoundError("Session not found", err))
		return nil, false
	}
	return router, true
}

func (h *APIHandler) sessionID(c *gin.Context) (string, bool) {
	sessionID := c.Param("id")
	if !ValidateSessionID(sessionID) {
		h.respondError(c, resilience.NewBadRequestError("Invalid session ID format", nil))
		return "", false
	}
	return sessionID, true
}

func turnResponse(result Result) TurnResponse {
	resp := TurnResponse{
		SessionID: result.Context.SessionID,
		Reply:     result.Reply,
		Handler:   result.Context.Handler,
		Phase:     result.Context.Phase,
	}
	if canonical, found, err := order.FindCanonical(result.Reply); found && err == nil {
		resp.FinalOutput = &canonical
	}
	return resp
}

// createSession handles POST /api/v1/sessions
func (h *APIHandler) createSession(c *gin.Context) {
	router := h.manager.Create()
	tc := router.Context()

	c.JSON(http.StatusCreated, TurnResponse{
		SessionID: router.SessionID(),
		Handler:   tc.Handler,
		Phase:     tc.Phase,
	})
}

// getSession handles GET /api/v1/sessions/:id
func (h *APIHandler) getSession(c *gin.Context) {
	router, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		SessionID: router.SessionID(),
		Context:   router.Context(),
		Provider:  router.ProviderInfo(),
	})
}

// postMessage handles POST /api/v1/sessions/:id/messages
func (h *APIHandler) postMessage(c *gin.Context) {
	router, ok := h.session(c)
	if !ok {
		return
	}

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, resilience.NewBadRequestError("Invalid request format", err))
		return
	}

	message := SanitizeUserInput(req.Message)
	if message == "" {
		h.respondError(c, resilience.NewBadRequestError("Message must not be empty", nil))
		return
	}
	if hint := SanitizeUserInput(req.TypeOfRequest); hint != "" {
		router.SetHint(hint)
	}

	result := router.Process(c.Request.Context(), message)
	c.JSON(http.StatusOK, turnResponse(result))
}

// resetSession handles POST /api/v1/sessions/:id/reset
func (h *APIHandler) resetSession(c *gin.Context) {
	router, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, turnResponse(router.Reset()))
}

// sessionOrders handles GET /api/v1/sessions/:id/orders
func (h *APIHandler) sessionOrders(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	orders, err := h.gateway.OrdersBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, h.storeError(c, "Failed to load orders", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "orders": orders})
}

// sessionHistory handles GET /api/v1/sessions/:id/history
func (h *APIHandler) sessionHistory(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.respondError(c, resilience.NewBadRequestError("limit must be a positive integer", err))
			return
		}
		limit = min(parsed, h.historyLimit)
	}

	turns, err := h.gateway.ConversationHistory(c.Request.Context(), sessionID, limit)
	if err != nil {
		h.respondError(c, h.storeError(c, "Failed to load conversation history", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "history": turns})
}

// allOrders handles GET /api/v1/orders
func (h *APIHandler) allOrders(c *gin.Context) {
	orders, err := h.gateway.AllOrders(c.Request.Context())
	if err != nil {
		h.respondError(c, h.storeError(c, "Failed to load orders", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

// getProvider handles GET /api/v1/sessions/:id/provider
func (h *APIHandler) getProvider(c *gin.Context) {
	router, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, router.ProviderInfo())
}

// putProvider handles PUT /api/v1/sessions/:id/provider
func (h *APIHandler) putProvider(c *gin.Context) {
	router, ok := h.session(c)
	if !ok {
		return
	}

	var req ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, resilience.NewBadRequestError("Invalid request format", err))
		return
	}

	if err := router.SwitchProvider(req.Provider); err != nil {
		h.respondError(c, resilience.NewBadRequestError(err.Error(), err))
		return
	}

	h.logger.Info("Session provider switched",
		zap.String("session_id", router.SessionID()),
		zap.String("provider", req.Provider))
	c.JSON(http.StatusOK, router.ProviderInfo())
}
