// internal/handler/session_handler.go
package handler

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-link/internal/service"
	"serial-link/internal/utils"
)

// SessionHandler exposes the serial session over HTTP
type SessionHandler struct {
	sessions *service.SessionService
	logger   *utils.ServiceLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   utils.NewServiceLogger(logger, "session-handler"),
	}
}

// ExchangeRequest carries either explicit segments or data to be split with
// the receive buffer policy
type ExchangeRequest struct {
	Segments  []string `json:"segments"`
	Data      *string  `json:"data"`
	Separator string   `json:"separator"`
}

// ExchangeResponse is the result of one exchange. Response holds the frames
// as text, ResponseHex the same bytes hex encoded.
type ExchangeResponse struct {
	ExchangeID  string   `json:"exchange_id"`
	SessionID   string   `json:"session_id"`
	Segments    []string `json:"segments"`
	Response    string   `json:"response"`
	ResponseHex string   `json:"response_hex"`
	DurationMS  int64    `json:"duration_ms"`
}

// GetSession returns the session status
func (h *SessionHandler) GetSession(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Session status retrieved", h.sessions.Status())
}

// OpenSession opens the configured port
func (h *SessionHandler) OpenSession(c *gin.Context) {
	if err := h.sessions.Open(c.Request.Context()); err != nil {
		sessionErrorResponse(c, "Failed to open session", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Session opened", h.sessions.Status())
}

// CloseSession closes the port; the next exchange opens it again
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(); err != nil {
		h.logger.Warn("Session close reported an error", zap.Error(err))
		sessionErrorResponse(c, "Failed to close session", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Session closed", h.sessions.Status())
}

// Exchange writes the request segments and returns the collected frames
func (h *SessionHandler) Exchange(c *gin.Context) {
	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if validationErrors := req.validate(); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	logger := utils.LoggerWithRequestID(h.logger.Logger, c.GetString(utils.RequestIDKey))

	var (
		result *service.ExchangeResult
		err    error
	)
	if req.Data != nil {
		result, err = h.sessions.ExchangeData(c.Request.Context(), *req.Data, req.Separator)
	} else {
		result, err = h.sessions.Exchange(c.Request.Context(), req.Segments)
	}
	if err != nil {
		utils.LogError(logger, "Exchange failed", err)
		sessionErrorResponse(c, "Exchange failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Exchange completed", &ExchangeResponse{
		ExchangeID:  result.ExchangeID,
		SessionID:   result.SessionID,
		Segments:    result.Segments,
		Response:    string(result.Response),
		ResponseHex: hex.EncodeToString(result.Response),
		DurationMS:  result.Duration.Milliseconds(),
	})
}

func (req *ExchangeRequest) validate() map[string]string {
	errors := make(map[string]string)
	switch {
	case req.Data != nil && len(req.Segments) > 0:
		errors["segments"] = "segments and data are mutually exclusive"
	case req.Data == nil && len(req.Segments) == 0:
		errors["segments"] = "either segments or data is required"
	case req.Data == nil && req.Separator != "":
		errors["separator"] = "separator only applies to data"
	}
	return errors
}
