// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-link/internal/config"
	"serial-link/internal/service"
	"serial-link/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	sessions  *service.SessionService
	config    *config.Config
	logger    *utils.ServiceLogger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions *service.SessionService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		sessions:  sessions,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startTime: time.Now(),
	}
}

// HealthCheck reports service health including the serial session
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	status := h.sessions.Status()
	check := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"port":   status.Port,
			"driver": status.Driver,
			"open":   status.Open,
		},
	}
	switch {
	case status.Open:
		check.Message = "Serial session open"
	case status.LastError != "":
		// the bridge still serves; the port is retried on the next exchange
		check.Status = "degraded"
		check.Message = status.LastError
		health.Status = "degraded"
	default:
		check.Message = "Serial session not opened yet"
	}
	health.Checks["serial"] = check

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck is ready once the serial session is open
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.sessions.IsOpen() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "serial session not open",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck reports the process is alive
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
