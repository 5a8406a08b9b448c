// internal/handler/port_handler.go
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-link/internal/discovery"
	"serial-link/internal/utils"
)

// PortScanner lists serial ports
type PortScanner interface {
	Scan(ctx context.Context) ([]*discovery.PortInfo, error)
}

// PortHandler handles port enumeration requests
type PortHandler struct {
	scanner PortScanner
	logger  *utils.ServiceLogger
}

// NewPortHandler creates a new port handler
func NewPortHandler(scanner PortScanner, logger *zap.Logger) *PortHandler {
	return &PortHandler{
		scanner: scanner,
		logger:  utils.NewServiceLogger(logger, "port-handler"),
	}
}

// ListPorts lists the serial ports available on the host
func (h *PortHandler) ListPorts(c *gin.Context) {
	ports, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to scan serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"ports_found": len(ports),
		"ports":       ports,
	})
}
