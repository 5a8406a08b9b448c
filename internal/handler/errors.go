// internal/handler/errors.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"serial-link/internal/service"
	"serial-link/internal/utils"
	"serial-link/pkg/line"
	"serial-link/pkg/session"
	"serial-link/pkg/transport"
)

// errorStatus maps session and transport errors onto an HTTP status and an
// API error code
func errorStatus(err error) (int, string) {
	var (
		parity     *line.ParityRangeError
		charSize   *line.CharacterSizeRangeError
		stopBits   *line.StopBitsRangeError
		flow       *line.FlowControlNameError
		baud       *line.BaudRateRangeError
		policy     *line.BufferPolicyParseError
		tooLarge   *line.SegmentTooLargeError
		noDevice   *transport.NoDeviceError
		invalidArg *transport.InvalidPortInputError
		ioErr      *transport.IoError
	)

	switch {
	case errors.As(err, &parity), errors.As(err, &charSize), errors.As(err, &stopBits),
		errors.As(err, &flow), errors.As(err, &baud), errors.As(err, &policy):
		return http.StatusUnprocessableEntity, "INVALID_LINE_SETTINGS"
	case errors.As(err, &tooLarge):
		return http.StatusBadRequest, "SEGMENT_TOO_LARGE"
	case errors.Is(err, service.ErrEmptyExchange):
		return http.StatusBadRequest, "EMPTY_EXCHANGE"
	case errors.As(err, &noDevice):
		return http.StatusServiceUnavailable, "NO_DEVICE"
	case errors.As(err, &invalidArg):
		return http.StatusUnprocessableEntity, "INVALID_PORT"
	case errors.Is(err, service.ErrNoSession), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, "NO_SESSION"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "CANCELLED"
	case errors.As(err, &ioErr):
		if ioErr.Kind == transport.TimedOut {
			return http.StatusGatewayTimeout, "TIMED_OUT"
		}
		return http.StatusBadGateway, "IO_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	}
}

func sessionErrorResponse(c *gin.Context, message string, err error) {
	status, code := errorStatus(err)
	utils.ErrorResponseWithCode(c, status, code, message, err)
}
