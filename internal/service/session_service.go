// internal/service/session_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial-link/internal/config"
	"serial-link/internal/utils"
	"serial-link/pkg/session"
	"serial-link/pkg/transport"
)

// ErrNoSession is returned when an operation needs an open session and the
// port could not be opened
var ErrNoSession = errors.New("no open serial session")

// ErrEmptyExchange is returned for an exchange without segments
var ErrEmptyExchange = errors.New("exchange needs at least one segment")

// SessionService serializes remote callers onto the single configured
// serial session. The session is opened lazily and reopened after Close.
type SessionService struct {
	config *config.SerialConfig
	driver transport.Driver
	base   *zap.Logger
	logger *utils.ServiceLogger

	mutex         sync.Mutex
	session       *session.Session
	sessionLogger *utils.SessionLogger
	lastError     error
	openedAt      time.Time
}

// ExchangeResult is the outcome of one exchange
type ExchangeResult struct {
	ExchangeID string        `json:"exchange_id"`
	SessionID  string        `json:"session_id"`
	Segments   []string      `json:"segments"`
	Response   []byte        `json:"-"`
	Duration   time.Duration `json:"duration"`
}

// SessionStatus describes the current session
type SessionStatus struct {
	Open          bool           `json:"open"`
	SessionID     string         `json:"session_id,omitempty"`
	Port          string         `json:"port"`
	Driver        string         `json:"driver"`
	Line          string         `json:"line,omitempty"`
	ReceiveBuffer string         `json:"receive_buffer,omitempty"`
	EndReadByte   int8           `json:"end_read_byte"`
	EndWriteByte  string         `json:"end_write_byte"`
	Separator     string         `json:"separator"`
	OpenedAt      *time.Time     `json:"opened_at,omitempty"`
	Stats         *session.Stats `json:"stats,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
}

// NewSessionService creates a new session service. The port is not opened
// until Open or the first exchange.
func NewSessionService(cfg *config.SerialConfig, driver transport.Driver, logger *zap.Logger) *SessionService {
	return &SessionService{
		config: cfg,
		driver: driver,
		base:   logger,
		logger: utils.NewServiceLogger(logger, "session-service"),
	}
}

// Open opens the configured port if no session is open
func (ss *SessionService) Open(ctx context.Context) error {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	_, err := ss.ensureOpen(ctx)
	return err
}

// ensureOpen must be called with the mutex held
func (ss *SessionService) ensureOpen(ctx context.Context) (*session.Session, error) {
	if ss.session != nil {
		return ss.session, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := session.OpenWithSettings(
		ss.driver,
		ss.config.Port,
		ss.config.Settings(),
		session.WithLogger(ss.base),
		session.WithSeparator(ss.config.Separator),
	)
	if err != nil {
		ss.lastError = err
		ss.logger.Error("Failed to open serial session",
			zap.String("port", ss.config.Port),
			zap.String("driver", ss.driver.Name()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
	}

	ss.session = sess
	ss.sessionLogger = utils.NewSessionLogger(ss.base, sess.ID(), sess.PortName(), sess.Driver())
	ss.sessionLogger.LogConnection("open", true, nil)
	ss.lastError = nil
	ss.openedAt = time.Now()
	return sess, nil
}

// Close closes the current session, if any
func (ss *SessionService) Close() error {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	return ss.dropSession()
}

// dropSession must be called with the mutex held
func (ss *SessionService) dropSession() error {
	if ss.session == nil {
		return nil
	}

	err := ss.session.Close()
	ss.sessionLogger.LogConnection("close", err == nil, err)
	ss.session = nil
	ss.sessionLogger = nil
	return err
}

// isFatal reports whether err leaves the session unusable. Timeouts and
// other transient kinds keep the port open.
func isFatal(err error) bool {
	if errors.Is(err, session.ErrClosed) {
		return true
	}
	var ioErr *transport.IoError
	if !errors.As(err, &ioErr) {
		return false
	}
	switch ioErr.Kind {
	case transport.TimedOut, transport.Interrupted, transport.WouldBlock:
		return false
	}
	return true
}

// IsOpen reports whether a session is open
func (ss *SessionService) IsOpen() bool {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	return ss.session != nil
}

// Exchange writes each segment followed by the write terminator and collects
// one frame per segment
func (ss *SessionService) Exchange(ctx context.Context, segments []string) (*ExchangeResult, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyExchange
	}

	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	sess, err := ss.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	return ss.exchange(ctx, sess, segments)
}

// ExchangeData splits data with the session's receive buffer policy and
// exchanges the pieces. An empty separator uses the configured one.
func (ss *SessionService) ExchangeData(ctx context.Context, data, separator string) (*ExchangeResult, error) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	sess, err := ss.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}

	if separator == "" {
		separator = sess.Separator()
	}
	segments, err := sess.BufferPolicy().Split(data, separator)
	if err != nil {
		return nil, err
	}
	return ss.exchange(ctx, sess, segments)
}

// exchange must be called with the mutex held
func (ss *SessionService) exchange(ctx context.Context, sess *session.Session, segments []string) (*ExchangeResult, error) {
	exchangeID := uuid.New().String()
	operation := utils.NewOperationLogger(ss.sessionLogger.Logger, "exchange", exchangeID)
	operation.Start(zap.Int("segments", len(segments)))

	raw := make([][]byte, len(segments))
	for i, segment := range segments {
		raw[i] = []byte(segment)
	}

	start := time.Now()
	response, err := sess.WriteSegmentsAndRead(ctx, raw)
	duration := time.Since(start)
	ss.sessionLogger.LogExchange(exchangeID, len(segments), len(response), duration, err)

	if err != nil {
		operation.Error(err)
		ss.lastError = err
		if isFatal(err) {
			ss.logger.Warn("Dropping serial session after transport failure",
				zap.String("session_id", sess.ID()),
				zap.Error(err),
			)
			_ = ss.dropSession()
		}
		return nil, err
	}

	operation.Success(zap.Int("bytes_received", len(response)))
	return &ExchangeResult{
		ExchangeID: exchangeID,
		SessionID:  sess.ID(),
		Segments:   segments,
		Response:   response,
		Duration:   duration,
	}, nil
}

// Status returns the current session status without opening the port
func (ss *SessionService) Status() *SessionStatus {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	status := &SessionStatus{
		Port:         ss.config.Port,
		Driver:       ss.driver.Name(),
		EndReadByte:  int8(uint8(ss.config.EndReadByte)),
		EndWriteByte: ss.config.EndWriteByte,
		Separator:    ss.config.Separator,
	}
	if ss.lastError != nil {
		status.LastError = ss.lastError.Error()
	}
	if ss.session == nil {
		return status
	}

	stats := ss.session.Stats()
	openedAt := ss.openedAt
	status.Open = true
	status.SessionID = ss.session.ID()
	status.Line = ss.session.Configuration().String()
	status.ReceiveBuffer = ss.session.BufferPolicy().String()
	status.EndReadByte = ss.session.EndReadByte()
	status.EndWriteByte = string(ss.session.EndWriteByte())
	status.Separator = ss.session.Separator()
	status.OpenedAt = &openedAt
	status.Stats = &stats
	return status
}
