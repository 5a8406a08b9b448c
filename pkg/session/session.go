// pkg/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serial-link/pkg/line"
	"serial-link/pkg/transport"
)

// ErrClosed is returned by operations on a closed session
var ErrClosed = errors.New("session closed")

// Stats provides session-level statistics
type Stats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	FrameCount     int64         `json:"frame_count"`
	ExchangeCount  int64         `json:"exchange_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsOpen         bool          `json:"is_open"`
}

// Session exchanges terminator-delimited frames over one opened port.
// A Session is safe for use by multiple goroutines; operations are
// serialized.
type Session struct {
	id        string
	portName  string
	driver    string
	config    line.Configuration
	policy    line.BufferPolicy
	endWrite  []byte
	endRead   int8
	separator string
	logger    *zap.Logger

	mutex   sync.Mutex
	port    transport.Port
	readBuf [1]byte
	stats   Stats
	closed  bool
}

// Open opens a session with the default line settings: no parity, 8 data
// bits, 1 stop bit, no flow control, a 60 second timeout, 0x1C as read
// terminator, "S" as write terminator and a 64 byte receive buffer.
func Open(driver transport.Driver, portName string, baudRate int, opts ...Option) (*Session, error) {
	return OpenWithSettings(driver, portName, DefaultSettings(baudRate), opts...)
}

// OpenWithSettings validates settings, opens and configures the port and
// returns a ready session. On failure no session is returned and any port
// opened along the way is closed.
func OpenWithSettings(driver transport.Driver, portName string, settings Settings, opts ...Option) (*Session, error) {
	o := newOptions(opts)

	timeout := line.NewTimeout(settings.TimeoutSeconds, settings.TimeoutNanoseconds)
	config, err := line.BuildConfiguration(
		settings.Parity,
		settings.BaudRate,
		settings.CharSize,
		settings.StopBits,
		settings.FlowControl,
		timeout,
	)
	if err != nil {
		o.logger.Warn("Rejected line settings", zap.String("port", portName), zap.Error(err))
		return nil, err
	}

	id := uuid.New().String()
	logger := o.logger.With(
		zap.String("session_id", id),
		zap.String("port", portName),
		zap.String("driver", driver.Name()),
	)

	logger.Info("Opening serial port", zap.Stringer("line", config))

	port, err := driver.Open(portName)
	if err != nil {
		err = transport.Classify("open", err)
		logger.Error("Failed to open serial port", zap.Error(err))
		return nil, err
	}

	release := func(stage string, cause error) error {
		if closeErr := port.Close(); closeErr != nil {
			logger.Warn("Failed to release serial port", zap.String("stage", stage), zap.Error(closeErr))
		}
		logger.Error("Failed to set up serial session", zap.String("stage", stage), zap.Error(cause))
		return cause
	}

	if err := port.Configure(config); err != nil {
		return nil, release("configure", transport.Classify("configure", err))
	}
	if err := port.SetTimeout(timeout); err != nil {
		return nil, release("set_timeout", transport.Classify("set_timeout", err))
	}
	policy, err := line.ParseBufferPolicy(settings.ReceiveBufferPolicy)
	if err != nil {
		return nil, release("receive_buffer", err)
	}

	s := &Session{
		id:        id,
		portName:  portName,
		driver:    driver.Name(),
		config:    config,
		policy:    policy,
		endWrite:  append([]byte(nil), settings.EndWriteByte...),
		endRead:   settings.EndReadByte,
		separator: o.separator,
		logger:    logger,
		port:      port,
		stats: Stats{
			IsOpen:       true,
			LastActivity: time.Now(),
		},
	}

	logger.Info("Serial session opened",
		zap.Int8("end_read_byte", s.endRead),
		zap.Binary("end_write_byte", s.endWrite),
		zap.Stringer("receive_buffer", policy),
	)
	return s, nil
}

// ID returns the unique session identifier
func (s *Session) ID() string { return s.id }

// PortName returns the identifier the port was opened with
func (s *Session) PortName() string { return s.portName }

// Driver returns the name of the driver that opened the port
func (s *Session) Driver() string { return s.driver }

// Configuration returns the applied line configuration
func (s *Session) Configuration() line.Configuration { return s.config }

// BufferPolicy returns the receive buffer policy
func (s *Session) BufferPolicy() line.BufferPolicy { return s.policy }

// EndReadByte returns the read terminator
func (s *Session) EndReadByte() int8 { return s.endRead }

// EndWriteByte returns a copy of the write terminator
func (s *Session) EndWriteByte() []byte {
	return append([]byte(nil), s.endWrite...)
}

// Separator returns the separator Exchange splits data on
func (s *Session) Separator() string { return s.separator }

// Stats returns a snapshot of the session statistics
func (s *Session) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// Close releases the port. Closing a closed session is a no-op.
func (s *Session) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.stats.IsOpen = false

	if err := s.port.Close(); err != nil {
		s.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", transport.Classify("close", err))
	}

	s.logger.Info("Serial session closed")
	return nil
}

// Split breaks data into segments according to the receive buffer policy
func (s *Session) Split(data string) ([]string, error) {
	return s.policy.Split(data, s.separator)
}

// Exchange splits data with Split and sends the segments with
// WriteSegmentsAndRead
func (s *Session) Exchange(ctx context.Context, data string) ([]byte, error) {
	parts, err := s.Split(data)
	if err != nil {
		return nil, err
	}

	segments := make([][]byte, len(parts))
	for i, part := range parts {
		segments[i] = []byte(part)
	}
	return s.WriteSegmentsAndRead(ctx, segments)
}

// WriteSegmentsAndRead writes each segment followed by the write terminator
// and reads one reply frame per segment. Replies are concatenated into a
// single result. The first failing write or read aborts the call.
func (s *Session) WriteSegmentsAndRead(ctx context.Context, segments [][]byte) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	startTime := time.Now()
	result := []byte{}
	for i, segment := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.write(segment); err != nil {
			s.logger.Error("Serial write failed", zap.Int("segment", i), zap.Error(err))
			return nil, err
		}
		if err := s.write(s.endWrite); err != nil {
			s.logger.Error("Serial terminator write failed", zap.Int("segment", i), zap.Error(err))
			return nil, err
		}

		frame, err := s.readUntilTerminator(ctx)
		if err != nil {
			s.logger.Error("Serial frame read failed", zap.Int("segment", i), zap.Error(err))
			return nil, err
		}
		result = append(result, frame...)
	}

	s.stats.ExchangeCount++
	s.updateAverageLatency(time.Since(startTime))

	s.logger.Debug("Exchange completed",
		zap.Int("segments", len(segments)),
		zap.Int("bytes", len(result)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return result, nil
}

// ReadUntilTerminator reads one frame. Bytes are read one at a time until
// the read terminator is seen; the terminator is consumed but not returned
// and NUL bytes are dropped.
func (s *Session) ReadUntilTerminator(ctx context.Context) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.readUntilTerminator(ctx)
}

func (s *Session) readUntilTerminator(ctx context.Context) ([]byte, error) {
	frame := []byte{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.port.Read(s.readBuf[:])
		if n > 0 {
			s.stats.BytesRead++
			s.stats.LastActivity = time.Now()

			b := s.readBuf[0]
			if int8(b) == s.endRead {
				s.stats.FrameCount++
				return frame, nil
			}
			if b != 0 {
				frame = append(frame, b)
			}
		}
		if err != nil {
			s.stats.ErrorCount++
			return nil, transport.Classify("read", err)
		}
		if n == 0 {
			// go.bug.st/serial reports an expired read timeout as (0, nil)
			s.stats.ErrorCount++
			return nil, &transport.IoError{Kind: transport.TimedOut, Op: "read"}
		}
	}
}

func (s *Session) write(data []byte) error {
	n, err := s.port.Write(data)
	if err != nil {
		s.stats.ErrorCount++
		return transport.Classify("write", err)
	}
	if n != len(data) {
		s.stats.ErrorCount++
		return &transport.IoError{
			Kind: transport.WriteZero,
			Op:   "write",
			Err:  fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data)),
		}
	}

	s.stats.BytesWritten += int64(n)
	s.stats.LastActivity = time.Now()
	return nil
}

// updateAverageLatency updates the running average exchange latency
func (s *Session) updateAverageLatency(latency time.Duration) {
	if s.stats.AverageLatency == 0 {
		s.stats.AverageLatency = latency
	} else {
		s.stats.AverageLatency = (s.stats.AverageLatency + latency) / 2
	}
}
