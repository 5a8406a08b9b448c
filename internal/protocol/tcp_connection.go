// internal/protocol/tcp_connection.go
package protocol

import (
	"errors"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"

	"serial-link/pkg/line"
	"serial-link/pkg/transport"
)

// TCPConfig represents raw serial-over-TCP configuration
type TCPConfig struct {
	DialTimeout  time.Duration `json:"dial_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeepAlive    bool          `json:"keep_alive"`
}

// TCPDriver reaches a serial line exported by a terminal server such as
// ser2net in raw mode. Port identifiers are "host:port".
type TCPDriver struct {
	config *TCPConfig
	logger *zap.Logger
}

// NewTCPDriver creates a new TCP driver
func NewTCPDriver(config *TCPConfig, logger *zap.Logger) *TCPDriver {
	return &TCPDriver{
		config: config,
		logger: logger.With(zap.String("driver", DriverTCP)),
	}
}

// Name returns the driver name
func (d *TCPDriver) Name() string {
	return DriverTCP
}

// Open dials the terminal server
func (d *TCPDriver) Open(address string) (transport.Port, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, &transport.InvalidPortInputError{Port: address, Err: err}
	}

	dialer := &net.Dialer{
		Timeout: d.config.DialTimeout,
	}

	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		d.logger.Error("Failed to open TCP connection", zap.String("address", address), zap.Error(err))
		return nil, classifyDialError(address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok && d.config.KeepAlive {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}

	d.logger.Info("TCP connection opened", zap.String("address", address))
	return &tcpConnection{
		conn:         conn,
		writeTimeout: d.config.WriteTimeout,
		logger:       d.logger.With(zap.String("address", address)),
	}, nil
}

type tcpConnection struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
}

// Configure records the configuration; line parameters are owned by the
// terminal server
func (c *tcpConnection) Configure(cfg line.Configuration) error {
	c.logger.Debug("Line settings are applied by the remote end", zap.Stringer("line", cfg))
	return nil
}

// SetTimeout sets the per-read deadline
func (c *tcpConnection) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return &transport.IoError{Kind: transport.InvalidInput, Op: "set_timeout"}
	}
	c.readTimeout = timeout
	return nil
}

func (c *tcpConnection) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	n, err := c.conn.Read(p)
	if err != nil {
		return n, transport.Classify("read", err)
	}
	return n, nil
}

func (c *tcpConnection) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	n, err := c.conn.Write(p)
	if err != nil {
		return n, transport.Classify("write", err)
	}
	return n, nil
}

func (c *tcpConnection) Close() error {
	return transport.Classify("close", c.conn.Close())
}

// classifyDialError treats an unreachable or unknown endpoint as a missing
// device
func classifyDialError(address string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return &transport.NoDeviceError{Port: address, Err: err}
	}
	return transport.Classify("open", err)
}
