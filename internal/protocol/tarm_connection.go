// internal/protocol/tarm_connection.go
package protocol

import (
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"

	"serial-link/pkg/line"
	"serial-link/pkg/transport"
)

// TarmDriver opens local serial ports through github.com/tarm/serial.
// tarm/serial only applies settings at open time, so Configure and
// SetTimeout reopen the port.
type TarmDriver struct {
	logger *zap.Logger
}

// NewTarmDriver creates a new tarm/serial driver
func NewTarmDriver(logger *zap.Logger) *TarmDriver {
	return &TarmDriver{
		logger: logger.With(zap.String("driver", DriverTarm)),
	}
}

// Name returns the driver name
func (d *TarmDriver) Name() string {
	return DriverTarm
}

// Open opens the named port at 9600 8N1
func (d *TarmDriver) Open(name string) (transport.Port, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &transport.InvalidPortInputError{Port: name}
	}

	config := &serial.Config{
		Name:     name,
		Baud:     9600,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, classifyOpenError(name, err)
	}

	d.logger.Debug("Serial port opened", zap.String("port", name))
	return &tarmConnection{
		config: config,
		port:   port,
		logger: d.logger.With(zap.String("port", name)),
	}, nil
}

type tarmConnection struct {
	config *serial.Config
	port   *serial.Port
	logger *zap.Logger
}

// Configure reopens the port with the line configuration
func (c *tarmConnection) Configure(cfg line.Configuration) error {
	next := *c.config
	next.Baud = cfg.BaudRate()
	next.Size = byte(cfg.CharacterSize())

	switch cfg.Parity() {
	case line.ParityOdd:
		next.Parity = serial.ParityOdd
	case line.ParityEven:
		next.Parity = serial.ParityEven
	default:
		next.Parity = serial.ParityNone
	}

	next.StopBits = serial.Stop1
	if cfg.StopBits() == line.Stop2 {
		next.StopBits = serial.Stop2
	}

	return c.reopen(&next, "configure")
}

// SetTimeout reopens the port with the read timeout
func (c *tarmConnection) SetTimeout(timeout time.Duration) error {
	next := *c.config
	next.ReadTimeout = timeout
	return c.reopen(&next, "set_timeout")
}

func (c *tarmConnection) reopen(config *serial.Config, op string) error {
	if c.port != nil {
		if err := c.port.Close(); err != nil {
			c.logger.Warn("Failed to close port before reopening", zap.Error(err))
		}
		c.port = nil
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		return classifyOpenError(config.Name, err)
	}

	c.port = port
	c.config = config
	c.logger.Debug("Serial port reopened",
		zap.String("op", op),
		zap.Int("baud_rate", config.Baud),
		zap.Duration("read_timeout", config.ReadTimeout),
	)
	return nil
}

func (c *tarmConnection) Read(p []byte) (int, error) {
	if c.port == nil {
		return 0, &transport.IoError{Kind: transport.NotConnected, Op: "read"}
	}

	n, err := c.port.Read(p)
	if n == 0 && errors.Is(err, io.EOF) && c.config.ReadTimeout > 0 {
		// tarm/serial reports an expired read timeout as io.EOF
		return 0, &transport.IoError{Kind: transport.TimedOut, Op: "read"}
	}
	if err != nil {
		return n, transport.Classify("read", err)
	}
	return n, nil
}

func (c *tarmConnection) Write(p []byte) (int, error) {
	if c.port == nil {
		return 0, &transport.IoError{Kind: transport.NotConnected, Op: "write"}
	}

	n, err := c.port.Write(p)
	if err != nil {
		return n, transport.Classify("write", err)
	}
	return n, nil
}

func (c *tarmConnection) Close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return transport.Classify("close", err)
}

// classifyOpenError maps an open failure from the OS onto the taxonomy
func classifyOpenError(name string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO), errors.Is(err, syscall.EBUSY):
		return &transport.NoDeviceError{Port: name, Err: err}
	case errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.ENAMETOOLONG):
		return &transport.InvalidPortInputError{Port: name, Err: err}
	default:
		return transport.Classify("open", err)
	}
}
