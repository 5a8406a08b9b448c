// internal/protocol/serial_connection.go
package protocol

import (
	"errors"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"serial-link/pkg/line"
	"serial-link/pkg/transport"
)

// SerialDriver opens local serial ports through go.bug.st/serial
type SerialDriver struct {
	logger *zap.Logger
}

// NewSerialDriver creates a new go.bug.st/serial driver
func NewSerialDriver(logger *zap.Logger) *SerialDriver {
	return &SerialDriver{
		logger: logger.With(zap.String("driver", DriverSerial)),
	}
}

// Name returns the driver name
func (d *SerialDriver) Name() string {
	return DriverSerial
}

// Open opens the named port with a 9600 8N1 mode until Configure is called
func (d *SerialDriver) Open(name string) (transport.Port, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &transport.InvalidPortInputError{Port: name}
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, classifyPortError(name, "open", err)
	}

	d.logger.Debug("Serial port opened", zap.String("port", name))
	return &serialConnection{
		name:   name,
		port:   port,
		logger: d.logger.With(zap.String("port", name)),
	}, nil
}

// serialConnection adapts serial.Port to transport.Port
type serialConnection struct {
	name   string
	port   serial.Port
	logger *zap.Logger
}

// Configure applies the line configuration as a serial mode
func (c *serialConnection) Configure(cfg line.Configuration) error {
	if cfg.FlowControl() != cfg.FlowControl().Effective() {
		c.logger.Debug("Flow control not supported, using none",
			zap.Stringer("requested", cfg.FlowControl()),
		)
	}

	if err := c.port.SetMode(toMode(cfg)); err != nil {
		return classifyPortError(c.name, "configure", err)
	}
	return nil
}

// SetTimeout sets the read timeout
func (c *serialConnection) SetTimeout(timeout time.Duration) error {
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return classifyPortError(c.name, "set_timeout", err)
	}
	return nil
}

func (c *serialConnection) Read(p []byte) (int, error) {
	n, err := c.port.Read(p)
	if err != nil {
		return n, classifyPortError(c.name, "read", err)
	}
	return n, nil
}

func (c *serialConnection) Write(p []byte) (int, error) {
	n, err := c.port.Write(p)
	if err != nil {
		return n, classifyPortError(c.name, "write", err)
	}
	return n, nil
}

func (c *serialConnection) Close() error {
	if err := c.port.Close(); err != nil {
		return classifyPortError(c.name, "close", err)
	}
	return nil
}

// toMode converts a line configuration into a go.bug.st serial mode
func toMode(cfg line.Configuration) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate(),
		DataBits: int(cfg.CharacterSize()),
		StopBits: serial.OneStopBit,
	}

	switch cfg.Parity() {
	case line.ParityOdd:
		mode.Parity = serial.OddParity
	case line.ParityEven:
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	if cfg.StopBits() == line.Stop2 {
		mode.StopBits = serial.TwoStopBits
	}

	return mode
}

// classifyPortError maps go.bug.st port errors onto the transport taxonomy
func classifyPortError(name, op string, err error) error {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return transport.Classify(op, err)
	}

	switch portErr.Code() {
	case serial.PortNotFound, serial.PortBusy:
		return &transport.NoDeviceError{Port: name, Err: err}
	case serial.InvalidSerialPort:
		return &transport.InvalidPortInputError{Port: name, Err: err}
	case serial.PermissionDenied:
		return &transport.IoError{Kind: transport.PermissionDenied, Op: op, Err: err}
	case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity,
		serial.InvalidStopBits, serial.InvalidTimeoutValue:
		return &transport.IoError{Kind: transport.InvalidInput, Op: op, Err: err}
	case serial.PortClosed:
		return &transport.IoError{Kind: transport.NotConnected, Op: op, Err: err}
	default:
		return &transport.IoError{Kind: transport.KindOf(err), Op: op, Err: err}
	}
}
