// pkg/transport/transport.go
package transport

import (
	"io"
	"time"

	"serial-link/pkg/line"
)

// Driver opens ports by identifier, e.g. "COM1" or "/dev/ttyUSB0"
type Driver interface {
	// Open returns an opened port. Errors are *NoDeviceError,
	// *InvalidPortInputError or *IoError.
	Open(name string) (Port, error)

	// Name identifies the driver implementation
	Name() string
}

// Port is an opened serial line
type Port interface {
	io.ReadWriteCloser

	// Configure applies line parameters to the open port
	Configure(cfg line.Configuration) error

	// SetTimeout sets the per-read timeout
	SetTimeout(timeout time.Duration) error
}
