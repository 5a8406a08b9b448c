// pkg/transport/errors.go
package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// NoDeviceError reports that the device does not exist or is held by
// another process
type NoDeviceError struct {
	Port string
	Err  error
}

func (e *NoDeviceError) Error() string {
	return fmt.Sprintf("no such device %q is available, either used by another process or does not exist", e.Port)
}

func (e *NoDeviceError) Unwrap() error { return e.Err }

// InvalidPortInputError reports a malformed port identifier
type InvalidPortInputError struct {
	Port string
	Err  error
}

func (e *InvalidPortInputError) Error() string {
	return fmt.Sprintf("invalid input for the port name %q", e.Port)
}

func (e *InvalidPortInputError) Unwrap() error { return e.Err }

// IoKind is a platform-neutral classification of I/O failures
type IoKind int

const (
	Other IoKind = iota
	NotFound
	PermissionDenied
	ConnectionRefused
	ConnectionReset
	ConnectionAborted
	NotConnected
	AddrInUse
	AddrNotAvailable
	BrokenPipe
	AlreadyExists
	WouldBlock
	InvalidInput
	InvalidData
	TimedOut
	WriteZero
	Interrupted
	UnexpectedEOF
)

var ioKindNames = map[IoKind]string{
	Other:             "other",
	NotFound:          "not-found",
	PermissionDenied:  "permission-denied",
	ConnectionRefused: "connection-refused",
	ConnectionReset:   "connection-reset",
	ConnectionAborted: "connection-aborted",
	NotConnected:      "not-connected",
	AddrInUse:         "addr-in-use",
	AddrNotAvailable:  "addr-not-available",
	BrokenPipe:        "broken-pipe",
	AlreadyExists:     "already-exists",
	WouldBlock:        "would-block",
	InvalidInput:      "invalid-input",
	InvalidData:       "invalid-data",
	TimedOut:          "timed-out",
	WriteZero:         "write-zero",
	Interrupted:       "interrupted",
	UnexpectedEOF:     "unexpected-eof",
}

var ioKindDescriptions = map[IoKind]string{
	Other:             "unknown I/O level error",
	NotFound:          "port not found, check port name",
	PermissionDenied:  "permission has been denied",
	ConnectionRefused: "connection has been refused",
	ConnectionReset:   "connection has been reset",
	ConnectionAborted: "connection has been aborted",
	NotConnected:      "not connected",
	AddrInUse:         "port is in use",
	AddrNotAvailable:  "port not found, check port name",
	BrokenPipe:        "pipe has been broken",
	AlreadyExists:     "connection already exists",
	WouldBlock:        "operation would block but blocking was not requested",
	InvalidInput:      "input parameter is invalid",
	InvalidData:       "data used for the operation is invalid",
	TimedOut:          "port timed out",
	WriteZero:         "write returned zero bytes, data was not written",
	Interrupted:       "operation was interrupted",
	UnexpectedEOF:     "unexpected end of file",
}

// String returns the kebab-case kind name
func (k IoKind) String() string {
	if name, ok := ioKindNames[k]; ok {
		return name
	}
	return ioKindNames[Other]
}

// Description returns the fixed human-readable description of the kind
func (k IoKind) Description() string {
	if desc, ok := ioKindDescriptions[k]; ok {
		return desc
	}
	return ioKindDescriptions[Other]
}

// IoError is any transport failure other than a missing device or a bad
// port name
type IoError struct {
	Kind IoKind
	Op   string
	Err  error
}

func (e *IoError) Error() string {
	msg := e.Kind.Description()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IoError) Unwrap() error { return e.Err }

// IsTransportError reports whether err already belongs to the taxonomy
func IsTransportError(err error) bool {
	var noDevice *NoDeviceError
	var invalid *InvalidPortInputError
	var ioErr *IoError
	return errors.As(err, &noDevice) || errors.As(err, &invalid) || errors.As(err, &ioErr)
}

// Classify wraps err into an *IoError tagged with op. Errors already in the
// taxonomy are returned unchanged; nil stays nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransportError(err) {
		return err
	}
	return &IoError{Kind: KindOf(err), Op: op, Err: err}
}

// KindOf maps standard library errors onto an IoKind
func KindOf(err error) IoKind {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return UnexpectedEOF
	case errors.Is(err, io.ErrShortWrite):
		return WriteZero
	case errors.Is(err, os.ErrDeadlineExceeded):
		return TimedOut
	case errors.Is(err, os.ErrClosed):
		return NotConnected
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT, syscall.ENODEV, syscall.ENXIO:
			return NotFound
		case syscall.EACCES, syscall.EPERM:
			return PermissionDenied
		case syscall.ECONNREFUSED:
			return ConnectionRefused
		case syscall.ECONNRESET:
			return ConnectionReset
		case syscall.ECONNABORTED:
			return ConnectionAborted
		case syscall.ENOTCONN:
			return NotConnected
		case syscall.EADDRINUSE, syscall.EBUSY:
			return AddrInUse
		case syscall.EADDRNOTAVAIL:
			return AddrNotAvailable
		case syscall.EPIPE:
			return BrokenPipe
		case syscall.EEXIST:
			return AlreadyExists
		case syscall.EAGAIN:
			return WouldBlock
		case syscall.EINVAL:
			return InvalidInput
		case syscall.ETIMEDOUT:
			return TimedOut
		case syscall.EINTR:
			return Interrupted
		}
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return NotFound
	case errors.Is(err, os.ErrPermission):
		return PermissionDenied
	case errors.Is(err, os.ErrExist):
		return AlreadyExists
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return TimedOut
	}
	return Other
}
