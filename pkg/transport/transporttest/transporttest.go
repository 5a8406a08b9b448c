// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"bytes"
	"os"
	"sync"
	"time"

	"serial-link/pkg/line"
	"serial-link/pkg/transport"
)

// EchoDriver opens in-memory ports that answer every segment terminated by
// EndWrite with Prefix, the segment and EndRead.
type EchoDriver struct {
	EndWrite []byte
	EndRead  byte
	Prefix   string
	OpenErr  error

	mutex sync.Mutex
	ports []*EchoPort
}

// NewEchoDriver returns a driver using the session defaults "S" and 0x1C
func NewEchoDriver() *EchoDriver {
	return &EchoDriver{EndWrite: []byte("S"), EndRead: 0x1C}
}

// Name implements transport.Driver
func (d *EchoDriver) Name() string { return "echo" }

// Open implements transport.Driver
func (d *EchoDriver) Open(name string) (transport.Port, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	port := &EchoPort{
		name:     name,
		endWrite: append([]byte(nil), d.EndWrite...),
		endRead:  d.EndRead,
		prefix:   d.Prefix,
	}
	d.ports = append(d.ports, port)
	return port, nil
}

// Ports returns every port opened so far
func (d *EchoDriver) Ports() []*EchoPort {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]*EchoPort(nil), d.ports...)
}

// EchoPort is the port returned by EchoDriver. A read with nothing pending
// returns (0, nil), the way a serial read timeout does.
type EchoPort struct {
	name     string
	endWrite []byte
	endRead  byte
	prefix   string

	mutex   sync.Mutex
	last    []byte
	pending bytes.Buffer
	writes  [][]byte
	config  line.Configuration
	timeout time.Duration
	closed  bool
}

func (p *EchoPort) Configure(cfg line.Configuration) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.config = cfg
	return nil
}

func (p *EchoPort) SetTimeout(timeout time.Duration) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.timeout = timeout
	return nil
}

func (p *EchoPort) Read(b []byte) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return 0, os.ErrClosed
	}
	if p.pending.Len() == 0 {
		return 0, nil
	}
	return p.pending.Read(b)
}

func (p *EchoPort) Write(b []byte) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return 0, os.ErrClosed
	}
	p.writes = append(p.writes, append([]byte(nil), b...))

	if bytes.Equal(b, p.endWrite) {
		p.pending.WriteString(p.prefix)
		p.pending.Write(p.last)
		p.pending.WriteByte(p.endRead)
		p.last = nil
		return len(b), nil
	}
	p.last = append(p.last, b...)
	return len(b), nil
}

func (p *EchoPort) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closed = true
	return nil
}

// Name returns the name the port was opened with
func (p *EchoPort) Name() string { return p.name }

// Configuration returns the last applied line configuration
func (p *EchoPort) Configuration() line.Configuration {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.config
}

// Timeout returns the last applied read timeout
func (p *EchoPort) Timeout() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.timeout
}

// Writes returns a copy of every write made to the port
func (p *EchoPort) Writes() [][]byte {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([][]byte(nil), p.writes...)
}

// Closed reports whether Close was called
func (p *EchoPort) Closed() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.closed
}
