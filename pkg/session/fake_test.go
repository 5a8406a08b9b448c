package session

import (
	"bytes"
	"io"
	"time"

	"serial-link/pkg/line"
	"serial-link/pkg/transport"
)

// fakeDriver hands out a prepared port and counts Open calls
type fakeDriver struct {
	port    *fakePort
	openErr error
	opens   int
	names   []string
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Open(name string) (transport.Port, error) {
	d.opens++
	d.names = append(d.names, name)
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.port, nil
}

// fakePort replays input and records writes. When echo is set every write
// terminator triggers a reply of the last segment, the terminator, a NUL and
// the read terminator.
type fakePort struct {
	input    *bytes.Reader
	readErr  error
	writeErr error
	shortBy  int

	configureErr error
	timeoutErr   error

	echo     bool
	endWrite []byte
	endRead  byte
	last     []byte
	pending  []byte

	writes  [][]byte
	reads   int
	config  *line.Configuration
	timeout time.Duration
	closed  int
}

func newFakePort(input []byte) *fakePort {
	return &fakePort{input: bytes.NewReader(input)}
}

func newEchoPort(endWrite []byte, endRead byte) *fakePort {
	return &fakePort{echo: true, endWrite: endWrite, endRead: endRead, input: bytes.NewReader(nil)}
}

func (p *fakePort) Configure(cfg line.Configuration) error {
	if p.configureErr != nil {
		return p.configureErr
	}
	p.config = &cfg
	return nil
}

func (p *fakePort) SetTimeout(timeout time.Duration) error {
	if p.timeoutErr != nil {
		return p.timeoutErr
	}
	p.timeout = timeout
	return nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.writes = append(p.writes, append([]byte(nil), data...))
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.echo {
		if bytes.Equal(data, p.endWrite) {
			p.pending = append(p.pending, p.last...)
			p.pending = append(p.pending, data...)
			p.pending = append(p.pending, 0x00, p.endRead)
		} else {
			p.last = append([]byte(nil), data...)
		}
	}
	return len(data) - p.shortBy, nil
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.reads++
	if p.echo {
		if len(p.pending) == 0 {
			return 0, io.EOF
		}
		n := copy(buf, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	if p.input.Len() == 0 && p.readErr != nil {
		return 0, p.readErr
	}
	return p.input.Read(buf)
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}
