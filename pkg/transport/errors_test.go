package transport

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want IoKind
	}{
		{"eof", io.EOF, UnexpectedEOF},
		{"short write", io.ErrShortWrite, WriteZero},
		{"deadline", fmt.Errorf("read: %w", os.ErrDeadlineExceeded), TimedOut},
		{"missing path", &fs.PathError{Op: "open", Path: "/dev/ttyX", Err: syscall.ENOENT}, NotFound},
		{"permission", &fs.PathError{Op: "open", Path: "/dev/ttyS0", Err: syscall.EACCES}, PermissionDenied},
		{"busy", syscall.EBUSY, AddrInUse},
		{"broken pipe", syscall.EPIPE, BrokenPipe},
		{"interrupted", syscall.EINTR, Interrupted},
		{"reset", syscall.ECONNRESET, ConnectionReset},
		{"would block", syscall.EAGAIN, WouldBlock},
		{"closed", os.ErrClosed, NotConnected},
		{"unknown", errors.New("boom"), Other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyKeepsTaxonomyErrors(t *testing.T) {
	noDevice := &NoDeviceError{Port: "COM9"}
	if got := Classify("open", noDevice); got != noDevice {
		t.Fatalf("expected original error, got %v", got)
	}

	ioErr := &IoError{Kind: TimedOut, Op: "read"}
	wrapped := fmt.Errorf("frame: %w", ioErr)
	if got := Classify("write", wrapped); got != wrapped {
		t.Fatalf("expected wrapped error unchanged, got %v", got)
	}

	if Classify("read", nil) != nil {
		t.Fatal("nil should stay nil")
	}
}

func TestClassifyWrapsCause(t *testing.T) {
	cause := syscall.EPIPE
	err := Classify("write", cause)

	var ioErr *IoError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IoError, got %T", err)
	}
	if ioErr.Kind != BrokenPipe || ioErr.Op != "write" {
		t.Fatalf("unexpected error %+v", ioErr)
	}
	if !errors.Is(err, syscall.EPIPE) {
		t.Fatal("cause should be reachable through Unwrap")
	}
	if !strings.HasPrefix(err.Error(), "write: pipe has been broken") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestEveryKindHasDescription(t *testing.T) {
	for kind := Other; kind <= UnexpectedEOF; kind++ {
		if kind.Description() == "" || kind.String() == "" {
			t.Fatalf("kind %d lacks a name or description", kind)
		}
	}
	if IoKind(99).Description() != Other.Description() {
		t.Fatal("unknown kinds should describe as other")
	}
}
