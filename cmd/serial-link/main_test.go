package main

import (
	"bytes"
	"strings"
	"testing"

	"serial-link/internal/discovery"
)

func TestFindCommand(t *testing.T) {
	for _, name := range []string{"ports", "send", "run", "serve"} {
		if findCommand(name) == nil {
			t.Fatalf("command %s not registered", name)
		}
	}
	if findCommand("flash") != nil {
		t.Fatal("unexpected command")
	}
}

func TestPrintPorts(t *testing.T) {
	var buf bytes.Buffer
	err := printPorts(&buf, []*discovery.PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "A50285BI", Product: "FT232R"},
	})
	if err != nil {
		t.Fatalf("print: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "PORT") {
		t.Fatalf("missing header: %q", lines[0])
	}
	if fields := strings.Fields(lines[1]); fields[0] != "/dev/ttyS0" || fields[2] != "-" {
		t.Fatalf("unexpected row %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); fields[2] != "0403:6001" || fields[3] != "A50285BI" || fields[4] != "FT232R" {
		t.Fatalf("unexpected row %q", lines[2])
	}
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	if err := printResponse(&buf, []byte("OK"), false); err != nil || buf.String() != "OK\n" {
		t.Fatalf("text = %q (%v)", buf.String(), err)
	}

	buf.Reset()
	if err := printResponse(&buf, []byte{0x01, 0xAB}, true); err != nil || buf.String() != "01ab\n" {
		t.Fatalf("hex = %q (%v)", buf.String(), err)
	}
}

func TestExecuteRejectsMissingPort(t *testing.T) {
	t.Setenv("SERIAL_LINK_SERIAL_PORT", "")
	err := execute(findCommand("send"), []string{"--config", "", "--log-output", "stderr", "ping"})
	if err == nil || !strings.Contains(err.Error(), "no port configured") {
		t.Fatalf("expected missing port error, got %v", err)
	}
}
