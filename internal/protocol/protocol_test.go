package protocol

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"serial-link/pkg/line"
	"serial-link/pkg/session"
	"serial-link/pkg/transport"
)

func TestCreateDriver(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"", DriverSerial},
		{"serial", DriverSerial},
		{"TARM", DriverTarm},
		{"tcp", DriverTCP},
	}
	for _, tc := range cases {
		driver, err := CreateDriver(&DriverConfig{Name: tc.name}, zap.NewNop())
		if err != nil {
			t.Fatalf("%q: %v", tc.name, err)
		}
		if driver.Name() != tc.want {
			t.Fatalf("%q: got driver %s", tc.name, driver.Name())
		}
	}
}

func TestCreateDriverRejectsUnknown(t *testing.T) {
	if _, err := CreateDriver(&DriverConfig{Name: "usb"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := CreateDriver(nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing configuration")
	}
	if err := ValidateConfig(&DriverConfig{Name: "tcp", DialTimeout: -time.Second}); err == nil {
		t.Fatal("expected error for negative dial timeout")
	}
}

func TestToMode(t *testing.T) {
	cfg, err := line.BuildConfiguration(1, 19200, 7, 2, "hardware", time.Second)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	mode := toMode(cfg)
	if mode.BaudRate != 19200 || mode.DataBits != 7 {
		t.Fatalf("unexpected mode %+v", mode)
	}
	if mode.Parity != serial.OddParity || mode.StopBits != serial.TwoStopBits {
		t.Fatalf("unexpected mode %+v", mode)
	}

	cfg, _ = line.BuildConfiguration(0, 9600, 8, 1, "none", time.Second)
	mode = toMode(cfg)
	if mode.Parity != serial.NoParity || mode.StopBits != serial.OneStopBit {
		t.Fatalf("unexpected mode %+v", mode)
	}
}

func TestDriversRejectEmptyPortName(t *testing.T) {
	drivers := []transport.Driver{
		NewSerialDriver(zap.NewNop()),
		NewTarmDriver(zap.NewNop()),
		NewTCPDriver(&TCPConfig{}, zap.NewNop()),
	}
	for _, driver := range drivers {
		_, err := driver.Open("")
		var invalid *transport.InvalidPortInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected InvalidPortInputError, got %v", driver.Name(), err)
		}
	}
}

func TestClassifyPortErrorFallsBackToTaxonomy(t *testing.T) {
	err := classifyPortError("/dev/ttyUSB0", "read", errors.New("boom"))
	var ioErr *transport.IoError
	if !errors.As(err, &ioErr) || ioErr.Kind != transport.Other || ioErr.Op != "read" {
		t.Fatalf("unexpected error %v", err)
	}
}

// echoServer answers every segment terminated by 'S' with the segment and
// the 0x1C read terminator
func echoServer(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		for {
			segment, err := reader.ReadBytes('S')
			if err != nil {
				return
			}
			reply := append([]byte("re:"), segment[:len(segment)-1]...)
			reply = append(reply, 0x00, 0x1C)
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}()

	return listener.Addr().String()
}

func TestTCPDriverSessionExchange(t *testing.T) {
	address := echoServer(t)
	driver := NewTCPDriver(&TCPConfig{DialTimeout: time.Second, WriteTimeout: time.Second}, zap.NewNop())

	s, err := session.Open(driver, address, 9600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	result, err := s.WriteSegmentsAndRead(context.Background(), [][]byte{[]byte("ping"), []byte("pong")})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(result) != "re:pingre:pong" {
		t.Fatalf("result = %q", result)
	}
}

func TestTCPDriverReadTimeout(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	settings := session.DefaultSettings(9600)
	settings.TimeoutSeconds = 0
	settings.TimeoutNanoseconds = uint32(50 * time.Millisecond)

	driver := NewTCPDriver(&TCPConfig{DialTimeout: time.Second}, zap.NewNop())
	s, err := session.OpenWithSettings(driver, listener.Addr().String(), settings)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	_, err = s.ReadUntilTerminator(context.Background())
	var ioErr *transport.IoError
	if !errors.As(err, &ioErr) || ioErr.Kind != transport.TimedOut {
		t.Fatalf("expected timed out IoError, got %v", err)
	}
}

func TestTCPDriverRefusedIsNoDevice(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()

	driver := NewTCPDriver(&TCPConfig{DialTimeout: time.Second}, zap.NewNop())
	_, err = session.Open(driver, address, 9600)
	var noDevice *transport.NoDeviceError
	if !errors.As(err, &noDevice) || noDevice.Port != address {
		t.Fatalf("expected NoDeviceError, got %v", err)
	}
}
