package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"serial-link/internal/config"
	"serial-link/pkg/line"
	"serial-link/pkg/transport"
	"serial-link/pkg/transport/transporttest"
)

func testSerialConfig() *config.SerialConfig {
	return &config.SerialConfig{
		Driver:         "serial",
		Port:           "/dev/ttyTEST0",
		BaudRate:       9600,
		CharSize:       8,
		StopBits:       1,
		FlowControl:    "none",
		EndReadByte:    0x1C,
		EndWriteByte:   "S",
		TimeoutSeconds: 1,
		ReceiveBuffer:  "4",
		Separator:      ";",
	}
}

func TestExchangeOpensLazily(t *testing.T) {
	driver := transporttest.NewEchoDriver()
	svc := NewSessionService(testSerialConfig(), driver, zap.NewNop())

	if svc.IsOpen() {
		t.Fatal("session should not be open before first use")
	}

	result, err := svc.Exchange(context.Background(), []string{"ping", "pong"})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(result.Response) != "pingpong" {
		t.Fatalf("response = %q", result.Response)
	}
	if result.ExchangeID == "" || result.SessionID == "" {
		t.Fatalf("missing ids in %+v", result)
	}
	if !svc.IsOpen() || len(driver.Ports()) != 1 {
		t.Fatalf("expected one open session, ports = %d", len(driver.Ports()))
	}

	if _, err := svc.Exchange(context.Background(), []string{"again"}); err != nil {
		t.Fatalf("second exchange: %v", err)
	}
	if len(driver.Ports()) != 1 {
		t.Fatal("session should be reused")
	}
}

func TestExchangeDataSplitsWithPolicy(t *testing.T) {
	driver := transporttest.NewEchoDriver()
	svc := NewSessionService(testSerialConfig(), driver, zap.NewNop())

	result, err := svc.ExchangeData(context.Background(), "ab;cd;ef", "")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if len(result.Segments) != 3 || string(result.Response) != "abcdef" {
		t.Fatalf("unexpected result %+v (%q)", result, result.Response)
	}

	result, err = svc.ExchangeData(context.Background(), "xyz", "")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if len(result.Segments) != 1 || string(result.Response) != "xyz" {
		t.Fatalf("short data should stay one segment, got %+v", result.Segments)
	}

	_, err = svc.ExchangeData(context.Background(), "abcdef|x", "|")
	var tooLarge *line.SegmentTooLargeError
	if !errors.As(err, &tooLarge) || tooLarge.Index != 0 || tooLarge.Limit != 4 {
		t.Fatalf("expected SegmentTooLargeError, got %v", err)
	}
}

func TestExchangeRejectsEmpty(t *testing.T) {
	svc := NewSessionService(testSerialConfig(), transporttest.NewEchoDriver(), zap.NewNop())
	if _, err := svc.Exchange(context.Background(), nil); !errors.Is(err, ErrEmptyExchange) {
		t.Fatalf("expected ErrEmptyExchange, got %v", err)
	}
}

func TestOpenFailureIsReported(t *testing.T) {
	driver := transporttest.NewEchoDriver()
	driver.OpenErr = &transport.NoDeviceError{Port: "/dev/ttyTEST0"}
	svc := NewSessionService(testSerialConfig(), driver, zap.NewNop())

	err := svc.Open(context.Background())
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	var noDevice *transport.NoDeviceError
	if !errors.As(err, &noDevice) {
		t.Fatalf("cause lost: %v", err)
	}

	status := svc.Status()
	if status.Open || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestInvalidSettingsNeverOpenPort(t *testing.T) {
	cfg := testSerialConfig()
	cfg.Parity = 7
	driver := transporttest.NewEchoDriver()
	svc := NewSessionService(cfg, driver, zap.NewNop())

	_, err := svc.Exchange(context.Background(), []string{"x"})
	var parity *line.ParityRangeError
	if !errors.As(err, &parity) || parity.Value != 7 {
		t.Fatalf("expected ParityRangeError, got %v", err)
	}
	if len(driver.Ports()) != 0 {
		t.Fatal("driver should not be called for invalid settings")
	}
}

func TestTimeoutIsIoError(t *testing.T) {
	driver := transporttest.NewEchoDriver()
	driver.EndWrite = []byte("never")
	svc := NewSessionService(testSerialConfig(), driver, zap.NewNop())

	_, err := svc.Exchange(context.Background(), []string{"ping"})
	var ioErr *transport.IoError
	if !errors.As(err, &ioErr) || ioErr.Kind != transport.TimedOut {
		t.Fatalf("expected timed out IoError, got %v", err)
	}
	if svc.Status().LastError == "" {
		t.Fatal("last error should be recorded")
	}
}

func TestCloseAndReopen(t *testing.T) {
	driver := transporttest.NewEchoDriver()
	svc := NewSessionService(testSerialConfig(), driver, zap.NewNop())

	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	status := svc.Status()
	if !status.Open || status.Line != "9600/8N1 flow=none timeout=1s" || status.ReceiveBuffer != "4" {
		t.Fatalf("unexpected status %+v", status)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !driver.Ports()[0].Closed() || svc.IsOpen() {
		t.Fatal("port should be closed")
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if _, err := svc.Exchange(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("exchange after reopen: %v", err)
	}
	if len(driver.Ports()) != 2 {
		t.Fatalf("expected a second port, got %d", len(driver.Ports()))
	}
}

func TestFatalIoErrorReopensOnNextExchange(t *testing.T) {
	driver := transporttest.NewEchoDriver()
	svc := NewSessionService(testSerialConfig(), driver, zap.NewNop())

	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	// device unplugged underneath the session
	driver.Ports()[0].Close()

	_, err := svc.Exchange(context.Background(), []string{"ping"})
	var ioErr *transport.IoError
	if !errors.As(err, &ioErr) || ioErr.Kind != transport.NotConnected {
		t.Fatalf("expected not connected IoError, got %v", err)
	}
	if svc.IsOpen() {
		t.Fatal("dead session should be dropped")
	}

	result, err := svc.Exchange(context.Background(), []string{"ping"})
	if err != nil {
		t.Fatalf("exchange after failure: %v", err)
	}
	if string(result.Response) != "ping" || len(driver.Ports()) != 2 {
		t.Fatalf("expected a reopened port, response = %q ports = %d", result.Response, len(driver.Ports()))
	}
	if svc.Status().LastError != "" {
		t.Fatal("reopen should clear the last error")
	}
}

func TestTimeoutKeepsSessionOpen(t *testing.T) {
	driver := transporttest.NewEchoDriver()
	driver.EndWrite = []byte("never")
	svc := NewSessionService(testSerialConfig(), driver, zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := svc.Exchange(context.Background(), []string{"ping"}); err == nil {
			t.Fatal("expected timeout")
		}
	}
	if !svc.IsOpen() || len(driver.Ports()) != 1 {
		t.Fatalf("timeouts should reuse the port, ports = %d", len(driver.Ports()))
	}
}

func TestExchangeIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := NewSessionService(testSerialConfig(), transporttest.NewEchoDriver(), zap.New(core))

	if _, err := svc.Exchange(context.Background(), []string{"ping"}); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	entries := logs.FilterMessage("Session exchange completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one exchange log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["segments"] != int64(1) || fields["bytes_received"] != int64(4) {
		t.Fatalf("unexpected fields %v", fields)
	}
}
