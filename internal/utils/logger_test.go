package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"serial-link/internal/config"
)

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "serial-link.log")
	logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("port opened", zap.String("port", "/dev/ttyUSB0"))
	logger.Debug("filtered")
	_ = CloseLogger(logger)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"message":"port opened"`) || !strings.Contains(out, `"port":"/dev/ttyUSB0"`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if strings.Contains(out, "filtered") {
		t.Fatal("debug entry written at info level")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(&config.LoggingConfig{Level: "verbose", Format: "json", Output: "stderr"}); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestSessionLoggerLogExchange(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sl := NewSessionLogger(zap.New(core), "sess-1", "COM1", "serial")

	sl.LogExchange("ex-1", 2, 8, 15*time.Millisecond, nil)
	sl.LogExchange("ex-2", 1, 0, time.Second, errors.New("timed out"))

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	ok := entries[0].ContextMap()
	if entries[0].Message != "Session exchange completed" || ok["session_id"] != "sess-1" ||
		ok["segments"] != int64(2) || ok["bytes_received"] != int64(8) || ok["success"] != true {
		t.Fatalf("unexpected entry %+v", ok)
	}

	failed := entries[1]
	if failed.Level != zapcore.ErrorLevel || failed.Message != "Session exchange failed" ||
		failed.ContextMap()["error"] != "timed out" {
		t.Fatalf("unexpected entry %+v", failed.ContextMap())
	}
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(RequestIDKey, "req-9")

	ErrorResponse(c, http.StatusGatewayTimeout, "Exchange timed out", errors.New("read: timed out"))

	body := rec.Body.String()
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{`"request_id":"req-9"`, `"code":"GATEWAY_TIMEOUT"`, `"details":"read: timed out"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body %s missing %s", body, want)
		}
	}
}
