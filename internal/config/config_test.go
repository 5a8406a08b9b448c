package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"serial-link/pkg/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serial-link.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsMatchSessionDefaults(t *testing.T) {
	path := writeConfig(t, "serial:\n  port: COM1\n")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	got := cfg.Serial.Settings()
	want := session.DefaultSettings(9600)
	if got.Parity != want.Parity || got.CharSize != want.CharSize || got.StopBits != want.StopBits {
		t.Fatalf("settings %+v differ from defaults %+v", got, want)
	}
	if got.FlowControl != want.FlowControl || got.EndReadByte != want.EndReadByte {
		t.Fatalf("settings %+v differ from defaults %+v", got, want)
	}
	if string(got.EndWriteByte) != "S" || got.TimeoutSeconds != 60 || got.ReceiveBufferPolicy != "64" {
		t.Fatalf("settings %+v differ from defaults %+v", got, want)
	}
	if cfg.Serial.Port != "COM1" || cfg.Serial.Driver != "serial" {
		t.Fatalf("unexpected serial config %+v", cfg.Serial)
	}
	if cfg.Serial.DialTimeout != 10*time.Second {
		t.Fatalf("dial timeout = %v", cfg.Serial.DialTimeout)
	}
	if cfg.GetServerAddr() != "127.0.0.1:8085" {
		t.Fatalf("server addr = %s", cfg.GetServerAddr())
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"serial:",
		"  port: /dev/ttyUSB0",
		"  baud_rate: 19200",
		"  end_read_byte: 255",
		"  receive_buffer: unlimited",
		"logging:",
		"  level: debug",
	}, "\n"))

	t.Setenv("SERIAL_LINK_SERIAL_PARITY", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("baud", 9600, "")
	flags.String("driver", "serial", "")
	if err := flags.Parse([]string{"--baud", "115200", "--driver", "tcp"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Fatalf("flag should override file, baud = %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.Driver != "tcp" {
		t.Fatalf("driver = %s", cfg.Serial.Driver)
	}
	if cfg.Serial.Parity != 2 {
		t.Fatalf("env should override default, parity = %d", cfg.Serial.Parity)
	}
	if cfg.Logging.Level != "debug" || cfg.Serial.ReceiveBuffer != "unlimited" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Serial.Settings().EndReadByte != -1 {
		t.Fatalf("end read byte = %d", cfg.Serial.Settings().EndReadByte)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"bad level":       "logging:\n  level: verbose\n",
		"bad format":      "logging:\n  format: xml\n",
		"bad environment": "app:\n  environment: qa\n",
		"bad driver":      "serial:\n  driver: usb\n",
		"bad end byte":    "serial:\n  end_read_byte: 300\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body), nil); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
