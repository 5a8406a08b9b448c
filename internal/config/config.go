// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"serial-link/internal/protocol"
	"serial-link/pkg/session"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// SERIAL_LINK_SERIAL_PORT=/dev/ttyUSB0
const EnvPrefix = "SERIAL_LINK"

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Server    ServerConfig    `mapstructure:"server"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SerialConfig represents the session and driver settings
type SerialConfig struct {
	Driver             string        `mapstructure:"driver"`
	Port               string        `mapstructure:"port"`
	BaudRate           int           `mapstructure:"baud_rate"`
	Parity             int           `mapstructure:"parity"`
	CharSize           int           `mapstructure:"char_size"`
	StopBits           int           `mapstructure:"stop_bits"`
	FlowControl        string        `mapstructure:"flow_control"`
	EndReadByte        int           `mapstructure:"end_read_byte"`
	EndWriteByte       string        `mapstructure:"end_write_byte"`
	TimeoutSeconds     uint64        `mapstructure:"timeout_seconds"`
	TimeoutNanoseconds uint32        `mapstructure:"timeout_nanoseconds"`
	ReceiveBuffer      string        `mapstructure:"receive_buffer"`
	Separator          string        `mapstructure:"separator"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	KeepAlive          bool          `mapstructure:"keep_alive"`
}

// DiscoveryConfig represents port discovery configuration
type DiscoveryConfig struct {
	PortPatterns []string `mapstructure:"port_patterns"`
}

// ServerConfig represents HTTP bridge configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SecurityConfig represents HTTP security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// flagKeys maps command line flag names onto configuration keys
var flagKeys = map[string]string{
	"port":           "serial.port",
	"baud":           "serial.baud_rate",
	"parity":         "serial.parity",
	"char-size":      "serial.char_size",
	"stop-bits":      "serial.stop_bits",
	"flow-control":   "serial.flow_control",
	"end-read-byte":  "serial.end_read_byte",
	"end-write-byte": "serial.end_write_byte",
	"timeout":        "serial.timeout_seconds",
	"timeout-ns":     "serial.timeout_nanoseconds",
	"receive-buffer": "serial.receive_buffer",
	"separator":      "serial.separator",
	"driver":         "serial.driver",
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"log-output":     "logging.output",
	"listen":         "server.port",
}

// Load loads configuration from an optional file, environment variables and
// command line flags. An empty path searches the default locations; a
// missing default file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("serial-link")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/serial-link")
		v.AddConfigPath("/etc/serial-link")
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "serial-link")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Serial defaults
	v.SetDefault("serial.driver", protocol.DriverSerial)
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.parity", session.DefaultParity)
	v.SetDefault("serial.char_size", session.DefaultCharSize)
	v.SetDefault("serial.stop_bits", session.DefaultStopBits)
	v.SetDefault("serial.flow_control", session.DefaultFlowControl)
	v.SetDefault("serial.end_read_byte", int(session.DefaultEndReadByte))
	v.SetDefault("serial.end_write_byte", session.DefaultEndWriteByte)
	v.SetDefault("serial.timeout_seconds", session.DefaultTimeoutSeconds)
	v.SetDefault("serial.timeout_nanoseconds", 0)
	v.SetDefault("serial.receive_buffer", session.DefaultReceiveBuffer)
	v.SetDefault("serial.separator", session.DefaultSeparator)
	v.SetDefault("serial.dial_timeout", "10s")
	v.SetDefault("serial.write_timeout", "30s")
	v.SetDefault("serial.keep_alive", true)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{})
}

// validate validates the configuration
func validate(config *Config) error {
	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validFormats := []string{"json", "console"}
	if !contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	if err := protocol.ValidateConfig(config.Serial.DriverConfig()); err != nil {
		return fmt.Errorf("serial.driver: %w", err)
	}

	if config.Serial.EndReadByte < -128 || config.Serial.EndReadByte > 255 {
		return fmt.Errorf("serial.end_read_byte must be between -128 and 255, got %d", config.Serial.EndReadByte)
	}

	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// DriverConfig returns the transport driver configuration
func (s *SerialConfig) DriverConfig() *protocol.DriverConfig {
	return &protocol.DriverConfig{
		Name:         s.Driver,
		DialTimeout:  s.DialTimeout,
		WriteTimeout: s.WriteTimeout,
		KeepAlive:    s.KeepAlive,
	}
}

// Settings returns the raw session settings. Values are validated when the
// session is opened.
func (s *SerialConfig) Settings() session.Settings {
	return session.Settings{
		Parity:              s.Parity,
		BaudRate:            s.BaudRate,
		CharSize:            s.CharSize,
		StopBits:            s.StopBits,
		FlowControl:         s.FlowControl,
		EndReadByte:         int8(uint8(s.EndReadByte)),
		TimeoutSeconds:      s.TimeoutSeconds,
		EndWriteByte:        []byte(s.EndWriteByte),
		TimeoutNanoseconds:  s.TimeoutNanoseconds,
		ReceiveBufferPolicy: s.ReceiveBuffer,
	}
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
