// internal/protocol/protocol.go
package protocol

import "time"

// Driver names accepted by CreateDriver
const (
	DriverSerial = "serial"
	DriverTarm   = "tarm"
	DriverTCP    = "tcp"
)

// SupportedDrivers lists the driver names in preference order
var SupportedDrivers = []string{DriverSerial, DriverTarm, DriverTCP}

// DriverConfig selects and tunes a transport driver
type DriverConfig struct {
	Name         string        `json:"name" mapstructure:"name"`
	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	KeepAlive    bool          `json:"keep_alive" mapstructure:"keep_alive"`
}
