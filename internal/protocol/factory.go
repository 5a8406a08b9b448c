// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"serial-link/pkg/transport"
)

// CreateDriver creates a transport driver based on the configured name
func CreateDriver(config *DriverConfig, logger *zap.Logger) (transport.Driver, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	switch strings.ToLower(config.Name) {
	case "", DriverSerial:
		return NewSerialDriver(logger), nil
	case DriverTarm:
		return NewTarmDriver(logger), nil
	case DriverTCP:
		return createTCPDriver(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", config.Name)
	}
}

// createTCPDriver creates a raw serial-over-TCP driver
func createTCPDriver(config *DriverConfig, logger *zap.Logger) transport.Driver {
	tcpConfig := &TCPConfig{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		KeepAlive:    config.KeepAlive,
	}

	if config.DialTimeout > 0 {
		tcpConfig.DialTimeout = config.DialTimeout
	}
	if config.WriteTimeout > 0 {
		tcpConfig.WriteTimeout = config.WriteTimeout
	}

	logger.Info("Creating TCP driver",
		zap.Duration("dial_timeout", tcpConfig.DialTimeout),
		zap.Duration("write_timeout", tcpConfig.WriteTimeout),
		zap.Bool("keep_alive", tcpConfig.KeepAlive),
	)

	return NewTCPDriver(tcpConfig, logger)
}

// ValidateConfig validates a driver configuration
func ValidateConfig(config *DriverConfig) error {
	if config == nil {
		return fmt.Errorf("driver configuration is required")
	}

	name := strings.ToLower(config.Name)
	if name != "" {
		valid := false
		for _, supported := range SupportedDrivers {
			if name == supported {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unsupported driver: %s", config.Name)
		}
	}

	if config.DialTimeout < 0 {
		return fmt.Errorf("invalid dial timeout: %s", config.DialTimeout)
	}
	if config.WriteTimeout < 0 {
		return fmt.Errorf("invalid write timeout: %s", config.WriteTimeout)
	}

	return nil
}
