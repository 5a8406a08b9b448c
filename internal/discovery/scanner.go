// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Config for the port scanner
type Config struct {
	PortPatterns []string `json:"port_patterns" mapstructure:"port_patterns"`
}

// Scanner lists serial ports
type Scanner struct {
	logger   *zap.Logger
	patterns []string

	detailed func() ([]*enumerator.PortDetails, error)
	names    func() ([]string, error)
}

// NewScanner creates a new serial port scanner. A nil config uses the
// platform's usual device name patterns.
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	patterns := getDefaultPortPatterns()
	if config != nil && config.PortPatterns != nil {
		patterns = config.PortPatterns
	}

	return &Scanner{
		logger:   logger.With(zap.String("scanner", "serial")),
		patterns: patterns,
		detailed: enumerator.GetDetailedPortsList,
		names:    serial.GetPortsList,
	}
}

// Scan returns the ports matching the configured patterns, sorted by name.
// USB details are included when the platform enumerator provides them.
func (s *Scanner) Scan(ctx context.Context) ([]*PortInfo, error) {
	s.logger.Debug("Starting serial port scan")

	ports, err := s.list()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filtered := s.filterPorts(ports)
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })

	s.logger.Info("Serial scan completed",
		zap.Int("ports_found", len(ports)),
		zap.Int("ports_matched", len(filtered)),
	)
	return filtered, nil
}

func (s *Scanner) list() ([]*PortInfo, error) {
	details, err := s.detailed()
	if err == nil {
		ports := make([]*PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, &PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return ports, nil
	}

	s.logger.Debug("Detailed port enumeration failed, falling back to names", zap.Error(err))
	names, err := s.names()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := make([]*PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, &PortInfo{Name: name})
	}
	return ports, nil
}

// filterPorts keeps ports matching any pattern; no patterns keeps all
func (s *Scanner) filterPorts(ports []*PortInfo) []*PortInfo {
	if len(s.patterns) == 0 {
		return ports
	}

	filtered := []*PortInfo{}
	for _, port := range ports {
		for _, pattern := range s.patterns {
			if matched, _ := filepath.Match(pattern, port.Name); matched {
				filtered = append(filtered, port)
				break
			}
		}
	}
	return filtered
}

// getDefaultPortPatterns returns device name patterns for the current OS
func getDefaultPortPatterns() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"COM*"}
	case "darwin":
		return []string{"/dev/cu.*", "/dev/tty.*"}
	default:
		return []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*", "/dev/ttyAMA*"}
	}
}
