// pkg/session/settings.go
package session

import (
	"go.uber.org/zap"
)

// Defaults used by Open
const (
	DefaultParity              = 0
	DefaultCharSize            = 8
	DefaultStopBits            = 1
	DefaultFlowControl         = "none"
	DefaultEndReadByte    int8 = 0x1C
	DefaultEndWriteByte        = "S"
	DefaultTimeoutSeconds      = 60
	DefaultReceiveBuffer       = "64"
	DefaultSeparator           = "\n"
)

// Settings holds the raw, unvalidated values used to open a session
type Settings struct {
	Parity              int    `json:"parity" mapstructure:"parity"`
	BaudRate            int    `json:"baud_rate" mapstructure:"baud_rate"`
	CharSize            int    `json:"char_size" mapstructure:"char_size"`
	StopBits            int    `json:"stop_bits" mapstructure:"stop_bits"`
	FlowControl         string `json:"flow_control" mapstructure:"flow_control"`
	EndReadByte         int8   `json:"end_read_byte" mapstructure:"end_read_byte"`
	TimeoutSeconds      uint64 `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	EndWriteByte        []byte `json:"end_write_byte" mapstructure:"end_write_byte"`
	TimeoutNanoseconds  uint32 `json:"timeout_nanoseconds" mapstructure:"timeout_nanoseconds"`
	ReceiveBufferPolicy string `json:"receive_buffer" mapstructure:"receive_buffer"`
}

// DefaultSettings returns the settings Open uses for the given baud rate
func DefaultSettings(baudRate int) Settings {
	return Settings{
		Parity:              DefaultParity,
		BaudRate:            baudRate,
		CharSize:            DefaultCharSize,
		StopBits:            DefaultStopBits,
		FlowControl:         DefaultFlowControl,
		EndReadByte:         DefaultEndReadByte,
		TimeoutSeconds:      DefaultTimeoutSeconds,
		EndWriteByte:        []byte(DefaultEndWriteByte),
		TimeoutNanoseconds:  0,
		ReceiveBufferPolicy: DefaultReceiveBuffer,
	}
}

// Option customizes a session at open time
type Option func(*options)

type options struct {
	logger    *zap.Logger
	separator string
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:    zap.NewNop(),
		separator: DefaultSeparator,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used by the session
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSeparator sets the separator Exchange splits data on
func WithSeparator(separator string) Option {
	return func(o *options) {
		o.separator = separator
	}
}
