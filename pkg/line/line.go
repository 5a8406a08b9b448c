// pkg/line/line.go
package line

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Parity represents the parity mode of a serial line
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// String returns the lowercase parity name
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("parity(%d)", int(p))
	}
}

// CharacterSize is the number of data bits per character
type CharacterSize int

const (
	Bits5 CharacterSize = 5
	Bits6 CharacterSize = 6
	Bits7 CharacterSize = 7
	Bits8 CharacterSize = 8
)

// StopBits is the number of stop bits per character
type StopBits int

const (
	Stop1 StopBits = 1
	Stop2 StopBits = 2
)

// FlowControl is the flow control mode requested by the caller
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowSoftware
	FlowHardware
)

// String returns the lowercase flow control name
func (f FlowControl) String() string {
	switch f {
	case FlowNone:
		return "none"
	case FlowSoftware:
		return "software"
	case FlowHardware:
		return "hardware"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// Effective returns the flow control mode drivers actually apply.
// Software and hardware flow control are recognized but not implemented,
// so every mode is forwarded as FlowNone.
func (f FlowControl) Effective() FlowControl {
	return FlowNone
}

// Configuration is a validated, transport-ready line configuration.
// The zero value is not valid; use BuildConfiguration.
type Configuration struct {
	parity        Parity
	characterSize CharacterSize
	stopBits      StopBits
	flowControl   FlowControl
	baudRate      int
	timeout       time.Duration
}

func (c Configuration) Parity() Parity               { return c.parity }
func (c Configuration) CharacterSize() CharacterSize { return c.characterSize }
func (c Configuration) StopBits() StopBits           { return c.stopBits }
func (c Configuration) FlowControl() FlowControl     { return c.flowControl }
func (c Configuration) BaudRate() int                { return c.baudRate }
func (c Configuration) Timeout() time.Duration       { return c.timeout }

// String renders the configuration in the usual 9600/8N1 shorthand
func (c Configuration) String() string {
	return fmt.Sprintf("%d/%d%s%d flow=%s timeout=%s",
		c.baudRate, c.characterSize, strings.ToUpper(c.parity.String()[:1]), c.stopBits,
		c.flowControl, c.timeout)
}

// ValidateCharacterSize accepts 5, 6, 7 or 8 data bits
func ValidateCharacterSize(n int) (CharacterSize, error) {
	switch n {
	case 5, 6, 7, 8:
		return CharacterSize(n), nil
	default:
		return 0, &CharacterSizeRangeError{Value: n}
	}
}

// ValidateParity maps 0, 1 and 2 to none, odd and even parity
func ValidateParity(n int) (Parity, error) {
	switch n {
	case 0:
		return ParityNone, nil
	case 1:
		return ParityOdd, nil
	case 2:
		return ParityEven, nil
	default:
		return 0, &ParityRangeError{Value: n}
	}
}

// ValidateStopBits accepts 1 or 2 stop bits
func ValidateStopBits(n int) (StopBits, error) {
	switch n {
	case 1:
		return Stop1, nil
	case 2:
		return Stop2, nil
	default:
		return 0, &StopBitsRangeError{Value: n}
	}
}

// ValidateFlowControl matches "none", "software" or "hardware" ignoring case
func ValidateFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(s) {
	case "none":
		return FlowNone, nil
	case "software":
		return FlowSoftware, nil
	case "hardware":
		return FlowHardware, nil
	default:
		return 0, &FlowControlNameError{Value: s}
	}
}

// ValidateBaudRate accepts any positive baud rate
func ValidateBaudRate(n int) (int, error) {
	if n <= 0 {
		return 0, &BaudRateRangeError{Value: n}
	}
	return n, nil
}

// NewTimeout builds a timeout from whole seconds and nanoseconds.
// Nanoseconds beyond one second carry into the seconds part. Values past
// the range of time.Duration saturate at its maximum.
func NewTimeout(seconds uint64, nanoseconds uint32) time.Duration {
	const maxSeconds = uint64(math.MaxInt64 / int64(time.Second))
	if seconds > maxSeconds {
		return time.Duration(math.MaxInt64)
	}
	whole := time.Duration(seconds) * time.Second
	if time.Duration(nanoseconds) > time.Duration(math.MaxInt64)-whole {
		return time.Duration(math.MaxInt64)
	}
	return whole + time.Duration(nanoseconds)
}

// BuildConfiguration validates every field and returns a Configuration.
// Fields are checked in the order character size, parity, stop bits,
// flow control, baud rate; the first failure is returned.
func BuildConfiguration(parity, baudRate, charSize, stopBits int, flowControl string, timeout time.Duration) (Configuration, error) {
	size, err := ValidateCharacterSize(charSize)
	if err != nil {
		return Configuration{}, err
	}
	par, err := ValidateParity(parity)
	if err != nil {
		return Configuration{}, err
	}
	stop, err := ValidateStopBits(stopBits)
	if err != nil {
		return Configuration{}, err
	}
	flow, err := ValidateFlowControl(flowControl)
	if err != nil {
		return Configuration{}, err
	}
	baud, err := ValidateBaudRate(baudRate)
	if err != nil {
		return Configuration{}, err
	}

	return Configuration{
		parity:        par,
		characterSize: size,
		stopBits:      stop,
		flowControl:   flow,
		baudRate:      baud,
		timeout:       timeout,
	}, nil
}
