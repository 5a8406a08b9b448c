// pkg/line/errors.go
package line

import "fmt"

// ParityRangeError reports a parity code outside 0..2
type ParityRangeError struct {
	Value int
}

func (e *ParityRangeError) Error() string {
	return fmt.Sprintf("parity must be between 0 and 2, got %d", e.Value)
}

// CharacterSizeRangeError reports a character size outside 5..8
type CharacterSizeRangeError struct {
	Value int
}

func (e *CharacterSizeRangeError) Error() string {
	return fmt.Sprintf("character size must be between 5 and 8, got %d", e.Value)
}

// StopBitsRangeError reports a stop bit count other than 1 or 2
type StopBitsRangeError struct {
	Value int
}

func (e *StopBitsRangeError) Error() string {
	return fmt.Sprintf("stop bits must be either 1 or 2, got %d", e.Value)
}

// FlowControlNameError reports an unrecognized flow control name
type FlowControlNameError struct {
	Value string
}

func (e *FlowControlNameError) Error() string {
	return fmt.Sprintf(`flow control must be "none", "software" or "hardware", got %q`, e.Value)
}

// BaudRateRangeError reports a baud rate that is not positive
type BaudRateRangeError struct {
	Value int
}

func (e *BaudRateRangeError) Error() string {
	return fmt.Sprintf("baud rate must be positive, got %d", e.Value)
}

// BufferPolicyParseError reports a receive buffer size that is neither
// "unlimited" nor an integer
type BufferPolicyParseError struct {
	Value string
	Err   error
}

func (e *BufferPolicyParseError) Error() string {
	return fmt.Sprintf(`receive buffer size must be an integer or "unlimited", got %q`, e.Value)
}

func (e *BufferPolicyParseError) Unwrap() error {
	return e.Err
}

// SegmentTooLargeError reports a split segment longer than the buffer limit
type SegmentTooLargeError struct {
	Index int
	Size  int
	Limit int
}

func (e *SegmentTooLargeError) Error() string {
	return fmt.Sprintf("segment %d is %d bytes, exceeds receive buffer limit of %d", e.Index, e.Size, e.Limit)
}
