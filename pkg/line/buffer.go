// pkg/line/buffer.go
package line

import (
	"strconv"
	"strings"
)

// Unlimited is the buffer policy literal for an unbounded receive buffer
const Unlimited = "unlimited"

// BufferPolicy caps the size of segments accepted by a session.
// The zero value is BoundedTo(0).
type BufferPolicy struct {
	unbounded bool
	max       int
}

// Unbounded returns a policy without a size cap
func Unbounded() BufferPolicy {
	return BufferPolicy{unbounded: true}
}

// BoundedTo returns a policy capping segments at max bytes
func BoundedTo(max int) BufferPolicy {
	return BufferPolicy{max: max}
}

// IsUnbounded reports whether the policy has no cap
func (p BufferPolicy) IsUnbounded() bool {
	return p.unbounded
}

// Max returns the cap and false for unbounded policies
func (p BufferPolicy) Max() (int, bool) {
	if p.unbounded {
		return 0, false
	}
	return p.max, true
}

func (p BufferPolicy) String() string {
	if p.unbounded {
		return Unlimited
	}
	return strconv.Itoa(p.max)
}

// ParseBufferPolicy parses "unlimited" in any case or a base-10 integer
// with an optional leading '+'
func ParseBufferPolicy(s string) (BufferPolicy, error) {
	if strings.EqualFold(s, Unlimited) {
		return Unbounded(), nil
	}

	n, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, strconv.IntSize-1)
	if err != nil {
		return BufferPolicy{}, &BufferPolicyParseError{Value: s, Err: err}
	}
	return BoundedTo(int(n)), nil
}

// Split breaks data into segments that fit the policy.
// Data shorter than the cap, or any data under an unbounded policy, is a
// single segment. Longer data is split on separator and every piece must
// fit within the cap.
func (p BufferPolicy) Split(data, separator string) ([]string, error) {
	if p.unbounded || len(data) < p.max {
		return []string{data}, nil
	}
	segments := strings.Split(data, separator)
	for i, segment := range segments {
		if len(segment) > p.max {
			return nil, &SegmentTooLargeError{Index: i, Size: len(segment), Limit: p.max}
		}
	}
	return segments, nil
}
