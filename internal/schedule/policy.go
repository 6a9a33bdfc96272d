package schedule

import (
	"fmt"
	"strings"
	"time"
)

// OverlapPolicy decides whether two inclusive date ranges conflict.
type OverlapPolicy int

const (
	// OverlapClosed treats a booking ending on the day another starts as a conflict.
	OverlapClosed OverlapPolicy = iota
	// OverlapHalfOpen allows same-day turnover.
	OverlapHalfOpen
)

func ParseOverlapPolicy(raw string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "closed":
		return OverlapClosed, nil
	case "half_open", "half-open", "halfopen":
		return OverlapHalfOpen, nil
	default:
		return OverlapClosed, fmt.Errorf("unknown overlap policy %q", raw)
	}
}

func (p OverlapPolicy) String() string {
	if p == OverlapHalfOpen {
		return "half_open"
	}
	return "closed"
}

// Overlaps reports whether [aStart, aEnd] and [bStart, bEnd] conflict.
func (p OverlapPolicy) Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if p == OverlapHalfOpen {
		return aStart.Before(bEnd) && aEnd.After(bStart)
	}
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// laneFree reports whether a lane whose last booking ends on laneEnd can take a booking starting on start.
func (p OverlapPolicy) laneFree(laneEnd, start time.Time) bool {
	if p == OverlapHalfOpen {
		return !laneEnd.After(start)
	}
	return laneEnd.Before(start)
}
