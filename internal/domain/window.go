package domain

import (
	"fmt"
	"strings"
	"time"
)

// Phase is the lifecycle stage of a vote window.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseWaiting
	PhaseOpen
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DerivePhase places now relative to [start, end).
func DerivePhase(now, start, end time.Time) Phase {
	switch {
	case now.Before(start):
		return PhaseWaiting
	case now.Before(end):
		return PhaseOpen
	default:
		return PhaseClosed
	}
}

// Window bounds a vote. Either side may be unknown.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Complete reports whether both bounds are known.
func (w Window) Complete() bool {
	return w.Start != nil && w.End != nil
}

// Phase is PhaseUnknown unless both bounds are known.
func (w Window) Phase(now time.Time) Phase {
	if !w.Complete() {
		return PhaseUnknown
	}
	return DerivePhase(now, *w.Start, *w.End)
}

// Ended reports whether the end is known and has passed.
func (w Window) Ended(now time.Time) bool {
	return w.End != nil && !now.Before(*w.End)
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp reads an ISO-8601 timestamp. Values without a zone offset
// are taken to be wall-clock times in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
