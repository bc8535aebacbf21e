package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Choice is one of the two options of a vote.
type Choice int

const (
	ChoiceNone Choice = iota
	ChoiceA
	ChoiceB
)

// ParseChoice accepts the option id ("1", "2") or letter ("A", "B").
func ParseChoice(s string) (Choice, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "A":
		return ChoiceA, nil
	case "2", "B":
		return ChoiceB, nil
	default:
		return ChoiceNone, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
}

// OptionID is the numeric id the vote endpoint expects.
func (c Choice) OptionID() int {
	switch c {
	case ChoiceA:
		return 1
	case ChoiceB:
		return 2
	default:
		return 0
	}
}

func (c Choice) String() string {
	switch c {
	case ChoiceA:
		return "A"
	case ChoiceB:
		return "B"
	default:
		return ""
	}
}

// Summary is the per-feed-item vote state reported by the site.
type Summary struct {
	CountA   int
	CountB   int
	Status   string
	Visible  bool
	MyChoice Choice
	StartAt  *time.Time
	EndAt    *time.Time
}

// Window returns the voting window carried by the summary, falling back to
// the given bounds where the payload has none.
func (s *Summary) Window(fallback Window) Window {
	w := fallback
	if s.StartAt != nil {
		w.Start = s.StartAt
	}
	if s.EndAt != nil {
		w.End = s.EndAt
	}
	return w
}

// VotesAPI is the site's vote endpoint set.
type VotesAPI interface {
	Summary(ctx context.Context, feedID string) (*Summary, error)
	// FreshSummary never shares a request with concurrent Summary calls.
	FreshSummary(ctx context.Context, feedID string) (*Summary, error)
	Vote(ctx context.Context, feedID string, choice Choice) (*Summary, error)
	State(ctx context.Context, feedID string) (string, error)
}
