package voteapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LMJ-01/stylemate/internal/domain"
)

// summaryPayload is the body of GET /api/votes/{id} and of a successful vote.
type summaryPayload struct {
	CountA   tally           `json:"countA"`
	CountB   tally           `json:"countB"`
	Status   string          `json:"status"`
	Visible  bool            `json:"visible"`
	MyChoice choice          `json:"myChoice"`
	StartAt  json.RawMessage `json:"startAt"`
	EndAt    json.RawMessage `json:"endAt"`
}

type errorPayload struct {
	Reason string `json:"reason"`
}

type statePayload struct {
	State string `json:"state"`
}

func (p *summaryPayload) toDomain(loc *time.Location) (*domain.Summary, error) {
	start, err := decodeTimestamp(p.StartAt, loc)
	if err != nil {
		return nil, fmt.Errorf("startAt: %w", err)
	}
	end, err := decodeTimestamp(p.EndAt, loc)
	if err != nil {
		return nil, fmt.Errorf("endAt: %w", err)
	}
	return &domain.Summary{
		CountA:   int(p.CountA),
		CountB:   int(p.CountB),
		Status:   p.Status,
		Visible:  p.Visible,
		MyChoice: domain.Choice(p.MyChoice),
		StartAt:  start,
		EndAt:    end,
	}, nil
}

// maxTally bounds a decoded count so two of them still add up without
// overflow.
const maxTally = math.MaxInt32

// tally accepts a JSON number or numeric string, truncating fractions.
// Anything unreadable or negative counts as zero; huge values cap at
// maxTally.
type tally int

func (t *tally) UnmarshalJSON(b []byte) error {
	*t = 0
	raw := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	*t = tally(math.Min(math.Trunc(f), maxTally))
	return nil
}

// choice accepts 1/2, "1"/"2", "A"/"B" or null.
type choice domain.Choice

func (c *choice) UnmarshalJSON(b []byte) error {
	*c = choice(domain.ChoiceNone)
	raw := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	if parsed, err := domain.ParseChoice(raw); err == nil {
		*c = choice(parsed)
	}
	return nil
}

// decodeTimestamp reads an ISO string or a [y,m,d,h,mi,s,nanos] array.
func decodeTimestamp(raw json.RawMessage, loc *time.Location) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if raw[0] == '[' {
		var parts []int
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, fmt.Errorf("decode timestamp array: %w", err)
		}
		if len(parts) < 3 {
			return nil, fmt.Errorf("timestamp array too short: %v", parts)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], loc)
		return &t, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode timestamp: %w", err)
	}
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseTimestamp(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
