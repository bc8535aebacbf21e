package domain

import (
	"context"
	"time"
)

// BoxView is everything a vote box displays. It stands in for the DOM
// subtree of one feed item: adapters render or push it, they never mutate it.
type BoxView struct {
	FeedID        string    `json:"feedId"`
	Phase         string    `json:"phase"`
	Revealed      bool      `json:"revealed"`
	CountA        string    `json:"countA"`
	CountB        string    `json:"countB"`
	Total         string    `json:"total"`
	BarA          int       `json:"barA"`
	BarB          int       `json:"barB"`
	Status        string    `json:"status"`
	Countdown     string    `json:"countdown"`
	VotingEnabled bool      `json:"votingEnabled"`
	Highlight     string    `json:"highlight,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BoxHealth is the readiness report of one vote box. LastFetch is the time
// of the last summary that was applied; Stale is set when there is none or
// it is too old.
type BoxHealth struct {
	FeedID    string     `json:"feedId"`
	Phase     string     `json:"phase"`
	LastFetch *time.Time `json:"lastFetch,omitempty"`
	Stale     bool       `json:"stale"`
}

// ViewPublisher pushes a box view to live subscribers.
type ViewPublisher interface {
	PublishView(ctx context.Context, view BoxView) error
}
