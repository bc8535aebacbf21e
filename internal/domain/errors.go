package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBoxNotFound   = errors.New("vote box not found")
	ErrInvalidChoice = errors.New("invalid vote option")
)

// GenericVoteFailure is shown when the server gives no reason for a rejected vote.
const GenericVoteFailure = "Voting failed."

// SessionExpiredMessage is shown when the site refuses the session without
// saying why.
const SessionExpiredMessage = "Please log in again."

// VoteRejectedError is returned when the site answers a vote request with a
// non-2xx status. Reason is the server's human-readable explanation, if any.
type VoteRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *VoteRejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("vote rejected (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("vote rejected (HTTP %d)", e.StatusCode)
}

// UserMessage is the text to show the person who voted. It is never empty.
func (e *VoteRejectedError) UserMessage() string {
	if e.Reason != "" {
		return e.Reason
	}
	return GenericVoteFailure
}

// Unauthorized reports whether the site refused the session (401/403).
func (e *VoteRejectedError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// UserMessage extracts the message to show for any vote submission error.
func UserMessage(err error) string {
	if rejected, ok := errors.AsType[*VoteRejectedError](err); ok {
		return rejected.UserMessage()
	}
	return GenericVoteFailure
}
