// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (vote.go, window.go, view.go, page.go, errors.go) hold
// the shared types and the cross-cutting interfaces that adapters implement.
// No implementation dependencies live here.
package domain
