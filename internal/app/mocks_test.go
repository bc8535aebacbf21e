package app

import (
	"context"
	"sync"

	"github.com/LMJ-01/stylemate/internal/domain"
)

type mockVotesAPI struct {
	mu           sync.Mutex
	summaryFn    func(ctx context.Context, feedID string) (*domain.Summary, error)
	voteFn       func(ctx context.Context, feedID string, choice domain.Choice) (*domain.Summary, error)
	stateFn      func(ctx context.Context, feedID string) (string, error)
	summaryCalls int
	voteCalls    int
}

func (m *mockVotesAPI) Summary(ctx context.Context, feedID string) (*domain.Summary, error) {
	m.mu.Lock()
	m.summaryCalls++
	fn := m.summaryFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, feedID)
	}
	return &domain.Summary{}, nil
}

func (m *mockVotesAPI) FreshSummary(ctx context.Context, feedID string) (*domain.Summary, error) {
	return m.Summary(ctx, feedID)
}

func (m *mockVotesAPI) Vote(ctx context.Context, feedID string, choice domain.Choice) (*domain.Summary, error) {
	m.mu.Lock()
	m.voteCalls++
	fn := m.voteFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, feedID, choice)
	}
	return &domain.Summary{}, nil
}

func (m *mockVotesAPI) State(ctx context.Context, feedID string) (string, error) {
	if m.stateFn != nil {
		return m.stateFn(ctx, feedID)
	}
	return "", nil
}

func (m *mockVotesAPI) summaries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryCalls
}

func (m *mockVotesAPI) votes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voteCalls
}

type mockPublisher struct {
	mu    sync.Mutex
	views []domain.BoxView
	err   error
}

func (m *mockPublisher) PublishView(_ context.Context, view domain.BoxView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, view)
	return m.err
}

func (m *mockPublisher) published() []domain.BoxView {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.BoxView, len(m.views))
	copy(result, m.views)
	return result
}
