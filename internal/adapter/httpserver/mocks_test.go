package httpserver

import (
	"context"
	"testing"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/config"
)

type mockBoxService struct {
	views        map[string]domain.BoxView
	submitVoteFn func(ctx context.Context, feedID string, choice domain.Choice) (domain.BoxView, error)
	stateFn      func(ctx context.Context, feedID string) (string, error)
	health       []domain.BoxHealth
}

func (m *mockBoxService) View(feedID string) (domain.BoxView, bool) {
	v, ok := m.views[feedID]
	return v, ok
}

func (m *mockBoxService) Views() []domain.BoxView {
	out := make([]domain.BoxView, 0, len(m.views))
	for _, v := range m.views {
		out = append(out, v)
	}
	return out
}

func (m *mockBoxService) SubmitVote(ctx context.Context, feedID string, choice domain.Choice) (domain.BoxView, error) {
	if m.submitVoteFn != nil {
		return m.submitVoteFn(ctx, feedID, choice)
	}
	return domain.BoxView{}, domain.ErrBoxNotFound
}

func (m *mockBoxService) State(ctx context.Context, feedID string) (string, error) {
	if m.stateFn != nil {
		return m.stateFn(ctx, feedID)
	}
	return "", domain.ErrBoxNotFound
}

func (m *mockBoxService) Health() []domain.BoxHealth {
	return m.health
}

type testServerOption func(*testServerOptions)

type testServerOptions struct {
	healthChecks []HealthCheck
	metrics      *metrics.Set
	config       *config.Config
}

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

func withMetrics(set *metrics.Set) testServerOption {
	return func(o *testServerOptions) { o.metrics = set }
}

func withConfig(cfg *config.Config) testServerOption {
	return func(o *testServerOptions) { o.config = cfg }
}

func newTestServer(t *testing.T, boxes boxService, opts ...testServerOption) *Server {
	t.Helper()
	o := testServerOptions{config: &config.Config{AppEnv: "test", Port: "0"}}
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(o.config, boxes, nil, o.metrics, o.healthChecks)
}
