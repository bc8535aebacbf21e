package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type widgetFixture struct {
	widget  *Widget
	api     *mockVotesAPI
	pub     *mockPublisher
	clock   *clockwork.FakeClock
	metrics *metrics.VoteBoxMetrics
}

func newWidgetFixture(t *testing.T, policy RevealPolicy) *widgetFixture {
	t.Helper()
	f := &widgetFixture{
		api:     &mockVotesAPI{},
		pub:     &mockPublisher{},
		clock:   clockwork.NewFakeClockAt(epoch),
		metrics: metrics.NewVoteBoxMetrics(prometheus.NewRegistry()),
	}
	f.widget = NewWidget(f.api, f.pub, f.clock, Options{
		Labels:        LabelsFor("en"),
		Policy:        policy,
		ClosedMarkers: []string{"마감", "closed"},
		Location:      time.UTC,
		Metrics:       f.metrics,
	})
	t.Cleanup(f.widget.Stop)
	return f
}

func (f *widgetFixture) view(t *testing.T, feedID string) domain.BoxView {
	t.Helper()
	v, ok := f.widget.View(feedID)
	require.True(t, ok)
	return v
}

func item(feedID string, start, end time.Time) domain.FeedItem {
	return domain.FeedItem{
		FeedID:   feedID,
		StartISO: start.Format(time.RFC3339),
		EndISO:   end.Format(time.RFC3339),
	}
}

func summary(a, b int, visible bool) func(context.Context, string) (*domain.Summary, error) {
	return func(context.Context, string) (*domain.Summary, error) {
		return &domain.Summary{CountA: a, CountB: b, Visible: visible}, nil
	}
}

func TestTrack_OpenWindowMaskedWhenServerHides(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(4, 1, false)

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(5*time.Minute))))

	v := f.view(t, "7")
	assert.Equal(t, "open", v.Phase)
	assert.False(t, v.Revealed)
	assert.Equal(t, "??", v.CountA)
	assert.Equal(t, "??", v.CountB)
	assert.Equal(t, "Total ??", v.Total)
	assert.Zero(t, v.BarA)
	assert.Zero(t, v.BarB)
	assert.True(t, v.VotingEnabled)
	assert.Equal(t, "Status: open", v.Status)
	assert.Equal(t, "Ends in 00:05:00", v.Countdown)
	assert.Equal(t, 1, f.api.summaries())
	assert.NotEmpty(t, f.pub.published())
}

func TestTrack_OpenWindowRevealedWhenServerShows(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(3, 1, true)

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(time.Minute))))

	v := f.view(t, "7")
	assert.True(t, v.Revealed)
	assert.Equal(t, "3", v.CountA)
	assert.Equal(t, 75, v.BarA)
	assert.Equal(t, 25, v.BarB)
	assert.Equal(t, "Total 4", v.Total)
}

func TestTrack_OnClosePolicyMasksOpenWindow(t *testing.T) {
	f := newWidgetFixture(t, RevealOnClose)
	f.api.summaryFn = summary(3, 1, true)

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(time.Minute))))

	v := f.view(t, "7")
	assert.False(t, v.Revealed)
	assert.Equal(t, "??", v.CountA)
}

func TestTrack_WaitingDisablesVotingAndMasks(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(3, 1, true)

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(time.Hour), epoch.Add(2*time.Hour))))

	v := f.view(t, "7")
	assert.Equal(t, "waiting", v.Phase)
	assert.False(t, v.VotingEnabled)
	assert.False(t, v.Revealed)
	assert.Equal(t, "Status: waiting", v.Status)
	assert.Equal(t, "Starts in 01:00:00", v.Countdown)
}

func TestTrack_ClosedStatusRevealsWithoutWindow(t *testing.T) {
	f := newWidgetFixture(t, RevealOnClose)
	f.api.summaryFn = func(context.Context, string) (*domain.Summary, error) {
		return &domain.Summary{CountA: 2, CountB: 2, Status: "투표 마감"}, nil
	}

	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "9"}))

	v := f.view(t, "9")
	assert.True(t, v.Revealed)
	assert.Equal(t, 50, v.BarA)
	assert.Equal(t, 50, v.BarB)
	assert.Equal(t, "Status: 투표 마감", v.Status)
	assert.Equal(t, "unknown", v.Phase)
	assert.Zero(t, testutil.ToFloat64(f.metrics.ActiveCountdowns))
}

func TestTrack_PassedEndRevealsAndFiresCloseOnce(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(5, 5, false)

	require.NoError(t, f.widget.Track(context.Background(), item("3", epoch.Add(-2*time.Hour), epoch.Add(-time.Hour))))

	v := f.view(t, "3")
	assert.Equal(t, "closed", v.Phase)
	assert.True(t, v.Revealed)
	assert.False(t, v.VotingEnabled)
	assert.Empty(t, v.Countdown)
	assert.Equal(t, "Status: closed", v.Status)
	assert.Equal(t, 2, f.api.summaries(), "init plus one closing fetch")
	assert.Zero(t, testutil.ToFloat64(f.metrics.ActiveCountdowns))
}

func TestTrack_InitFailureKeepsBoxMasked(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = func(context.Context, string) (*domain.Summary, error) {
		return nil, errors.New("connection refused")
	}

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(time.Minute))))

	v := f.view(t, "7")
	assert.False(t, v.Revealed)
	assert.Equal(t, "??", v.CountA)
	assert.Equal(t, "Status: -", v.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SummaryFetches.WithLabelValues(metrics.SourceInit, "error")))
}

func TestTrack_DuplicateReinitialisesWithoutSecondBox(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(1, 0, true)
	it := domain.FeedItem{FeedID: "7"}

	require.NoError(t, f.widget.Track(context.Background(), it))
	require.NoError(t, f.widget.Track(context.Background(), it))

	assert.Equal(t, 2, f.api.summaries())
	assert.Len(t, f.widget.Views(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.TrackedBoxes))
}

func TestTrack_RejectsEmptyFeedID(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	assert.Error(t, f.widget.Track(context.Background(), domain.FeedItem{}))
}

func TestInitBox_UnknownFeed(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	err := f.widget.InitBox(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrBoxNotFound)
}

func TestInitBox_HighlightsMyChoice(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = func(context.Context, string) (*domain.Summary, error) {
		return &domain.Summary{CountA: 1, CountB: 2, Visible: true, MyChoice: domain.ChoiceB, Status: "진행 중"}, nil
	}

	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "7"}))

	v := f.view(t, "7")
	assert.Equal(t, "B", v.Highlight)
	assert.Equal(t, "Status: 진행 중", v.Status)
	assert.Equal(t, 33, v.BarA)
	assert.Equal(t, 67, v.BarB)
}

func TestCountdown_CloseTransitionRevealsWithOneRefetch(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(4, 1, false)

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(2*time.Second))))
	assert.Equal(t, "Ends in 00:00:02", f.view(t, "7").Countdown)
	assert.False(t, f.view(t, "7").Revealed)

	f.clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		v, _ := f.widget.View("7")
		return v.Countdown == "Ends in 00:00:01"
	}, 2*time.Second, 10*time.Millisecond)

	f.clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		v, _ := f.widget.View("7")
		return v.Phase == "closed" && v.Revealed
	}, 2*time.Second, 10*time.Millisecond)

	v := f.view(t, "7")
	assert.Equal(t, "4", v.CountA)
	assert.Equal(t, "1", v.CountB)
	assert.Equal(t, 80, v.BarA)
	assert.Equal(t, 20, v.BarB)
	assert.False(t, v.VotingEnabled)
	assert.Empty(t, v.Countdown)
	assert.Equal(t, 2, f.api.summaries())

	f.clock.Advance(3 * time.Second)
	assert.Never(t, func() bool { return f.api.summaries() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SummaryFetches.WithLabelValues(metrics.SourceClose, "ok")))
	assert.Zero(t, testutil.ToFloat64(f.metrics.ActiveCountdowns))
}

func TestCountdown_WaitingToOpen(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(0, 0, true)

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(time.Second), epoch.Add(time.Hour))))
	assert.False(t, f.view(t, "7").VotingEnabled)

	f.clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		v, _ := f.widget.View("7")
		return v.Phase == "open" && v.VotingEnabled
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Ends in 00:59:59", f.view(t, "7").Countdown)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PhaseTransitions.WithLabelValues("open")))
}

func TestStartCountdown_ReplacesPreviousTimer(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(1, 1, true)
	start, end := epoch.Add(-time.Minute), epoch.Add(time.Hour)

	require.NoError(t, f.widget.Track(context.Background(), item("7", start, end)))

	f.widget.mu.Lock()
	first := f.widget.timers["7"]
	f.widget.mu.Unlock()
	require.NotNil(t, first)

	require.NoError(t, f.widget.StartCountdown("7", start, end))
	require.NoError(t, f.widget.StartCountdown("7", start, end))

	f.widget.mu.Lock()
	current := f.widget.timers["7"]
	count := len(f.widget.timers)
	f.widget.mu.Unlock()

	assert.True(t, first.cancelled())
	assert.False(t, current.cancelled())
	assert.Equal(t, 1, count)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.CountdownsReplaced))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ActiveCountdowns))
}

func TestStartCountdown_UnknownFeed(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	err := f.widget.StartCountdown("404", epoch, epoch.Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrBoxNotFound)
}

func TestPoll_SwallowsErrorsAndKeepsSchedule(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(2, 3, true)

	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "7"}))
	before := f.view(t, "7")

	f.api.mu.Lock()
	f.api.summaryFn = func(context.Context, string) (*domain.Summary, error) {
		return nil, errors.New("503")
	}
	f.api.mu.Unlock()

	f.clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool { return f.api.summaries() == 2 }, 2*time.Second, 10*time.Millisecond)

	f.clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool { return f.api.summaries() == 3 }, 2*time.Second, 10*time.Millisecond)

	after := f.view(t, "7")
	assert.Equal(t, before.CountA, after.CountA)
	assert.Equal(t, before.BarA, after.BarA)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.SummaryFetches.WithLabelValues(metrics.SourcePoll, "error")) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPoll_RefreshesTalliesAndStatus(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(1, 0, true)

	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "7"}))

	f.api.mu.Lock()
	f.api.summaryFn = func(context.Context, string) (*domain.Summary, error) {
		return &domain.Summary{CountA: 1, CountB: 3, Visible: true, Status: "open"}, nil
	}
	f.api.mu.Unlock()

	f.clock.Advance(10 * time.Second)
	assert.Eventually(t, func() bool {
		v, _ := f.widget.View("7")
		return v.CountB == "3"
	}, 2*time.Second, 10*time.Millisecond)

	v := f.view(t, "7")
	assert.Equal(t, 25, v.BarA)
	assert.Equal(t, 75, v.BarB)
	assert.Equal(t, "Status: open", v.Status)
}

func TestSubmitVote_RendersResponse(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(0, 0, false)
	f.api.voteFn = func(_ context.Context, _ string, choice domain.Choice) (*domain.Summary, error) {
		assert.Equal(t, domain.ChoiceA, choice)
		return &domain.Summary{CountA: 4, CountB: 1, Visible: true, MyChoice: domain.ChoiceA}, nil
	}

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(time.Hour))))

	v, err := f.widget.SubmitVote(context.Background(), "7", domain.ChoiceA)
	require.NoError(t, err)

	assert.Equal(t, "4", v.CountA)
	assert.Equal(t, "1", v.CountB)
	assert.Equal(t, 80, v.BarA)
	assert.Equal(t, 20, v.BarB)
	assert.Equal(t, "A", v.Highlight)
	assert.Equal(t, "Total 5", v.Total)
	assert.Equal(t, v, f.view(t, "7"))
	assert.Equal(t, 1, f.api.votes())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.VotesSubmitted.WithLabelValues("ok")))
}

func TestSubmitVote_RejectedWithoutReasonUsesGenericMessage(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(2, 2, true)
	f.api.voteFn = func(context.Context, string, domain.Choice) (*domain.Summary, error) {
		return nil, &domain.VoteRejectedError{StatusCode: 500}
	}

	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "7"}))
	before := f.view(t, "7")

	_, err := f.widget.SubmitVote(context.Background(), "7", domain.ChoiceB)
	require.Error(t, err)

	assert.Equal(t, domain.GenericVoteFailure, domain.UserMessage(err))
	assert.Equal(t, before, f.view(t, "7"), "counts are never changed locally")
	assert.Equal(t, 1, f.api.votes())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.VotesSubmitted.WithLabelValues("rejected")))
}

func TestSubmitVote_RejectedWithReason(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.voteFn = func(context.Context, string, domain.Choice) (*domain.Summary, error) {
		return nil, &domain.VoteRejectedError{StatusCode: 400, Reason: "투표 기간이 아닙니다."}
	}

	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "7"}))

	_, err := f.widget.SubmitVote(context.Background(), "7", domain.ChoiceA)
	require.Error(t, err)
	assert.Equal(t, "투표 기간이 아닙니다.", domain.UserMessage(err))
}

func TestSubmitVote_UnknownFeed(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	_, err := f.widget.SubmitVote(context.Background(), "404", domain.ChoiceA)
	assert.ErrorIs(t, err, domain.ErrBoxNotFound)
	assert.Zero(t, f.api.votes())
}

func TestState_RelaysServerState(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.stateFn = func(_ context.Context, feedID string) (string, error) {
		return "OPEN", nil
	}
	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "7"}))

	state, err := f.widget.State(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "OPEN", state)

	_, err = f.widget.State(context.Background(), "8")
	assert.ErrorIs(t, err, domain.ErrBoxNotFound)
}

func TestViews_SortedByFeedID(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	for _, id := range []string{"30", "10", "20"} {
		require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: id}))
	}

	views := f.widget.Views()
	require.Len(t, views, 3)
	assert.Equal(t, "10", views[0].FeedID)
	assert.Equal(t, "20", views[1].FeedID)
	assert.Equal(t, "30", views[2].FeedID)
}

func TestStop_CancelsCountdowns(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(time.Hour))))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ActiveCountdowns))

	f.widget.Stop()

	assert.Zero(t, testutil.ToFloat64(f.metrics.ActiveCountdowns))
	assert.Error(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "8"}))
}

func TestParseRevealPolicy(t *testing.T) {
	p, err := ParseRevealPolicy("on-close")
	require.NoError(t, err)
	assert.Equal(t, RevealOnClose, p)

	p, err = ParseRevealPolicy("server")
	require.NoError(t, err)
	assert.Equal(t, RevealServer, p)

	_, err = ParseRevealPolicy("always")
	assert.Error(t, err)
}

func TestHealth_PhaseAndLastFetch(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = func(_ context.Context, feedID string) (*domain.Summary, error) {
		if feedID == "3" {
			return nil, errors.New("connection refused")
		}
		return &domain.Summary{CountA: 1, CountB: 1}, nil
	}

	require.NoError(t, f.widget.Track(context.Background(), item("7", epoch.Add(-time.Minute), epoch.Add(time.Hour))))
	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "3"}))

	report := f.widget.Health()
	require.Len(t, report, 2)

	assert.Equal(t, "3", report[0].FeedID)
	assert.Equal(t, "unknown", report[0].Phase)
	assert.Nil(t, report[0].LastFetch)
	assert.True(t, report[0].Stale)

	assert.Equal(t, "7", report[1].FeedID)
	assert.Equal(t, "open", report[1].Phase)
	require.NotNil(t, report[1].LastFetch)
	assert.True(t, report[1].LastFetch.Equal(epoch))
	assert.False(t, report[1].Stale)
}

func TestHealth_StaleAfterMissedPolls(t *testing.T) {
	f := newWidgetFixture(t, RevealServer)
	f.api.summaryFn = summary(1, 1, true)
	require.NoError(t, f.widget.Track(context.Background(), domain.FeedItem{FeedID: "7"}))

	f.api.mu.Lock()
	f.api.summaryFn = func(context.Context, string) (*domain.Summary, error) {
		return nil, errors.New("503")
	}
	f.api.mu.Unlock()

	f.clock.Advance(30 * time.Second)
	assert.False(t, f.widget.Health()[0].Stale, "three poll intervals is still fresh")

	f.clock.Advance(time.Second)
	report := f.widget.Health()
	assert.True(t, report[0].Stale)
	require.NotNil(t, report[0].LastFetch)
	assert.True(t, report[0].LastFetch.Equal(epoch))
}
