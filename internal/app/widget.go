package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

const (
	defaultTickInterval = time.Second
	defaultPollInterval = 10 * time.Second

	// A box whose last good fetch is older than this many poll intervals
	// counts as stale.
	staleAfterPolls = 3
)

// RevealPolicy decides whether live tallies may show while a vote is open.
type RevealPolicy int

const (
	// RevealServer follows the site's visible flag while the vote is open.
	RevealServer RevealPolicy = iota
	// RevealOnClose keeps tallies masked until the window closes.
	RevealOnClose
)

// ParseRevealPolicy maps "server" and "on-close" to a policy.
func ParseRevealPolicy(s string) (RevealPolicy, error) {
	switch s {
	case "server", "":
		return RevealServer, nil
	case "on-close":
		return RevealOnClose, nil
	default:
		return RevealServer, fmt.Errorf("unknown reveal policy %q", s)
	}
}

type Options struct {
	Labels        Labels
	Policy        RevealPolicy
	ClosedMarkers []string       // status texts that mean the vote is over
	TickInterval  time.Duration  // countdown resolution
	PollInterval  time.Duration  // background summary refresh
	Location      *time.Location // zone of the markup's zone-less timestamps
	Metrics       *metrics.VoteBoxMetrics
}

// Widget owns the vote boxes of every tracked feed item, including the
// feed id to countdown mapping. Its background work lives until Stop.
type Widget struct {
	api       domain.VotesAPI
	publisher domain.ViewPublisher
	clock     clockwork.Clock
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	boxes  map[string]*box
	timers map[string]*countdown
}

type box struct {
	feedID   string
	fallback domain.Window

	mu         sync.Mutex
	view       domain.BoxView
	window     domain.Window
	phase      domain.Phase
	closeFired bool

	// Fetches are numbered when issued; a response older than the last one
	// applied is dropped.
	issued    uint64
	applied   uint64
	lastFetch time.Time
}

func NewWidget(api domain.VotesAPI, publisher domain.ViewPublisher, clock clockwork.Clock, opts Options) *Widget {
	if opts.Labels == (Labels{}) {
		opts.Labels = LabelsFor("en")
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Widget{
		api:       api,
		publisher: publisher,
		clock:     clock,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		boxes:     make(map[string]*box),
		timers:    make(map[string]*countdown),
	}
}

// Track starts following a feed item: the box is initialised once and then
// re-polled every PollInterval until Stop. Tracking a known feed item again
// only re-initialises it.
func (w *Widget) Track(ctx context.Context, item domain.FeedItem) error {
	if item.FeedID == "" {
		return errors.New("feed item without id")
	}
	if w.ctx.Err() != nil {
		return errors.New("widget stopped")
	}

	w.mu.Lock()
	_, known := w.boxes[item.FeedID]
	if !known {
		w.boxes[item.FeedID] = w.newBox(ctx, item)
	}
	w.mu.Unlock()

	if known {
		return w.InitBox(ctx, item.FeedID)
	}

	if m := w.opts.Metrics; m != nil {
		m.TrackedBoxes.Inc()
	}
	b, _ := w.box(item.FeedID)
	w.publish(correlation.WithFeedID(ctx, item.FeedID), b.snapshot())

	if err := w.InitBox(ctx, item.FeedID); err != nil {
		return err
	}

	ticker := w.clock.NewTicker(w.opts.PollInterval)
	w.wg.Add(1)
	go w.runPoll(b, ticker)
	return nil
}

func (w *Widget) newBox(ctx context.Context, item domain.FeedItem) *box {
	b := &box{feedID: item.FeedID}
	b.fallback.Start = w.parseFallback(ctx, item.FeedID, "data-start-iso", item.StartISO)
	b.fallback.End = w.parseFallback(ctx, item.FeedID, "data-end-iso", item.EndISO)
	b.window = b.fallback

	b.view = domain.BoxView{
		FeedID:        item.FeedID,
		Phase:         domain.PhaseUnknown.String(),
		Status:        w.opts.Labels.status(""),
		VotingEnabled: true,
		UpdatedAt:     w.clock.Now(),
	}
	w.opts.Labels.mask(&b.view)
	return b
}

func (w *Widget) parseFallback(ctx context.Context, feedID, attr, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := domain.ParseTimestamp(value, w.opts.Location)
	if err != nil {
		slog.WarnContext(ctx, "Ignoring unreadable window attribute", "feed_id", feedID, "attribute", attr, "value", value)
		return nil
	}
	return &t
}

func (w *Widget) box(feedID string) (*box, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.boxes[feedID]
	return b, ok
}

// InitBox loads the summary of a tracked feed item and renders it. A failed
// load is not an error: the box keeps its masked state until the next poll.
// The countdown starts when both window bounds are known.
func (w *Widget) InitBox(ctx context.Context, feedID string) error {
	b, ok := w.box(feedID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrBoxNotFound, feedID)
	}
	ctx = correlation.WithFeedID(ctx, feedID)

	seq := b.nextFetch()
	s, err := w.api.Summary(ctx, feedID)
	w.observeFetch(metrics.SourceInit, err)
	if err != nil {
		slog.DebugContext(ctx, "Initial vote summary unavailable", "error", err)
		return nil
	}

	if view, ok := w.applySummary(ctx, b, seq, s, false, true); ok {
		w.publish(ctx, view)
	}

	win := b.currentWindow()
	if win.Complete() {
		return w.StartCountdown(feedID, *win.Start, *win.End)
	}
	return nil
}

// SubmitVote sends one vote request and renders the answer. Counts are never
// incremented locally. On failure the returned error carries the message to
// show, see domain.UserMessage.
func (w *Widget) SubmitVote(ctx context.Context, feedID string, choice domain.Choice) (domain.BoxView, error) {
	b, ok := w.box(feedID)
	if !ok {
		return domain.BoxView{}, fmt.Errorf("%w: %s", domain.ErrBoxNotFound, feedID)
	}
	ctx = correlation.WithFeedID(ctx, feedID)

	seq := b.nextFetch()
	s, err := w.api.Vote(ctx, feedID, choice)
	if err != nil {
		w.observeVote(err)
		slog.InfoContext(ctx, "Vote not accepted", "choice", choice.String(), "message", domain.UserMessage(err), "error", err)
		return domain.BoxView{}, fmt.Errorf("submit vote for feed %s: %w", feedID, err)
	}
	w.observeVote(nil)

	view, ok := w.applySummary(ctx, b, seq, s, false, false)
	if ok {
		w.publish(ctx, view)
	}
	return view, nil
}

// State relays the site's raw lifecycle state of a tracked feed item.
func (w *Widget) State(ctx context.Context, feedID string) (string, error) {
	if _, ok := w.box(feedID); !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrBoxNotFound, feedID)
	}
	state, err := w.api.State(correlation.WithFeedID(ctx, feedID), feedID)
	if err != nil {
		return "", fmt.Errorf("state for feed %s: %w", feedID, err)
	}
	return state, nil
}

// View returns the current view of one box.
func (w *Widget) View(feedID string) (domain.BoxView, bool) {
	b, ok := w.box(feedID)
	if !ok {
		return domain.BoxView{}, false
	}
	return b.snapshot(), true
}

// Views returns every box view ordered by feed id.
func (w *Widget) Views() []domain.BoxView {
	w.mu.Lock()
	boxes := make([]*box, 0, len(w.boxes))
	for _, b := range w.boxes {
		boxes = append(boxes, b)
	}
	w.mu.Unlock()

	views := make([]domain.BoxView, 0, len(boxes))
	for _, b := range boxes {
		views = append(views, b.snapshot())
	}
	slices.SortFunc(views, func(a, b domain.BoxView) int { return strings.Compare(a.FeedID, b.FeedID) })
	return views
}

// Health reports phase and last successful fetch of every box, ordered by
// feed id.
func (w *Widget) Health() []domain.BoxHealth {
	now := w.clock.Now()
	staleAfter := staleAfterPolls * w.opts.PollInterval

	w.mu.Lock()
	boxes := make([]*box, 0, len(w.boxes))
	for _, b := range w.boxes {
		boxes = append(boxes, b)
	}
	w.mu.Unlock()

	report := make([]domain.BoxHealth, 0, len(boxes))
	for _, b := range boxes {
		b.mu.Lock()
		h := domain.BoxHealth{FeedID: b.feedID, Phase: b.phase.String(), Stale: true}
		if !b.lastFetch.IsZero() {
			last := b.lastFetch
			h.LastFetch = &last
			h.Stale = now.Sub(last) > staleAfter
		}
		b.mu.Unlock()
		report = append(report, h)
	}
	slices.SortFunc(report, func(a, b domain.BoxHealth) int { return strings.Compare(a.FeedID, b.FeedID) })
	return report
}

// Stop cancels every countdown and poll and waits for them to exit.
func (w *Widget) Stop() {
	w.cancel()

	w.mu.Lock()
	for feedID, cd := range w.timers {
		cd.cancel()
		delete(w.timers, feedID)
		if m := w.opts.Metrics; m != nil {
			m.ActiveCountdowns.Dec()
		}
	}
	w.mu.Unlock()

	w.wg.Wait()
	slog.Info("Vote boxes stopped")
}

func (w *Widget) runPoll(b *box, ticker clockwork.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.Chan():
			w.poll(b)
		}
	}
}

// poll refreshes tallies, highlight and status text. Failures are dropped;
// the next tick tries again.
func (w *Widget) poll(b *box) {
	ctx := correlation.WithID(correlation.WithFeedID(w.ctx, b.feedID), correlation.NewID())

	seq := b.nextFetch()
	s, err := w.api.Summary(ctx, b.feedID)
	w.observeFetch(metrics.SourcePoll, err)
	if err != nil {
		slog.DebugContext(ctx, "Vote summary poll failed", "error", err)
		return
	}

	if view, ok := w.applySummary(ctx, b, seq, s, false, true); ok {
		w.publish(ctx, view)
	}
}

// applySummary renders the summary of fetch seq into the box. forceVisible
// reveals regardless of flags; withStatus copies the server's status text.
// It reports false, leaving the box untouched, when a later fetch was
// already applied.
func (w *Widget) applySummary(ctx context.Context, b *box, seq uint64, s *domain.Summary, forceVisible, withStatus bool) (domain.BoxView, bool) {
	now := w.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if seq < b.applied {
		slog.DebugContext(ctx, "Dropping out-of-order vote summary", "fetch", seq, "applied", b.applied)
		return b.view, false
	}
	b.applied = seq
	b.lastFetch = now

	b.window = s.Window(b.fallback)
	visible := forceVisible || w.revealFor(now, s, b.window)
	w.opts.Labels.RenderTallies(&b.view, s.CountA, s.CountB, visible)

	if s.MyChoice != domain.ChoiceNone {
		b.view.Highlight = s.MyChoice.String()
	}
	if withStatus && s.Status != "" {
		b.view.Status = w.opts.Labels.status(s.Status)
	}
	b.view.UpdatedAt = now
	return b.view, true
}

// revealFor decides whether tallies may show. A passed end or a closed status
// always reveals; Waiting never does; Open follows the policy; without a
// known window the server's flag decides.
func (w *Widget) revealFor(now time.Time, s *domain.Summary, win domain.Window) bool {
	if win.Ended(now) || w.statusClosed(s.Status) {
		return true
	}
	switch win.Phase(now) {
	case domain.PhaseWaiting:
		return false
	case domain.PhaseOpen:
		if w.opts.Policy == RevealOnClose {
			return false
		}
	}
	return s.Visible
}

func (w *Widget) statusClosed(status string) bool {
	if status == "" {
		return false
	}
	lower := strings.ToLower(status)
	for _, marker := range w.opts.ClosedMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func (w *Widget) publish(ctx context.Context, view domain.BoxView) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishView(ctx, view); err != nil {
		slog.WarnContext(ctx, "Failed to publish box view", "error", err)
	}
}

func (w *Widget) observeFetch(source string, err error) {
	if m := w.opts.Metrics; m != nil {
		m.SummaryFetches.WithLabelValues(source, resultLabel(err)).Inc()
	}
}

func (w *Widget) observeVote(err error) {
	m := w.opts.Metrics
	if m == nil {
		return
	}
	result := resultLabel(err)
	if _, ok := errors.AsType[*domain.VoteRejectedError](err); ok {
		result = "rejected"
	}
	m.VotesSubmitted.WithLabelValues(result).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (b *box) nextFetch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	return b.issued
}

func (b *box) snapshot() domain.BoxView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

func (b *box) currentWindow() domain.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window
}
