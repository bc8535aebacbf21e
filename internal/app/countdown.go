package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/correlation"
)

// countdown is one running window timer. A box has at most one.
type countdown struct {
	stop chan struct{}
	once sync.Once
}

func newCountdown() *countdown {
	return &countdown{stop: make(chan struct{})}
}

func (c *countdown) cancel() {
	c.once.Do(func() { close(c.stop) })
}

func (c *countdown) cancelled() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// StartCountdown replaces the countdown of a feed item with one for
// [start, end). It ticks once immediately, then every TickInterval, and stops
// itself after the closing tick.
func (w *Widget) StartCountdown(feedID string, start, end time.Time) error {
	b, ok := w.box(feedID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrBoxNotFound, feedID)
	}
	if w.ctx.Err() != nil {
		return nil
	}

	cd := newCountdown()

	w.mu.Lock()
	if prev, ok := w.timers[feedID]; ok {
		prev.cancel()
		if m := w.opts.Metrics; m != nil {
			m.CountdownsReplaced.Inc()
			m.ActiveCountdowns.Dec()
		}
	}
	w.timers[feedID] = cd
	if m := w.opts.Metrics; m != nil {
		m.ActiveCountdowns.Inc()
	}
	w.mu.Unlock()

	if end.After(w.clock.Now()) {
		b.mu.Lock()
		b.closeFired = false
		b.mu.Unlock()
	}

	if w.tick(b, cd, start, end) {
		return nil
	}

	ticker := w.clock.NewTicker(w.opts.TickInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-cd.stop:
				return
			case <-ticker.Chan():
				if w.tick(b, cd, start, end) {
					return
				}
			}
		}
	}()
	return nil
}

// tick renders one countdown step and reports whether the countdown is done.
func (w *Widget) tick(b *box, cd *countdown, start, end time.Time) bool {
	if cd.cancelled() {
		return true
	}
	ctx := correlation.WithFeedID(w.ctx, b.feedID)
	now := w.clock.Now()
	phase := domain.DerivePhase(now, start, end)
	l := w.opts.Labels

	b.mu.Lock()
	if phase != b.phase {
		b.phase = phase
		if m := w.opts.Metrics; m != nil {
			m.PhaseTransitions.WithLabelValues(phase.String()).Inc()
		}
	}
	b.view.Phase = phase.String()
	b.view.UpdatedAt = now

	switch phase {
	case domain.PhaseWaiting:
		b.view.Status = l.status(l.Waiting)
		b.view.Countdown = fmt.Sprintf(l.StartsIn, formatRemaining(start.Sub(now)))
		b.view.VotingEnabled = false
		l.mask(&b.view)
	case domain.PhaseOpen:
		b.view.Status = l.status(l.Open)
		b.view.Countdown = fmt.Sprintf(l.EndsIn, formatRemaining(end.Sub(now)))
		b.view.VotingEnabled = true
		if w.opts.Policy == RevealOnClose {
			l.mask(&b.view)
		}
	default:
		if b.closeFired {
			b.mu.Unlock()
			w.stopCountdown(b.feedID, cd)
			return true
		}
		b.closeFired = true
		b.view.Status = l.status(l.Closed)
		b.view.Countdown = ""
		b.view.VotingEnabled = false
	}
	view := b.view
	b.mu.Unlock()

	w.publish(ctx, view)
	if phase != domain.PhaseClosed {
		return false
	}

	w.stopCountdown(b.feedID, cd)
	slog.DebugContext(ctx, "Vote window closed", "end", end)
	w.finalReveal(ctx, b)
	return true
}

// stopCountdown drops cd from the timer map unless it was already replaced.
func (w *Widget) stopCountdown(feedID string, cd *countdown) {
	cd.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.timers[feedID]; ok && cur == cd {
		delete(w.timers, feedID)
		if m := w.opts.Metrics; m != nil {
			m.ActiveCountdowns.Dec()
		}
	}
}

// finalReveal fetches the closing summary once and shows it unmasked,
// whatever the visible flag says. The request is sent after close even when
// a poll is still in flight, and that poll's answer is dropped.
func (w *Widget) finalReveal(ctx context.Context, b *box) {
	seq := b.nextFetch()
	s, err := w.api.FreshSummary(ctx, b.feedID)
	w.observeFetch(metrics.SourceClose, err)
	if err != nil {
		slog.DebugContext(ctx, "Final vote summary unavailable", "error", err)
		return
	}
	if view, ok := w.applySummary(ctx, b, seq, s, true, false); ok {
		w.publish(ctx, view)
	}
}
