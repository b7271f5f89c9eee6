// Package scheduler arms a single one-shot timer for the instant the next
// active card becomes due. There is no polling: the timer is re-armed on
// every store mutation, after every fire, and on foreground regain. With no
// future due times the scheduler sits Idle, which is a valid steady state.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ezberapp/ezber/internal/domain"
)

// Snapshot returns the current full active set. The scheduler always reads
// it live, never a captured copy, so a card deleted mid-wait can never leak
// into a fire.
type Snapshot func() []domain.Card

// State is the scheduler's arming state.
type State int

const (
	// StateIdle means no timer is pending: no active cards, or every
	// active card is already due.
	StateIdle State = iota
	// StateArmed means exactly one timer is pending for the nearest
	// future due time.
	StateArmed
)

// Scheduler owns the one pending deadline timer.
type Scheduler struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	snapshot Snapshot

	mu     sync.Mutex
	gen    uint64
	timer  clockwork.Timer
	target time.Time

	subMu sync.Mutex
	subs  []chan time.Time
}

// New builds a scheduler over the given live snapshot. Call Rearm once the
// initial state is loaded; the zero scheduler is Idle.
func New(clock clockwork.Clock, logger *slog.Logger, snapshot Snapshot) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{clock: clock, logger: logger, snapshot: snapshot}
}

// Subscribe returns a tick stream. A tick carries the wall-clock sample
// taken at fire time; subscribers re-derive their views from it. Ticks
// coalesce when a subscriber lags, they are never queued unboundedly.
func (s *Scheduler) Subscribe() <-chan time.Time {
	ch := make(chan time.Time, 1)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes a channel returned by Subscribe. The channel is not
// closed; the caller simply stops receiving ticks.
func (s *Scheduler) Unsubscribe(ch <-chan time.Time) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// State reports the arming state and, when armed, the timer's target.
func (s *Scheduler) State() (State, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return StateIdle, time.Time{}
	}
	return StateArmed, s.target
}

// Rearm samples the clock, cancels any pending timer and arms for the
// nearest future due time in the live active set. Callers invoke it on
// every mutation of the active set and on foreground regain.
func (s *Scheduler) Rearm() {
	s.rearm(s.clock.Now())
}

// Stop cancels any pending timer. Used at shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.target = time.Time{}
}

func (s *Scheduler) rearm(now time.Time) {
	target, found := nearestFuture(s.snapshot(), now)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Bumping the generation invalidates any in-flight fire from the
	// timer being replaced; Stop alone cannot close that race.
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if !found {
		s.target = time.Time{}
		return
	}

	delay := target.Sub(now)
	if delay < 0 {
		delay = 0
	}
	s.target = target
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
	s.logger.Debug("armed review timer", "target", target, "delay", delay)
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		// A re-arm replaced this timer while the fire was in flight.
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.target = time.Time{}
	s.mu.Unlock()

	// The fire is authoritative whenever it actually happens; re-sample
	// the clock rather than trusting the armed delay (platform timers may
	// be throttled while backgrounded).
	wakeNow := s.clock.Now()
	s.publish(wakeNow)
	s.rearm(wakeNow)
}

func (s *Scheduler) publish(now time.Time) {
	s.subMu.Lock()
	subs := make([]chan time.Time, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- now:
		default:
		}
	}
}

func nearestFuture(cards []domain.Card, now time.Time) (time.Time, bool) {
	nowMillis := now.UnixMilli()
	var best int64
	found := false
	for _, c := range cards {
		if c.Status != domain.StatusActive {
			continue
		}
		if c.NextReviewTime <= nowMillis {
			continue
		}
		if !found || c.NextReviewTime < best {
			best = c.NextReviewTime
			found = true
		}
	}
	if !found {
		return time.Time{}, false
	}
	return time.UnixMilli(best), true
}
