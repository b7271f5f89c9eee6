// Package alarm produces the audible "card is due" loop. The sink schedules
// tone pulses ahead of time against its clock and re-checks on a short
// tick, so pulses stay on cadence even when the host process is throttled.
// Alarm state lives in the Sink; Start and Stop are its only mutators.
package alarm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ezberapp/ezber/internal/notify"
)

const (
	// pulseCadence is the gap between double beeps.
	pulseCadence = 2500 * time.Millisecond
	// lookahead is how far ahead pulses are queued.
	lookahead = 1500 * time.Millisecond
	// recheck is how often the queue is topped up while sounding.
	recheck = 500 * time.Millisecond
	// startDelay gives the first pulse a moment to breathe.
	startDelay = 100 * time.Millisecond
)

// Chime emits one audible pulse (a double beep in the default build).
// Implementations must return quickly; the sink owns the cadence.
type Chime interface {
	Pulse()
}

// Visibility reports whether the user currently has the app in the
// foreground. Hidden users additionally get a system notification.
type Visibility func() bool

// Sink is the owned alarm state.
type Sink struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	chime    Chime
	notifier notify.Service
	visible  Visibility

	mu        sync.Mutex
	sounding  bool
	gen       uint64
	nextPulse time.Time
	ticker    clockwork.Ticker
	stop      chan struct{}
}

// New builds a silent sink. chime must not be nil; notifier and visible may
// be nil, which disables the notification side channel.
func New(clock clockwork.Clock, logger *slog.Logger, chime Chime, notifier notify.Service, visible Visibility) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		clock:    clock,
		logger:   logger,
		chime:    chime,
		notifier: notifier,
		visible:  visible,
	}
}

// Sounding reports whether the alarm is currently active.
func (s *Sink) Sounding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sounding
}

// Start begins the pulse loop. Calling it while already sounding is a no-op.
// When the app is hidden and notifications are enabled, one system
// notification goes out per start, never per pulse.
func (s *Sink) Start(ctx context.Context) {
	s.mu.Lock()
	if s.sounding {
		s.mu.Unlock()
		return
	}
	s.sounding = true
	s.gen++
	gen := s.gen
	s.nextPulse = s.clock.Now().Add(startDelay)
	s.scheduleAheadLocked(gen)
	s.ticker = s.clock.NewTicker(recheck)
	s.stop = make(chan struct{})
	stop, ticker := s.stop, s.ticker
	s.mu.Unlock()

	go s.topUpLoop(gen, ticker, stop)

	hidden := s.visible != nil && !s.visible()
	if hidden && s.notifier != nil && s.notifier.Enabled() {
		if err := s.notifier.Notify(ctx, "Review Time!", "A memory card is ready for review."); err != nil {
			s.logger.Warn("failed to deliver due notification", "error", err)
		}
	}
}

// Stop silences the alarm immediately and cancels all queued pulses. Safe
// to call at any time, sounding or not.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sounding {
		return
	}
	s.sounding = false
	s.gen++
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.stop = nil
}

func (s *Sink) topUpLoop(gen uint64, ticker clockwork.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			s.mu.Lock()
			if s.sounding && s.gen == gen {
				s.scheduleAheadLocked(gen)
			}
			s.mu.Unlock()
		}
	}
}

// scheduleAheadLocked queues every pulse falling inside the lookahead
// window. Pulses carry the generation they were scheduled under; a Stop
// bumps the generation so late timers fall silent.
func (s *Sink) scheduleAheadLocked(gen uint64) {
	now := s.clock.Now()
	horizon := now.Add(lookahead)
	for s.nextPulse.Before(horizon) {
		delay := s.nextPulse.Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.clock.AfterFunc(delay, func() {
			s.mu.Lock()
			live := s.sounding && s.gen == gen
			s.mu.Unlock()
			if live {
				s.chime.Pulse()
			}
		})
		s.nextPulse = s.nextPulse.Add(pulseCadence)
	}
}
