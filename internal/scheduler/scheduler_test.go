package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezberapp/ezber/internal/domain"
	"github.com/ezberapp/ezber/internal/queueview"
	"github.com/ezberapp/ezber/internal/store"
)

// cardSet is a tiny live snapshot source for scheduler-only tests.
type cardSet struct {
	mu    sync.Mutex
	cards []domain.Card
}

func (cs *cardSet) snapshot() []domain.Card {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]domain.Card, len(cs.cards))
	copy(out, cs.cards)
	return out
}

func (cs *cardSet) set(cards ...domain.Card) {
	cs.mu.Lock()
	cs.cards = cards
	cs.mu.Unlock()
}

func activeDueAt(id string, due int64) domain.Card {
	return domain.Card{ID: id, Status: domain.StatusActive, NextReviewTime: due}
}

func requireTick(t *testing.T, ch <-chan time.Time) time.Time {
	t.Helper()
	select {
	case tick := <-ch:
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("expected a tick, got none")
		return time.Time{}
	}
}

func requireNoTick(t *testing.T, ch <-chan time.Time) {
	t.Helper()
	select {
	case tick := <-ch:
		t.Fatalf("unexpected tick at %v", tick)
	case <-time.After(50 * time.Millisecond):
	}
}

func requireArmedAt(t *testing.T, s *Scheduler, want time.Time) {
	t.Helper()
	require.Eventually(t, func() bool {
		state, target := s.State()
		return state == StateArmed && target.Equal(want)
	}, 2*time.Second, time.Millisecond, "scheduler should be armed at %v", want)
}

func TestArmsNearestOnly(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(0))
	cs := &cardSet{}
	cs.set(
		activeDueAt("mid", 5_000),
		activeDueAt("soonest", 1_000),
		activeDueAt("latest", 9_000),
	)

	s := New(clock, nil, cs.snapshot)
	ticks := s.Subscribe()
	s.Rearm()

	state, target := s.State()
	require.Equal(t, StateArmed, state)
	assert.Equal(t, time.UnixMilli(1_000), target)

	clock.Advance(time.Second)
	tick := requireTick(t, ticks)
	assert.Equal(t, int64(1_000), tick.UnixMilli())

	// After the fire the scheduler re-arms itself for the next soonest
	// card, adjusted for elapsed time.
	requireArmedAt(t, s, time.UnixMilli(5_000))
}

func TestEmptyFutureSetArmsNothing(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(10_000))
	cs := &cardSet{}
	cs.set(
		activeDueAt("overdue", 2_000),
		activeDueAt("due-now", 10_000),
	)

	s := New(clock, nil, cs.snapshot)
	ticks := s.Subscribe()
	s.Rearm()

	state, _ := s.State()
	assert.Equal(t, StateIdle, state, "everything already due is a valid steady state")

	// Idle means idle: no hidden polling wakes us up later.
	clock.Advance(24 * time.Hour)
	requireNoTick(t, ticks)
}

func TestNoActiveCardsArmsNothing(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(0))
	cs := &cardSet{}
	cs.set(domain.Card{ID: "shelved", Status: domain.StatusLibrary, NextReviewTime: 4_000})

	s := New(clock, nil, cs.snapshot)
	s.Rearm()

	state, _ := s.State()
	assert.Equal(t, StateIdle, state)
}

func TestRearmOnEarlierMutation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(0))
	cs := &cardSet{}
	cs.set(activeDueAt("late", 9_000))

	s := New(clock, nil, cs.snapshot)
	ticks := s.Subscribe()
	s.Rearm()
	_, target := s.State()
	require.Equal(t, time.UnixMilli(9_000), target)

	// A new card with an earlier due time replaces the pending target.
	cs.set(activeDueAt("late", 9_000), activeDueAt("early", 1_000))
	s.Rearm()
	_, target = s.State()
	require.Equal(t, time.UnixMilli(1_000), target)

	clock.Advance(time.Second)
	tick := requireTick(t, ticks)
	assert.Equal(t, int64(1_000), tick.UnixMilli())
	requireArmedAt(t, s, time.UnixMilli(9_000))
}

func TestDeletingTargetCancelsStaleTimer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(0))
	cs := &cardSet{}
	cs.set(activeDueAt("doomed", 1_000))

	s := New(clock, nil, cs.snapshot)
	ticks := s.Subscribe()
	s.Rearm()

	// The user deletes the very card the timer targets mid-wait.
	cs.set()
	s.Rearm()

	state, _ := s.State()
	assert.Equal(t, StateIdle, state)
	clock.Advance(5 * time.Second)
	requireNoTick(t, ticks)
}

func TestStopCancelsPendingTimer(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(0))
	cs := &cardSet{}
	cs.set(activeDueAt("pending", 1_000))

	s := New(clock, nil, cs.snapshot)
	ticks := s.Subscribe()
	s.Rearm()
	s.Stop()

	clock.Advance(5 * time.Second)
	requireNoTick(t, ticks)
}

func TestTiedDueTimesFireTogether(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(0))
	cs := &cardSet{}
	cs.set(activeDueAt("a", 1_000), activeDueAt("b", 1_000))

	s := New(clock, nil, cs.snapshot)
	ticks := s.Subscribe()
	s.Rearm()

	clock.Advance(time.Second)
	tick := requireTick(t, ticks)

	view := queueview.Build(cs.snapshot(), "", tick)
	assert.Equal(t, 2, view.DueCount, "both tied cards report ready at the shared instant")

	// Both cards are consumed by one fire; nothing is left to arm.
	require.Eventually(t, func() bool {
		state, _ := s.State()
		return state == StateIdle
	}, 2*time.Second, time.Millisecond)
}

// TestReviewScenario walks a full review timeline: activation at t=0,
// fire at t=5000, acknowledge at t=6000.
func TestReviewScenario(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(0))
	st := store.New(clock, nil, nil, []domain.Card{
		{ID: "a", Meaning: "Kalem", Word: "قلم", Status: domain.StatusLibrary},
	}, nil, domain.Settings{})

	s := New(clock, nil, st.ActiveCards)
	st.OnChange(s.Rearm)
	ticks := s.Subscribe()

	// t=0: activation puts the card on the bottom rung, due at t=5000.
	card, ok := st.Activate("a")
	require.True(t, ok)
	require.Equal(t, int64(5_000), card.NextReviewTime)
	_, target := s.State()
	require.Equal(t, time.UnixMilli(5_000), target)

	// t=5000: the timer fires and the card reports ready.
	clock.Advance(5 * time.Second)
	tick := requireTick(t, ticks)
	require.Equal(t, int64(5_000), tick.UnixMilli())
	view := queueview.Build(st.ActiveCards(), "", tick)
	require.Equal(t, 1, view.DueCount)

	// t=6000: the user acknowledges; the card climbs to rung 1, due at
	// t=6000+25000.
	clock.Advance(time.Second)
	card, ok = st.AcknowledgeReview("a")
	require.True(t, ok)
	assert.Equal(t, 1, card.IntervalIndex)
	assert.Equal(t, int64(31_000), card.NextReviewTime)
	requireArmedAt(t, s, time.UnixMilli(31_000))
}
