package web

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Activity tracks when the user last interacted with the app. The app
// counts as visible while interactions are recent; once the idle window
// passes it is treated as backgrounded, and the first interaction after
// that runs the regain hook.
type Activity struct {
	clock       clockwork.Clock
	hiddenAfter time.Duration
	onRegain    func()

	mu       sync.Mutex
	lastSeen time.Time
}

// NewActivity builds a tracker that considers the app hidden after the
// given idle duration. onRegain may be nil.
func NewActivity(clock clockwork.Clock, hiddenAfter time.Duration, onRegain func()) *Activity {
	return &Activity{
		clock:       clock,
		hiddenAfter: hiddenAfter,
		onRegain:    onRegain,
		lastSeen:    clock.Now(),
	}
}

// Touch records an interaction. If the app was hidden, the regain hook
// runs after the timestamp is updated so the hook observes a visible app.
func (a *Activity) Touch() {
	a.mu.Lock()
	wasHidden := a.clock.Now().Sub(a.lastSeen) >= a.hiddenAfter
	a.lastSeen = a.clock.Now()
	a.mu.Unlock()

	if wasHidden && a.onRegain != nil {
		a.onRegain()
	}
}

// Visible reports whether an interaction happened within the idle window.
func (a *Activity) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clock.Now().Sub(a.lastSeen) < a.hiddenAfter
}
