// Package store is the single source of truth for cards, folders and
// settings during a session. All mutations go through it; every mutation
// notifies registered listeners so the scheduler can re-arm, and writes
// through to the persister on a best-effort basis. A failed write is logged
// and the in-memory state stays authoritative.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ezberapp/ezber/internal/domain"
	"github.com/ezberapp/ezber/internal/srs"
)

// saveDebounce batches rapid card mutations into one snapshot write.
const saveDebounce = time.Second

// Persister is the durable side of the store. Implementations must accept
// whole-set snapshots; writes are last-write-wins.
type Persister interface {
	SaveCards([]domain.Card) error
	SaveFolders([]domain.Folder) error
	SaveSettings(domain.Settings) error
}

// Listener is invoked after every mutation, outside the store's lock.
type Listener func()

// Store holds the session state.
type Store struct {
	clock   clockwork.Clock
	logger  *slog.Logger
	persist Persister

	mu        sync.Mutex
	cards     []domain.Card
	folders   []domain.Folder
	settings  domain.Settings
	saveTimer clockwork.Timer

	listenerMu sync.Mutex
	listeners  []Listener
}

// New builds a store seeded with previously loaded state. persist may be nil
// (state is then session-only, which the tests use).
func New(clock clockwork.Clock, logger *slog.Logger, persist Persister, cards []domain.Card, folders []domain.Folder, settings domain.Settings) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		clock:    clock,
		logger:   logger,
		persist:  persist,
		settings: settings,
	}
	s.cards = append(s.cards, cards...)
	s.folders = append(s.folders, folders...)
	for i := range s.cards {
		s.cards[i].IntervalIndex = srs.Clamp(s.cards[i].IntervalIndex)
	}
	return s
}

// OnChange registers a listener for mutations.
func (s *Store) OnChange(fn Listener) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

func (s *Store) notify() {
	s.listenerMu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Cards returns a copy of every card, insertion order preserved.
func (s *Store) Cards() []domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Card, len(s.cards))
	copy(out, s.cards)
	return out
}

// ActiveCards returns a copy of the full active set. The scheduler arms
// against this regardless of any folder filter the UI has selected.
func (s *Store) ActiveCards() []domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Card
	for _, c := range s.cards {
		if c.Status == domain.StatusActive {
			out = append(out, c)
		}
	}
	return out
}

// Card looks up a single card by id.
func (s *Store) Card(id string) (domain.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Card{}, false
}

// Folders returns a copy of every folder.
func (s *Store) Folders() []domain.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Folder, len(s.folders))
	copy(out, s.folders)
	return out
}

// Folder looks up a folder by id. A dangling card reference simply misses.
func (s *Store) Folder(id string) (domain.Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.ID == id {
			return f, true
		}
	}
	return domain.Folder{}, false
}

// Settings returns the current settings snapshot.
func (s *Store) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the settings and persists them immediately.
func (s *Store) UpdateSettings(settings domain.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.SaveSettings(settings); err != nil {
			s.logger.Error("failed to persist settings", "error", err)
		}
	}
	s.notify()
}

// Add inserts a new library card at the front of the collection, assigning
// an id when the caller left it empty. It returns the stored card.
func (s *Store) Add(card domain.Card) domain.Card {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.Status == "" {
		card.Status = domain.StatusLibrary
	}
	card.IntervalIndex = srs.Clamp(card.IntervalIndex)

	s.mu.Lock()
	s.cards = append([]domain.Card{card}, s.cards...)
	s.mu.Unlock()

	s.cardsChanged()
	return card
}

// Update replaces a card wholesale by id. Missing ids are a no-op.
func (s *Store) Update(card domain.Card) {
	s.mu.Lock()
	replaced := false
	for i := range s.cards {
		if s.cards[i].ID == card.ID {
			card.IntervalIndex = srs.Clamp(card.IntervalIndex)
			s.cards[i] = card
			replaced = true
			break
		}
	}
	s.mu.Unlock()
	if replaced {
		s.cardsChanged()
	}
}

// Activate enrolls a library card in scheduling: rung resets to zero and the
// first review lands one bottom-rung delay from now. Missing or already
// active cards are a no-op.
func (s *Store) Activate(id string) (domain.Card, bool) {
	now := s.clock.Now()

	s.mu.Lock()
	var activated domain.Card
	ok := false
	for i := range s.cards {
		if s.cards[i].ID == id && s.cards[i].Status == domain.StatusLibrary {
			s.cards[i].Status = domain.StatusActive
			s.cards[i].IntervalIndex = 0
			s.cards[i].NextReviewTime = srs.DueAt(now, 0)
			activated = s.cards[i]
			ok = true
			break
		}
	}
	s.mu.Unlock()

	if ok {
		s.cardsChanged()
	}
	return activated, ok
}

// AcknowledgeReview advances an active card one rung and reschedules it.
// Whether the card was actually due is the caller's concern; the store only
// requires that it exists and is active.
func (s *Store) AcknowledgeReview(id string) (domain.Card, bool) {
	now := s.clock.Now()

	s.mu.Lock()
	var reviewed domain.Card
	ok := false
	for i := range s.cards {
		if s.cards[i].ID == id && s.cards[i].Status == domain.StatusActive {
			next, _ := srs.Advance(s.cards[i].IntervalIndex)
			s.cards[i].IntervalIndex = next
			s.cards[i].NextReviewTime = srs.DueAt(now, next)
			reviewed = s.cards[i]
			ok = true
			break
		}
	}
	s.mu.Unlock()

	if ok {
		s.cardsChanged()
	}
	return reviewed, ok
}

// Deactivate returns an active card to the library. Its NextReviewTime goes
// stale and must not be read until the card is activated again. Missing ids
// are a no-op.
func (s *Store) Deactivate(id string) {
	s.mu.Lock()
	changed := false
	for i := range s.cards {
		if s.cards[i].ID == id && s.cards[i].Status == domain.StatusActive {
			s.cards[i].Status = domain.StatusLibrary
			changed = true
			break
		}
	}
	s.mu.Unlock()
	if changed {
		s.cardsChanged()
	}
}

// Delete removes a card unconditionally from both views. Missing ids are a
// no-op, not an error.
func (s *Store) Delete(id string) {
	s.BulkDelete([]string{id})
}

// BulkDelete removes every card whose id appears in the given set.
func (s *Store) BulkDelete(ids []string) {
	if len(ids) == 0 {
		return
	}
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	s.mu.Lock()
	kept := s.cards[:0]
	changed := false
	for _, c := range s.cards {
		if doomed[c.ID] {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	s.cards = kept
	s.mu.Unlock()

	if changed {
		s.cardsChanged()
	}
}

// CreateFolder always succeeds and assigns a fresh id.
func (s *Store) CreateFolder(name string) domain.Folder {
	folder := domain.Folder{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.clock.Now().UnixMilli(),
	}

	s.mu.Lock()
	s.folders = append(s.folders, folder)
	s.mu.Unlock()

	s.foldersChanged()
	return folder
}

// DeleteFolder removes a folder. Cards keep their FolderID; readers treat
// the dangling reference as "no folder". Missing ids are a no-op.
func (s *Store) DeleteFolder(id string) {
	s.mu.Lock()
	kept := s.folders[:0]
	changed := false
	for _, f := range s.folders {
		if f.ID == id {
			changed = true
			continue
		}
		kept = append(kept, f)
	}
	s.folders = kept
	s.mu.Unlock()

	if changed {
		s.foldersChanged()
	}
}

// Flush forces any debounced card snapshot to disk now. Called on shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.mu.Unlock()
	s.saveCards()
}

func (s *Store) cardsChanged() {
	if s.persist != nil {
		s.mu.Lock()
		if s.saveTimer != nil {
			s.saveTimer.Stop()
		}
		s.saveTimer = s.clock.AfterFunc(saveDebounce, s.saveCards)
		s.mu.Unlock()
	}
	s.notify()
}

func (s *Store) foldersChanged() {
	if s.persist != nil {
		if err := s.persist.SaveFolders(s.Folders()); err != nil {
			s.logger.Error("failed to persist folders", "error", err)
		}
	}
	s.notify()
}

func (s *Store) saveCards() {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveCards(s.Cards()); err != nil {
		s.logger.Error("failed to persist cards", "error", err)
	}
}
