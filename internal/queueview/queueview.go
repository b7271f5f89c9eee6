// Package queueview derives the presentation of the active review queue
// from a card snapshot and a wall-clock sample. It is a pure derivation:
// nothing here owns state or timers.
package queueview

import (
	"fmt"
	"sort"
	"time"

	"github.com/ezberapp/ezber/internal/domain"
)

// Entry is one row of the active queue.
type Entry struct {
	Card  domain.Card
	Ready bool
	// TimeLeft is the human-readable countdown. Empty for due cards.
	TimeLeft string
}

// View is the sorted, filtered queue plus its due count.
type View struct {
	Entries  []Entry
	DueCount int
}

// Build filters the snapshot to active cards (optionally one folder), sorts
// ready cards first and soonest-due first within each group, and renders
// countdowns against the given instant. The sort is stable so cards tied on
// a due time keep their relative order between rebuilds.
func Build(cards []domain.Card, folderID string, now time.Time) View {
	var entries []Entry
	for _, c := range cards {
		if c.Status != domain.StatusActive {
			continue
		}
		if folderID != "" && c.FolderID != folderID {
			continue
		}
		ready := c.Ready(now)
		e := Entry{Card: c, Ready: ready}
		if !ready {
			e.TimeLeft = FormatTimeLeft(time.Duration(c.NextReviewTime-now.UnixMilli()) * time.Millisecond)
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Ready != entries[j].Ready {
			return entries[i].Ready
		}
		return entries[i].Card.NextReviewTime < entries[j].Card.NextReviewTime
	})

	view := View{Entries: entries}
	for _, e := range entries {
		if e.Ready {
			view.DueCount++
		}
	}
	return view
}

// FormatTimeLeft renders a countdown with coarser units as the wait grows:
// "Hh MMm" above an hour, "Mm SSs" above a minute, otherwise "Ss". A zero or
// negative remainder renders empty, meaning the card is already due.
func FormatTimeLeft(remaining time.Duration) string {
	if remaining <= 0 {
		return ""
	}
	totalSeconds := int(remaining / time.Second)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
