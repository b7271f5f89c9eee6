package queueview

import (
	"testing"
	"time"

	"github.com/ezberapp/ezber/internal/domain"
)

func active(id, folderID string, due int64) domain.Card {
	return domain.Card{ID: id, FolderID: folderID, Status: domain.StatusActive, NextReviewTime: due}
}

func TestBuildSortsReadyFirst(t *testing.T) {
	now := time.UnixMilli(10_000)
	cards := []domain.Card{
		active("later", "", 40_000),
		active("due-old", "", 2_000),
		active("soon", "", 15_000),
		active("due-new", "", 9_000),
		{ID: "shelved", Status: domain.StatusLibrary, NextReviewTime: 1},
	}

	view := Build(cards, "", now)

	wantOrder := []string{"due-old", "due-new", "soon", "later"}
	if len(view.Entries) != len(wantOrder) {
		t.Fatalf("got %d entries, want %d", len(view.Entries), len(wantOrder))
	}
	for i, id := range wantOrder {
		if view.Entries[i].Card.ID != id {
			t.Errorf("entry %d = %s, want %s", i, view.Entries[i].Card.ID, id)
		}
	}
	if view.DueCount != 2 {
		t.Errorf("DueCount = %d, want 2", view.DueCount)
	}
}

func TestBuildTiedDueTimesAreStable(t *testing.T) {
	now := time.UnixMilli(1_000)
	cards := []domain.Card{
		active("a", "", 1_000),
		active("b", "", 1_000),
	}

	first := Build(cards, "", now)
	second := Build(cards, "", now)

	if !first.Entries[0].Ready || !first.Entries[1].Ready {
		t.Fatal("both tied cards must be ready at the shared due time")
	}
	for i := range first.Entries {
		if first.Entries[i].Card.ID != second.Entries[i].Card.ID {
			t.Errorf("tied order flickered between builds at index %d", i)
		}
	}
}

func TestBuildFolderFilter(t *testing.T) {
	now := time.UnixMilli(0)
	cards := []domain.Card{
		active("in", "f1", 5_000),
		active("out", "f2", 1_000),
		active("dangling", "gone", 2_000),
	}

	view := Build(cards, "f1", now)
	if len(view.Entries) != 1 || view.Entries[0].Card.ID != "in" {
		t.Fatalf("folder filter returned %+v", view.Entries)
	}
}

func TestBuildCountdownOnlyForPending(t *testing.T) {
	now := time.UnixMilli(10_000)
	view := Build([]domain.Card{
		active("due", "", 10_000),
		active("pending", "", 17_000),
	}, "", now)

	if view.Entries[0].TimeLeft != "" {
		t.Errorf("due card rendered countdown %q", view.Entries[0].TimeLeft)
	}
	if view.Entries[1].TimeLeft != "7s" {
		t.Errorf("pending card countdown = %q, want 7s", view.Entries[1].TimeLeft)
	}
}

func TestFormatTimeLeft(t *testing.T) {
	testCases := []struct {
		name      string
		remaining time.Duration
		want      string
	}{
		{"already due", 0, ""},
		{"overdue", -3 * time.Second, ""},
		{"seconds only", 42 * time.Second, "42s"},
		{"just under a minute", 59*time.Second + 900*time.Millisecond, "59s"},
		{"minutes and seconds", 9*time.Minute + 5*time.Second, "9m 05s"},
		{"exactly one hour", time.Hour, "1h 00m"},
		{"hours and minutes", 5*time.Hour + 7*time.Minute + 30*time.Second, "5h 07m"},
		{"a day", 24 * time.Hour, "24h 00m"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatTimeLeft(tc.remaining); got != tc.want {
				t.Errorf("FormatTimeLeft(%v) = %q, want %q", tc.remaining, got, tc.want)
			}
		})
	}
}
