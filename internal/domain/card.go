package domain

import "time"

// Status says whether a card sits in the library or is enrolled in
// spaced-repetition scheduling.
type Status string

const (
	StatusLibrary Status = "library"
	StatusActive  Status = "active"
)

// Card is a single mnemonic flashcard. Content fields are opaque to the
// scheduling core; only Status, IntervalIndex and NextReviewTime drive it.
type Card struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId,omitempty"`

	Meaning     string `json:"meaning"`
	Word        string `json:"word"`
	Keyword     string `json:"keyword"`
	Story       string `json:"story"`
	ImagePrompt string `json:"imagePrompt,omitempty"`
	ImageRef    string `json:"imageRef,omitempty"`

	Status Status `json:"status"`

	// IntervalIndex is the card's rung on the review ladder, clamped to
	// the ladder range for the card's whole life.
	IntervalIndex int `json:"intervalIndex"`

	// NextReviewTime is epoch milliseconds. Meaningful only while the
	// card is active; may hold a stale value in the library.
	NextReviewTime int64 `json:"nextReviewTime"`
}

// Ready reports whether an active card is due at the given instant.
func (c Card) Ready(now time.Time) bool {
	return c.Status == StatusActive && now.UnixMilli() >= c.NextReviewTime
}

// Folder is a flat grouping of cards. Deleting a folder never touches its
// cards; their FolderID simply dangles and readers treat it as "no folder".
type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

// Settings are the user preferences shared across components. They are
// passed explicitly to whatever needs them; nothing reads them from a
// side channel.
type Settings struct {
	VoiceID    string `json:"voiceId"`
	TextModel  string `json:"textModel"`
	ImageModel string `json:"imageModel"`
}
