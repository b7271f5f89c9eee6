package deck

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ezberapp/ezber/internal/domain"
)

// normalize cleans one content field: lowercased, trimmed, line endings
// unified. Fields are joined with a newline so adjacent fields can never
// run together and collide.
func normalize(parts ...string) string {
	cleaned := make([]string, len(parts))
	for i, part := range parts {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		cleaned[i] = p
	}
	return strings.Join(cleaned, "\n")
}

// Fingerprint returns the SHA-256 of an entry's normalized content as a hex
// string. Imports use it to recognize cards they have already created.
func Fingerprint(e Entry) string {
	sum := sha256.Sum256([]byte(normalize(e.Meaning, e.Word, e.Keyword, e.Story)))
	return fmt.Sprintf("%x", sum)
}

// CardFingerprint fingerprints an existing card the same way, so a card
// created by hand and one parsed from a deck file compare equal when their
// content matches.
func CardFingerprint(c domain.Card) string {
	return Fingerprint(Entry{Meaning: c.Meaning, Word: c.Word, Keyword: c.Keyword, Story: c.Story})
}
