// Package deck imports cards in bulk from plain-text deck files, found in
// local directories or git repositories. Imported cards land in the library
// and are deduplicated by a normalized content fingerprint, so re-running an
// import is idempotent.
package deck

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	meaningPrefix = "M:"
	wordPrefix    = "W:"
	keywordPrefix = "K:"
	storyPrefix   = "S:"
)

// Entry is one card as written in a deck file.
type Entry struct {
	Meaning string
	Word    string
	Keyword string
	Story   string
}

type state int

const (
	seeking state = iota
	readingMeaning
	readingWord
	readingKeyword
	readingStory
)

// ParseFile reads a deck file from the given path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads deck entries from an io.Reader. An entry starts at an "M:"
// line and collects the word, keyword and story blocks that follow; "---"
// or the next "M:" closes it. Entries without both a meaning and a word
// are dropped.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current Entry
	var block []string
	currentState := seeking

	assignBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingMeaning:
			current.Meaning = content
		case readingWord:
			current.Word = content
		case readingKeyword:
			current.Keyword = content
		case readingStory:
			current.Story = content
		}
		block = nil
	}

	finishEntry := func() {
		assignBlock()
		if current.Meaning != "" && current.Word != "" {
			entries = append(entries, current)
		}
		current = Entry{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishEntry()
			continue
		}

		next := seeking
		switch {
		case strings.HasPrefix(line, meaningPrefix):
			next = readingMeaning
		case strings.HasPrefix(line, wordPrefix):
			next = readingWord
		case strings.HasPrefix(line, keywordPrefix):
			next = readingKeyword
		case strings.HasPrefix(line, storyPrefix):
			next = readingStory
		}

		if next == seeking {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		assignBlock()
		if next == readingMeaning && currentState != seeking {
			// A new meaning always starts a new entry.
			finishEntry()
		}
		currentState = next
		content := line[len(meaningPrefix):]
		content = strings.TrimPrefix(content, " ")
		block = append(block, content)
	}

	finishEntry()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
