package deck

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name            string
		input           string
		expectedEntries int
		expectedMeaning string
		expectedWord    string
		expectedKeyword string
		expectedStory   string
	}{
		{
			name:            "full entry",
			input:           "M: Araba\nW: سيارة (Sayyare)\nK: SAYYARE\nS: Sayyare gibi uçan bir araba.",
			expectedEntries: 1,
			expectedMeaning: "Araba",
			expectedWord:    "سيارة (Sayyare)",
			expectedKeyword: "SAYYARE",
			expectedStory:   "Sayyare gibi uçan bir araba.",
		},
		{
			name:            "meaning and word only",
			input:           "M: Su\nW: ماء",
			expectedEntries: 1,
			expectedMeaning: "Su",
			expectedWord:    "ماء",
		},
		{
			name: "multiline story",
			input: `
M: Kitap
W: كتاب (Kitab)
S: Kitab diye bağıran
bir kitap düşün.
`,
			expectedEntries: 1,
			expectedMeaning: "Kitap",
			expectedWord:    "كتاب (Kitab)",
			expectedStory:   "Kitab diye bağıran\nbir kitap düşün.",
		},
		{
			name: "two entries with separator",
			input: `
M: Bir
W: واحد
---
M: İki
W: اثنان
`,
			expectedEntries: 2,
		},
		{
			name: "new meaning starts a new entry",
			input: `
M: Ekmek
W: خبز
M: Tuz
W: ملح
`,
			expectedEntries: 2,
		},
		{
			name:            "entry without word is dropped",
			input:           "M: Yalnız anlam",
			expectedEntries: 0,
		},
		{
			name:            "no entries, just prose",
			input:           "Some notes about Arabic grammar.",
			expectedEntries: 0,
		},
		{
			name:            "prefixes with no space",
			input:           "M:Deniz\nW:بحر",
			expectedEntries: 1,
			expectedMeaning: "Deniz",
			expectedWord:    "بحر",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(entries) != tc.expectedEntries {
				t.Fatalf("Expected %d entries, but got %d", tc.expectedEntries, len(entries))
			}

			if tc.expectedEntries == 1 {
				entry := entries[0]
				if entry.Meaning != tc.expectedMeaning {
					t.Errorf("Meaning = %q, want %q", entry.Meaning, tc.expectedMeaning)
				}
				if entry.Word != tc.expectedWord {
					t.Errorf("Word = %q, want %q", entry.Word, tc.expectedWord)
				}
				if tc.expectedKeyword != "" && entry.Keyword != tc.expectedKeyword {
					t.Errorf("Keyword = %q, want %q", entry.Keyword, tc.expectedKeyword)
				}
				if tc.expectedStory != "" && entry.Story != tc.expectedStory {
					t.Errorf("Story = %q, want %q", entry.Story, tc.expectedStory)
				}
			}
		})
	}
}

func TestFingerprintNormalizes(t *testing.T) {
	a := Entry{Meaning: "  Araba ", Word: "سيارة\r\n", Keyword: "SAYYARE", Story: "Hikaye."}
	b := Entry{Meaning: "araba", Word: "سيارة", Keyword: "sayyare", Story: "hikaye."}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprints must be stable under case, whitespace and line-ending noise")
	}

	c := Entry{Meaning: "araba", Word: "سيارةhikaye.", Keyword: "sayyare"}
	if Fingerprint(b) == Fingerprint(c) {
		t.Error("field boundaries must keep distinct content distinct")
	}
}

func TestKindForPath(t *testing.T) {
	testCases := []struct {
		path string
		want string
	}{
		{"/home/user/decks", "local"},
		{"https://example.com/decks.git", "git"},
		{"https://example.com/decks", "git"},
		{"git@example.com:user/decks.git", "git"},
		{"relative/decks", "local"},
	}
	for _, tc := range testCases {
		if got := KindForPath(tc.path); got != tc.want {
			t.Errorf("KindForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestGitURLToLocalPath(t *testing.T) {
	got, err := gitURLToLocalPath("repos", "https://example.com/user/decks.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "repos/example.com/user/decks" {
		t.Errorf("https path = %q", got)
	}

	got, err = gitURLToLocalPath("repos", "git@example.com:user/decks.git")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "repos/example.com/user/decks" {
		t.Errorf("ssh path = %q", got)
	}

	if _, err := gitURLToLocalPath("repos", "not a url"); err == nil {
		t.Error("expected error for unparseable URL")
	}
}
