package chunking

import (
	"strings"
	"testing"
)

// wordCounter makes token counts predictable in tests: one token per word.
type wordCounter struct{}

func (wordCounter) CountTokens(text, _ string) int {
	return len(strings.Fields(text))
}

func TestDetectSentencesWithOffsets(t *testing.T) {
	text := "First sentence. Second one! Third?"
	st := NewStructureDetector(wordCounter{}, "cl100k_base").Detect(text)

	if len(st.Sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d", len(st.Sentences))
	}
	for i, s := range st.Sentences {
		if s.Index != i {
			t.Fatalf("sentence %d has index %d", i, s.Index)
		}
		if got := text[s.StartChar:s.EndChar]; got != s.Text {
			t.Fatalf("offsets do not slice back to text: %q vs %q", got, s.Text)
		}
		if s.TokenCount <= 0 {
			t.Fatalf("sentence %d has no token count", i)
		}
	}
	if st.Sentences[0].Text != "First sentence." {
		t.Fatalf("unexpected first sentence %q", st.Sentences[0].Text)
	}
}

func TestDetectSentencesIgnoresDecimalPoints(t *testing.T) {
	st := NewStructureDetector(wordCounter{}, "cl100k_base").Detect("Pi is 3.14 exactly. Next one.")
	if len(st.Sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %+v", len(st.Sentences), st.Sentences)
	}
	if st.Sentences[0].Text != "Pi is 3.14 exactly." {
		t.Fatalf("unexpected first sentence %q", st.Sentences[0].Text)
	}
}

func TestDetectSentencesKeepsTrailingClause(t *testing.T) {
	st := NewStructureDetector(wordCounter{}, "cl100k_base").Detect("Done here. And a trailing clause")
	if len(st.Sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d", len(st.Sentences))
	}
	if st.Sentences[1].Text != "And a trailing clause" {
		t.Fatalf("unexpected trailing sentence %q", st.Sentences[1].Text)
	}
}

func TestDetectFallsBackToParagraphsWithoutPunctuation(t *testing.T) {
	text := "first block without punctuation\n\nsecond block also bare"
	st := NewStructureDetector(wordCounter{}, "cl100k_base").Detect(text)
	if len(st.Sentences) != 2 {
		t.Fatalf("expected 2 paragraph-sentences, got %d", len(st.Sentences))
	}
	if st.Sentences[0].Text != "first block without punctuation" {
		t.Fatalf("unexpected paragraph sentence %q", st.Sentences[0].Text)
	}
}

func TestDetectParagraphsAndSections(t *testing.T) {
	text := "# Intro\n\nBody of the intro.\n\n# Details\n\nBody of the details."
	st := NewStructureDetector(wordCounter{}, "cl100k_base").Detect(text)

	if len(st.Paragraphs) != 4 {
		t.Fatalf("expected 4 paragraphs, got %d", len(st.Paragraphs))
	}
	if len(st.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(st.Sections))
	}
	if st.Sections[0].Title != "Intro" || st.Sections[1].Title != "Details" {
		t.Fatalf("unexpected section titles: %+v", st.Sections)
	}
	if st.Sections[0].EndChar != st.Sections[1].StartChar {
		t.Fatalf("sections should tile the text: %+v", st.Sections)
	}
}

func TestDetectEmptyText(t *testing.T) {
	st := NewStructureDetector(wordCounter{}, "cl100k_base").Detect("")
	if len(st.Sentences) != 0 || len(st.Paragraphs) != 0 || len(st.Sections) != 0 {
		t.Fatalf("expected empty structure, got %+v", st)
	}
}
