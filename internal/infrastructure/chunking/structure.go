package chunking

import (
	"regexp"
	"strings"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
	"github.com/kirillkom/knowledge-chat-rag/internal/core/ports"
)

// Structure is the segmented view of one document: ordered sentences plus
// paragraph and section boundaries, all with byte offsets into the source.
type Structure struct {
	Sentences  []domain.Sentence
	Paragraphs []domain.Paragraph
	Sections   []domain.Section
}

// StructureDetector splits raw text into sentences, paragraphs and
// sections. It is a pure function of the text: no I/O, no shared state.
type StructureDetector struct {
	counter  ports.TokenCounter
	encoding string
}

func NewStructureDetector(counter ports.TokenCounter, encoding string) *StructureDetector {
	return &StructureDetector{counter: counter, encoding: encoding}
}

var (
	paragraphSeparator = regexp.MustCompile(`\n[ \t]*\n`)
	markdownHeading    = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedHeading    = regexp.MustCompile(`^\d+(\.\d+)*[.)]\s+\S`)
)

func (d *StructureDetector) Detect(text string) Structure {
	st := Structure{
		Paragraphs: d.detectParagraphs(text),
		Sections:   d.detectSections(text),
	}
	st.Sentences = d.detectSentences(text)
	if len(st.Sentences) == 0 {
		// No terminal punctuation anywhere: treat each paragraph as one
		// sentence so the document still chunks.
		st.Sentences = d.paragraphsAsSentences(text, st.Paragraphs)
	}
	return st
}

// detectSentences splits on a run of [.!?] followed by whitespace (or end
// of text). A terminator followed by a non-space character, as in "3.14",
// does not end a sentence.
func (d *StructureDetector) detectSentences(text string) []domain.Sentence {
	var out []domain.Sentence
	n := len(text)
	i := 0
	for i < n {
		for i < n && isSpaceByte(text[i]) {
			i++
		}
		if i >= n {
			break
		}
		start := i
		end := -1
		for j := i; j < n; j++ {
			if !isTerminator(text[j]) {
				continue
			}
			k := j
			for k < n && isTerminator(text[k]) {
				k++
			}
			if k >= n || isSpaceByte(text[k]) {
				end = k
				break
			}
			j = k - 1
		}
		if end < 0 {
			if len(out) == 0 {
				// No terminal punctuation at all: let the paragraph
				// fallback take over.
				break
			}
			// A trailing clause after the last terminator still belongs
			// to a sentence.
			end = n
		}
		sentence := text[start:end]
		if strings.TrimSpace(sentence) != "" {
			out = append(out, domain.Sentence{
				Text:       sentence,
				Index:      len(out),
				StartChar:  start,
				EndChar:    end,
				TokenCount: d.counter.CountTokens(sentence, d.encoding),
			})
		}
		i = end
	}
	return out
}

func (d *StructureDetector) detectParagraphs(text string) []domain.Paragraph {
	var out []domain.Paragraph
	for _, block := range splitKeepOffsets(text, paragraphSeparator) {
		start, end := trimOffsets(text, block.start, block.end)
		if start >= end {
			continue
		}
		out = append(out, domain.Paragraph{
			Index:     len(out),
			StartChar: start,
			EndChar:   end,
		})
	}
	return out
}

func (d *StructureDetector) detectSections(text string) []domain.Section {
	type heading struct {
		title string
		start int
	}
	var headings []heading

	lineStart := 0
	for lineStart <= len(text) {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}
		line := text[lineStart:lineEnd]
		if title, ok := headingTitle(line); ok {
			headings = append(headings, heading{title: title, start: lineStart})
		}
		if lineEnd >= len(text) {
			break
		}
		lineStart = lineEnd + 1
	}

	out := make([]domain.Section, 0, len(headings))
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		out = append(out, domain.Section{
			Title:     h.title,
			StartChar: h.start,
			EndChar:   end,
		})
	}
	return out
}

func (d *StructureDetector) paragraphsAsSentences(text string, paragraphs []domain.Paragraph) []domain.Sentence {
	out := make([]domain.Sentence, 0, len(paragraphs))
	for _, p := range paragraphs {
		content := text[p.StartChar:p.EndChar]
		out = append(out, domain.Sentence{
			Text:       content,
			Index:      len(out),
			StartChar:  p.StartChar,
			EndChar:    p.EndChar,
			TokenCount: d.counter.CountTokens(content, d.encoding),
		})
	}
	return out
}

func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimRight(line, " \t\r")
	if len(trimmed) == 0 || len(trimmed) > 120 {
		return "", false
	}
	if markdownHeading.MatchString(trimmed) {
		return strings.TrimSpace(strings.TrimLeft(trimmed, "#")), true
	}
	if numberedHeading.MatchString(trimmed) && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".!?") {
		return strings.TrimSpace(trimmed), true
	}
	return "", false
}

type span struct {
	start int
	end   int
}

// splitKeepOffsets splits text on the separator pattern, returning the byte
// extents of each block.
func splitKeepOffsets(text string, sep *regexp.Regexp) []span {
	locs := sep.FindAllStringIndex(text, -1)
	var out []span
	prev := 0
	for _, loc := range locs {
		out = append(out, span{start: prev, end: loc[0]})
		prev = loc[1]
	}
	out = append(out, span{start: prev, end: len(text)})
	return out
}

func trimOffsets(text string, start, end int) (int, int) {
	for start < end && isSpaceByte(text[start]) {
		start++
	}
	for end > start && isSpaceByte(text[end-1]) {
		end--
	}
	return start, end
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
