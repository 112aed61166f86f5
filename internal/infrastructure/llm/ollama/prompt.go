package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

const maxSnippetChars = 4000

func buildAnswerPrompt(question string, sources []domain.Source, items []domain.ContextItem) string {
	var contextBuilder strings.Builder
	for idx, item := range items {
		if idx >= len(sources) {
			break
		}
		source := sources[idx]
		label := fmt.Sprintf("[%s:%d]", source.Type, source.Index)

		switch item.Kind {
		case domain.ItemKindWeb:
			contextBuilder.WriteString(fmt.Sprintf(
				"%s title=%s url=%s score=%.3f\n%s\n\n",
				label,
				item.Title,
				item.URL,
				item.Score,
				snippet(item.Content),
			))
		default:
			contextBuilder.WriteString(fmt.Sprintf(
				"%s file=%s section=%s score=%.3f\n%s\n\n",
				label,
				item.Filename,
				item.Section,
				item.Score,
				snippet(item.Content),
			))
		}
	}

	return fmt.Sprintf(`Answer user question only from context below.
If context is insufficient, say it directly.
Cite every claim with the source label of the fragment it came from,
for example [doc:1] or [web:2]. Use only labels that appear in the context.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}

func snippet(text string) string {
	if len(text) > maxSnippetChars {
		return text[:maxSnippetChars]
	}
	return text
}
