package usecase

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/kirillkom/knowledge-chat-rag/internal/core/domain"
)

// citationMarker is deliberately loose: it captures anything shaped like a
// citation so near-misses surface as malformed instead of vanishing.
var citationMarker = regexp.MustCompile(`\[([A-Za-z]+):([^\[\]]*)\]`)

// ParseCitations extracts citation markers from generated answer text.
// Well-formed markers reference a known source type with a positive index;
// everything else captured by the marker shape is reported as malformed.
func ParseCitations(text string) ([]domain.Citation, []string) {
	var citations []domain.Citation
	var malformed []string

	for _, match := range citationMarker.FindAllStringSubmatchIndex(text, -1) {
		raw := text[match[0]:match[1]]
		kind := text[match[2]:match[3]]
		indexRaw := text[match[4]:match[5]]

		sourceType := domain.SourceType(kind)
		if sourceType != domain.SourceTypeDocument && sourceType != domain.SourceTypeWeb {
			malformed = append(malformed, raw)
			continue
		}
		index, err := strconv.Atoi(indexRaw)
		if err != nil || index <= 0 {
			malformed = append(malformed, raw)
			continue
		}
		citations = append(citations, domain.Citation{
			Type:   sourceType,
			Index:  index,
			Offset: match[0],
		})
	}
	return citations, malformed
}

// ValidateCitations classifies parsed citations against the sources actually
// handed to the language model. Dangling references are errors; uncited
// sources and citation-free answers are warnings only.
func ValidateCitations(text string, sources []domain.Source) domain.CitationReport {
	citations, malformed := ParseCitations(text)

	known := make(map[string]bool, len(sources))
	for _, src := range sources {
		known[sourceKey(src.Type, src.Index)] = true
	}

	cited := make(map[string]bool, len(citations))
	report := domain.CitationReport{Malformed: malformed}
	for _, c := range citations {
		key := sourceKey(c.Type, c.Index)
		if known[key] {
			c.Status = domain.CitationMatched
			cited[key] = true
		} else {
			c.Status = domain.CitationUnmatched
			report.Errors = append(report.Errors,
				fmt.Sprintf("citation [%s:%d] at offset %d references no supplied source", c.Type, c.Index, c.Offset))
		}
		report.Citations = append(report.Citations, c)
	}

	for _, src := range sources {
		if !cited[sourceKey(src.Type, src.Index)] {
			report.MissingSources = append(report.MissingSources, src)
		}
	}
	if len(report.MissingSources) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d supplied source(s) were never cited", len(report.MissingSources)))
	}
	if len(citations) == 0 && len(sources) > 0 {
		report.Warnings = append(report.Warnings, "answer cites no sources although sources were supplied")
	}
	report.IsValid = len(malformed) == 0 && !hasUnmatched(report.Citations)
	return report
}

func hasUnmatched(citations []domain.Citation) bool {
	for _, c := range citations {
		if c.Status == domain.CitationUnmatched {
			return true
		}
	}
	return false
}

func sourceKey(t domain.SourceType, index int) string {
	return string(t) + ":" + strconv.Itoa(index)
}
