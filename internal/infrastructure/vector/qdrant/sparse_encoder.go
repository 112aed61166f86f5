package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// sparseVector is the qdrant wire shape for keyword vectors: parallel
// index/value slices with indices strictly ascending.
type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	bm25Saturation = 1.2
	filenameBoost  = 1.5
	sectionBoost   = 1.25
	maxSparseTerms = 256
)

// weightedField is one text field feeding the sparse encoding, with a
// per-field term weight.
type weightedField struct {
	text   string
	weight float64
}

// encodeSparseDocument folds chunk body, filename and section heading
// into one keyword vector. Filename and section terms weigh more so
// that a query naming the file or heading ranks its chunks first.
func encodeSparseDocument(text, filename, section string) sparseVector {
	return encodeSparse(
		weightedField{text: text, weight: 1.0},
		weightedField{text: filename, weight: filenameBoost},
		weightedField{text: section, weight: sectionBoost},
	)
}

func encodeSparseQuery(query string) sparseVector {
	return encodeSparse(weightedField{text: query, weight: 1.0})
}

func encodeSparse(fields ...weightedField) sparseVector {
	tf := make(map[uint32]float64, 64)
	for _, field := range fields {
		for _, token := range tokenizeAlphaNum(field.text) {
			tf[hashToken(token)] += field.weight
		}
	}
	if len(tf) == 0 {
		return sparseVector{}
	}

	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, len(indices))
	for i, idx := range indices {
		// BM25-style saturation so long chunks do not drown short ones.
		weight := (tf[idx] * (bm25Saturation + 1.0)) / (tf[idx] + bm25Saturation)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values[i] = float32(weight)
	}

	return sparseVector{Indices: indices, Values: values}
}

// hashToken maps a token to a non-zero sparse index via FNV-1a.
func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	if sum := h.Sum32(); sum != 0 {
		return sum
	}
	return 1
}

// tokenizeAlphaNum lowercases and splits on anything that is not a
// letter or digit. Non-ASCII letters are kept so non-English content
// still produces keyword terms.
func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
