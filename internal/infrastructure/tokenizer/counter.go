package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// DefaultEncoding is used when the requested encoding or model is unknown.
const DefaultEncoding = "cl100k_base"

// encodingProfile tunes the estimate for one tokenizer family. Exact BPE
// tokenization is not required for chunk budgeting; the estimate only has
// to be stable and monotonic in text length.
type encodingProfile struct {
	tokensPerWord float64
	charsPerToken float64
}

var encodingProfiles = map[string]encodingProfile{
	"cl100k_base": {tokensPerWord: 1.33, charsPerToken: 4.0},
	"o200k_base":  {tokensPerWord: 1.25, charsPerToken: 4.2},
	"p50k_base":   {tokensPerWord: 1.40, charsPerToken: 3.8},
	"r50k_base":   {tokensPerWord: 1.45, charsPerToken: 3.7},
}

var modelEncodings = map[string]string{
	"gpt-4o":           "o200k_base",
	"gpt-4o-mini":      "o200k_base",
	"gpt-4":            "cl100k_base",
	"gpt-3.5-turbo":    "cl100k_base",
	"text-davinci-003": "p50k_base",
	"llama3.1:8b":      "cl100k_base",
	"nomic-embed-text": "cl100k_base",
}

// Counter estimates token counts keyed by encoding or model name. Unknown
// names fall back to the configured default encoding.
type Counter struct {
	defaultEncoding string
}

func New(defaultEncoding string) *Counter {
	if _, ok := encodingProfiles[defaultEncoding]; !ok {
		defaultEncoding = DefaultEncoding
	}
	return &Counter{defaultEncoding: defaultEncoding}
}

func (c *Counter) CountTokens(text, encodingOrModel string) int {
	if text == "" {
		return 0
	}
	profile := c.resolve(encodingOrModel)

	words := len(strings.Fields(text))
	chars := utf8.RuneCountInString(text)

	byWords := float64(words) * profile.tokensPerWord
	byChars := float64(chars) / profile.charsPerToken

	estimate := int(byWords)
	if int(byChars) > estimate {
		estimate = int(byChars)
	}
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func (c *Counter) resolve(encodingOrModel string) encodingProfile {
	name := strings.ToLower(strings.TrimSpace(encodingOrModel))
	if profile, ok := encodingProfiles[name]; ok {
		return profile
	}
	if encoding, ok := modelEncodings[name]; ok {
		return encodingProfiles[encoding]
	}
	return encodingProfiles[c.defaultEncoding]
}
