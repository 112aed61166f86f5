package tokenizer

import "testing"

func TestCountTokensEmptyText(t *testing.T) {
	c := New(DefaultEncoding)
	if got := c.CountTokens("", "cl100k_base"); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
}

func TestCountTokensMonotonicInLength(t *testing.T) {
	c := New(DefaultEncoding)
	short := c.CountTokens("hello world", "cl100k_base")
	long := c.CountTokens("hello world this is a much longer sentence with many more words in it", "cl100k_base")
	if short <= 0 {
		t.Fatalf("expected positive count, got %d", short)
	}
	if long <= short {
		t.Fatalf("expected longer text to count more tokens: short=%d long=%d", short, long)
	}
}

func TestCountTokensModelAliasResolves(t *testing.T) {
	c := New(DefaultEncoding)
	byModel := c.CountTokens("some text to count", "gpt-4o")
	byEncoding := c.CountTokens("some text to count", "o200k_base")
	if byModel != byEncoding {
		t.Fatalf("model alias should resolve to its encoding: model=%d encoding=%d", byModel, byEncoding)
	}
}

func TestCountTokensUnknownNameFallsBack(t *testing.T) {
	c := New(DefaultEncoding)
	unknown := c.CountTokens("some text to count", "totally-unknown-model")
	def := c.CountTokens("some text to count", DefaultEncoding)
	if unknown != def {
		t.Fatalf("unknown name should use default encoding: unknown=%d default=%d", unknown, def)
	}
}

func TestNewRejectsUnknownDefault(t *testing.T) {
	c := New("not-an-encoding")
	if got := c.CountTokens("word", ""); got < 1 {
		t.Fatalf("expected at least 1 token, got %d", got)
	}
}
