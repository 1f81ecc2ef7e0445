package tokenizer

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding matches the gpt-4o family closely enough for budgeting.
const DefaultEncoding = "cl100k_base"

// Counter measures and trims text by model tokens. When the BPE ranks cannot be loaded it
// degrades to whitespace-separated words.
type Counter struct {
	encoding string
	logger   *slog.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// New returns a Counter that loads the encoding on first use.
func New(encoding string, logger *slog.Logger) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{encoding: encoding, logger: logger.With("component", "tokenizer")}
}

// NewWordCounter returns a Counter that never loads an encoding.
func NewWordCounter() *Counter {
	c := &Counter{}
	c.once.Do(func() {})
	return c
}

func (c *Counter) encoder() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.logger.Warn("tiktoken encoding unavailable, counting words", "encoding", c.encoding, "error", err)
			return
		}
		c.enc = enc
	})
	return c.enc
}

// Count returns the token length of text.
func (c *Counter) Count(text string) int {
	if enc := c.encoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// Truncate cuts text down to at most budget tokens.
func (c *Counter) Truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if enc := c.encoder(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= budget {
			return text
		}
		return enc.Decode(tokens[:budget])
	}
	words := strings.Fields(text)
	if len(words) <= budget {
		return text
	}
	return strings.Join(words[:budget], " ")
}

// Split breaks text into pieces of at most budget tokens, cutting on word boundaries.
func (c *Counter) Split(text string, budget int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if budget <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var (
		chunks  []string
		current []string
		used    int
	)
	for _, w := range words {
		n := c.Count(w)
		if n == 0 {
			n = 1
		}
		if used+n > budget && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current, used = nil, 0
		}
		current = append(current, w)
		used += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
