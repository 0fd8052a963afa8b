// Package tokencount counts tokens the way the configured chat model
// would, for interaction-log accounting. It prefers an exact
// cl100k_base encoding and falls back to a max(1, len(text)/4)
// heuristic when the encoder can't be loaded.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in a string.
type Counter struct {
	encoder *tiktoken.Tiktoken
}

var (
	defaultOnce    sync.Once
	defaultCounter *Counter
)

// New constructs a Counter backed by the cl100k_base encoding used by
// the GPT-3.5/GPT-4 family. If the encoding can't be loaded, the
// returned Counter silently falls back to the heuristic on every call.
func New() *Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Counter{encoder: enc}
}

// Default returns a process-wide Counter, built once.
func Default() *Counter {
	defaultOnce.Do(func() {
		defaultCounter = New()
	})
	return defaultCounter
}

// Count returns the number of tokens in text. Empty text counts as 0.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return fallbackEstimate(text)
}

// fallbackEstimate mirrors interactionlog.EstimateTokens's
// max(1, len(text)/4) floor, used whenever the encoder is unavailable.
func fallbackEstimate(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
