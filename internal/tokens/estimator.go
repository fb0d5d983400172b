// Package tokens approximates OpenAI token counts locally so budgets can be
// enforced before the provider reports its own usage.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Encoder is the subset of a tokenizer codec used by Estimator.
type Encoder interface {
	Encode(text string) ([]uint, []string, error)
}

// Estimator counts tokens with a BPE encoder and falls back to a word-count
// heuristic whenever encoding is unavailable or fails.
type Estimator struct {
	enc Encoder
}

// New returns an Estimator using enc. A nil enc always uses the fallback.
func New(enc Encoder) *Estimator {
	return &Estimator{enc: enc}
}

var (
	defaultOnce      sync.Once
	defaultEstimator *Estimator
)

// Default returns a process-wide Estimator backed by the cl100k_base encoding.
func Default() *Estimator {
	defaultOnce.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			defaultEstimator = New(nil)
			return
		}
		defaultEstimator = New(codec)
	})
	return defaultEstimator
}

// Estimate returns the approximate token count of text. It never fails.
func (e *Estimator) Estimate(text string) (n int) {
	if e == nil || e.enc == nil {
		return WordCount(text)
	}
	defer func() {
		if recover() != nil {
			n = WordCount(text)
		}
	}()
	ids, _, err := e.enc.Encode(text)
	if err != nil {
		return WordCount(text)
	}
	return len(ids)
}

// WordCount is the fallback estimate: 1.2 tokens per space-separated word,
// rounded down.
func WordCount(text string) int {
	words := len(strings.Split(text, " "))
	return words * 6 / 5
}
