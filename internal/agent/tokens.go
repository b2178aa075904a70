package agent

import (
	"fmt"
	"log"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter returns the token length of a text.
type TokenCounter func(text string) int

// NewTokenCounter returns a tiktoken counter for model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTokenCounter(model string) (TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// TokenCounterOrEstimate is NewTokenCounter with a length-based estimate
// when the encoding cannot be loaded.
func TokenCounterOrEstimate(model string) TokenCounter {
	counter, err := NewTokenCounter(model)
	if err != nil {
		log.Printf("agent: tokenizer unavailable, estimating history tokens: %v", err)
		return EstimateTokens
	}
	return counter
}

// EstimateTokens approximates four bytes per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// trimHistory keeps the newest items whose combined size fits budget.
// A non-positive budget keeps everything.
func trimHistory(history []HistoryItem, budget int, count TokenCounter) []HistoryItem {
	if budget <= 0 || count == nil {
		return history
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := count(history[i].Content)
		if used+n > budget {
			break
		}
		used += n
		start = i
	}
	return history[start:]
}
