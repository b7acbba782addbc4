package context

import "github.com/crewdesk/crewdesk/pkg/types"

// tokensPerCharDivisor is the approximation ratio: one token per four
// characters of content. The divisor and the round-up behavior are
// load-bearing: the compaction thresholds are calibrated against this
// exact estimate, not against a real tokenizer.
const tokensPerCharDivisor = 4

// EstimateTokens approximates the token count of a message sequence as
// ceil(total content characters / 4). Deterministic and pure; this is
// the only count the compaction decision looks at.
func EstimateTokens(messages []*types.Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
	}
	return (totalChars + tokensPerCharDivisor - 1) / tokensPerCharDivisor
}
