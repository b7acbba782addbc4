// Package tokenizer wraps tiktoken to report accurate token counts for
// diagnostics. Compaction decisions use the cheap character-based
// estimate in pkg/agent/context; this counter exists so logs can report
// how many real tokens a compaction actually saved.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/crewdesk/crewdesk/pkg/types"
)

// encodingName is the BPE used by current OpenAI chat models.
const encodingName = "cl100k_base"

// perMessageOverhead approximates the framing tokens the chat format
// adds around each message.
const perMessageOverhead = 4

// Tokenizer counts tokens with a real BPE encoding.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New creates a tokenizer using the cl100k_base encoding.
func New() (*Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &Tokenizer{encoding: encoding}, nil
}

// CountText returns the token count of a single string.
func (t *Tokenizer) CountText(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// CountMessages returns the token count of a message sequence including
// per-message chat framing overhead.
func (t *Tokenizer) CountMessages(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += t.CountText(msg.Content) + perMessageOverhead
	}
	return total
}
