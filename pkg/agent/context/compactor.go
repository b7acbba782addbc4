// Package context bounds the conversation history handed to an agent
// for one request. When the estimated size of the history crosses a
// trigger, older turns are condensed into a single synthetic summary
// turn; the most recent turns are always preserved verbatim. The
// summarizer is a quality optimization, never a hard dependency: if it
// fails, the compactor degrades to recent-window context.
package context

import (
	"context"

	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/llm/tokenizer"
	"github.com/crewdesk/crewdesk/pkg/logging"
	"github.com/crewdesk/crewdesk/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("context")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize context logger, using stderr fallback: %v", err)
	}
}

const (
	// DefaultSummaryTrigger is the estimated token count above which
	// compaction kicks in.
	DefaultSummaryTrigger = 6000

	// DefaultContextLimit is the documented ceiling for a compacted
	// context. It is not independently enforced beyond the trigger.
	DefaultContextLimit = 8000

	// DefaultRecentWindow is how many trailing turns survive
	// compaction verbatim.
	DefaultRecentWindow = 5

	// DefaultTruncateLength is the per-message bound applied by
	// TruncateMessage when callers pass a non-positive max.
	DefaultTruncateLength = 2000

	// summaryWordBudget is the soft word target passed to the summarizer.
	summaryWordBudget = 200

	// summaryPrefix leads the synthetic system turn carrying a summary.
	summaryPrefix = "Previous conversation summary: "

	// truncationMarker is appended to content cut by TruncateMessage.
	truncationMarker = "... [truncated]"
)

// Config holds the compaction thresholds. Values are fixed at
// construction time; a zero or negative field falls back to its
// default, so tests can inject alternate thresholds without touching
// process-wide state.
type Config struct {
	SummaryTrigger int
	ContextLimit   int
	RecentWindow   int
	TruncateLength int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SummaryTrigger: DefaultSummaryTrigger,
		ContextLimit:   DefaultContextLimit,
		RecentWindow:   DefaultRecentWindow,
		TruncateLength: DefaultTruncateLength,
	}
}

func (c Config) normalized() Config {
	out := c
	if out.SummaryTrigger <= 0 {
		out.SummaryTrigger = DefaultSummaryTrigger
	}
	if out.ContextLimit <= 0 {
		out.ContextLimit = DefaultContextLimit
	}
	if out.RecentWindow <= 0 {
		out.RecentWindow = DefaultRecentWindow
	}
	if out.TruncateLength <= 0 {
		out.TruncateLength = DefaultTruncateLength
	}
	return out
}

// Compactor applies the context size policy for one request at a time.
// It is stateless between calls and safe for concurrent use.
type Compactor struct {
	cfg        Config
	summarizer llm.Summarizer
	counter    *tokenizer.Tokenizer // optional, diagnostics only
}

// NewCompactor creates a compactor with the given summarizer and
// thresholds.
func NewCompactor(summarizer llm.Summarizer, cfg Config) *Compactor {
	return &Compactor{cfg: cfg.normalized(), summarizer: summarizer}
}

// WithTokenCounter attaches a real tokenizer used only for logging how
// many tokens a compaction saved. It never influences the compaction
// decision, which must reproduce the character-based thresholds.
func (c *Compactor) WithTokenCounter(counter *tokenizer.Tokenizer) *Compactor {
	c.counter = counter
	return c
}

// GetContext returns the bounded history for one request. Below the
// trigger the history passes through unchanged. Above it, the last
// RecentWindow turns are kept verbatim and everything older is replaced
// by a synthetic system turn carrying a summary. If there is nothing
// older than the window (even when a handful of very long turns blow
// the trigger) the window is returned as-is; compaction never triggers
// when there is nothing to compact. On summarizer failure the window is
// returned alone and the failure is only logged.
func (c *Compactor) GetContext(ctx context.Context, conv types.ConversationContext) []*types.Message {
	totalTokens := EstimateTokens(conv.Messages)
	if totalTokens <= c.cfg.SummaryTrigger {
		return conv.Messages
	}

	debugLog.Printf("Context for conversation %s estimated at %d tokens (trigger %d), compacting",
		conv.ConversationID, totalTokens, c.cfg.SummaryTrigger)

	return c.compact(ctx, conv)
}

func (c *Compactor) compact(ctx context.Context, conv types.ConversationContext) []*types.Message {
	recent, old := c.partition(conv.Messages)
	if len(old) == 0 {
		return recent
	}

	// Single blocking call, no internal retries. The caller bounds it
	// with a deadline on ctx if it wants one.
	synopsis, err := c.summarizer.Summarize(ctx, old, summaryWordBudget)
	if err != nil {
		debugLog.Errorf("Failed to summarize %d older turns for conversation %s: %v; falling back to recent window",
			len(old), conv.ConversationID, err)
		return recent
	}

	synthetic := types.NewSystemMessage(summaryPrefix + synopsis)
	compacted := make([]*types.Message, 0, len(recent)+1)
	compacted = append(compacted, synthetic)
	compacted = append(compacted, recent...)

	if c.counter != nil {
		saved := c.counter.CountMessages(conv.Messages) - c.counter.CountMessages(compacted)
		debugLog.Printf("Compacted %d turns into a summary for conversation %s, saved ~%d tokens",
			len(old), conv.ConversationID, saved)
	}

	return compacted
}

// partition splits the history into the verbatim recent window and the
// older turns that are candidates for summarization.
func (c *Compactor) partition(messages []*types.Message) (recent, old []*types.Message) {
	if len(messages) <= c.cfg.RecentWindow {
		return messages, nil
	}
	split := len(messages) - c.cfg.RecentWindow
	return messages[split:], messages[:split]
}

// TruncateMessage bounds a single message's content before it enters
// history. Content at or under maxLength passes through unchanged;
// longer content is cut to exactly maxLength characters plus a literal
// truncation marker. A non-positive maxLength selects the default.
func TruncateMessage(content string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultTruncateLength
	}
	if len(content) <= maxLength {
		return content
	}
	return content[:maxLength] + truncationMarker
}
