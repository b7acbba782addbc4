package llm

import "fmt"

// GenerationError reports that the text-generation service was
// unreachable, errored, or returned unusable output. The dispatcher
// absorbs it into a category-specific fallback response; it never
// crosses the dispatch boundary.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SummarizationError reports a summarizer failure. The context
// compactor logs it and falls back to recent-window context; it never
// reaches the user.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }
