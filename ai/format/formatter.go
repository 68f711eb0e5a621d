// Package format turns assistant replies, which language models write in
// Markdown, into plain text suitable for speech.
package format

import (
	"context"
	"time"
)

// Formatter rewrites a reply for a given output.
type Formatter interface {
	Format(ctx context.Context, req *FormatRequest) (*FormatResponse, error)
}

type FormatRequest struct {
	Content string
}

type FormatResponse struct {
	Formatted string
	Changed   bool
	// Source is "markdown" when the content was rendered, "passthrough" when returned as is.
	Source  string
	Latency time.Duration
}
