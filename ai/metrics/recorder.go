package metrics

import "time"

// Recorder is the metrics surface the assistant components report to.
// PrometheusExporter implements it; Nop discards everything.
type Recorder interface {
	RecordRoute(route string, success bool)
	RecordToolCall(toolName string, latency time.Duration, success bool, errorType string)
	RecordToolLoopOverflow()
	RecordLLMCall(model, kind string, latency time.Duration, success bool)
	RecordLLMTokens(model, tokenType string, count int)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	SetEmbeddingQueueDepth(depth int)
	RecordEmbeddingDropped()
	RecordEmbeddingIndexed(success bool)
	SetConversationActive(active bool)
	RecordInteraction(source string)
}

// Nop is a Recorder that does nothing.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordRoute(string, bool)                           {}
func (Nop) RecordToolCall(string, time.Duration, bool, string) {}
func (Nop) RecordToolLoopOverflow()                            {}
func (Nop) RecordLLMCall(string, string, time.Duration, bool)  {}
func (Nop) RecordLLMTokens(string, string, int)                {}
func (Nop) RecordCacheHit(string)                              {}
func (Nop) RecordCacheMiss(string)                             {}
func (Nop) SetEmbeddingQueueDepth(int)                         {}
func (Nop) RecordEmbeddingDropped()                            {}
func (Nop) RecordEmbeddingIndexed(bool)                        {}
func (Nop) SetConversationActive(bool)                         {}
func (Nop) RecordInteraction(string)                           {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
