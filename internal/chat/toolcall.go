package chat

import (
	"context"
	"errors"
	"time"

	"github.com/alexkamer/recall/internal/log"
)

// DefaultSearchTimeout bounds a single retrieval invocation.
const DefaultSearchTimeout = 8 * time.Second

// DefaultMaxResults is used when a request does not set its own limit.
const DefaultMaxResults = 5

// ToolRunner wraps the retrieval engine in the single-tool-call protocol.
// Every invocation, whether it succeeds, matches nothing, or fails, is
// captured in a valid ToolCall. Errors never escape Invoke; the pipeline
// must be able to continue to synthesis on retrieval failure.
type ToolRunner struct {
	retriever Retriever
	timeout   time.Duration
	logger    log.Logger
}

// NewToolRunner creates a ToolRunner. A zero timeout selects
// DefaultSearchTimeout.
func NewToolRunner(retriever Retriever, timeout time.Duration, logger log.Logger) *ToolRunner {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &ToolRunner{retriever: retriever, timeout: timeout, logger: logger}
}

// Invoke executes exactly one retrieval call. On success the returned
// chunks are numbered 1..N in result order. On timeout or transport error
// the ToolCall carries status error, a nil result, and the reason; the
// caller distinguishes that from a successful empty result (non-nil, empty
// slice).
func (r *ToolRunner) Invoke(ctx context.Context, params SearchParams) *ToolCall {
	if params.MaxResults <= 0 {
		params.MaxResults = DefaultMaxResults
	}

	tc := &ToolCall{
		Name:   ToolName,
		Params: params,
		Status: ToolPending,
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	chunks, err := r.retriever.Search(searchCtx, params.Query, params.Scope, params.MaxResults)
	tc.Duration = time.Since(start)

	if err != nil {
		tc.Status = ToolError
		tc.Result = nil
		tc.ErrorReason = searchErrorReason(err, searchCtx)
		r.logger.Warn("knowledge search failed",
			"reason", tc.ErrorReason,
			"duration", tc.Duration,
			"query_length", len(params.Query))
		return tc
	}

	// A nil result from the engine still means "no error, no matches";
	// normalize so callers can rely on the nil-vs-empty distinction.
	if chunks == nil {
		chunks = []SourceChunk{}
	}
	for i := range chunks {
		chunks[i].CitationIndex = i + 1
	}

	tc.Status = ToolSuccess
	tc.Result = chunks

	r.logger.Debug("knowledge search completed",
		"results", len(chunks),
		"duration", tc.Duration)
	return tc
}

// searchErrorReason maps a retrieval failure to the stable reason string
// recorded on the ToolCall and surfaced in the tool_result event.
func searchErrorReason(err error, ctx context.Context) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}
