package chat

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/alexkamer/recall/internal/log"
)

// DefaultClassifyTimeout bounds the LLM classification call. Classification
// is an optimization, not a requirement, so the budget is short.
const DefaultClassifyTimeout = 3 * time.Second

// decisionHistoryWindow is how many prior exchanges are passed to the
// classifier for context.
const decisionHistoryWindow = 12

// Decider classifies a user message and decides whether retrieval should
// run. It tries the completion engine first under a short timeout and
// degrades to a lexical heuristic when that fails; an engine outage must
// never take a turn down with it. Decide has no side effects; the caller
// records the Decision on the turn.
type Decider struct {
	completion Completion
	timeout    time.Duration
	logger     log.Logger
}

// NewDecider creates a Decider. completion may be nil, in which case only
// the heuristic runs. A zero timeout selects DefaultClassifyTimeout.
func NewDecider(completion Completion, timeout time.Duration, logger log.Logger) *Decider {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Decider{completion: completion, timeout: timeout, logger: logger}
}

// Decide classifies text and maps the classification to a search decision.
// It never returns an error: every failure path lands on the heuristic,
// and an inconclusive heuristic lands on the conservative default of
// searching whenever the scope filter permits it. Missing relevant context
// is worse than one extra retrieval.
func (d *Decider) Decide(ctx context.Context, text string, history []Exchange, scope ScopeFilter) Decision {
	if len(history) > decisionHistoryWindow {
		history = history[len(history)-decisionHistoryWindow:]
	}

	if d.completion != nil {
		classifyCtx, cancel := context.WithTimeout(ctx, d.timeout)
		qt, cx, err := d.completion.Classify(classifyCtx, text, history)
		cancel()
		if err == nil {
			return decisionFor(qt, cx, scope)
		}
		// Expected under load or offline operation; the heuristic covers it.
		d.logger.Debug("classification unavailable, using heuristic",
			"error", err,
			"query_length", len(text))
	}

	if dec, ok := heuristicDecision(text, scope); ok {
		return dec
	}

	return Decision{
		ShouldSearch: !scope.IsEmpty(),
		QueryType:    QueryGeneral,
		Complexity:   ComplexityModerate,
	}
}

// decisionFor maps a classification to the search decision. Factual and
// procedural questions benefit from the corpus; smalltalk and arithmetic do
// not. An empty scope always suppresses search.
func decisionFor(qt QueryType, cx Complexity, scope ScopeFilter) Decision {
	search := false
	switch qt {
	case QueryFactual, QueryProcedural, QueryGeneral:
		search = !scope.IsEmpty()
	case QueryConversational, QueryComputational:
		search = false
	}
	return Decision{ShouldSearch: search, QueryType: qt, Complexity: cx}
}

var (
	arithmeticPattern = regexp.MustCompile(`\d+(\.\d+)?\s*[-+*/×÷%^]\s*\d+`)
	questionPattern   = regexp.MustCompile(`(?i)^(what|who|when|where|why|how|which|does|do|did|is|are|was|were|can|could|tell me|explain|describe|summarize)\b`)
)

var greetings = []string{
	"hi", "hello", "hey", "yo", "good morning", "good afternoon",
	"good evening", "thanks", "thank you", "bye", "goodbye", "ok", "okay",
}

// heuristicDecision is the lexical fallback classifier. The second return
// value reports whether the heuristic reached a conclusion; when false the
// caller applies the conservative default.
func heuristicDecision(text string, scope ScopeFilter) (Decision, bool) {
	trimmed := strings.TrimSpace(strings.ToLower(text))

	for _, g := range greetings {
		if trimmed == g || strings.HasPrefix(trimmed, g+" ") || strings.HasPrefix(trimmed, g+",") || strings.HasPrefix(trimmed, g+"!") {
			return Decision{
				ShouldSearch: false,
				QueryType:    QueryConversational,
				Complexity:   ComplexitySimple,
			}, true
		}
	}

	if arithmeticPattern.MatchString(trimmed) {
		return Decision{
			ShouldSearch: false,
			QueryType:    QueryComputational,
			Complexity:   ComplexitySimple,
		}, true
	}

	if questionPattern.MatchString(trimmed) {
		cx := ComplexitySimple
		if len(trimmed) > 120 || strings.Count(trimmed, "?") > 1 || strings.Contains(trimmed, " and ") {
			cx = ComplexityModerate
		}
		return Decision{
			ShouldSearch: !scope.IsEmpty(),
			QueryType:    QueryFactual,
			Complexity:   cx,
		}, true
	}

	return Decision{}, false
}
