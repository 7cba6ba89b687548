package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// markerPattern matches both citation grammars the model may emit: "[N]" and
// "(Source N)". Scanning is left-to-right and non-overlapping, which the
// regexp engine guarantees.
var markerPattern = regexp.MustCompile(`\[(\d+)\]|\(Source (\d+)\)`)

// Marker is one citation marker found in the answer text.
type Marker struct {
	Raw      string // the matched substring as it appeared
	Index    int    // the N the marker referenced
	Resolved bool   // whether a chunk with that citation index existed
}

// Resolution is the output of Resolve.
type Resolution struct {
	// Text is the answer with resolved markers normalized to the "[N]"
	// form. Unresolved markers are left verbatim.
	Text string

	// Markers lists every marker encountered, in text order.
	Markers []Marker

	// Citations are the distinct chunks actually referenced, in order of
	// first appearance. Retrieved chunks never referenced are dropped.
	Citations []SourceChunk
}

// Resolve scans text for citation markers and resolves them against chunks
// by citation index. Markers referencing an unknown index are left as
// literal text. Resolve is pure and idempotent: resolving already-resolved
// text yields an identical Resolution.
func Resolve(text string, chunks []SourceChunk) Resolution {
	byIndex := make(map[int]SourceChunk, len(chunks))
	for _, c := range chunks {
		byIndex[c.CitationIndex] = c
	}

	var (
		out      strings.Builder
		markers  []Marker
		cited    []SourceChunk
		seen     = make(map[int]bool)
		lastNext int
	)

	for _, loc := range markerPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		out.WriteString(text[lastNext:start])
		lastNext = end

		raw := text[start:end]
		n := markerIndex(text, loc)
		chunk, ok := byIndex[n]

		markers = append(markers, Marker{Raw: raw, Index: n, Resolved: ok})

		if !ok {
			out.WriteString(raw)
			continue
		}

		// Normalize to the bracket form so a second pass sees the same
		// marker it would have produced itself.
		fmt.Fprintf(&out, "[%d]", n)

		if !seen[n] {
			seen[n] = true
			cited = append(cited, chunk)
		}
	}
	out.WriteString(text[lastNext:])

	return Resolution{
		Text:      out.String(),
		Markers:   markers,
		Citations: cited,
	}
}

// markerIndex extracts N from whichever capture group matched.
func markerIndex(text string, loc []int) int {
	for _, g := range []int{2, 4} { // group 1 = "[N]", group 2 = "(Source N)"
		if loc[g] >= 0 {
			n, err := strconv.Atoi(text[loc[g]:loc[g+1]])
			if err != nil {
				return 0 // unreachable: the pattern only matches digits
			}
			return n
		}
	}
	return 0
}
