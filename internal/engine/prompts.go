package engine

import (
	"fmt"
	"strings"

	"github.com/alexkamer/recall/internal/chat"
)

const classifySystemPrompt = `You classify a user message for a personal knowledge assistant.
Respond with ONLY a JSON object, no prose, no code fences:
{"queryType": "<factual|procedural|conversational|computational|general>", "complexity": "<simple|moderate|complex>"}

queryType meanings:
- factual: asks for information or facts
- procedural: asks how to do something
- conversational: greeting, smalltalk, acknowledgement
- computational: arithmetic or unit conversion the assistant can do directly
- general: anything else`

const synthesisSystemPrompt = `You are a personal knowledge assistant. Answer the user's question clearly and concisely.

When source excerpts are provided below, ground your answer in them and cite
each fact with the source's bracketed number, like [1] or [2]. Cite only
sources that actually support the statement. If the sources do not cover the
question, say so and answer from general knowledge without fabricating
citations.

When no sources are provided, answer from general knowledge and use no
citation markers at all.`

const suggestSystemPrompt = `Given the user's question and the assistant's answer, propose up to three short follow-up questions the user might ask next.
Respond with ONLY a JSON array of strings, no prose, no code fences.
Example: ["How long does it keep?", "What temperature works best?"]`

// sourcesBlock renders retrieved chunks as a numbered excerpt list appended
// to the synthesis prompt.
func sourcesBlock(chunks []chat.SourceChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Source excerpts:\n")
	for _, c := range chunks {
		b.WriteString(fmt.Sprintf("\n[%d] %s", c.CitationIndex, c.Title))
		if c.SectionTitle != "" {
			b.WriteString(" — " + c.SectionTitle)
		}
		b.WriteString("\n")
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// stripCodeFence removes a surrounding markdown code fence if the model
// wrapped its JSON in one despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
