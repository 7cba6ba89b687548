package ingest

import "strings"

// Chunking defaults, sized for embedder context limits.
const (
	DefaultMaxChunkChars = 1600
	DefaultOverlapChars  = 200
)

// ChunkerConfig controls how text is split.
type ChunkerConfig struct {
	// MaxChars caps the size of one chunk. Zero selects
	// DefaultMaxChunkChars.
	MaxChars int

	// Overlap is how many trailing characters of a chunk are repeated at
	// the start of the next one, preserving context across boundaries.
	// Zero selects DefaultOverlapChars.
	Overlap int
}

// Chunker splits source text into embeddable chunks. Splitting prefers
// paragraph boundaries and falls back to a hard split with overlap for
// paragraphs that exceed the size cap on their own.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker creates a Chunker.
func NewChunker(cfg ChunkerConfig) *Chunker {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	overlap := cfg.Overlap
	if overlap <= 0 {
		overlap = DefaultOverlapChars
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// Split breaks text into chunks. Whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range splitParagraphs(text) {
		if len(para) > c.maxChars {
			flush()
			chunks = append(chunks, c.hardSplit(para)...)
			continue
		}
		if current.Len()+len(para)+2 > c.maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// hardSplit cuts an oversized paragraph at rune boundaries with overlap.
func (c *Chunker) hardSplit(para string) []string {
	runes := []rune(para)
	step := c.maxChars - c.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
