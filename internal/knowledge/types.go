// Package knowledge stores and searches the private corpus: embedded text
// chunks in PostgreSQL with pgvector similarity search.
package knowledge

import (
	"time"

	"github.com/google/uuid"

	"github.com/alexkamer/recall/internal/chat"
)

// Chunk is one embeddable unit of a source. Sources (notes, documents, web
// pages) are split into chunks before indexing; (SourceID, ChunkIndex) is
// unique.
type Chunk struct {
	ID           uuid.UUID
	SourceID     string
	SourceType   chat.SourceType
	Title        string
	SectionTitle string
	ChunkIndex   int32
	Content      string
	CreatedAt    time.Time
}

// Result is one search hit. Distance is the cosine distance to the query
// embedding, lower is closer.
type Result struct {
	Chunk
	Distance float64
}
