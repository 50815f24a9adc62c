package domain

import "fmt"

// NoDocumentsContext replaces the grounding context when retrieval found nothing.
const NoDocumentsContext = "Nessun documento disponibile nel database."

type RetrievedChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

type SourceAttribution struct {
	Filename string   `json:"filename"`
	Category Category `json:"category"`
	Position string   `json:"chunk"`
	Score    float64  `json:"score"`
}

// ChunkPosition renders the "index/total" citation of a chunk.
func ChunkPosition(meta ChunkMetadata) string {
	return fmt.Sprintf("%d/%d", meta.ChunkIndex, meta.TotalChunks)
}

type Answer struct {
	Text    string              `json:"text"`
	Sources []SourceAttribution `json:"sources"`
}

type IndexStats struct {
	Chunks int `json:"chunks"`
}
