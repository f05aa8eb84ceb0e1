// Package model provides data models shared by the pdfrag pipeline.
package model

import "fmt"

// Chunk metadata keys.
const (
	MetaDocumentID = "document_id"
	MetaFilename   = "filename"
	MetaPage       = "page"

	// PayloadText is the payload key holding the chunk text in the vector index.
	PayloadText = "text"
)

// Chunk is a contiguous slice of one page's text.
// Chunks are created during ingestion and never mutated.
type Chunk struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Page returns the 1-indexed page number recorded in the metadata, or 0.
func (c Chunk) Page() int {
	return PageOf(c.Metadata)
}

// Document is the result of extracting one uploaded PDF.
type Document struct {
	ID       string  `json:"document_id"`
	Filename string  `json:"filename"`
	Pages    int     `json:"pages"`
	Chunks   []Chunk `json:"chunks"`
}

// Source is one retrieved chunk returned with a query answer.
type Source struct {
	Text            string         `json:"text"`
	Metadata        map[string]any `json:"metadata"`
	ConfidenceScore float64        `json:"confidence_score"`
}

// QueryResult represents a RAG query result.
type QueryResult struct {
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	Query           string   `json:"query"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// IngestResult is returned by a successful ingestion.
type IngestResult struct {
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
}

// CollectionInfo describes one collection of the vector index.
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// PageOf reads the page number from metadata. Backends that round-trip
// payloads through JSON return numbers as float64, so both forms are accepted.
func PageOf(meta map[string]any) int {
	switch v := meta[MetaPage].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case string:
		var p int
		_, _ = fmt.Sscanf(v, "%d", &p)
		return p
	default:
		return 0
	}
}
