package domain

// Chunk is the unit of retrieval: a bounded segment of document text with
// positional metadata. Chunks are immutable once created; IDs are ordinal
// within a document and follow creation order.
type Chunk struct {
	ID           int    `json:"chunk_id"`
	Content      string `json:"content"`
	DocumentName string `json:"document_name"`
	CharCount    int    `json:"char_count"`
	WordCount    int    `json:"word_count"`
	StartPos     int    `json:"start_position"`
	ContentHash  string `json:"content_hash"`
}
