package domain

// RetrievedChunk is a single similarity search hit. Scores are cosine
// similarities over L2-normalized vectors; Rank starts at 1.
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"similarity_score"`
	Rank  int     `json:"rank"`
}

type SourceRef struct {
	ChunkID   int     `json:"chunk_id"`
	Score     float64 `json:"similarity_score"`
	WordCount int     `json:"word_count"`
}

// RetrievalOutcome is the result of a query against one document's index.
// Found=false with a Reason is the normal "nothing above threshold" outcome,
// not an error.
type RetrievalOutcome struct {
	Found        bool        `json:"found"`
	Reason       string      `json:"reason,omitempty"`
	Contexts     []string    `json:"contexts,omitempty"`
	Sources      []SourceRef `json:"sources,omitempty"`
	TotalFound   int         `json:"total_found"`
	AverageScore float64     `json:"average_score"`
}

type IndexStats struct {
	Loaded      bool `json:"loaded"`
	TotalChunks int  `json:"total_chunks"`
	Dimension   int  `json:"dimension"`
}

type ChatStatus string

const (
	ChatStatusSuccess   ChatStatus = "success"
	ChatStatusNoContent ChatStatus = "no_content"
	ChatStatusError     ChatStatus = "error"
)

// ChatResult is always returned to the caller, even when generation failed;
// in that case Status is ChatStatusError and ErrorDetail carries the cause.
type ChatResult struct {
	Answer       string      `json:"answer"`
	Status       ChatStatus  `json:"status"`
	Sources      []SourceRef `json:"sources,omitempty"`
	AverageScore float64     `json:"average_score,omitempty"`
	ErrorDetail  string      `json:"error_detail,omitempty"`
}
