package domain

// IndexedVector is one stored index entry: one per distinct article URL.
type IndexedVector struct {
	ID        string
	Embedding []float32
	Metadata  ArticleMetadata
}

// Candidate is a nearest-neighbour hit returned by a vector index.
// Score is cosine similarity; higher is more similar.
type Candidate struct {
	ID       string
	Score    float64
	Metadata ArticleMetadata
}

// VectorQuery asks a vector index for the K nearest neighbours of Vector.
// A non-empty Source restricts candidates to that metadata source.
type VectorQuery struct {
	Vector []float32
	K      int
	Source string
}

// IndexStats summarizes the vector index contents.
type IndexStats struct {
	TotalCount int `json:"total_count"`
}

// QueryResult is one ranked search hit. Unique by URL within a result list.
type QueryResult struct {
	Score   float64 `json:"score"`
	URL     string  `json:"url"`
	Heading string  `json:"heading"`
	Summary string  `json:"summary"`
	Source  string  `json:"source"`
}
