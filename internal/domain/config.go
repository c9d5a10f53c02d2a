package domain

// KeyPrefix namespaces every key newsdex writes to a shared key-value store.
const KeyPrefix = "newsdex:"

// DefaultSource is the source label attached to scraped articles.
const DefaultSource = "BBC News"

// VectorConfig holds vectorization settings shared by the indexing and search paths.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
	IndexName      string
}

// IsValidIndexName reports whether s matches [a-zA-Z0-9_:-]+, the set every backend accepts.
func IsValidIndexName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit && r != '_' && r != ':' && r != '-' {
			return false
		}
	}
	return true
}

// DefaultVectorConfig returns the default configuration tuned for all-MiniLM-L6-v2.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "sentence-transformers/all-MiniLM-L6-v2",
		Dimensions:     384,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
		IndexName:      "news-articles-index",
	}
}
