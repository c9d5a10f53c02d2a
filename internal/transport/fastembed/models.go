// Package fastembed runs sentence-embedding models locally through ONNX Runtime.
package fastembed

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// ErrNotAvailable is returned by binaries built without cgo.
var ErrNotAvailable = errors.New("fastembed requires a cgo build; use embedding.provider openai instead")

const providerName = "fastembed"

// DefaultBatchSize is the number of texts per ONNX run.
const DefaultBatchSize = 64

// Config holds local model settings.
type Config struct {
	// Model is a Hugging Face name such as sentence-transformers/all-MiniLM-L6-v2.
	Model string
	// CacheDir holds downloaded model files.
	CacheDir  string
	MaxLength int
}

// modelDimensions lists the supported models by Hugging Face name.
var modelDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
}

// ModelDimensions returns the vector length of a supported model.
func ModelDimensions(model string) (int, error) {
	dims, ok := modelDimensions[model]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported fastembed model %q", domain.ErrConfig, model)
	}
	return dims, nil
}
