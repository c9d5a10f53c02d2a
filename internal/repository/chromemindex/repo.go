// Package chromemindex keeps article vectors in an embedded chromem-go collection.
package chromemindex

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/philippgille/chromem-go"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Config holds embedded index settings.
type Config struct {
	// Path is the persistence directory. Empty keeps the index in memory.
	Path       string
	Compress   bool
	Name       string
	Dimensions int
}

// Repo implements the vector index on a chromem collection.
type Repo struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	dimensions int
}

// errNoEmbedder guards the collection embedding hook: newsdex always supplies vectors.
var errNoEmbedder = errors.New("chromem collection has no embedding function; vectors must be precomputed")

// New opens (or creates) the chromem database and collection.
func New(cfg Config) (*Repo, error) {
	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory %s: %w", domain.ErrIndex, cfg.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: open chromem db %s: %w", domain.ErrIndex, cfg.Path, err)
		}
	}

	r := &Repo{db: db, name: cfg.Name, dimensions: cfg.Dimensions}
	if err := r.EnsureIndex(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// EnsureIndex gets or creates the collection.
func (r *Repo) EnsureIndex(_ context.Context) error {
	if r.collection != nil {
		return nil
	}
	col, err := r.db.GetOrCreateCollection(r.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("%w: collection %s: %w", domain.ErrIndex, r.name, err)
	}
	r.collection = col
	return nil
}

// Upsert adds documents; chromem replaces entries with an existing ID.
func (r *Repo) Upsert(ctx context.Context, vectors []domain.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		if len(v.Embedding) != r.dimensions {
			return fmt.Errorf("%w: vector %s has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, v.ID, len(v.Embedding), r.dimensions)
		}
		docs[i] = chromem.Document{
			ID:        v.ID,
			Content:   v.Metadata.Heading + " " + v.Metadata.ContentPreview,
			Metadata:  v.Metadata.Fields(),
			Embedding: v.Embedding,
		}
	}

	// Embeddings are precomputed, so a single worker is enough.
	if err := r.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: upsert %d vectors: %w", domain.ErrIndex, len(vectors), err)
	}
	return nil
}

// Query returns up to K nearest articles. K is capped at the collection size.
func (r *Repo) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Candidate, error) {
	count := r.collection.Count()
	if count == 0 {
		return []domain.Candidate{}, nil
	}
	k := min(q.K, count)

	var where map[string]string
	if q.Source != "" {
		where = map[string]string{domain.FieldSource: q.Source}
	}

	results, err := r.collection.QueryEmbedding(ctx, q.Vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrIndex, r.name, err)
	}

	out := make([]domain.Candidate, 0, len(results))
	for _, res := range results {
		out = append(out, domain.Candidate{
			ID:       res.ID,
			Score:    float64(res.Similarity),
			Metadata: domain.MetadataFromFields(res.Metadata),
		})
	}
	return out, nil
}

// Stats reports the number of stored articles.
func (r *Repo) Stats(_ context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{TotalCount: r.collection.Count()}, nil
}

// HealthCheck always succeeds for the embedded index.
func (r *Repo) HealthCheck(_ context.Context) error {
	return nil
}

func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbedder
}
