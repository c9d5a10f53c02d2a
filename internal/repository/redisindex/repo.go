// Package redisindex stores article vectors as Redis/Valkey hashes behind an FT HNSW index.
package redisindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/newsdex/internal/db"
	"github.com/kailas-cloud/newsdex/internal/domain"
)

// vectorField holds the FLOAT32 little-endian embedding inside each hash.
const vectorField = "vector"

var articlePrefix = domain.KeyPrefix + "article:"

// store is the consumer interface for the article index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexDocCount(ctx context.Context, name string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

// HNSWConfig holds HNSW graph parameters for FT.CREATE.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the vector index on a db.Store.
type Repo struct {
	store      store
	name       string
	dimensions int
	hnsw       HNSWConfig
}

// New creates an article index repository.
func New(s store, name string, dimensions int, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, name: name, dimensions: dimensions, hnsw: hnsw}
}

// Name returns the FT index name.
func (r *Repo) Name() string { return r.name }

// EnsureIndex creates the FT index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.name)
	if err != nil {
		return fmt.Errorf("%w: check index %s: %w", domain.ErrIndex, r.name, err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.name).
		Prefix(articlePrefix).
		Tag(domain.FieldSource).
		VectorHNSW(vectorField, r.dimensions, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("%w: build index %s: %w", domain.ErrIndex, r.name, err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: create index %s: %w", domain.ErrIndex, r.name, err)
	}
	return nil
}

// Upsert writes one hash per vector in a single pipeline. Existing IDs are overwritten.
func (r *Repo) Upsert(ctx context.Context, vectors []domain.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(vectors))
	for i, v := range vectors {
		if len(v.Embedding) != r.dimensions {
			return fmt.Errorf("%w: vector %s has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, v.ID, len(v.Embedding), r.dimensions)
		}
		fields := v.Metadata.Fields()
		fields[vectorField] = vectorToBytes(v.Embedding)
		items[i] = db.HashSetItem{Key: articleKey(v.ID), Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert %d vectors: %w", domain.ErrIndex, len(vectors), err)
	}
	return nil
}

// Query returns the K nearest articles by cosine similarity.
func (r *Repo) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Candidate, error) {
	knn := &db.KNNQuery{
		IndexName:    r.name,
		Vector:       q.Vector,
		K:            q.K,
		ReturnFields: domain.MetadataFields,
	}
	if q.Source != "" {
		knn.TagFilters = map[string]string{domain.FieldSource: q.Source}
	}

	res, err := r.store.SearchKNN(ctx, knn)
	if errors.Is(err, db.ErrIndexNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotReady, r.name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: knn %s: %w", domain.ErrIndex, r.name, err)
	}

	out := make([]domain.Candidate, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, domain.Candidate{
			ID:       strings.TrimPrefix(e.Key, articlePrefix),
			Score:    e.Score,
			Metadata: domain.MetadataFromFields(e.Fields),
		})
	}
	return out, nil
}

// Stats reports the number of indexed articles. A missing index counts as empty.
func (r *Repo) Stats(ctx context.Context) (domain.IndexStats, error) {
	n, err := r.store.IndexDocCount(ctx, r.name)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return domain.IndexStats{}, nil
		}
		return domain.IndexStats{}, fmt.Errorf("%w: stats %s: %w", domain.ErrIndex, r.name, err)
	}
	return domain.IndexStats{TotalCount: n}, nil
}

// HealthCheck pings the underlying store.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	return nil
}

func articleKey(id string) string {
	return articlePrefix + id
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
