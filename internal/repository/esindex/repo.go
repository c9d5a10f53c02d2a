// Package esindex stores article vectors in an Elasticsearch dense_vector index.
package esindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const vectorField = "vector"

// Config holds Elasticsearch connection and index settings.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	APIKey     string
	Name       string
	Dimensions int
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Repo implements the vector index on Elasticsearch kNN search.
type Repo struct {
	es         *elasticsearch.Client
	name       string
	dimensions int
}

// New creates the Elasticsearch client. No request is made until first use.
func New(cfg Config) (*Repo, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create elasticsearch client: %w", domain.ErrIndex, err)
	}
	return &Repo{es: es, name: cfg.Name, dimensions: cfg.Dimensions}, nil
}

// EnsureIndex creates the index with a cosine dense_vector mapping unless it exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	res, err := r.es.Indices.Exists([]string{r.name}, r.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: check index %s: %w", domain.ErrIndex, r.name, err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("%w: check index %s: %s", domain.ErrIndex, r.name, res.Status())
	}

	payload, err := json.Marshal(r.mapping())
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = r.es.Indices.Create(r.name,
		r.es.Indices.Create.WithContext(ctx),
		r.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("%w: create index %s: %w", domain.ErrIndex, r.name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body := readBody(res.Body)
		if strings.Contains(body, "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("%w: create index %s: %s", domain.ErrIndex, r.name, body)
	}
	return nil
}

func (r *Repo) mapping() map[string]any {
	props := map[string]any{
		vectorField: map[string]any{
			"type":       "dense_vector",
			"dims":       r.dimensions,
			"index":      true,
			"similarity": "cosine",
		},
		domain.FieldSource: map[string]any{"type": "keyword"},
		domain.FieldURL:    map[string]any{"type": "keyword"},
	}
	for _, f := range []string{
		domain.FieldHeading, domain.FieldSummary, domain.FieldKeywords,
		domain.FieldContentPreview, domain.FieldScrapedAt,
	} {
		props[f] = map[string]any{"type": "text", "index": false}
	}
	return map[string]any{"mappings": map[string]any{"properties": props}}
}

// Upsert writes all vectors in one bulk request and waits for refresh.
func (r *Repo) Upsert(ctx context.Context, vectors []domain.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, v := range vectors {
		if len(v.Embedding) != r.dimensions {
			return fmt.Errorf("%w: vector %s has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, v.ID, len(v.Embedding), r.dimensions)
		}
		doc := make(map[string]any, len(domain.MetadataFields)+1)
		for k, val := range v.Metadata.Fields() {
			doc[k] = val
		}
		doc[vectorField] = v.Embedding

		if err := enc.Encode(map[string]any{"index": map[string]any{"_id": v.ID}}); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode bulk doc: %w", err)
		}
	}

	res, err := r.es.Bulk(bytes.NewReader(buf.Bytes()),
		r.es.Bulk.WithContext(ctx),
		r.es.Bulk.WithIndex(r.name),
		r.es.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("%w: bulk upsert %d docs: %w", domain.ErrIndex, len(vectors), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: bulk upsert: %s", domain.ErrIndex, readBody(res.Body))
	}

	var out struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID    string          `json:"_id"`
			Error json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode bulk response: %w", domain.ErrIndex, err)
	}
	if out.Errors {
		for _, item := range out.Items {
			for _, op := range item {
				if len(op.Error) > 0 {
					return fmt.Errorf("%w: bulk item %s: %s", domain.ErrIndex, op.ID, op.Error)
				}
			}
		}
		return fmt.Errorf("%w: bulk upsert reported errors", domain.ErrIndex)
	}
	return nil
}

// Query runs approximate kNN. Elasticsearch reports cosine as (1+cos)/2; it is mapped back to cos.
func (r *Repo) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Candidate, error) {
	knn := map[string]any{
		"field":          vectorField,
		"query_vector":   q.Vector,
		"k":              q.K,
		"num_candidates": max(q.K*10, 100),
	}
	if q.Source != "" {
		knn["filter"] = map[string]any{"term": map[string]any{domain.FieldSource: q.Source}}
	}
	body := map[string]any{
		"knn":     knn,
		"size":    q.K,
		"_source": domain.MetadataFields,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal knn body: %w", err)
	}

	res, err := r.es.Search(
		r.es.Search.WithContext(ctx),
		r.es.Search.WithIndex(r.name),
		r.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: knn %s: %w", domain.ErrIndex, r.name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: knn %s: %s", domain.ErrIndex, r.name, readBody(res.Body))
	}

	var out struct {
		Hits struct {
			Hits []struct {
				ID     string            `json:"_id"`
				Score  float64           `json:"_score"`
				Source map[string]string `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode knn response: %w", domain.ErrIndex, err)
	}

	cands := make([]domain.Candidate, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		cands = append(cands, domain.Candidate{
			ID:       h.ID,
			Score:    2*h.Score - 1,
			Metadata: domain.MetadataFromFields(h.Source),
		})
	}
	return cands, nil
}

// Stats counts documents. A missing index counts as empty.
func (r *Repo) Stats(ctx context.Context) (domain.IndexStats, error) {
	res, err := r.es.Count(r.es.Count.WithContext(ctx), r.es.Count.WithIndex(r.name))
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("%w: count %s: %w", domain.ErrIndex, r.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.IndexStats{}, nil
	}
	if res.IsError() {
		return domain.IndexStats{}, fmt.Errorf("%w: count %s: %s", domain.ErrIndex, r.name, readBody(res.Body))
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return domain.IndexStats{}, fmt.Errorf("%w: decode count: %w", domain.ErrIndex, err)
	}
	return domain.IndexStats{TotalCount: out.Count}, nil
}

// HealthCheck pings the cluster.
func (r *Repo) HealthCheck(ctx context.Context) error {
	res, err := r.es.Ping(r.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrIndex, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: ping: %s", domain.ErrIndex, res.Status())
	}
	return nil
}

func readBody(r io.Reader) string {
	data, _ := io.ReadAll(r)
	return strings.TrimSpace(string(data))
}
