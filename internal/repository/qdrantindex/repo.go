// Package qdrantindex stores article vectors in a Qdrant collection over gRPC.
package qdrantindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// client is the consumer interface over *qdrant.Client (ISP).
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Config holds Qdrant connection and collection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Name       string
	Dimensions int
}

// Repo implements the vector index on a Qdrant collection.
type Repo struct {
	client     client
	name       string
	dimensions int
}

// Dial connects to Qdrant.
func Dial(cfg Config) (*Repo, error) {
	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	c, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant client %s:%d: %w", domain.ErrIndex, cfg.Host, cfg.Port, err)
	}
	return New(c, cfg.Name, cfg.Dimensions), nil
}

// New wraps an existing client.
func New(c client, name string, dimensions int) *Repo {
	return &Repo{client: c, name: name, dimensions: dimensions}
}

// EnsureIndex creates the cosine collection unless it exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.client.CollectionExists(ctx, r.name)
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %w", domain.ErrIndex, r.name, err)
	}
	if exists {
		return nil
	}

	err = r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(r.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %w", domain.ErrIndex, r.name, err)
	}
	return nil
}

// Upsert writes points keyed by article UUID and waits for the write to apply.
func (r *Repo) Upsert(ctx context.Context, vectors []domain.IndexedVector) error {
	if len(vectors) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		if len(v.Embedding) != r.dimensions {
			return fmt.Errorf("%w: vector %s has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, v.ID, len(v.Embedding), r.dimensions)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(v.ID),
			Vectors: qdrant.NewVectors(v.Embedding...),
			Payload: toPayload(v.Metadata.Fields()),
		}
	}

	_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points: %w", domain.ErrIndex, len(vectors), err)
	}
	return nil
}

// Query returns the K nearest points. Qdrant reports cosine similarity directly.
func (r *Repo) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Candidate, error) {
	req := &qdrant.QueryPoints{
		CollectionName: r.name,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          qdrant.PtrOf(uint64(q.K)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if q.Source != "" {
		req.Filter = &qdrant.Filter{Must: []*qdrant.Condition{sourceCondition(q.Source)}}
	}

	points, err := r.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrIndex, r.name, err)
	}

	out := make([]domain.Candidate, 0, len(points))
	for _, p := range points {
		out = append(out, domain.Candidate{
			ID:       p.GetId().GetUuid(),
			Score:    float64(p.GetScore()),
			Metadata: domain.MetadataFromFields(fromPayload(p.GetPayload())),
		})
	}
	return out, nil
}

// Stats counts points exactly.
func (r *Repo) Stats(ctx context.Context) (domain.IndexStats, error) {
	n, err := r.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: r.name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("%w: count %s: %w", domain.ErrIndex, r.name, err)
	}
	return domain.IndexStats{TotalCount: int(n)}, nil
}

// HealthCheck calls the Qdrant health endpoint.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if _, err := r.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (r *Repo) Close() error {
	return r.client.Close()
}

func sourceCondition(source string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: domain.FieldSource,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: source},
				},
			},
		},
	}
}

func toPayload(fields map[string]string) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(fields))
	for k, v := range fields {
		payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) map[string]string {
	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		fields[k] = v.GetStringValue()
	}
	return fields
}
