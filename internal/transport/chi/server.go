// Package chi serves the search API over HTTP.
package chi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	domusage "github.com/kailas-cloud/newsdex/internal/domain/usage"
	"github.com/kailas-cloud/newsdex/internal/logger"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	healthuc "github.com/kailas-cloud/newsdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/newsdex/internal/usecase/search"
)

// MaxTopK bounds top_k on the search endpoint.
const MaxTopK = 100

// Searcher ranks articles for a query.
type Searcher interface {
	SearchWithOptions(
		ctx context.Context, q string, topK int, minScore float64, opts searchuc.Options,
	) ([]domain.QueryResult, error)
}

// StatsReader reports index size.
type StatsReader interface {
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// HealthReporter aggregates dependency checks.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports embedding token consumption.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// Config holds API settings.
type Config struct {
	APIKeys         []string
	DefaultTopK     int
	DefaultMinScore float64
}

// Server handles the search API.
type Server struct {
	search   Searcher
	stats    StatsReader
	health   HealthReporter
	usage    UsageReporter
	gatherer prometheus.Gatherer
	cfg      Config
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	stats StatsReader,
	health HealthReporter,
	usage UsageReporter,
	gatherer prometheus.Gatherer,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = searchuc.DefaultTopK
	}
	return &Server{
		search:   search,
		stats:    stats,
		health:   health,
		usage:    usage,
		gatherer: gatherer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handler returns the router with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chimw.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/search", s.Search)
	r.Get("/stats", s.Stats)
	r.Get("/usage", s.GetUsage)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// SearchParams are the query parameters of GET /search.
type SearchParams struct {
	Q        string
	TopK     *int
	MinScore *float64
	Source   *string
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query   string               `json:"query"`
	Count   int                  `json:"count"`
	Results []domain.QueryResult `json:"results"`
}

// Search handles GET /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	topK := s.cfg.DefaultTopK
	if params.TopK != nil {
		topK = *params.TopK
	}
	if topK > MaxTopK {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidQuery,
			fmt.Sprintf("top_k must be at most %d", MaxTopK))
		return
	}
	minScore := s.cfg.DefaultMinScore
	if params.MinScore != nil {
		minScore = *params.MinScore
	}
	var opts searchuc.Options
	if params.Source != nil {
		opts.Source = strings.TrimSpace(*params.Source)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.SearchWithOptions(ctx, params.Q, topK, minScore, opts)
	if err != nil {
		handleDomainError(w, logger.FromContext(ctx), err)
		return
	}
	if results == nil {
		results = []domain.QueryResult{}
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{Query: params.Q, Count: len(results), Results: results})
}

func bindSearchParams(r *http.Request) (SearchParams, error) {
	var p SearchParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &p.Q); err != nil {
		return SearchParams{}, fmt.Errorf("invalid format for parameter q: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", query, &p.TopK); err != nil {
		return SearchParams{}, fmt.Errorf("invalid format for parameter top_k: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "min_score", query, &p.MinScore); err != nil {
		return SearchParams{}, fmt.Errorf("invalid format for parameter min_score: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "source", query, &p.Source); err != nil {
		return SearchParams{}, fmt.Errorf("invalid format for parameter source: %w", err)
	}
	return p, nil
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		handleDomainError(w, logger.FromContext(r.Context()), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid format for parameter period")
		return
	}
	period, err := domusage.ParsePeriod(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeInvalidQuery, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.usage.GetReport(r.Context(), period))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}
