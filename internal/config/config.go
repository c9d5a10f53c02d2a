package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Config holds the newsdex configuration shared by every command.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	HTTP          HTTPConfig          `yaml:"http"`
	Auth          AuthConfig          `yaml:"auth"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Scraper       ScraperConfig       `yaml:"scraper"`
	Index         IndexConfig         `yaml:"index"`
	Database      DatabaseConfig      `yaml:"database"`
	Chromem       ChromemConfig       `yaml:"chromem"`
	Qdrant        QdrantConfig        `yaml:"qdrant"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Search        SearchConfig        `yaml:"search"`
	Retry         RetryConfig         `yaml:"retry"`
	Kafka         KafkaConfig         `yaml:"kafka"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings for the serve command.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// MetricsConfig exposes /metrics from batch commands. Port 0 disables it.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// ScraperConfig holds article ingestion settings.
type ScraperConfig struct {
	BaseURL            string  `yaml:"base_url"`
	ArticlePathPattern string  `yaml:"article_path_pattern"`
	Limit              int     `yaml:"limit"`
	TimeoutSec         int     `yaml:"timeout_sec"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	UserAgent          string  `yaml:"user_agent"`
	Source             string  `yaml:"source"`
	DataDir            string  `yaml:"data_dir"`
	Sink               string  `yaml:"sink"` // file, kafka
}

// IndexConfig selects and shapes the vector index.
type IndexConfig struct {
	Backend         string `yaml:"backend"` // redis, valkey, chromem, qdrant, elasticsearch
	Name            string `yaml:"name"`
	Dimensions      int    `yaml:"dimensions"`
	BatchSize       int    `yaml:"batch_size"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// DatabaseConfig holds Redis/Valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ChromemConfig holds embedded index settings. An empty path keeps the index in memory.
type ChromemConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// ElasticsearchConfig holds Elasticsearch connection settings.
type ElasticsearchConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	APIKey   string   `yaml:"api_key"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string               `yaml:"provider"` // openai, fastembed
	Model               string               `yaml:"model"`
	Dimensions          int                  `yaml:"dimensions"`
	APIKey              string               `yaml:"api_key"`
	BaseURL             string               `yaml:"base_url"`
	DocumentInstruction string               `yaml:"document_instruction"`
	QueryInstruction    string               `yaml:"query_instruction"`
	ModelCacheDir       string               `yaml:"model_cache_dir"`
	Cache               EmbeddingCacheConfig `yaml:"cache"`
	Budget              BudgetConfig         `yaml:"budget"`
}

// EmbeddingCacheConfig selects where computed embeddings are cached.
type EmbeddingCacheConfig struct {
	Backend string `yaml:"backend"` // none, redis, bolt
	Path    string `yaml:"path"`    // bolt file
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// SummarizationConfig holds summarizer settings.
type SummarizationConfig struct {
	Provider  string `yaml:"provider"` // openai, none
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// SearchConfig holds default ranking parameters.
type SearchConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// RetryConfig bounds retries of embedding, summarization and index calls.
type RetryConfig struct {
	MaxRetries  uint64 `yaml:"max_retries"`
	BaseDelayMs int    `yaml:"base_delay_ms"`
	MaxDelayMs  int    `yaml:"max_delay_ms"`
}

// KafkaConfig holds article stream settings.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	GroupID  string   `yaml:"group_id"`
	DLQTopic string   `yaml:"dlq_topic"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	vec := domain.DefaultVectorConfig()

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	c.applyScraperDefaults()

	if c.Index.Backend == "" {
		c.Index.Backend = "valkey"
	}
	if c.Index.Name == "" {
		c.Index.Name = vec.IndexName
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = vec.Dimensions
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 100
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}

	c.applyEmbeddingDefaults(vec)

	if c.Search.TopK <= 0 {
		c.Search.TopK = 5
	}
	if c.Search.MinScore == 0 {
		c.Search.MinScore = 0.15
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = 500
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 10000
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "news-articles"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "newsdex-indexer"
	}
	if c.Kafka.DLQTopic == "" {
		c.Kafka.DLQTopic = c.Kafka.Topic + "_dlq"
	}
}

func (c *Config) applyScraperDefaults() {
	s := &c.Scraper
	if s.BaseURL == "" {
		s.BaseURL = "https://www.bbc.com/news"
	}
	if s.ArticlePathPattern == "" {
		s.ArticlePathPattern = "/news/articles/"
	}
	if s.Limit <= 0 {
		s.Limit = 10
	}
	if s.TimeoutSec <= 0 {
		s.TimeoutSec = 10
	}
	if s.RequestsPerSecond <= 0 {
		s.RequestsPerSecond = 1
	}
	if s.UserAgent == "" {
		s.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if s.Source == "" {
		s.Source = domain.DefaultSource
	}
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.Sink == "" {
		s.Sink = "file"
	}
}

func (c *Config) applyEmbeddingDefaults(vec domain.VectorConfig) {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.Model == "" {
		e.Model = vec.Model
	}
	if e.Dimensions <= 0 {
		e.Dimensions = c.Index.Dimensions
	}
	if e.Cache.Backend == "" {
		e.Cache.Backend = "none"
	}
	if e.Cache.Backend == "bolt" && e.Cache.Path == "" {
		e.Cache.Path = filepath.Join(c.Scraper.DataDir, "embeddings.db")
	}

	s := &c.Summarization
	if s.Provider == "" {
		s.Provider = "none"
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = 150
	}
	if s.Provider == "openai" {
		if s.APIKey == "" {
			s.APIKey = e.APIKey
		}
		if s.BaseURL == "" {
			s.BaseURL = e.BaseURL
		}
	}
}

// Validate checks the configuration for internal consistency.
// Credentials are checked per command by the Require* methods.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if err := oneOf("index.backend", c.Index.Backend,
		"redis", "valkey", "chromem", "qdrant", "elasticsearch"); err != nil {
		return err
	}
	if !domain.IsValidIndexName(c.Index.Name) {
		return fmt.Errorf("index.name %q contains invalid characters", c.Index.Name)
	}
	if c.Embedding.Dimensions != c.Index.Dimensions {
		return fmt.Errorf("embedding.dimensions (%d) must equal index.dimensions (%d)",
			c.Embedding.Dimensions, c.Index.Dimensions)
	}
	if err := oneOf("embedding.provider", c.Embedding.Provider, "openai", "fastembed"); err != nil {
		return err
	}
	if err := oneOf("embedding.cache.backend", c.Embedding.Cache.Backend, "none", "redis", "bolt"); err != nil {
		return err
	}
	if err := oneOf("embedding.budget.action", c.Embedding.Budget.Action, "", "warn", "reject"); err != nil {
		return err
	}
	if err := oneOf("summarization.provider", c.Summarization.Provider, "openai", "none"); err != nil {
		return err
	}
	if err := oneOf("scraper.sink", c.Scraper.Sink, "file", "kafka"); err != nil {
		return err
	}
	if c.Search.MinScore < 0 {
		return fmt.Errorf("search.min_score must be non-negative, got %g", c.Search.MinScore)
	}
	return nil
}

// RequireEmbedding checks that the embedding provider can be built.
func (c *Config) RequireEmbedding() error {
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: embedding.api_key is required for provider openai", domain.ErrConfig)
	}
	return nil
}

// RequireSummarizer checks that the summarizer can be built.
func (c *Config) RequireSummarizer() error {
	if c.Summarization.Provider == "openai" && c.Summarization.APIKey == "" {
		return fmt.Errorf("%w: summarization.api_key is required for provider openai", domain.ErrConfig)
	}
	return nil
}

// RequireIndex checks that the configured index backend has connection settings.
func (c *Config) RequireIndex() error {
	switch c.Index.Backend {
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("%w: database.addrs is required for index backend %s",
				domain.ErrConfig, c.Index.Backend)
		}
	case "qdrant":
		if c.Qdrant.Host == "" {
			return fmt.Errorf("%w: qdrant.host is required", domain.ErrConfig)
		}
	case "elasticsearch":
		if len(c.Elasticsearch.Addrs) == 0 {
			return fmt.Errorf("%w: elasticsearch.addrs is required", domain.ErrConfig)
		}
	}
	if c.Embedding.Cache.Backend == "redis" && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("%w: database.addrs is required for the redis embedding cache", domain.ErrConfig)
	}
	return nil
}

// RequireKafka checks that the article stream is reachable.
func (c *Config) RequireKafka() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka.brokers is required", domain.ErrConfig)
	}
	return nil
}

// UsesRedis reports whether any component needs the Redis/Valkey store.
func (c *Config) UsesRedis() bool {
	switch {
	case c.Index.Backend == "redis", c.Index.Backend == "valkey":
		return true
	case c.Embedding.Cache.Backend == "redis":
		return true
	default:
		return false
	}
}

func oneOf(name, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			return nil
		}
	}
	quoted := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if a != "" {
			quoted = append(quoted, fmt.Sprintf("%q", a))
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(quoted, ", "), val)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for tests and `go run` from a subdirectory
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
