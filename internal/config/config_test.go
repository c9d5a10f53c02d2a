package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Index.Name != "news-articles-index" {
		t.Errorf("expected index name news-articles-index, got %q", cfg.Index.Name)
	}
	if cfg.Index.Dimensions != 384 || cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected 384 dims, got index=%d embedding=%d", cfg.Index.Dimensions, cfg.Embedding.Dimensions)
	}
	if cfg.Index.BatchSize != 100 {
		t.Errorf("expected BatchSize=100, got %d", cfg.Index.BatchSize)
	}
	if cfg.Search.TopK != 5 || cfg.Search.MinScore != 0.15 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Scraper.BaseURL != "https://www.bbc.com/news" {
		t.Errorf("unexpected base url %q", cfg.Scraper.BaseURL)
	}
	if cfg.Scraper.Limit != 10 || cfg.Scraper.TimeoutSec != 10 {
		t.Errorf("unexpected scraper defaults: %+v", cfg.Scraper)
	}
	if cfg.Scraper.Source != "BBC News" {
		t.Errorf("unexpected source %q", cfg.Scraper.Source)
	}
	if cfg.Kafka.DLQTopic != "news-articles_dlq" {
		t.Errorf("unexpected dlq topic %q", cfg.Kafka.DLQTopic)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		Index:  IndexConfig{Backend: "chromem", Name: "custom", Dimensions: 768, BatchSize: 10},
		Search: SearchConfig{TopK: 20, MinScore: 0.4},
	}
	cfg.ApplyDefaults()

	if cfg.Index.Backend != "chromem" || cfg.Index.Name != "custom" || cfg.Index.BatchSize != 10 {
		t.Errorf("index overridden: %+v", cfg.Index)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("embedding dims should follow index dims, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Search.TopK != 20 || cfg.Search.MinScore != 0.4 {
		t.Errorf("search overridden: %+v", cfg.Search)
	}
}

func TestApplyDefaults_SummarizerInheritsEmbeddingCredentials(t *testing.T) {
	cfg := Config{
		Embedding:     EmbeddingConfig{APIKey: "k", BaseURL: "https://api.example.com/v1"},
		Summarization: SummarizationConfig{Provider: "openai"},
	}
	cfg.ApplyDefaults()

	if cfg.Summarization.APIKey != "k" || cfg.Summarization.BaseURL != "https://api.example.com/v1" {
		t.Errorf("unexpected summarizer credentials: %+v", cfg.Summarization)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "pinecone" }},
		{"bad index name", func(c *Config) { c.Index.Name = "news articles" }},
		{"dimension mismatch", func(c *Config) { c.Embedding.Dimensions = 1024 }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"unknown cache", func(c *Config) { c.Embedding.Cache.Backend = "memcached" }},
		{"bad budget action", func(c *Config) { c.Embedding.Budget.Action = "explode" }},
		{"unknown summarizer", func(c *Config) { c.Summarization.Provider = "bart" }},
		{"unknown sink", func(c *Config) { c.Scraper.Sink = "s3" }},
		{"negative min score", func(c *Config) { c.Search.MinScore = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_BudgetActionMessage(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget.Action = "invalid_action"

	err := cfg.Validate()
	want := `embedding.budget.action must be one of "warn", "reject", got "invalid_action"`
	if err == nil || err.Error() != want {
		t.Errorf("unexpected error:\ngot:  %v\nwant: %s", err, want)
	}
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		check   func(c *Config) error
		wantErr bool
	}{
		{"openai without key", func(c *Config) {}, (*Config).RequireEmbedding, true},
		{"openai with key", func(c *Config) { c.Embedding.APIKey = "k" }, (*Config).RequireEmbedding, false},
		{"fastembed needs no key", func(c *Config) { c.Embedding.Provider = "fastembed" }, (*Config).RequireEmbedding, false},
		{"valkey without addrs", func(c *Config) {}, (*Config).RequireIndex, true},
		{"valkey with addrs", func(c *Config) { c.Database.Addrs = []string{"localhost:6379"} }, (*Config).RequireIndex, false},
		{"chromem needs nothing", func(c *Config) { c.Index.Backend = "chromem" }, (*Config).RequireIndex, false},
		{"qdrant without host", func(c *Config) { c.Index.Backend = "qdrant" }, (*Config).RequireIndex, true},
		{"elasticsearch without addrs", func(c *Config) { c.Index.Backend = "elasticsearch" }, (*Config).RequireIndex, true},
		{"redis cache without addrs", func(c *Config) {
			c.Index.Backend = "chromem"
			c.Embedding.Cache.Backend = "redis"
		}, (*Config).RequireIndex, true},
		{"kafka without brokers", func(c *Config) {}, (*Config).RequireKafka, true},
		{"summarizer openai without key", func(c *Config) { c.Summarization.Provider = "openai" }, (*Config).RequireSummarizer, true},
		{"summarizer none", func(c *Config) {}, (*Config).RequireSummarizer, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := tc.check(&cfg)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrConfig) {
					t.Fatalf("expected ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("NEWSDEX_TEST_KEY", "secret")

	path := filepath.Join(t.TempDir(), "test.yaml")
	data := []byte(`
index:
  backend: chromem
embedding:
  api_key: ${NEWSDEX_TEST_KEY}
  model: ${NEWSDEX_TEST_MODEL:-text-embedding-3-small}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Embedding.APIKey != "secret" {
		t.Errorf("expected expanded api key, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default model, got %q", cfg.Embedding.Model)
	}
	if cfg.Index.Backend != "chromem" {
		t.Errorf("unexpected backend %q", cfg.Index.Backend)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestUsesRedis(t *testing.T) {
	cfg := validConfig()
	if !cfg.UsesRedis() {
		t.Error("valkey backend uses redis store")
	}
	cfg.Index.Backend = "qdrant"
	if cfg.UsesRedis() {
		t.Error("qdrant backend without redis cache does not use redis store")
	}
	cfg.Embedding.Cache.Backend = "redis"
	if !cfg.UsesRedis() {
		t.Error("redis cache uses redis store")
	}
}
