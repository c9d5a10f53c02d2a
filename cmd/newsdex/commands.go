package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/repository/articlefile"
	chitr "github.com/kailas-cloud/newsdex/internal/transport/chi"
	"github.com/kailas-cloud/newsdex/internal/transport/cli"
	"github.com/kailas-cloud/newsdex/internal/transport/kafka"
	"github.com/kailas-cloud/newsdex/internal/transport/web"
	"github.com/kailas-cloud/newsdex/internal/usecase/ingest"
	usageuc "github.com/kailas-cloud/newsdex/internal/usecase/usage"
	"github.com/kailas-cloud/newsdex/internal/version"
)

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		sink  string
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch the latest articles and save them",
		Long: `Fetch the listing page, follow article links and save the parsed articles
to a timestamped JSON file in the data directory, or publish them to Kafka.

Examples:
  newsdex scrape --limit 20
  newsdex scrape --sink kafka`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				sc := a.cfg.Scraper
				if !cmd.Flags().Changed("limit") {
					limit = sc.Limit
				}
				if !cmd.Flags().Changed("sink") {
					sink = sc.Sink
				}

				var target ingest.Sink
				switch sink {
				case "file":
					target = articlefile.New(sc.DataDir)
				case "kafka":
					if err := a.cfg.RequireKafka(); err != nil {
						return err
					}
					ks := kafka.NewSink(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
					a.onClose(ks.Close)
					target = ks
				default:
					return fmt.Errorf("%w: unknown sink %q", domain.ErrConfig, sink)
				}

				fetcher := web.NewFetcher(web.Config{
					UserAgent:         sc.UserAgent,
					Source:            sc.Source,
					Timeout:           time.Duration(sc.TimeoutSec) * time.Second,
					RequestsPerSecond: sc.RequestsPerSecond,
				}, a.logger)
				svc := ingest.New(fetcher, ingest.Config{BaseURL: sc.BaseURL, PathPattern: sc.ArticlePathPattern}, a.logger)

				fmt.Fprintln(cmd.OutOrStdout(), "Fetching latest news articles...")
				records, location, err := svc.Run(ctx, limit, target)
				if err != nil {
					return err
				}
				cli.PrintScrape(cmd.OutOrStdout(), location, records)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of articles to scrape")
	cmd.Flags().StringVar(&sink, "sink", "file", "where to save articles: file or kafka")
	return cmd
}

func newStoreCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Embed and index a scraped article file",
		Long: `Summarize, embed and upsert articles into the vector index.
Without --file the newest news_articles_*.json in the data directory is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.requireIndexing(); err != nil {
					return err
				}
				files := articlefile.New(a.cfg.Scraper.DataDir)
				path := file
				if path == "" {
					latest, err := files.Latest(ctx)
					if errors.Is(err, articlefile.ErrNoArticleFiles) {
						fmt.Fprintln(cmd.OutOrStdout(), "No article files found in data directory")
						return nil
					}
					if err != nil {
						return err
					}
					path = latest
				}

				records, err := files.Load(ctx, path)
				if err != nil {
					return err
				}

				svc, _, err := a.indexingService(ctx)
				if err != nil {
					return err
				}
				report, err := svc.Store(ctx, records)
				if err != nil {
					return err
				}
				cli.PrintStoreReport(cmd.OutOrStdout(), path, a.cfg.Index.Name, report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "article file to index (default: newest in data dir)")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		query    string
		topK     int
		minScore float64
		source   string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search indexed articles",
		Long: `Rank indexed articles against a free-text query. Without --query an
interactive prompt reads queries until quit, exit or q.

Examples:
  newsdex search --query "election results"
  newsdex search --top-k 10 --min-score 0.3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("top-k") {
					topK = a.cfg.Search.TopK
				}
				if !cmd.Flags().Changed("min-score") {
					minScore = a.cfg.Search.MinScore
				}

				svc, _, err := a.searchService(ctx)
				if err != nil {
					return err
				}
				repl := cli.NewREPL(svc, cli.SearchParams{TopK: topK, MinScore: minScore, Source: source},
					cmd.InOrStdin(), cmd.OutOrStdout(), a.logger)
				if query != "" {
					repl.Once(ctx, query)
					return nil
				}
				return repl.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "run a single query and exit")
	cmd.Flags().IntVar(&topK, "top-k", 5, "maximum number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0.15, "minimum combined score")
	cmd.Flags().StringVar(&source, "source", "", "only return articles from this source")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				svc, idx, err := a.searchService(ctx)
				if err != nil {
					return err
				}
				if _, err := a.budgetTracker(ctx); err != nil {
					return err
				}
				var reader usageuc.BudgetReader
				if a.budget != nil {
					reader = a.budget
				}
				usage := usageuc.New(reader, a.cfg.Embedding.Provider)

				server := chitr.NewServer(svc, idx, a.health, usage, a.registry, chitr.Config{
					APIKeys:         a.cfg.Auth.APIKeys,
					DefaultTopK:     a.cfg.Search.TopK,
					DefaultMinScore: a.cfg.Search.MinScore,
				}, a.logger)

				h := a.cfg.HTTP
				srv := &http.Server{
					Addr:              fmt.Sprintf(":%d", h.Port),
					Handler:           server.Handler(),
					ReadTimeout:       time.Duration(h.ReadTimeoutSec) * time.Second,
					ReadHeaderTimeout: time.Duration(h.ReadTimeoutSec) * time.Second,
					WriteTimeout:      time.Duration(h.WriteTimeoutSec) * time.Second,
				}

				a.logger.Info("Starting HTTP server",
					zap.String("addr", srv.Addr),
					zap.String("version", version.Version),
					zap.String("env", a.env),
					zap.String("index_backend", a.cfg.Index.Backend),
				)
				errCh := make(chan error, 1)
				go func() { errCh <- srv.ListenAndServe() }()

				select {
				case err := <-errCh:
					if !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("http server: %w", err)
					}
					return nil
				case <-ctx.Done():
				}

				a.logger.Info("Received shutdown signal")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(h.ShutdownSec)*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("Error during shutdown", zap.Error(err))
				}
				a.logger.Info("Server stopped gracefully")
				return nil
			})
		},
	}
}

func newConsumeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Index articles from the Kafka article stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.cfg.RequireKafka(); err != nil {
					return err
				}
				svc, _, err := a.indexingService(ctx)
				if err != nil {
					return err
				}
				k := a.cfg.Kafka
				consumer := kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:  k.Brokers,
					Topic:    k.Topic,
					GroupID:  k.GroupID,
					DLQTopic: k.DLQTopic,
				}, svc, a.retryPolicy(), a.logger)
				a.onClose(consumer.Close)

				a.logger.Info("Consumer started",
					zap.String("topic", k.Topic),
					zap.String("group", k.GroupID),
					zap.String("dlq_topic", k.DLQTopic),
				)
				return consumer.Run(ctx)
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
