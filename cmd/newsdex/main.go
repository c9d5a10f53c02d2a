// Package main is the newsdex command: scrape news, index it, and search it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/newsdex/internal/config"
	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	env        string
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "newsdex",
		Short: "Scrape, index and semantically search news articles",
		Long: `newsdex scrapes the latest articles from a news site, stores them as
vectors in a similarity index and answers free-text queries with a blend of
semantic similarity and keyword matches.

Configuration is read from config/<ENV>.yaml (ENV defaults to local).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment: local, dev, docker or prod")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "explicit config file (overrides --env lookup)")

	root.AddCommand(
		newScrapeCmd(opts),
		newStoreCmd(opts),
		newSearchCmd(opts),
		newServeCmd(opts),
		newConsumeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// withApp builds the composition root, runs fn and releases everything fn opened.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(opts.env, opts.configPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	defer a.close()

	a.serveMetrics()
	if err := fn(cmd.Context(), a); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Info("Interrupted")
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// exitCode is 2 for configuration problems, 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, domain.ErrConfig) {
		return 2
	}
	return 1
}
