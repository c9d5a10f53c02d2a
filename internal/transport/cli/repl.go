package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	searchuc "github.com/kailas-cloud/newsdex/internal/usecase/search"
)

// Prompt is shown before every interactive query.
const Prompt = "\nEnter your search query (or 'quit' to exit): "

// Searcher ranks articles for a query.
type Searcher interface {
	SearchWithOptions(
		ctx context.Context, q string, topK int, minScore float64, opts searchuc.Options,
	) ([]domain.QueryResult, error)
}

// SearchParams are fixed for the whole session.
type SearchParams struct {
	TopK     int
	MinScore float64
	Source   string
}

// REPL reads queries line by line until quit, exit, q or end of input.
type REPL struct {
	search Searcher
	params SearchParams
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

// NewREPL creates an interactive search loop.
func NewREPL(search Searcher, params SearchParams, in io.Reader, out io.Writer, logger *zap.Logger) *REPL {
	return &REPL{search: search, params: params, in: in, out: out, logger: logger}
}

// Run loops until the user quits, input ends or ctx is canceled.
// Search failures are reported and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	// On cancel this goroutine stays blocked in Scan until stdin yields; the process exits right after.
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprint(r.out, Prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read query: %w", err)
					}
				default:
				}
				return nil
			}
			line = l
		}

		q := strings.TrimSpace(line)
		switch strings.ToLower(q) {
		case "quit", "exit", "q":
			return nil
		case "":
			fmt.Fprintln(r.out, "Please enter a search query")
			continue
		}

		r.Once(ctx, q)
	}
}

// Once runs one query and prints its results or the error.
func (r *REPL) Once(ctx context.Context, q string) {
	results, err := r.search.SearchWithOptions(ctx, q, r.params.TopK, r.params.MinScore,
		searchuc.Options{Source: r.params.Source})
	if err != nil {
		r.logger.Warn("Search failed", zap.String("query", q), zap.Error(err))
		fmt.Fprintf(r.out, "Error during search: %v\n", err)
		return
	}
	PrintResults(r.out, results)
}
