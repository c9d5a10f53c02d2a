// Package cli renders newsdex results for terminal users and runs the interactive search loop.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/ranking"
	"github.com/kailas-cloud/newsdex/internal/usecase/indexing"
)

var (
	wideRule   = strings.Repeat("=", 80)
	resultRule = strings.Repeat("-", 80)
	scrapeRule = strings.Repeat("-", 50)
)

// PrintResults writes ranked results, dropping repeated URLs while keeping order.
func PrintResults(w io.Writer, results []domain.QueryResult) {
	unique := ranking.Unique(results)

	fmt.Fprintf(w, "\nFound %d unique matching articles:\n", len(unique))
	fmt.Fprintln(w, wideRule)
	for i, r := range unique {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, r.Heading)
		fmt.Fprintf(w, "Relevance Score: %.3f\n", r.Score)
		fmt.Fprintf(w, "Source: %s\n", r.Source)
		fmt.Fprintf(w, "URL: %s\n", r.URL)
		fmt.Fprintf(w, "\nSummary: %s\n", r.Summary)
		fmt.Fprintln(w, resultRule)
	}
}

// PrintScrape lists the articles saved by a scrape run.
func PrintScrape(w io.Writer, location string, records []domain.ArticleRecord) {
	fmt.Fprintf(w, "\nArticles saved to %s \n\n", location)
	fmt.Fprintf(w, "Scraped %d articles:\n\n", len(records))
	for _, r := range records {
		fmt.Fprintf(w, "Heading: %s\n", r.Heading)
		fmt.Fprintf(w, "Source: %s\n", r.Source)
		fmt.Fprintf(w, "Keywords: %s\n", strings.Join(r.Keywords, ", "))
		fmt.Fprintf(w, "URL: %s\n", r.URL)
		fmt.Fprintln(w, scrapeRule+"\n")
	}
	fmt.Fprintln(w, "Scraping completed.")
}

// PrintStoreReport summarizes an indexing run.
func PrintStoreReport(w io.Writer, file, index string, rep indexing.Report) {
	fmt.Fprintf(w, "Loading articles from: %s\n\n", file)
	fmt.Fprintf(w, "Storing articles in index: %s\n", index)
	if rep.Existing >= 0 {
		fmt.Fprintf(w, "Found %d existing articles in the index\n", rep.Existing)
	}
	if rep.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d duplicate articles\n", rep.Skipped)
	}
	if rep.Stored == 0 {
		fmt.Fprintln(w, "No new articles to store")
		return
	}
	fmt.Fprintf(w, "Stored %d articles in %d batches\n", rep.Stored, rep.Batches)
	fmt.Fprintln(w, "Articles stored successfully!")
	fmt.Fprintln(w, "You can now query these articles using vector similarity search!")
}
