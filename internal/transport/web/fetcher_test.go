package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const articlePage = `<!doctype html>
<html><head><title>t</title><script>var x = "<p>no</p>";</script></head>
<body>
<nav><p>Navigation text</p></nav>
<h1> Election results announced </h1>
<article>
  <p>The election results were announced on Sunday.</p>
  <p>   </p>
  <p>Voters turned out in record numbers for the election.</p>
  <div><p>Results <b>show</b> a narrow margin.</p></div>
</article>
<footer><p>Footer</p></footer>
</body></html>`

const listingPage = `<html><body>
<a href="/news/articles/abc">one</a>
<a href="/sport/football">sport</a>
<a href="https://www.bbc.com/news/articles/def#comments">two</a>
<a>no href</a>
</body></html>`

func newTestFetcher() *Fetcher {
	f := NewFetcher(Config{UserAgent: "newsdex-test", Source: "Test News"}, zap.NewNop())
	f.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFetchArticle(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	rec, err := newTestFetcher().FetchArticle(context.Background(), srv.URL+"/news/articles/abc")
	require.NoError(t, err)

	assert.Equal(t, "newsdex-test", gotUA)
	assert.Equal(t, srv.URL+"/news/articles/abc", rec.URL)
	assert.Equal(t, "Election results announced", rec.Heading)
	assert.Equal(t, "Test News", rec.Source)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), rec.ScrapedAt)
	assert.Equal(t, []string{
		"The election results were announced on Sunday.",
		"Voters turned out in record numbers for the election.",
		"Results show a narrow margin.",
	}, rec.Paragraphs())
	assert.NotContains(t, rec.Content, "Navigation")
	require.NotEmpty(t, rec.Keywords)
	assert.Equal(t, "election", rec.Keywords[0])
}

func TestParseArticle_Fallbacks(t *testing.T) {
	tests := []struct {
		name        string
		page        string
		wantHeading string
		wantContent string
	}{
		{
			name:        "main container",
			page:        `<h1>H</h1><p>outside</p><main><p>inside</p></main>`,
			wantHeading: "H",
			wantContent: "inside",
		},
		{
			name:        "no container uses whole document",
			page:        `<p>first</p><div><p>second</p></div>`,
			wantHeading: NoHeading,
			wantContent: "first\n\nsecond",
		},
		{
			name:        "article wins over main",
			page:        `<main><p>main</p></main><article><p>article</p></article>`,
			wantHeading: NoHeading,
			wantContent: "article",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root, err := parseHTML(strings.NewReader(tc.page))
			require.NoError(t, err)
			rec := parseArticle(root)
			assert.Equal(t, tc.wantHeading, rec.Heading)
			assert.Equal(t, tc.wantContent, rec.Content)
		})
	}
}

func TestFetchLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	hrefs, err := newTestFetcher().FetchLinks(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/news/articles/abc",
		"/sport/football",
		"https://www.bbc.com/news/articles/def#comments",
	}, hrefs)
}

func TestFetch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.FetchArticle(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, domain.ErrFetch), "got %v", err)
	assert.False(t, domain.IsFatal(err))

	_, err = f.FetchLinks(context.Background(), "http://127.0.0.1:1/unreachable")
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(Config{RequestsPerSecond: 0.001}, zap.NewNop())
	f.limiter.Allow() // drain the single token so Wait must block

	_, err := f.FetchArticle(ctx, "http://example.invalid")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
