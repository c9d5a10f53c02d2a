package indexing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/retry"
)

// --- Mocks ---

type mockIndex struct {
	batches  [][]domain.IndexedVector
	failAt   int // 1-based batch number that fails, 0 never
	statsErr error
	existing int
}

func (m *mockIndex) Upsert(_ context.Context, vectors []domain.IndexedVector) error {
	if m.failAt > 0 && len(m.batches)+1 == m.failAt {
		return errors.New("index unavailable")
	}
	m.batches = append(m.batches, vectors)
	return nil
}

func (m *mockIndex) Stats(_ context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{TotalCount: m.existing}, m.statsErr
}

func (m *mockIndex) stored() []domain.IndexedVector {
	var out []domain.IndexedVector
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

type mockEmbedder struct {
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	m.texts = append(m.texts, text)
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1, 0}}, nil
}

type mockSummarizer struct {
	err    error
	inputs []string
}

func (m *mockSummarizer) Summarize(_ context.Context, text string) (string, error) {
	m.inputs = append(m.inputs, text)
	if m.err != nil {
		return "", m.err
	}
	return "short summary", nil
}

func article(url, heading string, paragraphs ...string) domain.ArticleRecord {
	return domain.ArticleRecord{
		URL:       url,
		Heading:   heading,
		Content:   strings.Join(paragraphs, domain.ParagraphSeparator),
		Keywords:  []string{"news"},
		Source:    "BBC News",
		ScrapedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestService(idx *mockIndex, emb *mockEmbedder, sum Summarizer, batchSize int) *Service {
	return New(idx, emb, sum, batchSize, retry.None, zap.NewNop())
}

// --- Tests ---

func TestStore_DedupesByURL(t *testing.T) {
	idx := &mockIndex{existing: 4}
	svc := newTestService(idx, &mockEmbedder{}, nil, 0)

	records := []domain.ArticleRecord{
		article("https://bbc.com/news/articles/1", "First", "p1"),
		article("https://bbc.com/news/articles/1", "First again", "p1 changed"),
		article("https://bbc.com/news/articles/2", "Second", "p2"),
	}
	report, err := svc.Store(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Report{Received: 3, Stored: 2, Skipped: 1, Batches: 1, Existing: 4}
	if report != want {
		t.Errorf("got %+v, want %+v", report, want)
	}
	stored := idx.stored()
	if stored[0].Metadata.Heading != "First" {
		t.Errorf("expected first occurrence to win, got %q", stored[0].Metadata.Heading)
	}
	if stored[0].ID != domain.ArticleID("https://bbc.com/news/articles/1") {
		t.Errorf("unexpected id %q", stored[0].ID)
	}
}

func TestStore_Batches(t *testing.T) {
	idx := &mockIndex{}
	svc := newTestService(idx, &mockEmbedder{}, nil, 2)

	var records []domain.ArticleRecord
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		records = append(records, article("https://x/"+u, u, "body"))
	}
	report, err := svc.Store(context.Background(), records)
	if err != nil {
		t.Fatal(err)
	}
	if report.Batches != 3 || report.Stored != 5 {
		t.Errorf("unexpected report %+v", report)
	}
	if len(idx.batches[0]) != 2 || len(idx.batches[2]) != 1 {
		t.Errorf("unexpected batch sizes")
	}
}

func TestStore_FailedBatchAbortsRest(t *testing.T) {
	idx := &mockIndex{failAt: 2}
	svc := newTestService(idx, &mockEmbedder{}, nil, 2)

	var records []domain.ArticleRecord
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		records = append(records, article("https://x/"+u, u, "body"))
	}
	report, err := svc.Store(context.Background(), records)
	if !errors.Is(err, domain.ErrIndex) {
		t.Fatalf("expected ErrIndex, got %v", err)
	}
	if report.Stored != 2 || report.Batches != 1 {
		t.Errorf("expected first batch kept, got %+v", report)
	}
	if len(idx.batches) != 1 {
		t.Errorf("expected no batches after the failure, got %d", len(idx.batches))
	}
}

func TestStore_EmbeddingFailureWritesNothing(t *testing.T) {
	idx := &mockIndex{}
	svc := newTestService(idx, &mockEmbedder{err: errors.New("quota")}, nil, 0)

	_, err := svc.Store(context.Background(), []domain.ArticleRecord{article("https://x/a", "A", "p")})
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if len(idx.batches) != 0 {
		t.Error("nothing may be upserted after an embedding failure")
	}
}

func TestStore_EmbeddingText(t *testing.T) {
	emb := &mockEmbedder{}
	svc := newTestService(&mockIndex{}, emb, nil, 0)

	rec := article("https://x/a", "Heading", "one", "two", "three", "four")
	if _, err := svc.Store(context.Background(), []domain.ArticleRecord{rec}); err != nil {
		t.Fatal(err)
	}
	if emb.texts[0] != "Heading one two three" {
		t.Errorf("unexpected embedding text %q", emb.texts[0])
	}
}

func TestStore_Summaries(t *testing.T) {
	rec := article("https://x/a", "Heading", "Lead paragraph.", "Second.")

	t.Run("summarizer output", func(t *testing.T) {
		idx := &mockIndex{}
		sum := &mockSummarizer{}
		svc := newTestService(idx, &mockEmbedder{}, sum, 0)
		if _, err := svc.Store(context.Background(), []domain.ArticleRecord{rec}); err != nil {
			t.Fatal(err)
		}
		if got := idx.stored()[0].Metadata.Summary; got != "short summary" {
			t.Errorf("got %q", got)
		}
		if sum.inputs[0] != "Lead paragraph. Second." {
			t.Errorf("unexpected summarizer input %q", sum.inputs[0])
		}
	})

	t.Run("summarizer failure falls back", func(t *testing.T) {
		idx := &mockIndex{}
		svc := newTestService(idx, &mockEmbedder{}, &mockSummarizer{err: errors.New("rate limited")}, 0)
		if _, err := svc.Store(context.Background(), []domain.ArticleRecord{rec}); err != nil {
			t.Fatalf("summarizer failure must not abort: %v", err)
		}
		if got := idx.stored()[0].Metadata.Summary; got != "Lead paragraph." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("no summarizer", func(t *testing.T) {
		idx := &mockIndex{}
		svc := newTestService(idx, &mockEmbedder{}, nil, 0)
		if _, err := svc.Store(context.Background(), []domain.ArticleRecord{rec}); err != nil {
			t.Fatal(err)
		}
		if got := idx.stored()[0].Metadata.Summary; got != "Lead paragraph." {
			t.Errorf("got %q", got)
		}
	})
}

func TestStore_MetadataCeilings(t *testing.T) {
	idx := &mockIndex{}
	svc := newTestService(idx, &mockEmbedder{}, nil, 0)

	long := strings.Repeat("é", 5000)
	rec := article("https://x/"+long, long, long)
	rec.Source = long
	rec.Keywords = []string{long, long}

	if _, err := svc.Store(context.Background(), []domain.ArticleRecord{rec}); err != nil {
		t.Fatal(err)
	}
	md := idx.stored()[0].Metadata
	checks := map[string]struct {
		val   string
		limit int
	}{
		"url":     {md.URL, domain.MaxURLChars},
		"heading": {md.Heading, domain.MaxHeadingChars},
		"summary": {md.Summary, domain.MaxSummaryChars},
		"keyword": {md.Keywords, domain.MaxKeywordsChars},
		"source":  {md.Source, domain.MaxSourceChars},
		"preview": {md.ContentPreview, domain.MaxPreviewChars},
	}
	for name, c := range checks {
		if n := len([]rune(c.val)); n > c.limit {
			t.Errorf("%s: %d runes exceeds %d", name, n, c.limit)
		}
	}
	if md.Size() > domain.MaxMetadataBytes {
		t.Errorf("metadata %d bytes exceeds ceiling", md.Size())
	}
}

func TestStore_StatsFailureIsWarning(t *testing.T) {
	idx := &mockIndex{statsErr: errors.New("index missing")}
	svc := newTestService(idx, &mockEmbedder{}, nil, 0)

	report, err := svc.Store(context.Background(), []domain.ArticleRecord{article("https://x/a", "A", "p")})
	if err != nil {
		t.Fatal(err)
	}
	if report.Existing != -1 || report.Stored != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestStore_SkipsRecordsWithoutURL(t *testing.T) {
	idx := &mockIndex{}
	svc := newTestService(idx, &mockEmbedder{}, nil, 0)

	report, err := svc.Store(context.Background(), []domain.ArticleRecord{
		article("", "No url", "p"),
		article("https://x/a", "A", "p"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 1 || report.Skipped != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestStore_Empty(t *testing.T) {
	idx := &mockIndex{}
	svc := newTestService(idx, &mockEmbedder{}, nil, 0)

	report, err := svc.Store(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Stored != 0 || report.Batches != 0 || len(idx.batches) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}
