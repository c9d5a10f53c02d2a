package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestArticleID_DeterministicAndDistinct(t *testing.T) {
	a := ArticleID("https://www.bbc.com/news/articles/c1")
	b := ArticleID("https://www.bbc.com/news/articles/c1")
	c := ArticleID("https://www.bbc.com/news/articles/c2")

	if a != b {
		t.Errorf("same url produced different ids: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different urls share id %s", a)
	}
	if len(a) != 36 {
		t.Errorf("expected canonical uuid form, got %q", a)
	}
}

func TestArticleRecord_Paragraphs(t *testing.T) {
	a := ArticleRecord{Content: "first\n\n  \n\nsecond\n\nthird\n\nfourth"}

	ps := a.Paragraphs()
	if len(ps) != 4 {
		t.Fatalf("expected 4 paragraphs, got %d: %q", len(ps), ps)
	}
	if a.FirstParagraph() != "first" {
		t.Errorf("unexpected first paragraph %q", a.FirstParagraph())
	}
	if a.Lead() != "first second third" {
		t.Errorf("unexpected lead %q", a.Lead())
	}
}

func TestArticleRecord_EmbeddingText(t *testing.T) {
	a := ArticleRecord{Heading: "Vote count", Content: "one\n\ntwo"}
	if got := a.EmbeddingText(); got != "Vote count one two" {
		t.Errorf("unexpected embedding text %q", got)
	}

	empty := ArticleRecord{Heading: "Only heading"}
	if got := empty.EmbeddingText(); got != "Only heading" {
		t.Errorf("unexpected embedding text %q", got)
	}
}

func TestArticleRecord_SummaryInputCapsWords(t *testing.T) {
	words := strings.Repeat("w ", 1500)
	a := ArticleRecord{Content: words}
	if n := len(strings.Fields(a.SummaryInput())); n != MaxSummaryInputWords {
		t.Errorf("expected %d words, got %d", MaxSummaryInputWords, n)
	}
}

func TestArticleRecord_JSONShape(t *testing.T) {
	a := ArticleRecord{
		URL:       "https://www.bbc.com/news/articles/x",
		Heading:   "Q&A <live>",
		Content:   "Café opens",
		Source:    DefaultSource,
		ScrapedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local),
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		`"timestamp":"20260304_050607"`,
		`"keywords":[]`,
		`"heading":"Q&A <live>"`,
		`Café`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}

	var back ArticleRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.ScrapedAt.Equal(a.ScrapedAt) {
		t.Errorf("timestamp changed: %v vs %v", back.ScrapedAt, a.ScrapedAt)
	}
	if back.Heading != a.Heading || back.URL != a.URL {
		t.Errorf("fields changed: %+v", back)
	}
}

func TestArticleRecord_UnmarshalRejectsBadTimestamp(t *testing.T) {
	var a ArticleRecord
	if err := json.Unmarshal([]byte(`{"url":"u","timestamp":"yesterday"}`), &a); err == nil {
		t.Fatal("expected error")
	}
}

func TestArticleRecord_Validate(t *testing.T) {
	if err := (ArticleRecord{}).Validate(); err == nil {
		t.Error("expected error for empty url")
	}
	if err := (ArticleRecord{URL: "https://x"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
