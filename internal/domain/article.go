package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the scrape timestamp format used in article files and file names.
const TimestampLayout = "20060102_150405"

// ParagraphSeparator separates paragraphs inside ArticleRecord.Content.
const ParagraphSeparator = "\n\n"

const (
	// LeadParagraphs is how many opening paragraphs feed embeddings and summaries.
	LeadParagraphs = 3
	// MaxSummaryInputWords caps the text handed to the summarizer.
	MaxSummaryInputWords = 1000
)

// ArticleRecord is a single scraped news article. URL is the unique key.
type ArticleRecord struct {
	URL       string
	Heading   string
	Content   string
	Keywords  []string
	Source    string
	ScrapedAt time.Time
}

// ArticleID derives the vector ID from the full article URL.
// Name-based UUID (SHA-1, URL namespace): 128 bits, identical across runs and processes.
func ArticleID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// ID returns the deterministic vector ID for the article.
func (a ArticleRecord) ID() string {
	return ArticleID(a.URL)
}

// Validate checks the fields the indexing pipeline depends on.
func (a ArticleRecord) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("article url is required")
	}
	return nil
}

// Paragraphs splits Content into non-empty paragraphs.
func (a ArticleRecord) Paragraphs() []string {
	raw := strings.Split(a.Content, ParagraphSeparator)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FirstParagraph returns the opening paragraph or "" for empty content.
func (a ArticleRecord) FirstParagraph() string {
	if ps := a.Paragraphs(); len(ps) > 0 {
		return ps[0]
	}
	return ""
}

// Lead returns up to LeadParagraphs opening paragraphs joined by a space.
func (a ArticleRecord) Lead() string {
	ps := a.Paragraphs()
	if len(ps) > LeadParagraphs {
		ps = ps[:LeadParagraphs]
	}
	return strings.Join(ps, " ")
}

// EmbeddingText is the text vectorized for the article: heading plus lead.
func (a ArticleRecord) EmbeddingText() string {
	lead := a.Lead()
	if lead == "" {
		return a.Heading
	}
	return a.Heading + " " + lead
}

// SummaryInput is the lead capped at MaxSummaryInputWords words.
func (a ArticleRecord) SummaryInput() string {
	words := strings.Fields(a.Lead())
	if len(words) > MaxSummaryInputWords {
		words = words[:MaxSummaryInputWords]
	}
	return strings.Join(words, " ")
}

// articleJSON is the persisted shape shared by article files and the article stream.
type articleJSON struct {
	URL       string   `json:"url"`
	Heading   string   `json:"heading"`
	Content   string   `json:"content"`
	Keywords  []string `json:"keywords"`
	Source    string   `json:"source"`
	Timestamp string   `json:"timestamp"`
}

// MarshalJSON encodes the record with a TimestampLayout timestamp, leaving HTML unescaped.
func (a ArticleRecord) MarshalJSON() ([]byte, error) {
	keywords := a.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	var ts string
	if !a.ScrapedAt.IsZero() {
		ts = a.ScrapedAt.Format(TimestampLayout)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(articleJSON{
		URL:       a.URL,
		Heading:   a.Heading,
		Content:   a.Content,
		Keywords:  keywords,
		Source:    a.Source,
		Timestamp: ts,
	}); err != nil {
		return nil, fmt.Errorf("encode article: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes the persisted shape. RFC 3339 timestamps are accepted as well.
func (a *ArticleRecord) UnmarshalJSON(data []byte) error {
	var raw articleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode article: %w", err)
	}

	var scrapedAt time.Time
	if raw.Timestamp != "" {
		t, err := time.ParseInLocation(TimestampLayout, raw.Timestamp, time.Local)
		if err != nil {
			t, err = time.Parse(time.RFC3339, raw.Timestamp)
			if err != nil {
				return fmt.Errorf("decode article timestamp %q: %w", raw.Timestamp, err)
			}
		}
		scrapedAt = t
	}

	*a = ArticleRecord{
		URL:       raw.URL,
		Heading:   raw.Heading,
		Content:   raw.Content,
		Keywords:  raw.Keywords,
		Source:    raw.Source,
		ScrapedAt: scrapedAt,
	}
	return nil
}
