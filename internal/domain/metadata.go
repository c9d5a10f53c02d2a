package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Character ceilings for stored metadata. Counted in runes, never in bytes.
const (
	MaxURLChars      = 500
	MaxHeadingChars  = 200
	MaxSummaryChars  = 1000
	MaxKeywordsChars = 500
	MaxSourceChars   = 100
	MaxPreviewChars  = 2000

	// MaxMetadataBytes is the per-record metadata ceiling of the vector index.
	MaxMetadataBytes = 40 * 1024
)

// Metadata field names used by every index backend.
const (
	FieldURL            = "url"
	FieldHeading        = "heading"
	FieldSummary        = "summary"
	FieldKeywords       = "keywords"
	FieldSource         = "source"
	FieldContentPreview = "content_preview"
	FieldScrapedAt      = "scraped_at"
)

// MetadataFields lists the metadata field names in storage order.
var MetadataFields = []string{
	FieldURL, FieldHeading, FieldSummary, FieldKeywords,
	FieldSource, FieldContentPreview, FieldScrapedAt,
}

// NoSummary is shown for results whose metadata lacks a summary.
const NoSummary = "No summary available"

// ArticleMetadata is the truncated article subset stored next to each vector.
type ArticleMetadata struct {
	URL            string
	Heading        string
	Summary        string
	Keywords       string
	Source         string
	ContentPreview string
	ScrapedAt      string
}

// NewArticleMetadata builds truncated metadata for an article and its summary.
func NewArticleMetadata(a ArticleRecord, summary string) ArticleMetadata {
	var scrapedAt string
	if !a.ScrapedAt.IsZero() {
		scrapedAt = a.ScrapedAt.UTC().Format(time.RFC3339)
	}
	return ArticleMetadata{
		URL:            Truncate(a.URL, MaxURLChars),
		Heading:        Truncate(a.Heading, MaxHeadingChars),
		Summary:        Truncate(summary, MaxSummaryChars),
		Keywords:       Truncate(strings.Join(a.Keywords, ", "), MaxKeywordsChars),
		Source:         Truncate(a.Source, MaxSourceChars),
		ContentPreview: Truncate(a.FirstParagraph(), MaxPreviewChars),
		ScrapedAt:      scrapedAt,
	}
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// Size returns the encoded byte size of all metadata values.
func (m ArticleMetadata) Size() int {
	size := 0
	for k, v := range m.Fields() {
		size += len(k) + len(v)
	}
	return size
}

// Validate enforces the per-record metadata ceiling.
func (m ArticleMetadata) Validate() error {
	if size := m.Size(); size > MaxMetadataBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMetadataTooLarge, size, MaxMetadataBytes)
	}
	return nil
}

// Fields flattens metadata into the string map every backend stores.
func (m ArticleMetadata) Fields() map[string]string {
	return map[string]string{
		FieldURL:            m.URL,
		FieldHeading:        m.Heading,
		FieldSummary:        m.Summary,
		FieldKeywords:       m.Keywords,
		FieldSource:         m.Source,
		FieldContentPreview: m.ContentPreview,
		FieldScrapedAt:      m.ScrapedAt,
	}
}

// MetadataFromFields is the inverse of Fields. Unknown keys are ignored.
func MetadataFromFields(fields map[string]string) ArticleMetadata {
	return ArticleMetadata{
		URL:            fields[FieldURL],
		Heading:        fields[FieldHeading],
		Summary:        fields[FieldSummary],
		Keywords:       fields[FieldKeywords],
		Source:         fields[FieldSource],
		ContentPreview: fields[FieldContentPreview],
		ScrapedAt:      fields[FieldScrapedAt],
	}
}
