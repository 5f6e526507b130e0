// Package importer loads caption records from JSON files into the store.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/store"
)

// EngagementRecord holds a caption's engagement counters in an import file.
type EngagementRecord struct {
	Likes    int32 `json:"likes"`
	Shares   int32 `json:"shares"`
	Comments int32 `json:"comments"`
}

// CaptionRecord is one caption as it appears in an import file. Engagement
// counters live in a nested engagement object; the flat likes/shares/comments
// fields are still accepted for older export files and lose to the nested
// object when both are present.
type CaptionRecord struct {
	Text       string            `json:"text"`
	Tags       []string          `json:"tags"`
	Length     string            `json:"length"`
	Category   string            `json:"category"`
	Tone       string            `json:"tone"`
	Audience   string            `json:"audience"`
	Language   string            `json:"language"`
	Engagement *EngagementRecord `json:"engagement"`
	Likes      int32             `json:"likes"`
	Shares     int32             `json:"shares"`
	Comments   int32             `json:"comments"`
}

func (r *CaptionRecord) engagement() EngagementRecord {
	if r.Engagement != nil {
		return *r.Engagement
	}
	return EngagementRecord{Likes: r.Likes, Shares: r.Shares, Comments: r.Comments}
}

// Failure describes one record that was not imported. Index is the record's
// zero-based position in the input file.
type Failure struct {
	Index  int
	Reason string
}

// Report summarizes a partial import: valid records are inserted, invalid
// ones are reported, and neither blocks the other.
type Report struct {
	Imported int
	Failures []Failure
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "imported %d caption(s)", r.Imported)
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, ", %d failed:", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "\n  record %d: %s", f.Index, f.Reason)
		}
	}
	return b.String()
}

// Importer inserts caption records into the store.
type Importer struct {
	store *store.Store
}

func NewImporter(s *store.Store) *Importer {
	return &Importer{store: s}
}

// ImportFile imports captions from a JSON file holding an array of records.
func (i *Importer) ImportFile(ctx context.Context, path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open caption file %s", path)
	}
	defer f.Close()
	return i.Import(ctx, f)
}

// Import reads a JSON array of caption records and inserts each valid one.
// Validation failures and insert failures land in the report; only unreadable
// input or cancellation fails the import as a whole.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Report, error) {
	var records []CaptionRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "failed to decode caption records")
	}

	report := &Report{}
	for idx, record := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if reason := validate(record); reason != "" {
			report.Failures = append(report.Failures, Failure{Index: idx, Reason: reason})
			continue
		}

		engagement := record.engagement()
		_, err := i.store.CreateCaption(ctx, &store.CreateCaption{
			Text:     record.Text,
			Tags:     record.Tags,
			Length:   normalizeLength(record.Length),
			Category: record.Category,
			Tone:     record.Tone,
			Audience: record.Audience,
			Language: record.Language,
			Likes:    engagement.Likes,
			Shares:   engagement.Shares,
			Comments: engagement.Comments,
		})
		if err != nil {
			slog.Error("failed to insert caption", "index", idx, "error", err)
			report.Failures = append(report.Failures, Failure{Index: idx, Reason: err.Error()})
			continue
		}
		report.Imported++
	}

	slog.Info("caption import finished", "imported", report.Imported, "failed", len(report.Failures))
	return report, nil
}

func validate(record CaptionRecord) string {
	if strings.TrimSpace(record.Text) == "" {
		return "text is required"
	}
	if record.Length != "" && !store.IsValidCaptionLength(record.Length) {
		return fmt.Sprintf("unknown length variant %q", record.Length)
	}
	return ""
}

func normalizeLength(length string) string {
	if length == "" {
		return store.CaptionLengthMedium
	}
	return length
}
