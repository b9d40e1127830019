// Package ingest orchestrates fetch, decode and upsert for a paginated
// external source database.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rowlog/rowlog/internal/record"
	"github.com/rowlog/rowlog/internal/tabular"
)

// Source fetches pages of documents from an external database.
type Source interface {
	DatabasePage(ctx context.Context, databaseID, cursor string) (record.PageOf[record.Document], error)
}

// Options configures a single import run.
type Options struct {
	// DatabaseID is the external source database to read.
	DatabaseID string
	// Table is the destination table name.
	Table string
	// MatchColumns key the upsert. Required.
	MatchColumns []string
	// Position places newly inserted rows. Defaults to bottom.
	Position tabular.Position
	// Names restricts decoding to these property names. Empty decodes all.
	Names []string
	// BatchSize is the number of records upserted per batch. Defaults to 50.
	BatchSize int
}

// Stats summarizes an import run.
type Stats struct {
	Documents int           `json:"documents"`
	Upserted  int           `json:"upserted"`
	Duration  time.Duration `json:"duration"`
}

// ProgressReporter receives progress callbacks during an import.
type ProgressReporter interface {
	OnBatch(done int, table string)
	OnComplete(stats Stats)
}

// NullProgress discards all progress callbacks.
type NullProgress struct{}

// OnBatch implements [ProgressReporter].
func (NullProgress) OnBatch(int, string) {}

// OnComplete implements [ProgressReporter].
func (NullProgress) OnComplete(Stats) {}

// Importer pulls documents from a source and upserts their decoded records
// into the store.
type Importer struct {
	source   Source
	decoder  *record.Decoder
	store    *tabular.Store
	progress ProgressReporter
}

// NewImporter creates an importer. progress may be nil.
func NewImporter(source Source, decoder *record.Decoder, store *tabular.Store, progress ProgressReporter) *Importer {
	if progress == nil {
		progress = NullProgress{}
	}
	return &Importer{source: source, decoder: decoder, store: store, progress: progress}
}

// Run imports the configured source database into the destination table.
// Documents are fetched page by page, decoded, and upserted in batches. A
// fetch failure stops the run with the batches upserted so far kept in
// place.
func (im *Importer) Run(ctx context.Context, opts Options) (*Stats, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("destination table is required")
	}
	if len(opts.MatchColumns) == 0 {
		return nil, fmt.Errorf("at least one match column is required")
	}
	position := opts.Position
	if position == "" {
		position = tabular.PositionBottom
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	start := time.Now()
	stats := &Stats{}
	var batch []tabular.Record

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		merged, err := im.store.UpsertInto(ctx, opts.Table, batch, opts.MatchColumns, position)
		stats.Upserted += len(merged)
		if err != nil {
			return fmt.Errorf("failed to upsert batch into %s: %w", opts.Table, err)
		}
		batch = batch[:0]
		im.progress.OnBatch(stats.Upserted, opts.Table)
		return nil
	}

	cursor := ""
	for {
		page, err := im.source.DatabasePage(ctx, opts.DatabaseID, cursor)
		if err != nil {
			// Batches already upserted stay in place.
			_ = flush()
			return stats, fmt.Errorf("failed to fetch page of database %s: %w", opts.DatabaseID, err)
		}
		for i := range page.Items {
			doc := &page.Items[i]
			var rec tabular.Record
			if len(opts.Names) > 0 {
				rec = im.decoder.Decode(doc, opts.Names)
			} else {
				rec = im.decoder.DecodeAll(ctx, doc)
			}
			batch = append(batch, rec)
			stats.Documents++
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if err := flush(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	slog.InfoContext(ctx, "Import complete", "database", opts.DatabaseID, "table", opts.Table,
		"documents", stats.Documents, "upserted", stats.Upserted, "duration", stats.Duration.Round(time.Millisecond))
	im.progress.OnComplete(*stats)
	return stats, nil
}
