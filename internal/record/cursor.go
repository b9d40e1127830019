// Generic cursor-driven pagination over an injected page fetch.

package record

import (
	"context"
	"log/slog"
)

// PageOf is one page of a cursor-paginated sequence.
type PageOf[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// PageFetcher fetches the page at cursor. An empty cursor means the first
// page.
type PageFetcher[T any] func(ctx context.Context, cursor string) (PageOf[T], error)

// CollectPages accumulates items from start until the sequence reports no
// more pages or a fetch fails. On failure the items accumulated so far are
// returned together with the cursor of the failed page, so a caller may
// persist it and resume later; resume is empty after a complete run.
//
// Fetches are sequential and blocking; any deadline is the fetcher's
// concern.
func CollectPages[T any](ctx context.Context, start string, fetch PageFetcher[T]) (items []T, resume string) {
	cursor := start
	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			slog.WarnContext(ctx, "Page fetch failed, returning partial result", "cursor", cursor, "items", len(items), "err", err)
			return items, cursor
		}
		items = append(items, page.Items...)
		if !page.HasMore || page.NextCursor == "" {
			return items, ""
		}
		cursor = page.NextCursor
	}
}

// RelationResolver fetches one page of relation targets for a property of a
// record.
type RelationResolver interface {
	RelationPage(ctx context.Context, recordID, propertyID, cursor string) (PageOf[string], error)
}

// ResolveRelation accumulates all target ids of a relation property through
// the configured resolver. A failed page fetch logs and stops, returning
// whatever was accumulated; it never returns an error.
func (d *Decoder) ResolveRelation(ctx context.Context, recordID, propertyID string) []string {
	ids, _ := CollectPages(ctx, "", func(ctx context.Context, cursor string) (PageOf[string], error) {
		return d.Relations.RelationPage(ctx, recordID, propertyID, cursor)
	})
	if ids == nil {
		ids = []string{}
	}
	return ids
}
