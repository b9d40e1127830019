// Tests for the import pipeline.

package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rowlog/rowlog/internal/record"
	"github.com/rowlog/rowlog/internal/tabular"
)

type fakeSource struct {
	pages map[string]record.PageOf[record.Document]
	fail  string
}

func (f *fakeSource) DatabasePage(_ context.Context, _, cursor string) (record.PageOf[record.Document], error) {
	if f.fail != "" && cursor == f.fail {
		return record.PageOf[record.Document]{}, errors.New("source unavailable")
	}
	return f.pages[cursor], nil
}

func doc(id, uri, status string) record.Document {
	return record.Document{
		ID: id,
		Properties: map[string]record.Property{
			"URI":    {Type: record.TypeTitle, Title: []record.TextRun{{PlainText: uri}}},
			"Status": {Type: record.TypeSelect, Select: &record.Option{Name: status}},
		},
	}
}

func newImportStore(t *testing.T) *tabular.Store {
	t.Helper()
	s, err := tabular.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestImporterRun(t *testing.T) {
	ctx := context.Background()

	t.Run("PaginatedImport", func(t *testing.T) {
		source := &fakeSource{pages: map[string]record.PageOf[record.Document]{
			"":   {Items: []record.Document{doc("d1", "u1", "open"), doc("d2", "u2", "open")}, NextCursor: "c1", HasMore: true},
			"c1": {Items: []record.Document{doc("d3", "u3", "closed")}},
		}}
		store := newImportStore(t)
		im := NewImporter(source, &record.Decoder{}, store, nil)

		stats, err := im.Run(ctx, Options{
			DatabaseID:   "db",
			Table:        "Forms",
			MatchColumns: []string{"URI"},
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if stats.Documents != 3 || stats.Upserted != 3 {
			t.Errorf("unexpected stats: %+v", stats)
		}

		tbl, err := store.Open("Forms")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if tbl.Len() != 3 {
			t.Errorf("expected 3 rows, got %d", tbl.Len())
		}
	})

	t.Run("ReimportIsIdempotent", func(t *testing.T) {
		source := &fakeSource{pages: map[string]record.PageOf[record.Document]{
			"": {Items: []record.Document{doc("d1", "u1", "open")}},
		}}
		store := newImportStore(t)
		im := NewImporter(source, &record.Decoder{}, store, nil)

		opts := Options{DatabaseID: "db", Table: "Forms", MatchColumns: []string{"URI"}}
		for range 2 {
			if _, err := im.Run(ctx, opts); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
		}
		tbl, err := store.Open("Forms")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if tbl.Len() != 1 {
			t.Errorf("expected 1 row after reimport, got %d", tbl.Len())
		}
	})

	t.Run("FetchFailureKeepsEarlierBatches", func(t *testing.T) {
		source := &fakeSource{
			pages: map[string]record.PageOf[record.Document]{
				"": {Items: []record.Document{doc("d1", "u1", "open")}, NextCursor: "c1", HasMore: true},
			},
			fail: "c1",
		}
		store := newImportStore(t)
		im := NewImporter(source, &record.Decoder{}, store, nil)

		stats, err := im.Run(ctx, Options{
			DatabaseID:   "db",
			Table:        "Forms",
			MatchColumns: []string{"URI"},
			BatchSize:    1,
		})
		if err == nil {
			t.Fatal("expected an error from the failed page fetch")
		}
		if stats.Upserted != 1 {
			t.Errorf("expected the first batch to be kept, got %+v", stats)
		}
		tbl, err := store.Open("Forms")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if tbl.Len() != 1 {
			t.Errorf("expected 1 row, got %d", tbl.Len())
		}
	})

	t.Run("RestrictedNames", func(t *testing.T) {
		source := &fakeSource{pages: map[string]record.PageOf[record.Document]{
			"": {Items: []record.Document{doc("d1", "u1", "open")}},
		}}
		store := newImportStore(t)
		im := NewImporter(source, &record.Decoder{}, store, nil)

		if _, err := im.Run(ctx, Options{
			DatabaseID:   "db",
			Table:        "Forms",
			MatchColumns: []string{"URI"},
			Names:        []string{"URI"},
		}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		tbl, err := store.Open("Forms")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		headers := tbl.Headers()
		if len(headers) != 1 || headers[0] != "URI" {
			t.Errorf("expected only the requested property as header, got %v", headers)
		}
	})

	t.Run("MissingArguments", func(t *testing.T) {
		im := NewImporter(&fakeSource{}, &record.Decoder{}, newImportStore(t), nil)
		if _, err := im.Run(ctx, Options{Table: "t"}); err == nil {
			t.Error("expected an error without match columns")
		}
		if _, err := im.Run(ctx, Options{MatchColumns: []string{"x"}}); err == nil {
			t.Error("expected an error without a table")
		}
	})
}
