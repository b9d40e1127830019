// Resolves named tables on disk with write-once schemas.

package tabular

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Recorder receives a notification after a table file has been durably
// written. The history package implements it to commit an audit trail.
type Recorder interface {
	RecordWrite(ctx context.Context, path, message string) error
}

// Store resolves tables by name under a data directory, creating them lazily
// on first write.
//
// The schema is write-once per table name: EnsureTable only sets headers for
// a new table. An existing table's on-disk schema is always authoritative,
// even if the caller passes different headers.
type Store struct {
	dir      string
	recorder Recorder

	mu     sync.Mutex
	tables map[string]*Table
}

// NewStore creates a store rooted at dir, creating the directory if needed.
// recorder may be nil to disable write recording.
func NewStore(dir string, recorder Recorder) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &Store{
		dir:      dir,
		recorder: recorder,
		tables:   make(map[string]*Table),
	}, nil
}

// EnsureTable resolves the named table, creating it with the given headers
// if absent. If the table already exists, the headers argument is ignored
// and the returned table is bound to the on-disk schema.
func (s *Store) EnsureTable(name string, headers []string) (*Table, error) {
	return s.EnsureTableColumns(name, textColumns(headers))
}

// EnsureTableColumns is EnsureTable with full column descriptors, typically
// derived via [ColumnsFromType].
func (s *Store) EnsureTableColumns(name string, columns []Column) (*Table, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[name]; ok {
		return t, nil
	}

	t := &Table{name: name, path: tablePath(s.dir, name)}
	if _, err := os.Stat(t.path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat table file %s: %w", t.path, err)
		}
		if len(columns) == 0 {
			return nil, schemaErrorf(name, "cannot create table without headers")
		}
		if err := t.create(columns); err != nil {
			return nil, err
		}
		slog.Info("Created table", "table", name, "columns", len(columns))
	} else if err := t.load(); err != nil {
		return nil, err
	}

	s.tables[name] = t
	return t, nil
}

// Open resolves an existing table without creating it.
func (s *Store) Open(name string) (*Table, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	t := &Table{name: name, path: tablePath(s.dir, name)}
	if err := t.load(); err != nil {
		return nil, err
	}
	s.tables[name] = t
	return t, nil
}

// recordWrite notifies the recorder of a committed table write. Recording is
// best-effort: the table file is already durable, so a recorder failure is
// logged and swallowed.
func (s *Store) recordWrite(ctx context.Context, t *Table, message string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordWrite(ctx, t.path, message); err != nil {
		slog.WarnContext(ctx, "Failed to record table write", "table", t.name, "err", err)
	}
}

// validateTableName rejects names that would escape the data directory or
// collide with file system semantics.
func validateTableName(name string) error {
	if name == "" {
		return &ValidationError{Reason: "table name is required"}
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return &ValidationError{Reason: fmt.Sprintf("invalid table name %q", name)}
	}
	return nil
}
