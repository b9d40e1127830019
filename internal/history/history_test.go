// Tests for the git-backed audit trail.

package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTrail(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordAndHistory", func(t *testing.T) {
		dir := t.TempDir()
		trail, err := Open(dir, "tester", "tester@localhost")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		path := filepath.Join(dir, "Forms.jsonl")
		if err := os.WriteFile(path, []byte("one\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := trail.RecordWrite(ctx, path, "upsert Forms: 1 inserted"); err != nil {
			t.Fatalf("RecordWrite failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := trail.RecordWrite(ctx, path, "upsert Forms: 1 updated"); err != nil {
			t.Fatalf("RecordWrite failed: %v", err)
		}

		entries, err := trail.History(ctx, path, 10)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Message != "upsert Forms: 1 updated" {
			t.Errorf("expected newest first, got %q", entries[0].Message)
		}

		data, err := trail.FileAt(ctx, entries[1].Hash, path)
		if err != nil {
			t.Fatalf("FileAt failed: %v", err)
		}
		if string(data) != "one\n" {
			t.Errorf("expected content at first write, got %q", data)
		}
	})

	t.Run("UnchangedFileNoCommit", func(t *testing.T) {
		dir := t.TempDir()
		trail, err := Open(dir, "tester", "tester@localhost")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		path := filepath.Join(dir, "t.jsonl")
		if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := trail.RecordWrite(ctx, path, "first"); err != nil {
			t.Fatalf("RecordWrite failed: %v", err)
		}
		// Same content again: no new commit.
		if err := trail.RecordWrite(ctx, path, "second"); err != nil {
			t.Fatalf("RecordWrite failed: %v", err)
		}
		entries, err := trail.History(ctx, path, 10)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 entry, got %d", len(entries))
		}
	})

	t.Run("EmptyRepoHasNoHistory", func(t *testing.T) {
		dir := t.TempDir()
		trail, err := Open(dir, "tester", "tester@localhost")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		entries, err := trail.History(ctx, filepath.Join(dir, "t.jsonl"), 10)
		if err != nil {
			t.Fatalf("History on an empty repository failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no entries, got %d", len(entries))
		}
	})

	t.Run("OutsideDirRejected", func(t *testing.T) {
		trail, err := Open(t.TempDir(), "tester", "tester@localhost")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := trail.RecordWrite(ctx, "/etc/passwd", "nope"); err == nil {
			t.Error("expected an error for a path outside the trail directory")
		}
	})

	t.Run("ReopenExistingRepo", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := Open(dir, "a", "a@localhost"); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if _, err := Open(dir, "b", "b@localhost"); err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
	})
}
