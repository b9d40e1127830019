// Package history keeps a git-backed audit trail of table files.
//
// Every durable table write can be committed to a repository rooted at the
// data directory, giving the audit log itself an inspectable history: who
// wrote what, when, and the exact table content at any commit. Uses go-git,
// so no git binary is required.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Entry is one recorded write.
type Entry struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Trail records table writes as commits in a repository rooted at the data
// directory. It implements tabular.Recorder.
type Trail struct {
	dir   string
	name  string
	email string
	repo  *gogit.Repository
	mu    sync.Mutex
}

// Open opens the trail repository at dir, initializing it on first use.
func Open(dir, name, email string) (*Trail, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trail directory: %w", err)
	}

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize trail repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read repo config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write repo config: %w", err)
		}
	}

	return &Trail{dir: dir, name: name, email: email, repo: repo}, nil
}

// RecordWrite stages the written file and commits it with the given message.
// A write that left the file unchanged produces no commit.
func (t *Trail) RecordWrite(ctx context.Context, path, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rel, err := filepath.Rel(t.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %s is outside the trail directory", path)
	}

	// Detach from the caller's context but keep a bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	_ = ctx // go-git does not take a context for local operations.

	w, err := t.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(rel); err != nil {
		return fmt.Errorf("failed to stage %s: %w", rel, err)
	}

	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	now := time.Now()
	sig := &object.Signature{Name: t.name, Email: t.email, When: now}
	if _, err := w.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// History returns the recorded writes touching path, newest first, limited
// to n entries. n is capped at 1000 and defaults to 1000 when <= 0.
func (t *Trail) History(_ context.Context, path string, n int) ([]Entry, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}

	opts := &gogit.LogOptions{}
	if path != "" && path != "." {
		rel, err := filepath.Rel(t.dir, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
		opts.FileName = &path
	}

	iter, err := t.repo.Log(opts)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Empty repository, nothing recorded yet.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		entries = append(entries, Entry{
			Hash:    c.Hash.String(),
			Message: subject,
			When:    c.Author.When,
		})
	}
	return entries, nil
}

// FileAt retrieves the content of a table file as of a recorded write.
func (t *Trail) FileAt(_ context.Context, hash, path string) ([]byte, error) {
	h := plumbing.NewHash(hash)
	if hash == "HEAD" {
		ref, err := t.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		h = ref.Hash()
	}

	c, err := t.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	rel, err := filepath.Rel(t.dir, path)
	if err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	f, err := c.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}
	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}
