// Package history commits the file storage directory to a local git
// repository after every content change, giving an audit trail and a way to
// recover earlier versions with plain git.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/events"
)

const gitignore = "*.tmp\n"

// Commit is one entry of the history.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Recorder commits a directory.
type Recorder struct {
	dir   string
	name  string
	email string
	now   func() time.Time

	mu   sync.Mutex
	repo *gogit.Repository
}

// Open opens or initializes the repository in dir.
func Open(dir, name, email string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		repo, err = gogit.PlainInit(dir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	ignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(ignore, []byte(gitignore), 0o644); err != nil {
			return nil, err
		}
	}
	return &Recorder{dir: dir, name: name, email: email, now: time.Now, repo: repo}, nil
}

// Commit stages every change in the directory and commits it with msg. It
// reports false when there was nothing to commit.
func (r *Recorder) Commit(ctx context.Context, msg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := w.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return false, fmt.Errorf("failed to stage files: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return false, nil
	}
	sig := &object.Signature{Name: r.name, Email: r.email, When: r.now()}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// Log returns up to n commits, newest first.
func (r *Recorder) Log(n int) ([]Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iter, err := r.repo.Log(&gogit.LogOptions{})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Commit
	for len(out) < n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Commit{Hash: c.Hash.String(), Message: subject, Author: c.Author.Name, When: c.Author.When})
	}
	return out, nil
}

// Attach commits after every content event. dataSaved is skipped since the
// specific event that follows it names the change.
func (r *Recorder) Attach(n *events.Notifier) (detach func()) {
	var unsubs []func()
	for _, k := range events.Kinds {
		if k == events.DataSaved {
			continue
		}
		unsubs = append(unsubs, n.Subscribe(k, r.handle))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (r *Recorder) handle(ctx context.Context, e events.Event) error {
	committed, err := r.Commit(ctx, Describe(e))
	if err != nil {
		return err
	}
	if committed {
		slog.DebugContext(ctx, "Committed content history", "event", e.Kind)
	}
	return nil
}

// Describe returns a one line summary of e.
func Describe(e events.Event) string {
	switch v := e.After.(type) {
	case content.NewsItem:
		return fmt.Sprintf("%s %d: %s", e.Kind, v.ID, v.Title)
	case content.ProjectItem:
		return fmt.Sprintf("%s %s: %s", e.Kind, v.ID, v.Name)
	case content.PhotoChange:
		return fmt.Sprintf("%s %s", e.Kind, v.ID)
	case content.Counts:
		return fmt.Sprintf("%s: %d news, %d projects", e.Kind, v.News, v.Projects)
	case map[string]int64:
		return fmt.Sprintf("%s %d", e.Kind, v["id"])
	case map[string]string:
		return fmt.Sprintf("%s %s", e.Kind, v["id"])
	}
	return string(e.Kind)
}
