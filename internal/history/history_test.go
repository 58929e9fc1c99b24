package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/events"
	"github.com/impa/website/internal/kv"
)

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir, "IMPA", "site@impa.example")
	if err != nil {
		t.Fatal(err)
	}
	if log, err := r.Log(10); err != nil || len(log) != 0 {
		t.Fatalf("empty repo: got %v, %v", log, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "impaNews.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".impaNews.123.tmp"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err := r.Commit(t.Context(), "first")
	if err != nil || !ok {
		t.Fatalf("got %v, %v", ok, err)
	}
	ok, err = r.Commit(t.Context(), "nothing changed")
	if err != nil || ok {
		t.Fatalf("clean tree: got %v, %v", ok, err)
	}

	// Reopening keeps the history.
	r, err = Open(dir, "IMPA", "site@impa.example")
	if err != nil {
		t.Fatal(err)
	}
	log, err := r.Log(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0].Message != "first" || log[0].Author != "IMPA" {
		t.Errorf("got %+v", log)
	}
}

func TestAttach(t *testing.T) {
	dir := t.TempDir()
	store, err := kv.NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	r, err := Open(dir, "IMPA", "site@impa.example")
	if err != nil {
		t.Fatal(err)
	}
	n := events.New()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	c, err := content.New(t.Context(), store, content.WithNotifier(n), content.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	detach := r.Attach(n)
	p, err := c.AddProject(t.Context(), content.ProjectInput{Name: "Harbor", Description: "Dredging"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteProject(t.Context(), p.ID); err != nil {
		t.Fatal(err)
	}
	detach()
	if _, err := c.AddNews(context.Background(), content.NewsInput{Title: "t", Content: "c"}); err != nil {
		t.Fatal(err)
	}

	log, err := r.Log(10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"projectDeleted " + p.ID,
		"projectAdded " + p.ID + ": Harbor",
	}
	if len(log) != len(want) {
		t.Fatalf("got %+v, want %d commits", log, len(want))
	}
	for i, w := range want {
		if log[i].Message != w {
			t.Errorf("commit %d: got %q, want %q", i, log[i].Message, w)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		e    events.Event
		want string
	}{
		{events.Event{Kind: events.NewsAdded, After: content.NewsItem{ID: 7, Title: "Hi"}}, "newsAdded 7: Hi"},
		{events.Event{Kind: events.NewsDeleted, After: map[string]int64{"id": 7}}, "newsDeleted 7"},
		{events.Event{Kind: events.ProjectPhotoUpdated, After: content.PhotoChange{ID: "PRJ-002"}}, "projectPhotoUpdated PRJ-002"},
		{events.Event{Kind: events.DataImported, After: content.Counts{News: 2, Projects: 3}}, "dataImported: 2 news, 3 projects"},
		{events.Event{Kind: events.DataRefreshed}, "dataRefreshed"},
	}
	for _, tt := range tests {
		if got := Describe(tt.e); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
