package content

import (
	"strings"
	"time"
	"unicode/utf8"
)

// localPathMarker identifies absolute paths from a developer machine that
// leaked into stored data.
const localPathMarker = "Users"

// FixImagePath canonicalizes an image reference.
//
// Relative paths, URLs and data URIs are returned as is, as is anything that
// does not look like a local absolute path. Local absolute paths are rewritten
// to "/" + basename. A basename without an extension yields nil. The function
// is idempotent.
func FixImagePath(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	s := *p
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "http") || strings.HasPrefix(s, "data:") || !strings.Contains(s, localPathMarker) {
		return &s
	}
	base := s[strings.LastIndexAny(s, `/\`)+1:]
	if !strings.Contains(base, ".") {
		return nil
	}
	out := "/" + base
	return &out
}

// ClampProgress bounds v to [0, 100].
func ClampProgress(v int) int {
	return max(0, min(100, v))
}

// DeriveSummary returns content shortened to the summary length.
func DeriveSummary(content string) string {
	if utf8.RuneCountInString(content) <= summaryLen {
		return content
	}
	r := []rune(content)
	return strings.TrimRightFunc(string(r[:summaryLen]), isSpace) + "..."
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// Today formats t as a calendar date in UTC.
func Today(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// NormalizeNews backfills defaults and canonicalizes the photo. today is used
// for a missing date. It is idempotent.
func NormalizeNews(n NewsItem, today string) NewsItem {
	n.Title = strings.TrimSpace(n.Title)
	if n.Title == "" {
		n.Title = DefaultNewsTitle
	}
	n.Content = strings.TrimSpace(n.Content)
	n.Summary = strings.TrimSpace(n.Summary)
	if n.Summary == "" {
		n.Summary = DeriveSummary(n.Content)
	}
	if n.Date == "" {
		n.Date = today
	}
	if n.Status == "" {
		n.Status = StatusPublished
	}
	if n.Category == "" {
		n.Category = DefaultNewsCategory
	}
	if n.ReadTime == "" {
		n.ReadTime = DefaultReadTime
	}
	n.Photo = FixImagePath(n.Photo)
	return n
}

// NormalizeProject backfills defaults, clamps progress and canonicalizes the
// photo. It is idempotent.
func NormalizeProject(p ProjectItem, today string) ProjectItem {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = DefaultProjectName
	}
	p.Description = strings.TrimSpace(p.Description)
	if p.Status == "" {
		p.Status = DefaultProjectStatus
	}
	if p.Type == "" {
		p.Type = DefaultProjectType
	}
	if p.StartDate == "" {
		p.StartDate = today
	}
	p.Progress = ClampProgress(p.Progress)
	p.Photo = FixImagePath(p.Photo)
	return p
}
