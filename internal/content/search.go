package content

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
)

// NewsFilter narrows SearchNews. Zero values disable a filter.
type NewsFilter struct {
	Category string
	DateFrom string
	DateTo   string
	// Fuzzy matches the query as an ordered subsequence instead of a
	// substring.
	Fuzzy bool
}

// ProjectFilter narrows SearchProjects. Nil bounds are not applied.
type ProjectFilter struct {
	Status      string
	Type        string
	MinProgress *int
	MaxProgress *int
	Fuzzy       bool
}

// matcher reports whether any field contains the query.
type matcher func(fields ...string) bool

func newMatcher(query string, fuzzyMode bool) matcher {
	query = strings.TrimSpace(query)
	if query == "" {
		return func(...string) bool { return true }
	}
	if fuzzyMode {
		return func(fields ...string) bool {
			return slices.ContainsFunc(fields, func(f string) bool {
				return fuzzy.MatchNormalizedFold(query, f)
			})
		}
	}
	// A Caser keeps state and is not safe for concurrent use.
	fold := cases.Fold()
	q := fold.String(query)
	return func(fields ...string) bool {
		return slices.ContainsFunc(fields, func(f string) bool {
			return strings.Contains(fold.String(f), q)
		})
	}
}

// SearchNews returns the published news matching query and f, newest first.
// An empty query matches everything.
func (s *Store) SearchNews(query string, f NewsFilter) []NewsItem {
	match := newMatcher(query, f.Fuzzy)
	out := s.AllNews()
	out = slices.DeleteFunc(out, func(n NewsItem) bool {
		switch {
		case f.Category != "" && n.Category != f.Category:
			return true
		case f.DateFrom != "" && n.Date < f.DateFrom:
			return true
		case f.DateTo != "" && n.Date > f.DateTo:
			return true
		}
		return !match(n.Title, n.Summary, n.Content, n.Category)
	})
	slices.SortStableFunc(out, func(a, b NewsItem) int {
		return strings.Compare(b.Date, a.Date)
	})
	return out
}

// SearchProjects returns the projects matching query and f in stored order.
// An empty query matches everything.
func (s *Store) SearchProjects(query string, f ProjectFilter) []ProjectItem {
	match := newMatcher(query, f.Fuzzy)
	out := s.AllProjects()
	return slices.DeleteFunc(out, func(p ProjectItem) bool {
		switch {
		case f.Status != "" && p.Status != f.Status:
			return true
		case f.Type != "" && p.Type != f.Type:
			return true
		case f.MinProgress != nil && p.Progress < *f.MinProgress:
			return true
		case f.MaxProgress != nil && p.Progress > *f.MaxProgress:
			return true
		}
		return !match(p.Name, p.Description, p.Type, p.Status)
	})
}
