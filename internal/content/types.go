// Package content holds the news and project collections, keeps them in sync
// with a kv.Store, and exposes the CRUD operations over them.
package content

import (
	"errors"
	"fmt"
)

// Storage keys and the data version marker. Changing Version discards any
// previously stored content on the next start.
const (
	KeyNews     = "impaNews"
	KeyProjects = "impaProjects"
	KeyVersion  = "impaDataVersion"

	Version = "1.3"
)

// Keys lists the storage keys owned by the store.
var Keys = []string{KeyNews, KeyProjects, KeyVersion}

// News status values.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)

// Defaults applied to missing fields.
const (
	DefaultNewsTitle      = "بلا عنوان"
	DefaultNewsCategory   = "أخبار عامة"
	DefaultReadTime       = "3 دقائق"
	DefaultProjectName    = "مشروع بلا اسم"
	DefaultProjectStatus  = "مخطط"
	DefaultProjectType    = "عام"
	summaryLen            = 200
	dateLayout            = "2006-01-02"
	projectIDPrefix       = "PRJ-"
	projectIDMinimumWidth = 3
)

// NewsItem is a news article.
type NewsItem struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Summary  string  `json:"summary"`
	Content  string  `json:"content"`
	Date     string  `json:"date"`
	Status   string  `json:"status"`
	Category string  `json:"category"`
	ReadTime string  `json:"readTime"`
	Photo    *string `json:"photo"`
}

// Published reports whether the item is visible on the public site.
func (n *NewsItem) Published() bool {
	return n.Status == StatusPublished
}

// ProjectItem is a project showcased on the site.
type ProjectItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Type        string  `json:"type"`
	StartDate   string  `json:"startDate"`
	Progress    int     `json:"progress"`
	Photo       *string `json:"photo"`
}

// NewsInput holds the caller supplied fields of a new news item.
type NewsInput struct {
	Title    string
	Summary  string
	Content  string
	Date     string
	Status   string
	Category string
	ReadTime string
	Photo    *string
}

// NewsPatch holds the fields to change on a news item. Nil means unchanged.
type NewsPatch struct {
	Title    *string
	Summary  *string
	Content  *string
	Date     *string
	Status   *string
	Category *string
	ReadTime *string
	Photo    *string
}

// ProjectInput holds the caller supplied fields of a new project.
type ProjectInput struct {
	Name        string
	Description string
	Status      string
	Type        string
	StartDate   string
	Progress    int
	Photo       *string
}

// ProjectPatch holds the fields to change on a project. Nil means unchanged.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *string
	Type        *string
	StartDate   *string
	Progress    *int
	Photo       *string
}

// Counts is the payload of bulk events.
type Counts struct {
	News     int `json:"newsCount"`
	Projects int `json:"projectsCount"`
}

// PhotoChange is the payload of photo update events.
type PhotoChange struct {
	ID       string  `json:"id"`
	OldPhoto *string `json:"oldPhoto"`
	NewPhoto *string `json:"newPhoto"`
}

var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrPersist wraps storage failures. The in-memory state has been rolled
	// back when it is returned.
	ErrPersist = errors.New("failed to persist content")
	// ErrReadOnly is returned by mutations of a store opened WithReadOnly.
	ErrReadOnly = errors.New("content store is read-only")
)

// ValidationError reports a record that lacks a required field or has an
// unusable value.
type ValidationError struct {
	Resource string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s %s", e.Resource, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s is required", e.Resource, e.Field)
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func ptr[T any](v T) *T {
	return &v
}
