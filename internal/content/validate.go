package content

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidateNews checks the fields every stored news item must have.
func ValidateNews(n *NewsItem) error {
	switch {
	case n.ID == 0:
		return &ValidationError{Resource: "news", Field: "id"}
	case strings.TrimSpace(n.Title) == "":
		return &ValidationError{Resource: "news", Field: "title"}
	case strings.TrimSpace(n.Content) == "":
		return &ValidationError{Resource: "news", Field: "content"}
	case n.Date == "":
		return &ValidationError{Resource: "news", Field: "date"}
	}
	return nil
}

// ValidateProject checks the fields every stored project must have.
func ValidateProject(p *ProjectItem) error {
	switch {
	case p.ID == "":
		return &ValidationError{Resource: "project", Field: "id"}
	case strings.TrimSpace(p.Name) == "":
		return &ValidationError{Resource: "project", Field: "name"}
	case strings.TrimSpace(p.Description) == "":
		return &ValidationError{Resource: "project", Field: "description"}
	case p.Status == "":
		return &ValidationError{Resource: "project", Field: "status"}
	case p.Progress < 0 || p.Progress > 100:
		return &ValidationError{Resource: "project", Field: "progress", Reason: "must be between 0 and 100"}
	}
	return nil
}

// ValidateCollections validates every record and ID uniqueness.
//
// Empty collections are valid.
func ValidateCollections(news []NewsItem, projects []ProjectItem) error {
	seenNews := make(map[int64]struct{}, len(news))
	for i := range news {
		if err := ValidateNews(&news[i]); err != nil {
			return fmt.Errorf("news[%d]: %w", i, err)
		}
		if _, ok := seenNews[news[i].ID]; ok {
			return &ValidationError{Resource: "news", Field: "id", Reason: fmt.Sprintf("%d is duplicated", news[i].ID)}
		}
		seenNews[news[i].ID] = struct{}{}
	}
	seenProjects := make(map[string]struct{}, len(projects))
	for i := range projects {
		if err := ValidateProject(&projects[i]); err != nil {
			return fmt.Errorf("projects[%d]: %w", i, err)
		}
		if _, ok := seenProjects[projects[i].ID]; ok {
			return &ValidationError{Resource: "project", Field: "id", Reason: projects[i].ID + " is duplicated"}
		}
		seenProjects[projects[i].ID] = struct{}{}
	}
	return nil
}

// requireText rejects a blank input field. Loaded records are backfilled
// instead; new ones must carry the field.
func requireText(resource, field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Resource: resource, Field: field}
	}
	return nil
}

// photoInput canonicalizes a photo being set. nil and "" clear the photo; a
// value that FixImagePath cannot use is rejected rather than clearing it.
func photoInput(resource string, photo *string) (*string, error) {
	if photo == nil || *photo == "" {
		return nil, nil
	}
	fixed := FixImagePath(photo)
	if fixed == nil {
		return nil, &ValidationError{Resource: resource, Field: "photo", Reason: "is not a usable image path"}
	}
	return fixed, nil
}

// validateDate accepts an empty value or a YYYY-MM-DD date.
func validateDate(resource, field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return &ValidationError{Resource: resource, Field: field, Reason: "must be a YYYY-MM-DD date"}
	}
	return nil
}

func validateNewsStatus(v string) error {
	if v == "" || v == StatusPublished || v == StatusDraft {
		return nil
	}
	return &ValidationError{Resource: "news", Field: "status", Reason: strconv.Quote(v) + " is not published or draft"}
}
