package content

import (
	"context"
	"fmt"
	"slices"

	"github.com/impa/website/internal/events"
)

func cloneProject(p ProjectItem) ProjectItem {
	if p.Photo != nil {
		p.Photo = ptr(*p.Photo)
	}
	return p
}

// AllProjects returns every project.
func (s *Store) AllProjects() []ProjectItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ProjectItem, len(s.projects))
	for i := range s.projects {
		out[i] = cloneProject(s.projects[i])
	}
	return out
}

// AdminProjects returns every project. Projects have no draft state so it is
// the same as AllProjects.
func (s *Store) AdminProjects() []ProjectItem {
	return s.AllProjects()
}

// ProjectByID returns the project with the given ID.
func (s *Store) ProjectByID(id string) (ProjectItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.projectIndexLocked(id)
	if i < 0 {
		return ProjectItem{}, projectNotFound(id)
	}
	return cloneProject(s.projects[i]), nil
}

func (s *Store) projectIndexLocked(id string) int {
	return slices.IndexFunc(s.projects, func(p ProjectItem) bool { return p.ID == id })
}

func projectNotFound(id string) error {
	return fmt.Errorf("project %q: %w", id, ErrNotFound)
}

// AddProject creates a project and prepends it to the collection.
func (s *Store) AddProject(ctx context.Context, in ProjectInput) (ProjectItem, error) {
	if err := requireText("project", "name", in.Name); err != nil {
		return ProjectItem{}, err
	}
	if err := requireText("project", "description", in.Description); err != nil {
		return ProjectItem{}, err
	}
	photo, err := photoInput("project", in.Photo)
	if err != nil {
		return ProjectItem{}, err
	}
	if err := validateDate("project", "startDate", in.StartDate); err != nil {
		return ProjectItem{}, err
	}
	var created ProjectItem
	err = s.mutate(ctx, "addProject", func() ([]events.Event, error) {
		p := NormalizeProject(ProjectItem{
			ID:          s.nextProjectIDLocked(),
			Name:        in.Name,
			Description: in.Description,
			Status:      in.Status,
			Type:        in.Type,
			StartDate:   in.StartDate,
			Progress:    in.Progress,
			Photo:       photo,
		}, s.today())
		if err := ValidateProject(&p); err != nil {
			return nil, err
		}
		s.projects = slices.Insert(s.projects, 0, p)
		created = cloneProject(p)
		return []events.Event{{Kind: events.ProjectAdded, After: cloneProject(p)}}, nil
	})
	if err != nil {
		return ProjectItem{}, err
	}
	return created, nil
}

// UpdateProject applies p to the project id. Progress is clamped to [0, 100].
func (s *Store) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (ProjectItem, error) {
	if patch.StartDate != nil {
		if err := validateDate("project", "startDate", *patch.StartDate); err != nil {
			return ProjectItem{}, err
		}
	}
	var photo *string
	if patch.Photo != nil {
		var err error
		if photo, err = photoInput("project", patch.Photo); err != nil {
			return ProjectItem{}, err
		}
	}
	var updated ProjectItem
	err := s.mutate(ctx, "updateProject", func() ([]events.Event, error) {
		i := s.projectIndexLocked(id)
		if i < 0 {
			return nil, projectNotFound(id)
		}
		before := cloneProject(s.projects[i])
		p := s.projects[i]
		setTrimmed(&p.Name, patch.Name)
		setTrimmed(&p.Description, patch.Description)
		setTrimmed(&p.Status, patch.Status)
		setTrimmed(&p.Type, patch.Type)
		setTrimmed(&p.StartDate, patch.StartDate)
		if patch.Progress != nil {
			p.Progress = ClampProgress(*patch.Progress)
		}
		if patch.Photo != nil {
			p.Photo = photo
		}
		if err := ValidateProject(&p); err != nil {
			return nil, err
		}
		s.projects[i] = p
		updated = cloneProject(p)
		return []events.Event{{Kind: events.ProjectUpdated, Before: before, After: cloneProject(p)}}, nil
	})
	if err != nil {
		return ProjectItem{}, err
	}
	return updated, nil
}

// DeleteProject removes the project id. Its number is not reused.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.mutate(ctx, "deleteProject", func() ([]events.Event, error) {
		i := s.projectIndexLocked(id)
		if i < 0 {
			return nil, projectNotFound(id)
		}
		removed := cloneProject(s.projects[i])
		s.projects = slices.Delete(s.projects, i, i+1)
		return []events.Event{{Kind: events.ProjectDeleted, Before: removed, After: map[string]string{"id": id}}}, nil
	})
}

// SetProjectPhoto replaces the photo of project id. A nil or empty photo
// clears it; an unusable path is a validation error.
func (s *Store) SetProjectPhoto(ctx context.Context, id string, photo *string) (ProjectItem, error) {
	photo, err := photoInput("project", photo)
	if err != nil {
		return ProjectItem{}, err
	}
	var updated ProjectItem
	err = s.mutate(ctx, "setProjectPhoto", func() ([]events.Event, error) {
		i := s.projectIndexLocked(id)
		if i < 0 {
			return nil, projectNotFound(id)
		}
		old := s.projects[i].Photo
		s.projects[i].Photo = photo
		updated = cloneProject(s.projects[i])
		return []events.Event{{Kind: events.ProjectPhotoUpdated, After: PhotoChange{
			ID:       id,
			OldPhoto: old,
			NewPhoto: updated.Photo,
		}}}, nil
	})
	if err != nil {
		return ProjectItem{}, err
	}
	return updated, nil
}
