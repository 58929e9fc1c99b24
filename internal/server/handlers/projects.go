package handlers

import (
	"context"

	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/server/dto"
)

const projectNotFound = "Project"

// ProjectHandler serves /api/projects.
type ProjectHandler struct {
	Svc *Services
}

// List returns every project.
func (h *ProjectHandler) List(_ context.Context, _ *dto.EmptyRequest) (*dto.Envelope[[]content.ProjectItem], error) {
	return dto.List(h.Svc.Content.AllProjects()), nil
}

// Search filters the projects.
func (h *ProjectHandler) Search(_ context.Context, req *dto.SearchProjectsRequest) (*dto.Envelope[[]content.ProjectItem], error) {
	return dto.List(h.Svc.Content.SearchProjects(req.Q, content.ProjectFilter{
		Status:      req.Status,
		Type:        req.Type,
		MinProgress: req.MinProgress,
		MaxProgress: req.MaxProgress,
		Fuzzy:       req.Fuzzy,
	})), nil
}

// Get returns one project.
func (h *ProjectHandler) Get(_ context.Context, req *dto.ProjectIDRequest) (*dto.Envelope[content.ProjectItem], error) {
	p, err := h.Svc.Content.ProjectByID(req.ID)
	if err != nil {
		return nil, contentError(err, projectNotFound, "Failed to fetch project")
	}
	return dto.OK(p, ""), nil
}

// Create adds a project.
func (h *ProjectHandler) Create(ctx context.Context, _ *auth.User, req *dto.CreateProjectRequest) (*dto.Envelope[content.ProjectItem], error) {
	p, err := h.Svc.Content.AddProject(ctx, content.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Type:        req.Type,
		StartDate:   req.StartDate,
		Progress:    req.Progress,
		Photo:       req.Photo,
	})
	if err != nil {
		return nil, contentError(err, projectNotFound, "Failed to create project")
	}
	return dto.Created(p, "Project created successfully"), nil
}

// Update merges the request into a project.
func (h *ProjectHandler) Update(ctx context.Context, _ *auth.User, req *dto.UpdateProjectRequest) (*dto.Envelope[content.ProjectItem], error) {
	p, err := h.Svc.Content.UpdateProject(ctx, req.ID, content.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Type:        req.Type,
		StartDate:   req.StartDate,
		Progress:    req.Progress,
		Photo:       req.Photo,
	})
	if err != nil {
		return nil, contentError(err, projectNotFound, "Failed to update project")
	}
	return dto.OK(p, "Project updated successfully"), nil
}

// SetPhoto replaces or clears the photo of a project.
func (h *ProjectHandler) SetPhoto(ctx context.Context, _ *auth.User, req *dto.PhotoRequest) (*dto.Envelope[content.ProjectItem], error) {
	p, err := h.Svc.Content.SetProjectPhoto(ctx, req.ID, req.Photo)
	if err != nil {
		return nil, contentError(err, projectNotFound, "Failed to update project photo")
	}
	return dto.OK(p, "Project photo updated successfully"), nil
}

// Delete removes a project.
func (h *ProjectHandler) Delete(ctx context.Context, _ *auth.User, req *dto.ProjectIDRequest) (*dto.Envelope[any], error) {
	if err := h.Svc.Content.DeleteProject(ctx, req.ID); err != nil {
		return nil, contentError(err, projectNotFound, "Failed to delete project")
	}
	return dto.Done("Project deleted successfully"), nil
}
