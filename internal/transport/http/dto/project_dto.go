package dto

import (
	"time"

	"github.com/codebay/backend/internal/domain"
)

type CreateProjectRequest struct {
	Name     string `json:"name" validate:"required"`
	Path     string `json:"path" validate:"required"`
	CloneURL string `json:"clone_url,omitempty"`
}

func (r *CreateProjectRequest) Validate() []string {
	var errors []string
	if r.Name == "" {
		errors = append(errors, "name is required")
	}
	if r.Path == "" {
		errors = append(errors, "path is required")
	}
	return errors
}

type ProjectResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CloneURL  string    `json:"clone_url,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ProjectToResponse(project *domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:        project.ID,
		Name:      project.Name,
		Path:      project.Path,
		CloneURL:  project.CloneURL,
		Owner:     project.Owner,
		CreatedAt: project.CreatedAt,
		UpdatedAt: project.UpdatedAt,
	}
}

func ProjectsToResponse(projects []domain.Project) []ProjectResponse {
	responses := make([]ProjectResponse, len(projects))
	for i, project := range projects {
		responses[i] = ProjectToResponse(&project)
	}
	return responses
}
