package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// ProjectService manages project metadata and the working trees underneath
// the workspace root.
type ProjectService struct {
	repo          ports.ProjectRepository
	workspaceRoot string
	log           *logger.Logger
}

func NewProjectService(repo ports.ProjectRepository, workspaceRoot string, log *logger.Logger) *ProjectService {
	return &ProjectService{repo: repo, workspaceRoot: workspaceRoot, log: log}
}

func (s *ProjectService) Create(ctx context.Context, project *domain.Project) error {
	if project.Name == "" || project.Path == "" {
		return ErrProjectInvalidInput
	}
	if _, err := s.ResolvePath(project.Path); err != nil {
		return err
	}
	if existing, err := s.repo.GetByPath(ctx, project.Path); err == nil && existing != nil {
		return ErrProjectExists
	}
	if err := s.repo.Create(ctx, project); err != nil {
		s.log.Errorw("project_create_failed", "path", project.Path, "error", err)
		return err
	}
	s.log.Infow("project_created", "project_id", project.ID, "path", project.Path)
	return nil
}

func (s *ProjectService) Get(ctx context.Context, id uint) (*domain.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) GetByPath(ctx context.Context, path string) (*domain.Project, error) {
	project, err := s.repo.GetByPath(ctx, path)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.repo.GetAll(ctx)
}

func (s *ProjectService) Delete(ctx context.Context, id uint, removeContents bool) error {
	project, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if removeContents {
		abs, err := s.ResolvePath(project.Path)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(abs); err != nil {
			s.log.Errorw("project_contents_remove_failed", "path", project.Path, "error", err)
			return err
		}
	}
	s.log.Infow("project_deleted", "project_id", id, "remove_contents", removeContents)
	return nil
}

// ResolvePath maps a client-supplied repository path to an absolute path
// under the workspace root. Absolute paths and parent traversal are rejected.
func (s *ProjectService) ResolvePath(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrPathOutsideRoot
	}
	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	root, err := filepath.Abs(s.workspaceRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, cleaned), nil
}
