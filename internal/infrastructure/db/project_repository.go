package db

import (
	"context"

	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type projectRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepository(db *gorm.DB, log *logger.Logger) ports.ProjectRepository {
	return &projectRepository{db: db, log: log}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		r.log.Errorw("project_repo_create_failed", "path", project.Path, "error", err)
		return err
	}
	r.log.Infow("project_repo_create_ok", "id", project.ID, "path", project.Path)
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		r.log.Errorw("project_repo_get_failed", "id", id, "error", err)
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) GetByPath(ctx context.Context, path string) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) GetAll(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&projects).Error; err != nil {
		r.log.Errorw("project_repo_list_failed", "error", err)
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	if err := r.db.WithContext(ctx).Save(project).Error; err != nil {
		r.log.Errorw("project_repo_update_failed", "id", project.ID, "error", err)
		return err
	}
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&domain.Project{}, id).Error; err != nil {
		r.log.Errorw("project_repo_delete_failed", "id", id, "error", err)
		return err
	}
	r.log.Infow("project_repo_delete_ok", "id", id)
	return nil
}
