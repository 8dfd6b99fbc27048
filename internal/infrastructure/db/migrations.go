package db

import (
	"github.com/codebay/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Project{},
	); err != nil {
		return err
	}

	// Partial unique index so a deleted project's path can be reused.
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_path_unique
		ON projects (path)
		WHERE deleted_at IS NULL
	`).Error
}
