package domain

import (
	"time"

	"gorm.io/gorm"
)

// Project is the workspace metadata record for one cloned or initialized
// repository. The working tree itself lives under the configured workspace
// root; Path is relative to that root.
type Project struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Path      string         `gorm:"uniqueIndex;not null" json:"path"`
	CloneURL  string         `json:"clone_url,omitempty"`
	Owner     string         `gorm:"index" json:"owner,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
