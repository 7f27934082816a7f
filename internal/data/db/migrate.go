package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// read-only collaborators
		&domain.User{},
		&domain.Course{},

		&domain.Enrollment{},
		&domain.EnrolledModule{},
		&domain.Progress{},
	)
}
