package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/enrollment-backend/internal/data/repos"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type Repos struct {
	User           repos.UserRepo
	Course         repos.CourseRepo
	Enrollment     repos.EnrollmentRepo
	EnrolledModule repos.EnrolledModuleRepo
	Progress       repos.ProgressRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		Course:         repos.NewCourseRepo(db, log),
		Enrollment:     repos.NewEnrollmentRepo(db, log),
		EnrolledModule: repos.NewEnrolledModuleRepo(db, log),
		Progress:       repos.NewProgressRepo(db, log),
	}
}
